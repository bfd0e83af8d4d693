// Package auth authenticates identities and manages the session lifecycle.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/sessions"
	"github.com/samber/oops"

	"coursehub/internal/entity"
)

// Manager ties the session cookie store to the user directory.
type Manager struct {
	store  sessions.Store
	users  entity.UserDirectory
	hasher PasswordHasher
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewManager(store sessions.Store, users entity.UserDirectory, hasher PasswordHasher, logger *slog.Logger) *Manager {
	return &Manager{store: store, users: users, hasher: hasher, logger: logger}
}

// Load returns the session of r. An undecodable cookie yields a fresh session.
func (m *Manager) Load(r *http.Request) *Session {
	raw, err := m.store.Get(r, SessionName)
	if err != nil {
		m.logger.DebugContext(r.Context(), "discarding unreadable session cookie", "error", err)
	}
	return &Session{raw: raw}
}

// Save writes the session cookie if the session changed during the request.
// It must run before the response header is written.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	if !s.dirty {
		return nil
	}
	if err := m.store.Save(r, w, s.raw); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").Wrap(err)
	}
	s.dirty = false
	return nil
}

// Authenticate checks username and password. Unknown users and wrong
// passwords both return ErrInvalidCredentials after a full hash comparison.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (*entity.Identity, error) {
	u, err := m.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get identity by username").Wrap(err)
	}

	hash := m.dummy()
	if u != nil {
		hash = u.PasswordHash
	}

	valid, verifyErr := m.hasher.Verify(password, hash)
	if u != nil && verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password").Wrap(verifyErr)
	}
	if u == nil || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}
	return u, nil
}

func (m *Manager) dummy() string {
	m.dummyOnce.Do(func() {
		h, err := m.hasher.Hash("coursehub-dummy-password")
		if err != nil {
			m.logger.Warn("dummy password hash unavailable", "error", err)
			return
		}
		m.dummyHash = h
	})
	return m.dummyHash
}

// ResolveIdentity loads the identity bound to s. A session without a binding,
// or bound to an id that no longer resolves, is unauthenticated; the stale
// binding is dropped. Storage faults are returned.
func (m *Manager) ResolveIdentity(ctx context.Context, s *Session) (Context, error) {
	ac := Context{Session: s}
	id := s.IdentityID()
	if id == "" {
		return ac, nil
	}

	u, err := m.users.GetByID(ctx, id)
	if errors.Is(err, entity.ErrNotFound) {
		s.unbind()
		return ac, nil
	}
	if err != nil {
		return ac, oops.Code("AUTH_RESOLVE_FAILED").With("identity_id", id).Wrap(err)
	}
	ac.Identity = u
	return ac, nil
}

// PostLoginPath returns the captured return-to path, consuming it, or the
// role's home page.
func PostLoginPath(s *Session, u *entity.Identity) string {
	if p := s.ConsumeReturnTo(); p != "" {
		return p
	}
	return HomePath(u.Role)
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	FullName        string
	Username        string
	Password        string
	PasswordConfirm string
	Role            string
}

// Register validates req and creates a new identity. Input problems are
// returned as errors wrapping ErrValidation.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*entity.Identity, error) {
	fullName := strings.TrimSpace(req.FullName)
	username := strings.TrimSpace(req.Username)
	if fullName == "" || username == "" || req.Password == "" || req.Role == "" {
		return nil, oops.Code("REGISTER_MISSING_FIELD").Wrap(ErrMissingField)
	}
	if req.Password != req.PasswordConfirm {
		return nil, oops.Code("REGISTER_PASSWORD_MISMATCH").Wrap(ErrPasswordMismatch)
	}
	role, ok := entity.ParseRole(req.Role)
	if !ok {
		return nil, oops.Code("REGISTER_INVALID_ROLE").With("role", req.Role).Wrap(ErrInvalidRole)
	}

	_, err := m.users.GetByUsername(ctx, username)
	if err == nil {
		return nil, oops.Code("REGISTER_USERNAME_TAKEN").With("username", username).Wrap(ErrUsernameTaken)
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, oops.Code("REGISTER_FAILED").With("operation", "check username").Wrap(err)
	}

	hash, err := m.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	u := &entity.Identity{
		FullName:     fullName,
		Role:         role,
		Username:     username,
		PasswordHash: hash,
	}
	if err := m.users.Create(ctx, u); err != nil {
		if errors.Is(err, entity.ErrDuplicateUsername) {
			return nil, oops.Code("REGISTER_USERNAME_TAKEN").With("username", username).Wrap(ErrUsernameTaken)
		}
		return nil, oops.Code("REGISTER_FAILED").With("operation", "create identity").Wrap(err)
	}

	m.logger.InfoContext(ctx, "identity registered", "identity_id", u.ID, "role", string(u.Role))
	return u, nil
}
