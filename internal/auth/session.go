package auth

import (
	"net/http"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"coursehub/internal/entity"
)

// SessionName is the cookie name of the application session.
const SessionName = "coursehub-session"

const (
	keyIdentityID = "identity_id"
	keyReturnTo   = "return_to"
)

// Flash kinds.
const (
	FlashNotice = "notice"
	FlashError  = "error"
)

// CookieConfig configures the signed session cookie.
type CookieConfig struct {
	HashKey  []byte
	BlockKey []byte
	MaxAge   int
	Secure   bool
}

// NewCookieStore returns a gorilla cookie store. An empty hash key is replaced
// with a random one, which invalidates sessions on every restart.
func NewCookieStore(cfg CookieConfig) *sessions.CookieStore {
	hashKey := cfg.HashKey
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(64)
	}

	var store *sessions.CookieStore
	if len(cfg.BlockKey) > 0 {
		store = sessions.NewCookieStore(hashKey, cfg.BlockKey)
	} else {
		store = sessions.NewCookieStore(hashKey)
	}

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Session is the per-request view of the session cookie. It holds only the
// identity id, an optional return-to path and flash messages.
type Session struct {
	raw   *sessions.Session
	dirty bool
}

// IdentityID returns the bound identity id or "".
func (s *Session) IdentityID() string {
	id, _ := s.raw.Values[keyIdentityID].(string)
	return id
}

// Begin binds the session to u. Only the id is stored.
func (s *Session) Begin(u *entity.Identity) {
	s.raw.Values[keyIdentityID] = u.ID
	s.dirty = true
}

// End removes the identity binding and the return-to path and expires the
// cookie.
func (s *Session) End() {
	delete(s.raw.Values, keyIdentityID)
	delete(s.raw.Values, keyReturnTo)
	if s.raw.Options == nil {
		s.raw.Options = &sessions.Options{Path: "/"}
	}
	s.raw.Options.MaxAge = -1
	s.dirty = true
}

func (s *Session) unbind() {
	delete(s.raw.Values, keyIdentityID)
	s.dirty = true
}

// CaptureReturnTo records path as the post-login destination. Anything that
// is not a local path is ignored and false is returned.
func (s *Session) CaptureReturnTo(path string) bool {
	if !IsLocalPath(path) {
		return false
	}
	s.raw.Values[keyReturnTo] = path
	s.dirty = true
	return true
}

// ConsumeReturnTo returns the recorded path and clears it.
func (s *Session) ConsumeReturnTo() string {
	path, ok := s.raw.Values[keyReturnTo].(string)
	if !ok {
		return ""
	}
	delete(s.raw.Values, keyReturnTo)
	s.dirty = true
	return path
}

func (s *Session) AddFlash(kind, msg string) {
	s.raw.AddFlash(msg, kind)
	s.dirty = true
}

// Flashes pops the messages of the given kind.
func (s *Session) Flashes(kind string) []string {
	raw := s.raw.Flashes(kind)
	if len(raw) == 0 {
		return nil
	}
	s.dirty = true
	msgs := make([]string, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(string); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// IsLocalPath reports whether p is a path on this host. Scheme-relative
// ("//host") and backslash forms are rejected.
func IsLocalPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}

// HomePath is the default landing page of a role.
func HomePath(role entity.Role) string {
	switch role {
	case entity.RoleStudent:
		return "/student/index"
	case entity.RoleTeacher:
		return "/teacher/index"
	}
	return "/"
}

// Context is the authentication state of one request. Handlers receive it as
// an explicit argument.
type Context struct {
	Identity *entity.Identity
	Session  *Session
}

func (c Context) Authenticated() bool {
	return c.Identity != nil
}
