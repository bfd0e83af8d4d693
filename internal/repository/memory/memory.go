// Package memory implements in-memory identity and course storage for local
// runs and tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"coursehub/internal/entity"
)

// DB holds identities and courses behind a single mutex.
type DB struct {
	mu          sync.Mutex
	users       map[string]*entity.Identity
	usernames   map[string]string
	courses     map[string]*entity.Course
	courseOrder []string
}

func New() *DB {
	return &DB{
		users:     make(map[string]*entity.Identity),
		usernames: make(map[string]string),
		courses:   make(map[string]*entity.Course),
	}
}

// Users returns the UserDirectory view of db.
func (db *DB) Users() *UserStore { return &UserStore{db: db} }

// Courses returns the CourseCatalog view of db.
func (db *DB) Courses() *CourseStore { return &CourseStore{db: db} }

type UserStore struct{ db *DB }

type CourseStore struct{ db *DB }

var (
	_ entity.UserDirectory = (*UserStore)(nil)
	_ entity.CourseCatalog = (*CourseStore)(nil)
)

// --- UserDirectory ---

func (s *UserStore) GetByID(_ context.Context, id string) (*entity.Identity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(entity.ErrNotFound)
	}
	return u.Clone(), nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (*entity.Identity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	id, ok := s.db.usernames[username]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(entity.ErrNotFound)
	}
	return s.db.users[id].Clone(), nil
}

func (s *UserStore) Create(_ context.Context, u *entity.Identity) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, taken := s.db.usernames[u.Username]; taken {
		return oops.Code("USER_DUPLICATE").With("username", u.Username).Wrap(entity.ErrDuplicateUsername)
	}
	if u.ID == "" {
		u.ID = entity.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Courses == nil {
		u.Courses = []string{}
	}
	s.db.users[u.ID] = u.Clone()
	s.db.usernames[u.Username] = u.ID
	return nil
}

func (s *UserStore) AddCourse(_ context.Context, userID, courseID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[userID]
	if !ok {
		return false, oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(entity.ErrNotFound)
	}
	if u.HasCourse(courseID) {
		return false, nil
	}
	u.Courses = append(u.Courses, courseID)
	return true, nil
}

func (s *UserStore) RemoveCourse(_ context.Context, userID, courseID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[userID]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(entity.ErrNotFound)
	}
	u.Courses = slices.DeleteFunc(u.Courses, func(id string) bool { return id == courseID })
	return nil
}

// --- CourseCatalog ---

func (s *CourseStore) GetByID(_ context.Context, id string) (*entity.Course, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.courses[id]
	if !ok {
		return nil, oops.Code("COURSE_NOT_FOUND").With("course_id", id).Wrap(entity.ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *CourseStore) Find(_ context.Context, filter entity.CourseFilter) ([]*entity.Course, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	needle := strings.ToLower(filter.Name)
	var out []*entity.Course
	for _, id := range s.db.courseOrder {
		c := s.db.courses[id]
		switch filter.Mode {
		case entity.MatchExact:
			if c.Name != filter.Name {
				continue
			}
		default:
			if !strings.Contains(strings.ToLower(c.Name), needle) {
				continue
			}
		}
		out = append(out, c.Clone())
	}
	return out, nil
}

func (s *CourseStore) ListByIDs(_ context.Context, ids []string) ([]*entity.Course, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]*entity.Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.db.courses[id]; ok {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *CourseStore) Create(_ context.Context, c *entity.Course) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if c.ID == "" {
		c.ID = entity.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Students == nil {
		c.Students = []string{}
	}
	s.db.courses[c.ID] = c.Clone()
	s.db.courseOrder = append(s.db.courseOrder, c.ID)
	return nil
}

func (s *CourseStore) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	delete(s.db.courses, id)
	s.db.courseOrder = slices.DeleteFunc(s.db.courseOrder, func(v string) bool { return v == id })
	return nil
}

func (s *CourseStore) AddStudent(_ context.Context, courseID, studentID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.courses[courseID]
	if !ok {
		return false, oops.Code("COURSE_NOT_FOUND").With("course_id", courseID).Wrap(entity.ErrNotFound)
	}
	if c.HasStudent(studentID) {
		return false, nil
	}
	c.Students = append(c.Students, studentID)
	return true, nil
}
