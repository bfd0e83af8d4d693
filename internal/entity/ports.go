package entity

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by directory and catalog lookups for unknown ids.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUsername is returned by UserDirectory.Create when the
	// username is already registered.
	ErrDuplicateUsername = errors.New("username already registered")
)

// UserDirectory persists identities.
//
// AddCourse appends courseID to the identity's course list only when it is
// not present yet and reports whether it did. The check and the append are a
// single atomic step, so two concurrent callers for the same pair see exactly
// one true. RemoveCourse is a no-op when the id is absent.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetByUsername(ctx context.Context, username string) (*Identity, error)
	Create(ctx context.Context, u *Identity) error
	AddCourse(ctx context.Context, userID, courseID string) (bool, error)
	RemoveCourse(ctx context.Context, userID, courseID string) error
}

// CourseCatalog persists courses. AddStudent has the same conditional append
// semantics as UserDirectory.AddCourse.
type CourseCatalog interface {
	GetByID(ctx context.Context, id string) (*Course, error)
	Find(ctx context.Context, filter CourseFilter) ([]*Course, error)
	// ListByIDs returns the courses in the order of ids, skipping ids that
	// no longer resolve.
	ListByIDs(ctx context.Context, ids []string) ([]*Course, error)
	Create(ctx context.Context, c *Course) error
	Delete(ctx context.Context, id string) error
	AddStudent(ctx context.Context, courseID, studentID string) (bool, error)
}
