package entity

import (
	"slices"
	"time"
)

// Role is the closed set of account kinds. It is fixed at registration.
type Role string

const (
	RoleStudent Role = "Student"
	RoleTeacher Role = "Teacher"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher:
		return true
	}
	return false
}

// ParseRole accepts the form value of the registration page.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Identity is a registered account. Courses holds enrolled course ids for a
// student and authored course ids for a teacher, in insertion order.
type Identity struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Courses      []string  `json:"courses"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *Identity) HasCourse(courseID string) bool {
	return slices.Contains(u.Courses, courseID)
}

// Clone returns a copy that shares no slices with u.
func (u *Identity) Clone() *Identity {
	c := *u
	c.Courses = slices.Clone(u.Courses)
	return &c
}
