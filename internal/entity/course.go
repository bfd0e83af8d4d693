package entity

import (
	"slices"
	"time"
)

type Course struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	AuthorName  string    `json:"author_name"`
	AuthorID    string    `json:"author_id"`
	Students    []string  `json:"students"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c *Course) HasStudent(studentID string) bool {
	return slices.Contains(c.Students, studentID)
}

func (c *Course) Clone() *Course {
	cp := *c
	cp.Students = slices.Clone(c.Students)
	return &cp
}

// MatchMode selects how CourseFilter.Name is compared.
type MatchMode int

const (
	// MatchPartial is a case-insensitive substring match.
	MatchPartial MatchMode = iota
	MatchExact
)

type CourseFilter struct {
	Name string
	Mode MatchMode
}
