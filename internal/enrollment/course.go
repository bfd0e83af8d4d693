package enrollment

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/samber/oops"

	"coursehub/internal/entity"
)

// MaxPrice is the first price the NUMERIC(10,2) column cannot hold.
const MaxPrice = 1e8

// Draft is the teacher's input for a new course.
type Draft struct {
	Name        string
	Description string
	Price       float64
}

// Normalize trims the text fields and rounds the price to cents.
func (d Draft) Normalize() Draft {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.Price = math.Round(d.Price*100) / 100
	return d
}

func (d Draft) Validate() error {
	if d.Name == "" {
		return oops.Code("COURSE_DRAFT_INVALID").With("field", "name").Wrap(ErrInvalidDraft)
	}
	if math.IsNaN(d.Price) || math.IsInf(d.Price, 0) || d.Price < 0 || d.Price >= MaxPrice {
		return oops.Code("COURSE_DRAFT_INVALID").With("field", "price").Wrap(ErrInvalidDraft)
	}
	return nil
}

type CourseResult struct {
	Course  *entity.Course
	Teacher *entity.Identity
}

// CreateCourse persists a course authored by the teacher and appends it to
// the teacher's course list. If the append cannot be made the course is
// deleted again. Every call creates a distinct course.
func (c *Coordinator) CreateCourse(ctx context.Context, teacherID string, draft Draft) (*CourseResult, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		c.recordCreation("rejected")
		return nil, err
	}

	teacher, err := c.loadIdentity(ctx, teacherID)
	if err != nil {
		c.recordCreation("rejected")
		return nil, err
	}
	if teacher.Role != entity.RoleTeacher {
		c.recordCreation("rejected")
		return nil, oops.Code("COURSE_NOT_TEACHER").With("user_id", teacherID).Wrap(ErrNotTeacher)
	}

	course := &entity.Course{
		ID:          entity.NewID(),
		Name:        draft.Name,
		Description: draft.Description,
		Price:       draft.Price,
		AuthorName:  teacher.FullName,
		AuthorID:    teacher.ID,
		Students:    []string{},
	}
	err = c.once(ctx, func(ctx context.Context) error {
		return c.courses.Create(ctx, course)
	})
	if err != nil {
		c.recordCreation("failed")
		return nil, oops.Code("COURSE_CREATE_FAILED").
			With("teacher_id", teacher.ID).
			With("step", "course").
			Wrap(failure(ErrCourseCreationFailed, err))
	}

	err = c.retryStep(ctx, func(ctx context.Context) error {
		_, err := c.users.AddCourse(ctx, teacher.ID, course.ID)
		return err
	})
	if err != nil {
		c.compensate(ctx, "create_course", func(ctx context.Context) error {
			err := c.courses.Delete(ctx, course.ID)
			if errors.Is(err, entity.ErrNotFound) {
				return nil
			}
			return err
		}, "teacher_id", teacher.ID, "course_id", course.ID)

		c.recordCreation("failed")
		return nil, oops.Code("COURSE_CREATE_FAILED").
			With("teacher_id", teacher.ID).
			With("course_id", course.ID).
			With("step", "identity").
			Wrap(failure(ErrCourseCreationFailed, err))
	}

	teacher.Courses = append(teacher.Courses, course.ID)
	c.recordCreation("created")
	c.logger.InfoContext(ctx, "course created", "teacher_id", teacher.ID, "course_id", course.ID)
	return &CourseResult{Course: course, Teacher: teacher}, nil
}

func (c *Coordinator) recordCreation(outcome string) {
	c.metrics.CourseCreations.WithLabelValues(outcome).Inc()
}
