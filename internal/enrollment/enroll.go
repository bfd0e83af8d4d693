package enrollment

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"coursehub/internal/entity"
)

type Outcome int

const (
	OutcomeEnrolled Outcome = iota + 1
	OutcomeAlreadyEnrolled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEnrolled:
		return "enrolled"
	case OutcomeAlreadyEnrolled:
		return "already_enrolled"
	}
	return "unknown"
}

// Result is the successful outcome of EnrollStudent. Student and Course are
// the aggregates as known after the operation.
type Result struct {
	Outcome Outcome
	Student *entity.Identity
	Course  *entity.Course
}

// EnrollStudent links a student and a course on both sides.
//
// The identity side is written first with a conditional append. Only the
// caller whose append succeeds continues, so concurrent enrollments of the
// same pair produce at most one linkage; the others report
// OutcomeAlreadyEnrolled. The course side is retried; if it cannot be
// written the identity side is rolled back and ErrEnrollmentFailed returned.
// A pair found linked on one side only, for example after a write whose reply
// was lost, gets the missing side written before it is reported.
func (c *Coordinator) EnrollStudent(ctx context.Context, studentID, courseID string) (*Result, error) {
	student, err := c.loadIdentity(ctx, studentID)
	if err != nil {
		c.recordEnrollment("rejected")
		return nil, err
	}
	if student.Role != entity.RoleStudent {
		c.recordEnrollment("rejected")
		return nil, oops.Code("ENROLL_NOT_STUDENT").With("user_id", studentID).Wrap(ErrNotStudent)
	}

	course, err := c.loadCourse(ctx, courseID)
	if err != nil {
		c.recordEnrollment("rejected")
		return nil, err
	}

	if student.HasCourse(course.ID) || course.HasStudent(student.ID) {
		if err := c.repairLink(ctx, student, course); err != nil {
			c.recordEnrollment("failed")
			return nil, err
		}
		c.recordEnrollment(OutcomeAlreadyEnrolled.String())
		return &Result{Outcome: OutcomeAlreadyEnrolled, Student: student, Course: course}, nil
	}

	var added bool
	err = c.once(ctx, func(ctx context.Context) error {
		var err error
		added, err = c.users.AddCourse(ctx, student.ID, course.ID)
		return err
	})
	if err != nil {
		c.recordEnrollment("failed")
		return nil, oops.Code("ENROLL_FAILED").
			With("student_id", student.ID).
			With("course_id", course.ID).
			With("step", "identity").
			Wrap(failure(ErrEnrollmentFailed, err))
	}
	if !added {
		c.recordEnrollment(OutcomeAlreadyEnrolled.String())
		return &Result{Outcome: OutcomeAlreadyEnrolled, Student: student, Course: course}, nil
	}

	err = c.retryStep(ctx, func(ctx context.Context) error {
		// added == false here means a previous attempt already landed.
		_, err := c.courses.AddStudent(ctx, course.ID, student.ID)
		return err
	})
	if err != nil {
		c.compensate(ctx, "enroll", func(ctx context.Context) error {
			err := c.users.RemoveCourse(ctx, student.ID, course.ID)
			if errors.Is(err, entity.ErrNotFound) {
				return nil
			}
			return err
		}, "student_id", student.ID, "course_id", course.ID)

		c.recordEnrollment("failed")
		return nil, oops.Code("ENROLL_FAILED").
			With("student_id", student.ID).
			With("course_id", course.ID).
			With("step", "course").
			Wrap(failure(ErrEnrollmentFailed, err))
	}

	student.Courses = append(student.Courses, course.ID)
	if !course.HasStudent(student.ID) {
		course.Students = append(course.Students, student.ID)
	}

	c.recordEnrollment(OutcomeEnrolled.String())
	c.logger.InfoContext(ctx, "student enrolled", "student_id", student.ID, "course_id", course.ID)
	return &Result{Outcome: OutcomeEnrolled, Student: student, Course: course}, nil
}

// repairLink writes whichever side of an existing linkage is missing. Both
// appends are conditional, so repeating them is harmless.
func (c *Coordinator) repairLink(ctx context.Context, student *entity.Identity, course *entity.Course) error {
	var (
		step string
		err  error
	)
	switch {
	case student.HasCourse(course.ID) && !course.HasStudent(student.ID):
		step = "repair course"
		err = c.retryStep(ctx, func(ctx context.Context) error {
			_, err := c.courses.AddStudent(ctx, course.ID, student.ID)
			return err
		})
		if err == nil {
			course.Students = append(course.Students, student.ID)
		}
	case course.HasStudent(student.ID) && !student.HasCourse(course.ID):
		step = "repair identity"
		err = c.retryStep(ctx, func(ctx context.Context) error {
			_, err := c.users.AddCourse(ctx, student.ID, course.ID)
			return err
		})
		if err == nil {
			student.Courses = append(student.Courses, course.ID)
		}
	default:
		return nil
	}
	if err != nil {
		return oops.Code("ENROLL_FAILED").
			With("student_id", student.ID).
			With("course_id", course.ID).
			With("step", step).
			Wrap(failure(ErrEnrollmentFailed, err))
	}
	c.logger.WarnContext(ctx, "repaired half-linked enrollment", "student_id", student.ID, "course_id", course.ID, "step", step)
	return nil
}

func (c *Coordinator) recordEnrollment(outcome string) {
	c.metrics.Enrollments.WithLabelValues(outcome).Inc()
}
