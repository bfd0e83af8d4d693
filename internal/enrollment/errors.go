package enrollment

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrCourseNotFound = errors.New("course not found")
	ErrNotStudent     = errors.New("only students can enroll")
	ErrNotTeacher     = errors.New("only teachers can create courses")
	ErrInvalidDraft   = errors.New("invalid course draft")

	// ErrEnrollmentFailed means the linkage was not established. Any partial
	// write has been compensated, or the compensation failure was logged.
	ErrEnrollmentFailed = errors.New("enrollment failed")

	// ErrCourseCreationFailed means no course was left attached to the teacher.
	ErrCourseCreationFailed = errors.New("course creation failed")
)
