package enrollment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"coursehub/internal/entity"
	"coursehub/internal/metrics"
	"coursehub/internal/repository/memory"
)

var errStorage = errors.New("storage unavailable")

// courseCatalog wraps a real catalog and lets a test override single methods.
type courseCatalog struct {
	entity.CourseCatalog
	addStudentFn func(ctx context.Context, courseID, studentID string) (bool, error)
	deleteFn     func(ctx context.Context, id string) error
}

func (c *courseCatalog) AddStudent(ctx context.Context, courseID, studentID string) (bool, error) {
	if c.addStudentFn != nil {
		return c.addStudentFn(ctx, courseID, studentID)
	}
	return c.CourseCatalog.AddStudent(ctx, courseID, studentID)
}

func (c *courseCatalog) Delete(ctx context.Context, id string) error {
	if c.deleteFn != nil {
		return c.deleteFn(ctx, id)
	}
	return c.CourseCatalog.Delete(ctx, id)
}

type userDirectory struct {
	entity.UserDirectory
	addCourseFn    func(ctx context.Context, userID, courseID string) (bool, error)
	removeCourseFn func(ctx context.Context, userID, courseID string) error
}

func (u *userDirectory) AddCourse(ctx context.Context, userID, courseID string) (bool, error) {
	if u.addCourseFn != nil {
		return u.addCourseFn(ctx, userID, courseID)
	}
	return u.UserDirectory.AddCourse(ctx, userID, courseID)
}

func (u *userDirectory) RemoveCourse(ctx context.Context, userID, courseID string) error {
	if u.removeCourseFn != nil {
		return u.removeCourseFn(ctx, userID, courseID)
	}
	return u.UserDirectory.RemoveCourse(ctx, userID, courseID)
}

type fixture struct {
	db      *memory.DB
	users   *userDirectory
	courses *courseCatalog
	metrics *metrics.Metrics
	logs    *bytes.Buffer
	coord   *Coordinator

	student *entity.Identity
	teacher *entity.Identity
	course  *entity.Course
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := memory.New()
	f := &fixture{
		db:      db,
		users:   &userDirectory{UserDirectory: db.Users()},
		courses: &courseCatalog{CourseCatalog: db.Courses()},
		logs:    &bytes.Buffer{},
	}
	_, f.metrics = metrics.NewRegistry()
	cfg := Config{Retries: 2, Delay: time.Millisecond, WriteTimeout: time.Second}
	f.coord = New(f.users, f.courses, cfg, f.metrics, slog.New(slog.NewJSONHandler(f.logs, nil)))

	f.student = &entity.Identity{FullName: "Sam Student", Role: entity.RoleStudent, Username: "sam"}
	f.teacher = &entity.Identity{FullName: "Tia Teacher", Role: entity.RoleTeacher, Username: "tia"}
	require.NoError(t, db.Users().Create(ctx, f.student))
	require.NoError(t, db.Users().Create(ctx, f.teacher))

	f.course = &entity.Course{Name: "Distributed Systems", AuthorName: f.teacher.FullName, AuthorID: f.teacher.ID}
	require.NoError(t, db.Courses().Create(ctx, f.course))
	return f
}

func (f *fixture) reload(t *testing.T) (*entity.Identity, *entity.Course) {
	t.Helper()
	ctx := context.Background()
	s, err := f.db.Users().GetByID(ctx, f.student.ID)
	require.NoError(t, err)
	c, err := f.db.Courses().GetByID(ctx, f.course.ID)
	require.NoError(t, err)
	return s, c
}

func TestEnrollStudent_Success(t *testing.T) {
	f := newFixture(t)

	res, err := f.coord.EnrollStudent(context.Background(), f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnrolled, res.Outcome)
	assert.Equal(t, []string{f.course.ID}, res.Student.Courses)
	assert.Equal(t, []string{f.student.ID}, res.Course.Students)

	s, c := f.reload(t)
	assert.Equal(t, []string{f.course.ID}, s.Courses)
	assert.Equal(t, []string{f.student.ID}, c.Students)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Enrollments.WithLabelValues("enrolled")))
}

func TestEnrollStudent_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.EnrollStudent(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)

	res, err := f.coord.EnrollStudent(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyEnrolled, res.Outcome)

	s, c := f.reload(t)
	assert.Equal(t, []string{f.course.ID}, s.Courses)
	assert.Equal(t, []string{f.student.ID}, c.Students)
}

func TestEnrollStudent_CourseOnlyLinkIsRepaired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.db.Courses().AddStudent(ctx, f.course.ID, f.student.ID)
	require.NoError(t, err)

	res, err := f.coord.EnrollStudent(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyEnrolled, res.Outcome)
	assert.Equal(t, []string{f.course.ID}, res.Student.Courses)

	s, c := f.reload(t)
	assert.Equal(t, []string{f.course.ID}, s.Courses)
	assert.Equal(t, []string{f.student.ID}, c.Students)
}

func TestEnrollStudent_LostIdentityReplyIsRepairedOnRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// the write lands but the caller only sees an error
	f.users.addCourseFn = func(ctx context.Context, userID, courseID string) (bool, error) {
		_, err := f.db.Users().AddCourse(ctx, userID, courseID)
		require.NoError(t, err)
		return false, errStorage
	}

	_, err := f.coord.EnrollStudent(ctx, f.student.ID, f.course.ID)
	assert.ErrorIs(t, err, ErrEnrollmentFailed)
	s, c := f.reload(t)
	assert.Equal(t, []string{f.course.ID}, s.Courses)
	assert.Empty(t, c.Students)

	f.users.addCourseFn = nil
	res, err := f.coord.EnrollStudent(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyEnrolled, res.Outcome)
	assert.Equal(t, []string{f.student.ID}, res.Course.Students)

	s, c = f.reload(t)
	assert.Equal(t, []string{f.course.ID}, s.Courses)
	assert.Equal(t, []string{f.student.ID}, c.Students)
	assert.Contains(t, f.logs.String(), "repaired half-linked enrollment")
}

func TestEnrollStudent_RepairFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.db.Users().AddCourse(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	var attempts atomic.Int32
	f.courses.addStudentFn = func(context.Context, string, string) (bool, error) {
		attempts.Add(1)
		return false, errStorage
	}

	_, err = f.coord.EnrollStudent(ctx, f.student.ID, f.course.ID)
	assert.ErrorIs(t, err, ErrEnrollmentFailed)
	assert.Equal(t, int32(3), attempts.Load())

	s, _ := f.reload(t)
	assert.Equal(t, []string{f.course.ID}, s.Courses, "an existing identity reference is never rolled back")
}

func TestEnrollStudent_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)

	const callers = 20
	var enrolled, already atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.coord.EnrollStudent(context.Background(), f.student.ID, f.course.ID)
			if !assert.NoError(t, err) {
				return
			}
			switch res.Outcome {
			case OutcomeEnrolled:
				enrolled.Add(1)
			case OutcomeAlreadyEnrolled:
				already.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), enrolled.Load())
	assert.Equal(t, int32(callers-1), already.Load())
	s, c := f.reload(t)
	assert.Equal(t, []string{f.course.ID}, s.Courses)
	assert.Equal(t, []string{f.student.ID}, c.Students)
}

func TestEnrollStudent_CourseSideFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	var attempts atomic.Int32
	f.courses.addStudentFn = func(context.Context, string, string) (bool, error) {
		attempts.Add(1)
		return false, errStorage
	}

	res, err := f.coord.EnrollStudent(context.Background(), f.student.ID, f.course.ID)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrEnrollmentFailed)
	assert.ErrorIs(t, err, errStorage)
	assert.Equal(t, int32(3), attempts.Load(), "first attempt plus two retries")

	s, c := f.reload(t)
	assert.Empty(t, s.Courses, "identity side must be compensated")
	assert.Empty(t, c.Students)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Compensations.WithLabelValues("enroll", "ok")))
}

func TestEnrollStudent_TransientCourseFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	var attempts atomic.Int32
	f.courses.addStudentFn = func(ctx context.Context, courseID, studentID string) (bool, error) {
		if attempts.Add(1) == 1 {
			return false, errStorage
		}
		return f.db.Courses().AddStudent(ctx, courseID, studentID)
	}

	res, err := f.coord.EnrollStudent(context.Background(), f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnrolled, res.Outcome)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestEnrollStudent_RetryAfterAppliedWriteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	var attempts atomic.Int32
	f.courses.addStudentFn = func(ctx context.Context, courseID, studentID string) (bool, error) {
		added, err := f.db.Courses().AddStudent(ctx, courseID, studentID)
		if attempts.Add(1) == 1 {
			// the write landed but the acknowledgement was lost
			return false, errStorage
		}
		return added, err
	}

	res, err := f.coord.EnrollStudent(context.Background(), f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnrolled, res.Outcome)

	_, c := f.reload(t)
	assert.Equal(t, []string{f.student.ID}, c.Students)
}

func TestEnrollStudent_RollbackFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.courses.addStudentFn = func(context.Context, string, string) (bool, error) { return false, errStorage }
	f.users.removeCourseFn = func(context.Context, string, string) error { return errStorage }

	_, err := f.coord.EnrollStudent(context.Background(), f.student.ID, f.course.ID)
	assert.ErrorIs(t, err, ErrEnrollmentFailed)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Compensations.WithLabelValues("enroll", "failed")))
	assert.Contains(t, f.logs.String(), "compensation failed")
	assert.Contains(t, f.logs.String(), f.student.ID)
	assert.Contains(t, f.logs.String(), `"level":"ERROR"`)
}

func TestEnrollStudent_IdentitySideFailure(t *testing.T) {
	f := newFixture(t)
	f.users.addCourseFn = func(context.Context, string, string) (bool, error) { return false, errStorage }
	var courseWrites atomic.Int32
	f.courses.addStudentFn = func(context.Context, string, string) (bool, error) {
		courseWrites.Add(1)
		return true, nil
	}

	_, err := f.coord.EnrollStudent(context.Background(), f.student.ID, f.course.ID)
	assert.ErrorIs(t, err, ErrEnrollmentFailed)
	assert.Zero(t, courseWrites.Load(), "course side must not be touched")
	assert.Zero(t, testutil.ToFloat64(f.metrics.Compensations.WithLabelValues("enroll", "ok")))
}

func TestEnrollStudent_LostRaceDoesNotTouchCourse(t *testing.T) {
	f := newFixture(t)
	// another request appended between our read and our write
	f.users.addCourseFn = func(context.Context, string, string) (bool, error) { return false, nil }
	var courseWrites atomic.Int32
	f.courses.addStudentFn = func(context.Context, string, string) (bool, error) {
		courseWrites.Add(1)
		return true, nil
	}

	res, err := f.coord.EnrollStudent(context.Background(), f.student.ID, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyEnrolled, res.Outcome)
	assert.Zero(t, courseWrites.Load())
}

func TestEnrollStudent_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.EnrollStudent(ctx, "ghost", f.course.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.coord.EnrollStudent(ctx, f.student.ID, "ghost")
	assert.ErrorIs(t, err, ErrCourseNotFound)

	_, err = f.coord.EnrollStudent(ctx, f.teacher.ID, f.course.ID)
	assert.ErrorIs(t, err, ErrNotStudent)

	assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.Enrollments.WithLabelValues("rejected")))
}

func TestCreateCourse_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.coord.CreateCourse(ctx, f.teacher.ID, Draft{Name: "  Go  ", Description: "basics", Price: 10.006})
	require.NoError(t, err)
	assert.Equal(t, "Go", res.Course.Name)
	assert.Equal(t, f.teacher.FullName, res.Course.AuthorName)
	assert.Equal(t, f.teacher.ID, res.Course.AuthorID)
	assert.InDelta(t, 10.01, res.Course.Price, 0.0001)
	assert.Equal(t, []string{res.Course.ID}, res.Teacher.Courses)

	stored, err := f.db.Courses().GetByID(ctx, res.Course.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Students)

	teacher, err := f.db.Users().GetByID(ctx, f.teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{res.Course.ID}, teacher.Courses)
}

func TestCreateCourse_SameDraftTwiceCreatesTwoCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := Draft{Name: "Intro", Price: 5}

	first, err := f.coord.CreateCourse(ctx, f.teacher.ID, draft)
	require.NoError(t, err)
	second, err := f.coord.CreateCourse(ctx, f.teacher.ID, draft)
	require.NoError(t, err)
	assert.NotEqual(t, first.Course.ID, second.Course.ID)
}

func TestCreateCourse_TeacherSideFailureDeletesCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.users.addCourseFn = func(context.Context, string, string) (bool, error) { return false, errStorage }

	_, err := f.coord.CreateCourse(ctx, f.teacher.ID, Draft{Name: "Doomed"})
	assert.ErrorIs(t, err, ErrCourseCreationFailed)

	found, err := f.db.Courses().Find(ctx, entity.CourseFilter{Name: "Doomed", Mode: entity.MatchExact})
	require.NoError(t, err)
	assert.Empty(t, found, "no orphan course may remain")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Compensations.WithLabelValues("create_course", "ok")))
}

func TestCreateCourse_PersistFailure(t *testing.T) {
	f := newFixture(t)
	f.users.addCourseFn = func(context.Context, string, string) (bool, error) {
		t.Fatal("teacher must not be updated when the course was not stored")
		return false, nil
	}
	f.courses.CourseCatalog = &failingCreate{CourseCatalog: f.db.Courses()}

	_, err := f.coord.CreateCourse(context.Background(), f.teacher.ID, Draft{Name: "X"})
	assert.ErrorIs(t, err, ErrCourseCreationFailed)
	assert.ErrorIs(t, err, errStorage)
}

type failingCreate struct{ entity.CourseCatalog }

func (failingCreate) Create(context.Context, *entity.Course) error { return errStorage }

func TestCreateCourse_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.CreateCourse(ctx, f.teacher.ID, Draft{Name: " "})
	assert.ErrorIs(t, err, ErrInvalidDraft)

	_, err = f.coord.CreateCourse(ctx, f.teacher.ID, Draft{Name: "Neg", Price: -1})
	assert.ErrorIs(t, err, ErrInvalidDraft)

	_, err = f.coord.CreateCourse(ctx, f.teacher.ID, Draft{Name: "Huge", Price: MaxPrice})
	assert.ErrorIs(t, err, ErrInvalidDraft)

	_, err = f.coord.CreateCourse(ctx, f.teacher.ID, Draft{Name: "Rounds up", Price: 99999999.999})
	assert.ErrorIs(t, err, ErrInvalidDraft)

	_, err = f.coord.CreateCourse(ctx, f.student.ID, Draft{Name: "Mine"})
	assert.ErrorIs(t, err, ErrNotTeacher)

	_, err = f.coord.CreateCourse(ctx, "ghost", Draft{Name: "Mine"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "enrolled", OutcomeEnrolled.String())
	assert.Equal(t, "already_enrolled", OutcomeAlreadyEnrolled.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}

func TestCreateCourse_DeleteFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.users.addCourseFn = func(context.Context, string, string) (bool, error) { return false, errStorage }
	f.courses.deleteFn = func(context.Context, string) error { return errStorage }

	_, err := f.coord.CreateCourse(context.Background(), f.teacher.ID, Draft{Name: "Orphan"})
	assert.ErrorIs(t, err, ErrCourseCreationFailed)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Compensations.WithLabelValues("create_course", "failed")))
	assert.Contains(t, f.logs.String(), "compensation failed")
}
