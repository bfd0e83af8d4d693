package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/entity"
)

func TestUserStore(t *testing.T) {
	db := New()
	users := db.Users()
	ctx := context.Background()

	u := &entity.Identity{FullName: "Ada Lovelace", Role: entity.RoleStudent, Username: "ada", PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, u))
	assert.NotEmpty(t, u.ID)

	got, err := users.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Empty(t, got.Courses)

	err = users.Create(ctx, &entity.Identity{Username: "ada", Role: entity.RoleTeacher})
	assert.ErrorIs(t, err, entity.ErrDuplicateUsername)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	added, err := users.AddCourse(ctx, u.ID, "c1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = users.AddCourse(ctx, u.ID, "c1")
	require.NoError(t, err)
	assert.False(t, added, "second append of the same course must be refused")

	got.Courses = append(got.Courses, "leak")
	fresh, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, fresh.Courses)

	require.NoError(t, users.RemoveCourse(ctx, u.ID, "c1"))
	require.NoError(t, users.RemoveCourse(ctx, u.ID, "c1"))
	fresh, err = users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Courses)

	_, err = users.AddCourse(ctx, "missing", "c1")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCourseStore(t *testing.T) {
	db := New()
	courses := db.Courses()
	ctx := context.Background()

	golang := &entity.Course{Name: "Go Basics", AuthorID: "t1", AuthorName: "Rob"}
	advanced := &entity.Course{Name: "Advanced Go", AuthorID: "t1", AuthorName: "Rob"}
	rust := &entity.Course{Name: "Rust", AuthorID: "t2", AuthorName: "Gray"}
	for _, c := range []*entity.Course{golang, advanced, rust} {
		require.NoError(t, courses.Create(ctx, c))
	}

	t.Run("partial match is case insensitive", func(t *testing.T) {
		found, err := courses.Find(ctx, entity.CourseFilter{Name: "go"})
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, golang.ID, found[0].ID)
		assert.Equal(t, advanced.ID, found[1].ID)
	})

	t.Run("exact match", func(t *testing.T) {
		found, err := courses.Find(ctx, entity.CourseFilter{Name: "Rust", Mode: entity.MatchExact})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, rust.ID, found[0].ID)

		found, err = courses.Find(ctx, entity.CourseFilter{Name: "rust", Mode: entity.MatchExact})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("list by ids keeps reference order and skips dangling ids", func(t *testing.T) {
		list, err := courses.ListByIDs(ctx, []string{rust.ID, "gone", golang.ID})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, rust.ID, list[0].ID)
		assert.Equal(t, golang.ID, list[1].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, courses.Delete(ctx, rust.ID))
		_, err := courses.GetByID(ctx, rust.ID)
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})
}

func TestCourseStore_AddStudentIsAtomic(t *testing.T) {
	db := New()
	courses := db.Courses()
	ctx := context.Background()

	c := &entity.Course{Name: "Concurrency"}
	require.NoError(t, courses.Create(ctx, c))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := courses.AddStudent(ctx, c.ID, "s1")
			if err == nil && added {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, err := courses.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, got.Students)
}
