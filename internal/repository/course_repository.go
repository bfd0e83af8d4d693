package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/samber/oops"

	"coursehub/internal/entity"
)

type CourseRepository struct {
	db *sql.DB
}

func NewCourseRepository(db *sql.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

var _ entity.CourseCatalog = (*CourseRepository)(nil)

const courseColumns = `id, name, description, price, author_name, author_id, students, created_at`

func scanCourse(row interface{ Scan(...any) error }) (*entity.Course, error) {
	var c entity.Course
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Price, &c.AuthorName, &c.AuthorID, pq.Array(&c.Students), &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if c.Students == nil {
		c.Students = []string{}
	}
	return &c, nil
}

func (r *CourseRepository) GetByID(ctx context.Context, id string) (*entity.Course, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)

	c, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("COURSE_NOT_FOUND").With("course_id", id).Wrap(entity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("COURSE_GET_FAILED").With("course_id", id).Wrap(err)
	}
	return c, nil
}

func (r *CourseRepository) Find(ctx context.Context, filter entity.CourseFilter) ([]*entity.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE name = $1 ORDER BY created_at, id`
	arg := filter.Name
	if filter.Mode == entity.MatchPartial {
		query = `SELECT ` + courseColumns + ` FROM courses WHERE name ILIKE $1 ORDER BY created_at, id`
		arg = "%" + escapeLike(filter.Name) + "%"
	}

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, oops.Code("COURSE_FIND_FAILED").With("name", filter.Name).Wrap(err)
	}
	defer rows.Close()

	var courses []*entity.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, oops.Code("COURSE_FIND_FAILED").With("name", filter.Name).Wrap(err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("COURSE_FIND_FAILED").With("name", filter.Name).Wrap(err)
	}
	return courses, nil
}

// ListByIDs loads courses with a single ANY($1) query and reorders them to
// follow ids.
func (r *CourseRepository) ListByIDs(ctx context.Context, ids []string) ([]*entity.Course, error) {
	if len(ids) == 0 {
		return []*entity.Course{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, oops.Code("COURSE_LIST_FAILED").With("count", len(ids)).Wrap(err)
	}
	defer rows.Close()

	byID := make(map[string]*entity.Course, len(ids))
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, oops.Code("COURSE_LIST_FAILED").Wrap(err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("COURSE_LIST_FAILED").Wrap(err)
	}

	courses := make([]*entity.Course, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			courses = append(courses, c)
		}
	}
	return courses, nil
}

func (r *CourseRepository) Create(ctx context.Context, c *entity.Course) error {
	if c.ID == "" {
		c.ID = entity.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Students == nil {
		c.Students = []string{}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (id, name, description, price, author_name, author_id, students, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Description, c.Price, c.AuthorName, c.AuthorID, pq.Array(c.Students), c.CreatedAt)
	if err != nil {
		return oops.Code("COURSE_CREATE_FAILED").With("name", c.Name).With("author_id", c.AuthorID).Wrap(err)
	}
	return nil
}

func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return oops.Code("COURSE_DELETE_FAILED").With("course_id", id).Wrap(err)
	}
	return nil
}

func (r *CourseRepository) AddStudent(ctx context.Context, courseID, studentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE courses SET students = array_append(students, $2)
		WHERE id = $1 AND NOT ($2 = ANY(students))
	`, courseID, studentID)
	if err != nil {
		return false, oops.Code("COURSE_ADD_STUDENT_FAILED").With("course_id", courseID).With("student_id", studentID).Wrap(err)
	}
	return appended(ctx, r.db, res, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`, courseID)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
