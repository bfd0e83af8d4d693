package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/samber/oops"

	"coursehub/internal/entity"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ entity.UserDirectory = (*UserRepository)(nil)

const userColumns = `id, fullname, role, username, password_hash, courses, created_at`

func scanUser(row interface{ Scan(...any) error }) (*entity.Identity, error) {
	var u entity.Identity
	var role string
	err := row.Scan(&u.ID, &u.FullName, &role, &u.Username, &u.PasswordHash, pq.Array(&u.Courses), &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = entity.Role(role)
	if u.Courses == nil {
		u.Courses = []string{}
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(entity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("user_id", id).Wrap(err)
	}
	return u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(entity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("username", username).Wrap(err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.Identity) error {
	if u.ID == "" {
		u.ID = entity.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Courses == nil {
		u.Courses = []string{}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, fullname, role, username, password_hash, courses, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.FullName, string(u.Role), u.Username, u.PasswordHash, pq.Array(u.Courses), u.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return oops.Code("USER_DUPLICATE").With("username", u.Username).Wrap(entity.ErrDuplicateUsername)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").With("username", u.Username).Wrap(err)
	}
	return nil
}

// AddCourse appends courseID to the user's course list unless it is already
// there. The guard lives in the WHERE clause so concurrent appends of the same
// pair cannot both succeed.
func (r *UserRepository) AddCourse(ctx context.Context, userID, courseID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET courses = array_append(courses, $2)
		WHERE id = $1 AND NOT ($2 = ANY(courses))
	`, userID, courseID)
	if err != nil {
		return false, oops.Code("USER_ADD_COURSE_FAILED").With("user_id", userID).With("course_id", courseID).Wrap(err)
	}
	return appended(ctx, r.db, res, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID)
}

func (r *UserRepository) RemoveCourse(ctx context.Context, userID, courseID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET courses = array_remove(courses, $2) WHERE id = $1`, userID, courseID)
	if err != nil {
		return oops.Code("USER_REMOVE_COURSE_FAILED").With("user_id", userID).With("course_id", courseID).Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("USER_REMOVE_COURSE_FAILED").With("user_id", userID).Wrap(err)
	}
	if n == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(entity.ErrNotFound)
	}
	return nil
}

// appended interprets the result of a conditional array_append. Zero affected
// rows means either the row is missing or the element was already present;
// existsQuery tells the two apart.
func appended(ctx context.Context, db *sql.DB, res sql.Result, existsQuery, id string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, oops.Code("ROWS_AFFECTED_FAILED").With("id", id).Wrap(err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := db.QueryRowContext(ctx, existsQuery, id).Scan(&exists); err != nil {
		return false, oops.Code("EXISTS_CHECK_FAILED").With("id", id).Wrap(err)
	}
	if !exists {
		return false, oops.Code("NOT_FOUND").With("id", id).Wrap(entity.ErrNotFound)
	}
	return false, nil
}
