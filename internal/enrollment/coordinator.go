// Package enrollment keeps the identity and course sides of a linkage
// consistent. Each operation is a short saga: the writes run in a fixed order
// and a failed later step undoes the earlier ones.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"coursehub/internal/entity"
	"coursehub/internal/logging"
	"coursehub/internal/metrics"
)

// Config bounds the persistence calls of a saga.
type Config struct {
	// Retries is the number of extra attempts for retryable steps.
	Retries uint64
	// Delay is the first backoff interval; it doubles per attempt.
	Delay time.Duration
	// WriteTimeout limits each single persistence call.
	WriteTimeout time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{Retries: 3, Delay: 50 * time.Millisecond, WriteTimeout: 5 * time.Second}
}

type Coordinator struct {
	users   entity.UserDirectory
	courses entity.CourseCatalog
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(users entity.UserDirectory, courses entity.CourseCatalog, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Coordinator {
	def := DefaultConfig()
	if cfg.Delay <= 0 {
		cfg.Delay = def.Delay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Coordinator{
		users:   users,
		courses: courses,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("component", "enrollment"),
	}
}

func (c *Coordinator) backoff() retry.Backoff {
	return retry.WithMaxRetries(c.cfg.Retries, retry.NewExponential(c.cfg.Delay))
}

// retryStep runs step with a per-attempt timeout. Not-found errors are final;
// anything else is retried until the backoff is exhausted.
func (c *Coordinator) retryStep(ctx context.Context, step func(ctx context.Context) error) error {
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
		defer cancel()

		err := step(attemptCtx)
		if err == nil || errors.Is(err, entity.ErrNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (c *Coordinator) once(ctx context.Context, step func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()
	return step(attemptCtx)
}

// compensate runs undo detached from the caller's cancellation so a client
// disconnect cannot leave a half-applied saga behind.
func (c *Coordinator) compensate(ctx context.Context, operation string, undo func(ctx context.Context) error, attrs ...any) {
	err := c.retryStep(context.WithoutCancel(ctx), undo)
	if err != nil {
		c.metrics.Compensations.WithLabelValues(operation, "failed").Inc()
		logging.LogError(ctx, c.logger, "compensation failed, linkage left inconsistent", err,
			append(attrs, "operation", operation)...)
		return
	}
	c.metrics.Compensations.WithLabelValues(operation, "ok").Inc()
	c.logger.WarnContext(ctx, "saga compensated", append(attrs, "operation", operation)...)
}

func (c *Coordinator) loadIdentity(ctx context.Context, id string) (*entity.Identity, error) {
	var u *entity.Identity
	err := c.once(ctx, func(ctx context.Context) error {
		var err error
		u, err = c.users.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, entity.ErrNotFound) {
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(ErrUserNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_LOAD_FAILED").With("user_id", id).Wrap(err)
	}
	return u, nil
}

func (c *Coordinator) loadCourse(ctx context.Context, id string) (*entity.Course, error) {
	var course *entity.Course
	err := c.once(ctx, func(ctx context.Context) error {
		var err error
		course, err = c.courses.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, entity.ErrNotFound) {
		return nil, oops.Code("COURSE_NOT_FOUND").With("course_id", id).Wrap(ErrCourseNotFound)
	}
	if err != nil {
		return nil, oops.Code("COURSE_LOAD_FAILED").With("course_id", id).Wrap(err)
	}
	return course, nil
}

// failure wraps cause so that errors.Is matches both sentinel and cause.
func failure(sentinel, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}
