package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"coursehub/internal/auth"
	"coursehub/internal/config"
	"coursehub/internal/database"
	"coursehub/internal/enrollment"
	"coursehub/internal/entity"
	"coursehub/internal/handler"
	"coursehub/internal/logging"
	"coursehub/internal/metrics"
	"coursehub/internal/repository"
	"coursehub/internal/repository/memory"
	"coursehub/internal/view"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE:  runServe,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.Setup("coursehub", version, cfg.LogFormat, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logging.LogError(ctx, logger, "startup failed", err)
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "storage", cfg.Storage)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return oops.Code("SERVER_FAILED").With("addr", cfg.Addr).Wrap(err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error shutting down server", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// app is the wired site together with the resources it holds.
type app struct {
	handler http.Handler
	db      *sql.DB
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	var (
		users   entity.UserDirectory
		courses entity.CourseCatalog
	)
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		mem := memory.New()
		users, courses = mem.Users(), mem.Courses()
	default:
		if cfg.AutoMigrate {
			if err := migrateUp(cfg.DatabaseURL); err != nil {
				return nil, err
			}
			logger.Info("migrations applied")
		}
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.db = db
		users, courses = repository.NewUserRepository(db), repository.NewCourseRepository(db)
	}

	reg, m := metrics.NewRegistry()

	views, err := view.New()
	if err != nil {
		a.close()
		return nil, err
	}

	hashKey := []byte(cfg.SessionKey)
	if len(hashKey) == 0 {
		logger.Warn("session_key not set, sessions will not survive a restart")
	}
	store := auth.NewCookieStore(auth.CookieConfig{
		HashKey:  hashKey,
		BlockKey: []byte(cfg.SessionEncryptionKey),
		MaxAge:   cfg.SessionMaxAge,
		Secure:   cfg.SecureCookies,
	})
	sessions := auth.NewManager(store, users, auth.NewBcryptHasher(cfg.BcryptCost), logger)

	coord := enrollment.New(users, courses, enrollment.Config{
		Retries:      cfg.RetryAttempts,
		Delay:        cfg.RetryDelay,
		WriteTimeout: cfg.WriteTimeout,
	}, m, logger)

	a.handler = handler.NewRouter(handler.Deps{
		Sessions:    sessions,
		Courses:     courses,
		Coordinator: coord,
		Views:       views,
		Metrics:     m,
		Registry:    reg,
		Logger:      logger,
	})
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func migrateUp(databaseURL string) (err error) {
	mg, err := database.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, mg.Close())
	}()
	return mg.Up()
}
