// Package database opens the Postgres connection pool and owns the schema.
package database

import (
	"context"
	"database/sql"
	"time"

	// Register the lib/pq driver as "postgres".
	_ "github.com/lib/pq"
	"github.com/samber/oops"
)

// Open connects to Postgres and verifies the connection with a ping.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, oops.Code("DB_OPEN_FAILED").Wrap(err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return db, nil
}
