// Package usagelog appends token-usage records to the ai_usage_logs table.
package usagelog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domusage "github.com/legojeon/report-coach/internal/domain/usage"
)

const insertQuery = `
	INSERT INTO ai_usage_logs (user_id, service_name, request_prompt, request_token_count,
		response_token_count, total_token_count, is_hidden, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// execer is the slice of pgxpool.Pool the log needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Log writes usage records to PostgreSQL.
type Log struct {
	db    execer
	ping  func(ctx context.Context) error
	close func()
	now   func() time.Time
}

// Open connects a pool to databaseURL and verifies it with a ping.
func Open(ctx context.Context, databaseURL string) (*Log, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Log{db: pool, ping: pool.Ping, close: pool.Close, now: time.Now}, nil
}

// Name identifies the sink in metrics and logs.
func (l *Log) Name() string { return "postgres" }

// Write inserts one row. A nil user ID is stored for anonymous callers.
func (l *Log) Write(ctx context.Context, rec domusage.Record) error {
	at := rec.At
	if at.IsZero() {
		at = l.now()
	}
	var userID any
	if rec.UserID != "" {
		userID = rec.UserID
	}

	_, err := l.db.Exec(ctx, insertQuery,
		userID, rec.ServiceName, rec.RequestPrompt, rec.PromptTokens,
		rec.ResponseTokens, rec.TotalTokens, rec.Hidden, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// HealthCheck pings the database.
func (l *Log) HealthCheck(ctx context.Context) error {
	if l.ping == nil {
		return nil
	}
	if err := l.ping(ctx); err != nil {
		return fmt.Errorf("usage log ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (l *Log) Close() {
	if l.close != nil {
		l.close()
	}
}
