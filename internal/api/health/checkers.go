package health

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteChecker checks SQLite database connectivity.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

// Name returns the checker name.
func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check verifies the SQLite database is accessible.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// Pinger is anything that can report its own connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisChecker checks the chat relay's Redis connection.
type RedisChecker struct {
	pinger Pinger
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(p Pinger) *RedisChecker {
	return &RedisChecker{pinger: p}
}

// Name returns the checker name.
func (c *RedisChecker) Name() string {
	return "redis"
}

// Check verifies Redis is reachable.
func (c *RedisChecker) Check(ctx context.Context) error {
	if c.pinger == nil {
		return fmt.Errorf("redis not configured")
	}
	return c.pinger.Ping(ctx)
}

// UploadsChecker checks that the upload root is usable.
type UploadsChecker struct {
	check func() error
}

// NewUploadsChecker wraps a filestore self-check.
func NewUploadsChecker(check func() error) *UploadsChecker {
	return &UploadsChecker{check: check}
}

// Name returns the checker name.
func (c *UploadsChecker) Name() string {
	return "uploads"
}

// Check runs the wrapped self-check.
func (c *UploadsChecker) Check(ctx context.Context) error {
	if c.check == nil {
		return fmt.Errorf("uploads not configured")
	}
	return c.check()
}
