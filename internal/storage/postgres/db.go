package postgres

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Pool sizes the connection pool.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

var DefaultPool = Pool{
	MaxOpen:     10,
	MaxIdle:     2,
	MaxLifetime: 30 * time.Minute,
	MaxIdleTime: 5 * time.Minute,
}

// Connect opens a pgx-backed sqlx handle and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return ConnectWithPool(ctx, dsn, DefaultPool)
}

func ConnectWithPool(ctx context.Context, dsn string, pool Pool) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres connect: empty dsn")
	}

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)
	db.SetConnMaxIdleTime(pool.MaxIdleTime)

	return db, nil
}
