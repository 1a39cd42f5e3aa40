// internal/common/database/postgres.go
package database

import (
	"context"
	"fmt"

	"brokerage-insights/internal/common/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresClient owns the read-only connection pool the pipeline queries through.
type PostgresClient struct {
	DB *sqlx.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sqlx.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(config.GetDuration(cfg.ConnMaxLifetime))
	db.SetConnMaxIdleTime(config.GetDuration(cfg.ConnMaxLifetime))

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

func (c *PostgresClient) GetDB() *sqlx.DB {
	return c.DB
}
