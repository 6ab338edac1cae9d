package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kapu/lead-analyzer-go/pkg/errors"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresService is the postgres workspace backend. Documents live in a
// single workspace_kv table.
type PostgresService struct {
	db     *sql.DB
	logger *zap.Logger
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS workspace_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func NewPostgresService(cfg PostgresConfig, logger *zap.Logger) (*PostgresService, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create workspace_kv: %w", err)
	}

	logger.Info("PostgreSQL connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)

	return &PostgresService{
		db:     db,
		logger: logger,
	}, nil
}

func (ps *PostgresService) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := ps.db.QueryRowContext(ctx, `SELECT value FROM workspace_kv WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		ps.logger.Error("Postgres get failed", zap.String("key", key), zap.Error(err))
		return "", false, errors.NewStoreError("get failed", "get", key, err)
	}
	return value, true, nil
}

func (ps *PostgresService) Set(ctx context.Context, key, value string) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO workspace_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		ps.logger.Error("Postgres set failed", zap.String("key", key), zap.Error(err))
		return errors.NewStoreError("set failed", "set", key, err)
	}
	return nil
}

func (ps *PostgresService) Delete(ctx context.Context, key string) error {
	if _, err := ps.db.ExecContext(ctx, `DELETE FROM workspace_kv WHERE key = $1`, key); err != nil {
		return errors.NewStoreError("delete failed", "delete", key, err)
	}
	return nil
}

func (ps *PostgresService) Ping(ctx context.Context) error {
	return ps.db.PingContext(ctx)
}

func (ps *PostgresService) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
