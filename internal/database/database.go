// Package database manages the MySQL connection records are fetched from.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/dbsmedya/gofetch/internal/config"
	"github.com/dbsmedya/gofetch/internal/logger"
)

// Manager owns the source connection.
type Manager struct {
	Source *sql.DB
	config *config.DatabaseConfig
	log    *logger.Logger

	retries int
	backoff time.Duration
}

// NewManager creates a manager for the source section of cfg.
func NewManager(cfg *config.Config, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		config:  &cfg.Source,
		log:     log,
		retries: 3,
		backoff: time.Second,
	}
}

// FromDB wraps an open connection, e.g. one created by a test double.
func FromDB(db *sql.DB, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{Source: db, log: log}
}

// Connect opens and verifies the source connection.
func (m *Manager) Connect(ctx context.Context) error {
	db, err := m.connectWithRetry(ctx, m.config)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	m.Source = db
	return nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	var err error
	backoff := m.backoff

	for i := 0; i < m.retries; i++ {
		var db *sql.DB
		db, err = m.connect(cfg)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				m.log.Debugw("Connected to source database", "host", cfg.Host, "database", cfg.Database)
				return db, nil
			}
			db.Close()
		}

		m.log.Warnw("Source connection attempt failed", "attempt", i+1, "error", err)

		if i < m.retries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", m.retries, err)
}

func (m *Manager) connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", BuildDSN(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.DatabaseConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	params := "?parseTime=true&interpolateParams=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// Close closes the source connection.
func (m *Manager) Close() error {
	if m.Source == nil {
		return nil
	}
	if err := m.Source.Close(); err != nil {
		return fmt.Errorf("source close: %w", err)
	}
	return nil
}

// Ping verifies the source connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Source == nil {
		return fmt.Errorf("source is not connected")
	}
	if err := m.Source.PingContext(ctx); err != nil {
		return fmt.Errorf("source ping failed: %w", err)
	}
	return nil
}
