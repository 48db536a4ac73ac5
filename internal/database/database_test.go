package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofetch/internal/config"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.DatabaseConfig
		expected string
	}{
		{
			name: "basic DSN",
			cfg: &config.DatabaseConfig{
				Host: "localhost", Port: 3306, User: "root", Password: "secret",
				Database: "app", TLS: "preferred",
			},
			expected: "root:secret@tcp(localhost:3306)/app?parseTime=true&interpolateParams=true&tls=preferred",
		},
		{
			name: "DSN without database",
			cfg: &config.DatabaseConfig{
				Host: "localhost", Port: 3306, User: "root", Password: "secret",
			},
			expected: "root:secret@tcp(localhost:3306)/?parseTime=true&interpolateParams=true&tls=preferred",
		},
		{
			name: "DSN with TLS disabled",
			cfg: &config.DatabaseConfig{
				Host: "localhost", Port: 3306, User: "root", Password: "secret",
				Database: "app", TLS: "disable",
			},
			expected: "root:secret@tcp(localhost:3306)/app?parseTime=true&interpolateParams=true&tls=false",
		},
		{
			name: "DSN with TLS required",
			cfg: &config.DatabaseConfig{
				Host: "db.internal", Port: 3307, User: "reader", Password: "p@ss",
				Database: "app", TLS: "required",
			},
			expected: "reader:p@ss@tcp(db.internal:3307)/app?parseTime=true&interpolateParams=true&tls=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildDSN(tt.cfg))
		})
	}
}

func TestNewManager(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source.Host = "localhost"

	m := NewManager(cfg, nil)
	require.NotNil(t, m)
	assert.Same(t, &cfg.Source, m.config)
	assert.Nil(t, m.Source)
	assert.NoError(t, m.Close())
	assert.Error(t, m.Ping(context.Background()))
}

func TestManager_PingAndClose(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	m := FromDB(db, nil)

	mock.ExpectPing()
	assert.NoError(t, m.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("gone away"))
	assert.ErrorContains(t, m.Ping(context.Background()), "source ping failed")

	mock.ExpectClose()
	assert.NoError(t, m.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_CancelledContext(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source.Host = "127.0.0.1"
	cfg.Source.Port = 1
	cfg.Source.User = "nobody"

	m := NewManager(cfg, nil)
	m.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Connect(ctx)
	require.Error(t, err)
	assert.Nil(t, m.Source)
}
