// Package postgres manages the PostgreSQL pool backing the role directory.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
)

const healthCheckTimeout = 5 * time.Second

// ErrDatabaseUnavailable is returned when the pool is not connected.
var ErrDatabaseUnavailable = errors.New("database is not available")

// schema creates the role table. Roles are rows, not a column list, so one
// user can hold several.
const schema = `
CREATE TABLE IF NOT EXISTS role_assignments (
	username   VARCHAR(128) NOT NULL,
	role       VARCHAR(32)  NOT NULL,
	granted_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
	PRIMARY KEY (username, role)
)`

// Manager owns the connection pool and reconnects in the background.
type Manager struct {
	pool      *pgxpool.Pool
	config    *config.DatabaseConfig
	logger    *logrus.Logger
	available bool
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager connects when PostgreSQL is configured. A failed first attempt is
// not fatal; the health monitor keeps retrying.
func NewManager(cfg *config.Config, logger *logrus.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config: &cfg.PostgresDatabase,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if !cfg.IsPostgresDatabaseConfigured() {
		logger.Info("PostgreSQL role store not configured")
		return m
	}

	if err := m.connect(cfg.PostgresDatabaseDSN()); err != nil {
		logger.WithError(err).Warn("PostgreSQL role store unreachable on startup, will retry periodically")
	}
	go m.healthMonitor(cfg.PostgresDatabaseDSN())
	return m
}

func (m *Manager) connect(dsn string) error {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return err
	}
	poolConfig.MaxConns = m.config.MaxConn
	poolConfig.MinConns = m.config.MinConn
	poolConfig.MaxConnLifetime = m.config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = m.config.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = m.config.ConnectTimeout

	ctx, cancel := context.WithTimeout(m.ctx, m.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ensure role schema: %w", err)
	}

	m.mu.Lock()
	if m.pool != nil {
		m.pool.Close()
	}
	m.pool = pool
	m.available = true
	m.mu.Unlock()

	m.logger.Info("Connected to PostgreSQL role store")
	return nil
}

func (m *Manager) healthMonitor(dsn string) {
	ticker := time.NewTicker(m.config.HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkHealth(dsn)
		}
	}
}

func (m *Manager) checkHealth(dsn string) {
	m.mu.RLock()
	pool := m.pool
	wasAvailable := m.available
	m.mu.RUnlock()

	var err error
	if pool != nil {
		ctx, cancel := context.WithTimeout(m.ctx, healthCheckTimeout)
		err = pool.Ping(ctx)
		cancel()
		if err == nil {
			m.setAvailable(true)
			if !wasAvailable {
				m.logger.Info("PostgreSQL role store connection restored")
			}
			return
		}
	}

	m.setAvailable(false)
	if wasAvailable {
		m.logger.WithError(err).Warn("PostgreSQL role store connection lost")
	}
	if reconnectErr := m.connect(dsn); reconnectErr != nil {
		m.logger.WithError(reconnectErr).Debug("PostgreSQL reconnection attempt failed")
	}
}

func (m *Manager) setAvailable(available bool) {
	m.mu.Lock()
	m.available = available
	m.mu.Unlock()
}

// IsAvailable reports whether the last health check succeeded.
func (m *Manager) IsAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

// Pool returns the pool, or nil while the database is unavailable.
func (m *Manager) Pool() *pgxpool.Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.available {
		return m.pool
	}
	return nil
}

// Ping checks connectivity for the readiness probe.
func (m *Manager) Ping(ctx context.Context) error {
	pool := m.Pool()
	if pool == nil {
		return ErrDatabaseUnavailable
	}
	return pool.Ping(ctx)
}

// Close stops the health monitor and closes the pool.
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
	m.available = false
}
