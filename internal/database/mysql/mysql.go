// Package mysql manages the MySQL connection backing the role directory.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	// Registers the "mysql" driver.
	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
)

const healthCheckTimeout = 5 * time.Second

// ErrDatabaseUnavailable is returned when the database is not connected.
var ErrDatabaseUnavailable = errors.New("database is not available")

const schema = `
CREATE TABLE IF NOT EXISTS role_assignments (
	username   VARCHAR(128) NOT NULL,
	role       VARCHAR(32)  NOT NULL,
	granted_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (username, role)
)`

// Manager owns the *sql.DB and reconnects in the background.
type Manager struct {
	db        *sql.DB
	config    *config.MySQLConfig
	logger    *logrus.Logger
	available bool
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager connects when MySQL is configured. A failed first attempt is not
// fatal; the health monitor keeps retrying.
func NewManager(cfg *config.Config, logger *logrus.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config: &cfg.MySQLDatabase,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if !cfg.IsMySQLDatabaseConfigured() {
		logger.Info("MySQL role store not configured")
		return m
	}

	if err := m.connect(cfg.MySQLDSN()); err != nil {
		logger.WithError(err).Warn("MySQL role store unreachable on startup, will retry periodically")
	}
	go m.healthMonitor(cfg.MySQLDSN())
	return m
}

func (m *Manager) connect(dsn string) error {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(m.config.MaxConn)
	db.SetMaxIdleConns(m.config.MinConn)
	db.SetConnMaxLifetime(m.config.MaxConnLifetime)
	db.SetConnMaxIdleTime(m.config.MaxConnIdleTime)

	ctx, cancel := context.WithTimeout(m.ctx, m.config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ensure role schema: %w", err)
	}

	m.mu.Lock()
	if m.db != nil {
		_ = m.db.Close()
	}
	m.db = db
	m.available = true
	m.mu.Unlock()

	m.logger.Info("Connected to MySQL role store")
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
	db := m.db
	wasAvailable := m.available
	m.mu.RUnlock()

	var err error
	if db != nil {
		ctx, cancel := context.WithTimeout(m.ctx, healthCheckTimeout)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			m.setAvailable(true)
			if !wasAvailable {
				m.logger.Info("MySQL role store connection restored")
			}
			return
		}
	}

	m.setAvailable(false)
	if wasAvailable {
		m.logger.WithError(err).Warn("MySQL role store connection lost")
	}
	if reconnectErr := m.connect(dsn); reconnectErr != nil {
		m.logger.WithError(reconnectErr).Debug("MySQL reconnection attempt failed")
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

// DB returns the connection, or nil while the database is unavailable.
func (m *Manager) DB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.available {
		return m.db
	}
	return nil
}

// Ping checks connectivity for the readiness probe.
func (m *Manager) Ping(ctx context.Context) error {
	db := m.DB()
	if db == nil {
		return ErrDatabaseUnavailable
	}
	return db.PingContext(ctx)
}

// Close stops the health monitor and closes the connection.
func (m *Manager) Close() error {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = false
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
