package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Connection defaults. QueryTimeout and MaxResultRows are overridable via
// MCP_QUERY_TIMEOUT and MCP_MAX_ROWS.
var (
	QueryTimeout  = 30 * time.Second
	MaxResultRows = 10000
)

const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 3306
	ConnectionTimeout  = 10 * time.Second
	MaxConnectionsIdle = 5
	MaxConnectionsOpen = 5
)

// SessionSummary is the public view of the live session. The password never
// appears here.
type SessionSummary struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Database string `json:"database,omitempty"`
	TLS      bool   `json:"tls"`
}

type session struct {
	summary SessionSummary
	db      *sql.DB
}

// SessionManager owns at most one authenticated connection pool. A session
// exists exactly while its pool is open: a successful authenticate installs
// one, a failed authenticate or logout leaves none.
type SessionManager struct {
	mu      sync.Mutex
	current *session
	open    func(dsn string) (*sql.DB, error)
	logger  *slog.Logger
}

func NewSessionManager(logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{open: openMySQLPool, logger: logger}
}

func openMySQLPool(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(MaxConnectionsIdle)
	db.SetMaxOpenConns(MaxConnectionsOpen)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Authenticate replaces any existing session. The old pool is closed first;
// if the new pool fails its liveness probe it is discarded and no session
// remains installed.
func (m *SessionManager) Authenticate(ctx context.Context, args *authenticateArgs) (SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if err := m.current.db.Close(); err != nil {
			m.logger.Warn("closing previous pool", "error", err)
		}
		m.current = nil
	}

	cfg := mysql.NewConfig()
	cfg.User = *args.User
	cfg.Passwd = *args.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", args.Host, *args.Port)
	cfg.DBName = args.Database
	cfg.ParseTime = true
	if args.TLS {
		cfg.TLSConfig = "true"
	}

	db, err := m.open(cfg.FormatDSN())
	if err != nil {
		return SessionSummary{}, authWrap(err, "failed to open pool for %s@%s", *args.User, cfg.Addr)
	}

	probeCtx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()
	var one int
	if err := db.QueryRowContext(probeCtx, "SELECT 1").Scan(&one); err != nil {
		db.Close()
		return SessionSummary{}, authWrap(err, "authentication failed for %s@%s", *args.User, cfg.Addr)
	}

	m.current = &session{
		summary: SessionSummary{
			Host:     args.Host,
			Port:     *args.Port,
			User:     *args.User,
			Database: args.Database,
			TLS:      args.TLS,
		},
		db: db,
	}
	m.logger.Info("session established", "user", *args.User, "addr", cfg.Addr, "database", args.Database)
	return m.current.summary, nil
}

// Status reports whether a session is live, without side effects.
func (m *SessionManager) Status() (bool, *SessionSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return false, nil
	}
	summary := m.current.summary
	return true, &summary
}

// Logout closes the pool and clears the session, returning the summary of
// the session that was closed. Logging out with no session is a no-op
// success.
func (m *SessionManager) Logout() *SessionSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	if err := m.current.db.Close(); err != nil {
		m.logger.Warn("closing pool on logout", "error", err)
	}
	summary := m.current.summary
	m.current = nil
	return &summary
}

// Pool returns the live pool handle, or an auth error when no session exists.
func (m *SessionManager) Pool() (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, authErr("not authenticated: call authenticate first")
	}
	return m.current.db, nil
}

// ActiveDatabase returns the session's current database, or "" when no
// session or no database is selected.
func (m *SessionManager) ActiveDatabase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.summary.Database
}

// SetActiveDatabase switches the session's implicit database after checking
// the schema actually exists in the server catalog.
func (m *SessionManager) SetActiveDatabase(ctx context.Context, name string) error {
	db, err := m.Pool()
	if err != nil {
		return err
	}
	if _, err := validateIdentifier(name, "database"); err != nil {
		return err
	}

	queryCtx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()
	var found string
	err = db.QueryRowContext(queryCtx,
		"SELECT SCHEMA_NAME FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return apiErr("database %q does not exist", name)
	}
	if err != nil {
		return dbErr(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return authErr("not authenticated: call authenticate first")
	}
	m.current.summary.Database = name
	return nil
}
