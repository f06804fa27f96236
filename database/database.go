package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/shared"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ConnectionConfig holds database connection pool configuration
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultConnectionConfig returns pool settings suited to the given driver
func DefaultConnectionConfig(driver string) ConnectionConfig {
	if driver == DriverSQLite {
		// a single connection keeps :memory: databases and file locks consistent
		return ConnectionConfig{MaxOpenConns: 1, MaxIdleConns: 1, PingTimeout: 5 * time.Second}
	}
	return ConnectionConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// Store wraps a *sql.DB opened with either the postgres or the sqlite driver
type Store struct {
	db     *sql.DB
	driver string
}

// Connect opens the database with default pool settings, pings it and applies the schema
func Connect(ctx context.Context, driver, dsn string) (*Store, error) {
	return ConnectWithConfig(ctx, driver, dsn, DefaultConnectionConfig(driver))
}

// ConnectWithConfig opens the database with custom pool settings
func ConnectWithConfig(ctx context.Context, driver, dsn string, config ConnectionConfig) (*Store, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, config.PingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, driver: driver}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component":      "Database",
		"driver":         driver,
		"max_open_conns": config.MaxOpenConns,
	}).Info("Connected to database successfully")

	return store, nil
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	logrus.WithField("component", "Database").Info("Database connection closed")
	return s.db.Close()
}

// Driver returns the driver name the store was opened with
func (s *Store) Driver() string {
	return s.driver
}

// Stats returns connection pool statistics
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

// HealthCheck pings the database and logs pool statistics
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("database connection not established")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	stats := s.db.Stats()
	logrus.WithFields(logrus.Fields{
		"component":            "Database",
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
	}).Debug("Database connection pool health check")

	return nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range parseSQLStatements(schemaSQL) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement failed: %w", err)
		}
	}

	logrus.WithField("component", "Database").Debug("Database migration completed successfully")
	return nil
}

// rebind rewrites ? placeholders into the $n form postgres expects
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var builder strings.Builder
	index := 0
	for _, r := range query {
		if r == '?' {
			index++
			builder.WriteString("$" + strconv.Itoa(index))
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// parseSQLStatements parses SQL content into individual statements
// This handles multi-line statements and comments properly
func parseSQLStatements(content string) []string {
	var statements []string
	var currentStatement strings.Builder

	lines := strings.Split(content, "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)

		// Skip empty lines and comment-only lines
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if currentStatement.Len() > 0 {
			currentStatement.WriteString(" ")
		}
		currentStatement.WriteString(line)

		// If line ends with semicolon, we have a complete statement
		if strings.HasSuffix(line, ";") {
			stmt := strings.TrimSuffix(currentStatement.String(), ";")
			stmt = strings.TrimSpace(stmt)
			if stmt != "" {
				statements = append(statements, stmt)
			}
			currentStatement.Reset()
		}
	}

	// Handle any remaining statement without semicolon
	if currentStatement.Len() > 0 {
		stmt := strings.TrimSpace(currentStatement.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	return statements
}

var _ shared.KeyValueStore = (*Store)(nil)
