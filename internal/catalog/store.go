package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultDBPath is used when no store location is configured.
const DefaultDBPath = "products.db"

// Options controls how the store is opened.
type Options struct {
	Path  string
	Debug bool // log SQL statements
}

// Store owns the process-wide connection pool. Individual lookups acquire
// their own connection from it.
type Store struct {
	db   *gorm.DB
	path string
}

// Open connects to the sqlite database at opts.Path.
func Open(opts Options) (*Store, error) {
	path := opts.Path
	if path == "" {
		path = DefaultDBPath
	}

	logLevel := logger.Silent
	if opts.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// dsn adds a busy timeout so concurrent requests wait on sqlite's write
// lock instead of failing immediately.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000"
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying handle for repositories and tests.
func (s *Store) DB() *gorm.DB { return s.db }

// Init creates the schema if absent and, when seed is set, inserts the demo
// product into an empty catalog. It must finish before requests are served
// and is safe to run again on an initialized store.
func (s *Store) Init(ctx context.Context, seed bool) error {
	db := s.db.WithContext(ctx)

	if err := db.AutoMigrate(&Product{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if !seed {
		return nil
	}

	created, err := seedDemo(db)
	if err != nil {
		return err
	}
	if created {
		slog.Info("Seeded demo product", "path", s.path, "name", DemoProduct().Name)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
