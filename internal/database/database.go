package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sqlbridge/db-schema-reflector/internal/config"
	"github.com/sqlbridge/db-schema-reflector/internal/sqltype"
)

// DBAdapter defines the interface for catalog operations needed by the inspector.
type DBAdapter interface {
	ListTables(ctx context.Context, schema string) ([]string, error)
	ListViews(ctx context.Context, schema string) ([]string, error)
	GetViewDefinition(ctx context.Context, viewName string, schema string) (string, error)
	GetPrimaryKey(ctx context.Context, tableName string, schema string) ([]string, error)
	ListColumns(ctx context.Context, tableName string, schema string) ([]Column, error)
	Ping(ctx context.Context) error
	Close() error
	GetConfig() config.DatabaseConfig
}

var _ DBAdapter = (*DB)(nil)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig

	logger *zap.Logger
}

// Column holds the reflected description of a database column.
type Column struct {
	Name     string
	Type     sqltype.Type
	Nullable bool
	Default  sql.NullString
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := dialectHandlers[dialect]; exists {
		log.Printf("WARN: Dialect handler for '%s' is being overwritten.", dialect)
	}
	dialectHandlers[dialect] = handler
}

func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

func New(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	// Linked-server settings may ride in on the DSN query string. They are
	// applied here, before the driver ever parses the DSN, and stripped so
	// the driver only sees its own parameters.
	if cfg.DSN != "" {
		cleaned, params, err := config.ExtractLinkedDSNParams(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyLinkedDSNParams(params); err != nil {
			return nil, err
		}
		cfg.DSN = cleaned
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	ctx := context.Background()
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
		logger:  logger,
	}, nil
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

// Logger never returns nil; a DB built without one logs nowhere.
func (db *DB) Logger() *zap.Logger {
	if db.logger == nil {
		return zap.NewNop()
	}
	return db.logger
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	log.Println("WARN: Attempted to close a nil database connection pool.")
	return nil
}

func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.Query(query, args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.QueryContext(ctx, query, args...)
}

func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.Pool.QueryRow(query, args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.Pool.QueryRowContext(ctx, query, args...)
}

func (db *DB) ListTables(ctx context.Context, schema string) ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListTables(ctx, db, schema)
}

func (db *DB) ListViews(ctx context.Context, schema string) ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListViews(ctx, db, schema)
}

func (db *DB) GetViewDefinition(ctx context.Context, viewName string, schema string) (string, error) {
	if db.Handler == nil {
		return "", fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.GetViewDefinition(ctx, db, viewName, schema)
}

func (db *DB) GetPrimaryKey(ctx context.Context, tableName string, schema string) ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.GetPrimaryKey(ctx, db, tableName, schema)
}

func (db *DB) ListColumns(ctx context.Context, tableName string, schema string) ([]Column, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListColumns(ctx, db, tableName, schema)
}

// DialectHandler is implemented once per supported dialect; implementations
// register themselves under their dialect names from package init.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	ListTables(ctx context.Context, db *DB, schema string) ([]string, error)
	ListViews(ctx context.Context, db *DB, schema string) ([]string, error)
	GetViewDefinition(ctx context.Context, db *DB, viewName string, schema string) (string, error)
	GetPrimaryKey(ctx context.Context, db *DB, tableName string, schema string) ([]string, error)
	ListColumns(ctx context.Context, db *DB, tableName string, schema string) ([]Column, error)
}
