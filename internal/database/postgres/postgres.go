/*
 * Copyright 2025 SQLBridge Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package postgres reflects catalog metadata from PostgreSQL databases. The
// schema filter falls back to current_schema() when neither an explicit nor
// a configured schema is known.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sqlbridge/db-schema-reflector/internal/config"
	"github.com/sqlbridge/db-schema-reflector/internal/database"
	"github.com/sqlbridge/db-schema-reflector/internal/sqltype"
)

// postgresHandler struct implements database.DialectHandler for PostgreSQL.
type postgresHandler struct{}

var _ database.DialectHandler = (*postgresHandler)(nil)

var typeCatalog = sqltype.Postgres()

// CreateCloudSQLPool for PostgreSQL
func (h postgresHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("user=%s password=%s database=%s", cfg.User, cfg.Password, cfg.DBName)
	pgxCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	var opts []cloudsqlconn.Option
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithDefaultDialOptions(cloudsqlconn.WithPrivateIP()))
	}
	d, err := cloudsqlconn.NewDialer(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName
	pgxCfg.DialFunc = func(ctx context.Context, network, instance string) (net.Conn, error) {
		return d.Dial(ctx, instanceConnectionName)
	}
	dbURI := stdlib.RegisterConnConfig(pgxCfg)
	dbPool, err := sql.Open("pgx", dbURI)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	return dbPool, nil
}

// CreateStandardPool creates a standard PostgreSQL connection pool. An
// explicit DSN wins over the keyword/value string assembled from the
// individual settings.
func (h postgresHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	connStr := cfg.DSN
	if connStr == "" {
		connStr = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
		)
	}

	dbPool, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return dbPool, err
}

// QuoteIdentifier for PostgreSQL
func (h postgresHandler) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// schemaFilter returns the table_schema predicate and its argument. Postgres
// placeholders are positional, so the predicate claims $1 and the caller
// numbers any further parameters after it.
func schemaFilter(db *database.DB, schema, qualifier string) (string, []interface{}) {
	if eff := database.EffectiveSchema(schema, db.GetConfig().DefaultSchema); eff != "" {
		return qualifier + "table_schema = $1", []interface{}{eff}
	}
	return qualifier + "table_schema = current_schema()", nil
}

// nextPlaceholder numbers the placeholder following the schema filter's.
func nextPlaceholder(args []interface{}) string {
	return fmt.Sprintf("$%d", len(args)+1)
}

// ListTables for PostgreSQL
func (h postgresHandler) ListTables(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	filter, args := schemaFilter(db, schema, "")
	query := "SELECT table_name FROM information_schema.tables WHERE " + filter +
		" AND table_type = 'BASE TABLE' ORDER BY table_name"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

// ListViews for PostgreSQL
func (h postgresHandler) ListViews(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	filter, args := schemaFilter(db, schema, "")
	query := "SELECT table_name FROM information_schema.views WHERE " + filter +
		" ORDER BY table_name"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying views: %w", err)
	}
	defer rows.Close()

	var views []string
	for rows.Next() {
		var viewName string
		if err := rows.Scan(&viewName); err != nil {
			return nil, fmt.Errorf("error scanning view name: %w", err)
		}
		views = append(views, viewName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating view rows: %w", err)
	}
	return views, nil
}

// GetViewDefinition returns the stored definition of one view, or "" when
// the view is missing or hidden by permissions.
func (h postgresHandler) GetViewDefinition(ctx context.Context, db *database.DB, viewName string, schema string) (string, error) {
	filter, args := schemaFilter(db, schema, "")
	query := "SELECT view_definition FROM information_schema.views WHERE " + filter +
		" AND table_name = " + nextPlaceholder(args)
	args = append(args, viewName)

	var definition sql.NullString
	err := db.QueryRowContext(ctx, query, args...).Scan(&definition)
	if err != nil {
		if err != sql.ErrNoRows {
			db.Logger().Warn("view definition lookup failed",
				zap.String("view", viewName), zap.Error(err))
		}
		return "", nil
	}
	if definition.Valid {
		return definition.String, nil
	}
	return "", nil
}

// GetPrimaryKey returns the ordered primary-key columns of one table,
// consulting the override table before the constraint views.
func (h postgresHandler) GetPrimaryKey(ctx context.Context, db *database.DB, tableName string, schema string) ([]string, error) {
	eff := database.EffectiveSchema(schema, db.GetConfig().DefaultSchema)
	if columns, ok := database.LookupPKOverride(db.GetConfig().PKOverrides, tableName, eff); ok {
		return columns, nil
	}

	filter, args := schemaFilter(db, schema, "tc.")
	query := "SELECT kcu.column_name FROM information_schema.table_constraints AS tc " +
		"JOIN information_schema.key_column_usage AS kcu " +
		"ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema " +
		"WHERE tc.constraint_type = 'PRIMARY KEY' AND " + filter +
		" AND tc.table_name = " + nextPlaceholder(args) + " ORDER BY kcu.ordinal_position"
	args = append(args, tableName)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		db.Logger().Warn("primary key catalog query failed",
			zap.String("table", tableName), zap.Error(err))
		return nil, nil
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			db.Logger().Warn("primary key catalog scan failed",
				zap.String("table", tableName), zap.Error(err))
			return nil, nil
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		db.Logger().Warn("primary key catalog rows failed",
			zap.String("table", tableName), zap.Error(err))
		return nil, nil
	}
	return columns, nil
}

// ListColumns returns the column descriptors of one table, ordered by
// ordinal position. Postgres reports datetime precision in its own
// datetime_precision column, same shape as the other dialects.
func (h postgresHandler) ListColumns(ctx context.Context, db *database.DB, tableName string, schema string) ([]database.Column, error) {
	filter, args := schemaFilter(db, schema, "")
	query := "SELECT column_name, data_type, character_maximum_length, numeric_precision, " +
		"numeric_scale, datetime_precision, is_nullable, column_default " +
		"FROM information_schema.columns WHERE " + filter +
		" AND table_name = " + nextPlaceholder(args) + " ORDER BY ordinal_position"
	args = append(args, tableName)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []database.Column
	for rows.Next() {
		var (
			name       string
			dataType   sql.NullString
			charLen    sql.NullInt64
			numPrec    sql.NullInt64
			numScale   sql.NullInt64
			dtPrec     sql.NullInt64
			isNullable string
			colDefault sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &charLen, &numPrec, &numScale, &dtPrec, &isNullable, &colDefault); err != nil {
			return nil, fmt.Errorf("error scanning column details: %w", err)
		}
		columns = append(columns, database.Column{
			Name:     name,
			Type:     typeCatalog.FromCatalogRow(dataType, charLen, numPrec, numScale, dtPrec),
			Nullable: strings.EqualFold(isNullable, "YES"),
			Default:  colDefault,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

func init() {
	database.RegisterDialectHandler("postgres", postgresHandler{})
	database.RegisterDialectHandler("cloudsqlpostgres", postgresHandler{})
}
