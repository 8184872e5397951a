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

// Package sqlserver reflects catalog metadata from a directly-connected SQL
// Server database through its local INFORMATION_SCHEMA views.
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	mssql "github.com/denisenkom/go-mssqldb"
	"go.uber.org/zap"

	"github.com/sqlbridge/db-schema-reflector/internal/config"
	"github.com/sqlbridge/db-schema-reflector/internal/database"
	"github.com/sqlbridge/db-schema-reflector/internal/sqltype"
)

// sqlServerHandler struct implements database.DialectHandler for SQL Server.
type sqlServerHandler struct{}

var _ database.DialectHandler = (*sqlServerHandler)(nil)

var typeCatalog = sqltype.SQLServer()

type csqlDialer struct {
	dialer     *cloudsqlconn.Dialer
	connName   string
	usePrivate bool
}

// DialContext adheres to the mssql.Dialer interface.
func (c *csqlDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var opts []cloudsqlconn.DialOption
	if c.usePrivate {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}
	return c.dialer.Dial(ctx, c.connName, opts...)
}

// CreateCloudSQLPool for SQL Server
func (h sqlServerHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	// WithLazyRefresh() performs certificate refresh when needed, rather
	// than on a scheduled interval, which suits serverless environments.
	dialer, err := cloudsqlconn.NewDialer(context.Background(), cloudsqlconn.WithLazyRefresh())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}
	connector, err := mssql.NewConnector(fmt.Sprintf("sqlserver://%s:%s@localhost:1433?database=%s&dial=cloudsqlconn&instance=%s",
		cfg.User, cfg.Password, cfg.DBName, cfg.CloudSQLInstanceConnectionName))
	if err != nil {
		return nil, fmt.Errorf("mssql.NewConnector: %w", err)
	}
	connector.Dialer = &csqlDialer{
		dialer:     dialer,
		connName:   cfg.CloudSQLInstanceConnectionName,
		usePrivate: cfg.UsePrivateIP,
	}

	return sql.OpenDB(connector), nil
}

// CreateStandardPool creates a standard SQL Server connection pool. An
// explicit DSN wins over the URL assembled from the individual settings.
func (h sqlServerHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	connStr := cfg.DSN
	if connStr == "" {
		port := cfg.Port
		if port == 0 {
			port = 1433 // Default SQL Server port
		}
		connStr = fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
			cfg.User, cfg.Password, cfg.Host, port, cfg.DBName)
	}

	dbPool, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard sqlserver): %w", err)
	}
	return dbPool, nil
}

// QuoteIdentifier for SQL Server
// SQL Server uses square brackets [] for identifiers.
// Double quotes "" are also accepted in some contexts but square brackets are standard and safer.
func (h sqlServerHandler) QuoteIdentifier(name string) string {
	return fmt.Sprintf("[%s]", name)
}

// ListTables returns the base-table names of the connected database, ordered
// by name, filtered by the effective schema when one is known.
func (h sqlServerHandler) ListTables(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	query := "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_CATALOG = DB_NAME()"
	var args []interface{}
	if eff := database.EffectiveSchema(schema, db.GetConfig().DefaultSchema); eff != "" {
		query += " AND TABLE_SCHEMA = @schema"
		args = append(args, sql.Named("schema", eff))
	}
	query += " ORDER BY TABLE_NAME"

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

// ListViews returns the view names of the connected database, ordered by name.
func (h sqlServerHandler) ListViews(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	query := "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.VIEWS WHERE TABLE_CATALOG = DB_NAME()"
	var args []interface{}
	if eff := database.EffectiveSchema(schema, db.GetConfig().DefaultSchema); eff != "" {
		query += " AND TABLE_SCHEMA = @schema"
		args = append(args, sql.Named("schema", eff))
	}
	query += " ORDER BY TABLE_NAME"

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
// the view is missing or VIEW_DEFINITION is hidden by permissions.
func (h sqlServerHandler) GetViewDefinition(ctx context.Context, db *database.DB, viewName string, schema string) (string, error) {
	query := "SELECT VIEW_DEFINITION FROM INFORMATION_SCHEMA.VIEWS WHERE TABLE_NAME = @view_name"
	args := []interface{}{sql.Named("view_name", viewName)}
	if eff := database.EffectiveSchema(schema, db.GetConfig().DefaultSchema); eff != "" {
		query += " AND TABLE_SCHEMA = @schema"
		args = append(args, sql.Named("schema", eff))
	}

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
func (h sqlServerHandler) GetPrimaryKey(ctx context.Context, db *database.DB, tableName string, schema string) ([]string, error) {
	eff := database.EffectiveSchema(schema, db.GetConfig().DefaultSchema)
	if columns, ok := database.LookupPKOverride(db.GetConfig().PKOverrides, tableName, eff); ok {
		return columns, nil
	}

	query := "SELECT KCU.COLUMN_NAME FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS AS TC " +
		"JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE AS KCU ON TC.CONSTRAINT_NAME = KCU.CONSTRAINT_NAME " +
		"WHERE TC.CONSTRAINT_TYPE = 'PRIMARY KEY' AND TC.TABLE_NAME = @table_name"
	args := []interface{}{sql.Named("table_name", tableName)}
	if eff != "" {
		query += " AND TC.TABLE_SCHEMA = @schema"
		args = append(args, sql.Named("schema", eff))
	}
	query += " ORDER BY KCU.ORDINAL_POSITION"

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
// ordinal position.
func (h sqlServerHandler) ListColumns(ctx context.Context, db *database.DB, tableName string, schema string) ([]database.Column, error) {
	query := "SELECT COLUMN_NAME, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, " +
		"NUMERIC_SCALE, DATETIME_PRECISION, IS_NULLABLE, COLUMN_DEFAULT " +
		"FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = @table_name"
	args := []interface{}{sql.Named("table_name", tableName)}
	if eff := database.EffectiveSchema(schema, db.GetConfig().DefaultSchema); eff != "" {
		query += " AND TABLE_SCHEMA = @schema"
		args = append(args, sql.Named("schema", eff))
	}
	query += " ORDER BY ORDINAL_POSITION"

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
	database.RegisterDialectHandler("sqlserver", sqlServerHandler{})
	database.RegisterDialectHandler("cloudsqlsqlserver", sqlServerHandler{})
}
