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

// Package linkedserver reflects catalog metadata from a remote database
// that is reachable only through a SQL Server linked server. Every catalog
// query is addressed with a four-part name
// ([Server].[Database].[INFORMATION_SCHEMA].[View]) so the local server
// forwards it across the link instead of answering from its own catalog.
package linkedserver

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

// linkedServerHandler struct implements database.DialectHandler for
// reflection through a SQL Server linked server.
type linkedServerHandler struct{}

var _ database.DialectHandler = (*linkedServerHandler)(nil)

var typeCatalog = sqltype.SQLServer()

// invalidIdentChars can break out of a bracket-quoted identifier. Names
// carrying any of them are rejected outright rather than escaped: the
// four-part path travels in the FROM clause, where identifiers cannot be
// bound as query parameters.
const invalidIdentChars = "[];'\n\r\t"

func bracketIdentifier(ident string) (string, error) {
	if ident == "" || strings.ContainsAny(ident, invalidIdentChars) {
		return "", fmt.Errorf("invalid identifier: %q", ident)
	}
	return "[" + ident + "]", nil
}

// informationSchemaPath composes the four-part name of one
// INFORMATION_SCHEMA view on the linked server, e.g.
// [LS].[RemoteDb].[INFORMATION_SCHEMA].[TABLES].
func informationSchemaPath(cfg config.LinkedServerConfig, view string) (string, error) {
	server, err := bracketIdentifier(cfg.Server)
	if err != nil {
		return "", err
	}
	db, err := bracketIdentifier(cfg.Database)
	if err != nil {
		return "", err
	}
	v, err := bracketIdentifier(view)
	if err != nil {
		return "", err
	}
	return server + "." + db + ".[INFORMATION_SCHEMA]." + v, nil
}

// requireConfig gates every reflection call: until both linked-server
// settings are present the dialect refuses to build a four-part name.
func requireConfig(db *database.DB) (config.LinkedServerConfig, error) {
	cfg := db.GetConfig().LinkedServer
	if !cfg.Complete() {
		return config.LinkedServerConfig{}, fmt.Errorf(
			"linkedserver dialect requires 'linked_server' and 'linked_database'. " +
				"Provide them via the --linked-server/--linked-database flags or DSN query parameters")
	}
	return cfg, nil
}

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

// CreateCloudSQLPool connects to a Cloud SQL-hosted SQL Server instance;
// the linked servers themselves are configured on that instance.
func (h linkedServerHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
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

// CreateStandardPool creates a SQL Server connection pool to the local
// server carrying the linked-server definition. An explicit DSN wins over
// the assembled URL; linked parameters have already been stripped from it.
func (h linkedServerHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
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

// QuoteIdentifier for SQL Server: square brackets.
func (h linkedServerHandler) QuoteIdentifier(name string) string {
	return fmt.Sprintf("[%s]", name)
}

// ListTables returns the base-table names of the linked database, ordered
// by name, filtered by the effective schema when one is known.
func (h linkedServerHandler) ListTables(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	cfg, err := requireConfig(db)
	if err != nil {
		return nil, err
	}
	fromObj, err := informationSchemaPath(cfg, "TABLES")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT TABLE_NAME FROM %s WHERE TABLE_TYPE = 'BASE TABLE'", fromObj)
	var args []interface{}
	if eff := database.EffectiveSchema(schema, cfg.DefaultSchema); eff != "" {
		query += " AND TABLE_SCHEMA = @schema"
		args = append(args, sql.Named("schema", eff))
	}
	query += " ORDER BY TABLE_NAME"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying tables on linked server %s: %w", cfg.Server, err)
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

// ListViews returns all view names of the linked database, ordered by name.
func (h linkedServerHandler) ListViews(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	cfg, err := requireConfig(db)
	if err != nil {
		return nil, err
	}
	fromObj, err := informationSchemaPath(cfg, "VIEWS")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT TABLE_NAME FROM %s", fromObj)
	var args []interface{}
	if eff := database.EffectiveSchema(schema, cfg.DefaultSchema); eff != "" {
		query += " WHERE TABLE_SCHEMA = @schema"
		args = append(args, sql.Named("schema", eff))
	}
	query += " ORDER BY TABLE_NAME"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying views on linked server %s: %w", cfg.Server, err)
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
// the view is missing or the catalog refuses the lookup. Definitions are
// best-effort: remote permissions often hide VIEW_DEFINITION.
func (h linkedServerHandler) GetViewDefinition(ctx context.Context, db *database.DB, viewName string, schema string) (string, error) {
	cfg, err := requireConfig(db)
	if err != nil {
		return "", err
	}
	fromObj, err := informationSchemaPath(cfg, "VIEWS")
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf("SELECT VIEW_DEFINITION FROM %s WHERE TABLE_NAME = @view_name", fromObj)
	args := []interface{}{sql.Named("view_name", viewName)}
	if eff := database.EffectiveSchema(schema, cfg.DefaultSchema); eff != "" {
		query += " AND TABLE_SCHEMA = @schema"
		args = append(args, sql.Named("schema", eff))
	}

	var definition sql.NullString
	err = db.QueryRowContext(ctx, query, args...).Scan(&definition)
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

// GetPrimaryKey returns the ordered primary-key columns of one table. The
// override table is consulted first; the catalog join is best-effort and
// yields an empty key when the constraint views are not readable across
// the link.
func (h linkedServerHandler) GetPrimaryKey(ctx context.Context, db *database.DB, tableName string, schema string) ([]string, error) {
	cfg, err := requireConfig(db)
	if err != nil {
		return nil, err
	}
	eff := database.EffectiveSchema(schema, cfg.DefaultSchema)
	if columns, ok := database.LookupPKOverride(db.GetConfig().PKOverrides, tableName, eff); ok {
		return columns, nil
	}

	constraints, err := informationSchemaPath(cfg, "TABLE_CONSTRAINTS")
	if err != nil {
		return nil, err
	}
	keyUsage, err := informationSchemaPath(cfg, "KEY_COLUMN_USAGE")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT KCU.COLUMN_NAME FROM %s AS TC "+
			"JOIN %s AS KCU ON TC.CONSTRAINT_NAME = KCU.CONSTRAINT_NAME "+
			"WHERE TC.CONSTRAINT_TYPE = 'PRIMARY KEY' AND TC.TABLE_NAME = @table_name",
		constraints, keyUsage)
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
// ordinal position, with types resolved against the SQL Server catalog.
func (h linkedServerHandler) ListColumns(ctx context.Context, db *database.DB, tableName string, schema string) ([]database.Column, error) {
	cfg, err := requireConfig(db)
	if err != nil {
		return nil, err
	}
	fromObj, err := informationSchemaPath(cfg, "COLUMNS")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT COLUMN_NAME, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, "+
			"NUMERIC_SCALE, DATETIME_PRECISION, IS_NULLABLE, COLUMN_DEFAULT "+
			"FROM %s WHERE TABLE_NAME = @table_name", fromObj)
	args := []interface{}{sql.Named("table_name", tableName)}
	if eff := database.EffectiveSchema(schema, cfg.DefaultSchema); eff != "" {
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
	database.RegisterDialectHandler("linkedserver", linkedServerHandler{})
	database.RegisterDialectHandler("cloudsqllinkedserver", linkedServerHandler{})
}
