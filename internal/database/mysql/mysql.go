// Package mysql reflects catalog metadata from MySQL databases. The schema
// filter falls back to DATABASE() when neither an explicit nor a configured
// schema is known, matching how MySQL scopes information_schema rows to the
// connected database.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/sqlbridge/db-schema-reflector/internal/config"
	"github.com/sqlbridge/db-schema-reflector/internal/database"
	"github.com/sqlbridge/db-schema-reflector/internal/sqltype"
)

type mysqlHandler struct{}

var _ database.DialectHandler = (*mysqlHandler)(nil)

var typeCatalog = sqltype.MySQL()

func (h mysqlHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.User == "" || cfg.Password == "" || cfg.DBName == "" || cfg.CloudSQLInstanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, pass, db, instance)")
	}

	d, err := cloudsqlconn.NewDialer(context.Background())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}

	var opts []cloudsqlconn.DialOption
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}

	instanceConnectionName := cfg.CloudSQLInstanceConnectionName
	network := fmt.Sprintf("cloudsql-%s", instanceConnectionName)

	mysql.RegisterDialContext(network,
		func(ctx context.Context, addr string) (net.Conn, error) {
			conn, dialErr := d.Dial(ctx, instanceConnectionName, opts...)
			if dialErr != nil {
				log.Printf("ERROR: Cloud SQL dial failed for %s: %v", instanceConnectionName, dialErr)
			}
			return conn, dialErr
		})

	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  network,
		Addr:                 instanceConnectionName,
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		mysql.DeregisterDialContext(network)
		d.Close()
		return nil, fmt.Errorf("sql.Open failed for CloudSQL MySQL: %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	connStr := cfg.DSN
	if connStr == "" {
		mysqlCfg := mysql.Config{
			User:                 cfg.User,
			Passwd:               cfg.Password,
			Net:                  "tcp",
			Addr:                 fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			DBName:               cfg.DBName,
			AllowNativePasswords: true,
			ParseTime:            true,
		}
		connStr = mysqlCfg.FormatDSN()
	}

	dbPool, err := sql.Open("mysql", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard mysql): %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) QuoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, "`", "``")
	return fmt.Sprintf("`%s`", name)
}

// schemaFilter returns the TABLE_SCHEMA predicate and its argument, keyed on
// the column qualifier. With no effective schema the predicate pins rows to
// the connected database instead of leaving the filter off entirely.
func schemaFilter(db *database.DB, schema, qualifier string) (string, []interface{}) {
	if eff := database.EffectiveSchema(schema, db.GetConfig().DefaultSchema); eff != "" {
		return qualifier + "TABLE_SCHEMA = ?", []interface{}{eff}
	}
	return qualifier + "TABLE_SCHEMA = DATABASE()", nil
}

func (h mysqlHandler) ListTables(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	filter, args := schemaFilter(db, schema, "")
	query := "SELECT TABLE_NAME FROM information_schema.TABLES WHERE " + filter +
		" AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"

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

func (h mysqlHandler) ListViews(ctx context.Context, db *database.DB, schema string) ([]string, error) {
	filter, args := schemaFilter(db, schema, "")
	query := "SELECT TABLE_NAME FROM information_schema.VIEWS WHERE " + filter +
		" ORDER BY TABLE_NAME"

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

func (h mysqlHandler) GetViewDefinition(ctx context.Context, db *database.DB, viewName string, schema string) (string, error) {
	filter, args := schemaFilter(db, schema, "")
	query := "SELECT VIEW_DEFINITION FROM information_schema.VIEWS WHERE " + filter +
		" AND TABLE_NAME = ?"
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

func (h mysqlHandler) GetPrimaryKey(ctx context.Context, db *database.DB, tableName string, schema string) ([]string, error) {
	eff := database.EffectiveSchema(schema, db.GetConfig().DefaultSchema)
	if columns, ok := database.LookupPKOverride(db.GetConfig().PKOverrides, tableName, eff); ok {
		return columns, nil
	}

	filter, args := schemaFilter(db, schema, "TC.")
	query := "SELECT KCU.COLUMN_NAME FROM information_schema.TABLE_CONSTRAINTS AS TC " +
		"JOIN information_schema.KEY_COLUMN_USAGE AS KCU " +
		"ON TC.CONSTRAINT_NAME = KCU.CONSTRAINT_NAME AND TC.TABLE_SCHEMA = KCU.TABLE_SCHEMA AND TC.TABLE_NAME = KCU.TABLE_NAME " +
		"WHERE TC.CONSTRAINT_TYPE = 'PRIMARY KEY' AND " + filter +
		" AND TC.TABLE_NAME = ? ORDER BY KCU.ORDINAL_POSITION"
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

func (h mysqlHandler) ListColumns(ctx context.Context, db *database.DB, tableName string, schema string) ([]database.Column, error) {
	filter, args := schemaFilter(db, schema, "")
	query := "SELECT COLUMN_NAME, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, " +
		"NUMERIC_SCALE, DATETIME_PRECISION, IS_NULLABLE, COLUMN_DEFAULT " +
		"FROM information_schema.COLUMNS WHERE " + filter +
		" AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION"
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
	database.RegisterDialectHandler("mysql", mysqlHandler{})
	database.RegisterDialectHandler("cloudsqlmysql", mysqlHandler{})
}
