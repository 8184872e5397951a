package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sqlbridge/db-schema-reflector/internal/config"
	"github.com/sqlbridge/db-schema-reflector/internal/database"
)

func newMockDB(t *testing.T, cfg config.DatabaseConfig) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return &database.DB{Pool: mockDB, Handler: sqlServerHandler{}, Config: cfg}, mock
}

func TestSQLServerListTables(t *testing.T) {
	tests := []struct {
		name      string
		schemaArg string
		cfg       config.DatabaseConfig
		mockSetup func(sqlmock.Sqlmock)
		want      []string
	}{
		{
			name: "No schema filter scopes to the connected database",
			cfg:  config.DatabaseConfig{Dialect: "sqlserver"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders").AddRow("users")
				mock.ExpectQuery(`SELECT TABLE_NAME FROM INFORMATION_SCHEMA\.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_CATALOG = DB_NAME\(\) ORDER BY TABLE_NAME`).
					WillReturnRows(rows)
			},
			want: []string{"orders", "users"},
		},
		{
			name:      "Explicit schema argument filters",
			schemaArg: "sales",
			cfg:       config.DatabaseConfig{Dialect: "sqlserver", DefaultSchema: "dbo"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("invoices")
				mock.ExpectQuery(`AND TABLE_SCHEMA = @schema ORDER BY TABLE_NAME`).
					WithArgs(sql.Named("schema", "sales")).
					WillReturnRows(rows)
			},
			want: []string{"invoices"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t, tt.cfg)
			tt.mockSetup(mock)

			got, err := sqlServerHandler{}.ListTables(context.Background(), db, tt.schemaArg)
			if err != nil {
				t.Fatalf("ListTables returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListTables = %v, want %v", got, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Unfulfilled mock expectations: %v", err)
			}
		})
	}
}

func TestSQLServerGetPrimaryKey(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.DatabaseConfig
		mockSetup func(sqlmock.Sqlmock)
		want      []string
	}{
		{
			name: "Override bypasses catalog",
			cfg: config.DatabaseConfig{
				Dialect:     "sqlserver",
				PKOverrides: map[string][]string{"users": {"id"}},
			},
			mockSetup: func(mock sqlmock.Sqlmock) {},
			want:      []string{"id"},
		},
		{
			name: "Catalog join",
			cfg:  config.DatabaseConfig{Dialect: "sqlserver"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id")
				mock.ExpectQuery(`SELECT KCU\.COLUMN_NAME FROM INFORMATION_SCHEMA\.TABLE_CONSTRAINTS AS TC JOIN INFORMATION_SCHEMA\.KEY_COLUMN_USAGE AS KCU`).
					WithArgs(sql.Named("table_name", "users")).
					WillReturnRows(rows)
			},
			want: []string{"id"},
		},
		{
			name: "Catalog failure yields empty key",
			cfg:  config.DatabaseConfig{Dialect: "sqlserver"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT KCU\.COLUMN_NAME`).
					WithArgs(sql.Named("table_name", "users")).
					WillReturnError(errors.New("permission denied"))
			},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t, tt.cfg)
			tt.mockSetup(mock)

			got, err := sqlServerHandler{}.GetPrimaryKey(context.Background(), db, "users", "")
			if err != nil {
				t.Fatalf("GetPrimaryKey returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetPrimaryKey = %v, want %v", got, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Unfulfilled mock expectations: %v", err)
			}
		})
	}
}

func TestSQLServerListColumns(t *testing.T) {
	db, mock := newMockDB(t, config.DatabaseConfig{Dialect: "sqlserver", DefaultSchema: "dbo"})
	columns := []string{"COLUMN_NAME", "DATA_TYPE", "CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION",
		"NUMERIC_SCALE", "DATETIME_PRECISION", "IS_NULLABLE", "COLUMN_DEFAULT"}
	rows := sqlmock.NewRows(columns).
		AddRow("id", "bigint", nil, 19, 0, nil, "NO", nil).
		AddRow("body", "varchar", -1, nil, nil, nil, "YES", nil)
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA\.COLUMNS WHERE TABLE_NAME = @table_name AND TABLE_SCHEMA = @schema ORDER BY ORDINAL_POSITION`).
		WithArgs(sql.Named("table_name", "posts"), sql.Named("schema", "dbo")).
		WillReturnRows(rows)

	got, err := sqlServerHandler{}.ListColumns(context.Background(), db, "posts", "")
	if err != nil {
		t.Fatalf("ListColumns returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListColumns returned %d columns, want 2", len(got))
	}
	if got[0].Type.String() != "bigint" || got[0].Nullable {
		t.Errorf("column id = %s nullable=%v, want bigint nullable=false", got[0].Type, got[0].Nullable)
	}
	if got[1].Type.String() != "varchar" || !got[1].Nullable {
		t.Errorf("column body = %s nullable=%v, want varchar nullable=true", got[1].Type, got[1].Nullable)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %v", err)
	}
}

func TestSQLServerGetViewDefinition(t *testing.T) {
	db, mock := newMockDB(t, config.DatabaseConfig{Dialect: "sqlserver"})
	mock.ExpectQuery(`SELECT VIEW_DEFINITION FROM INFORMATION_SCHEMA\.VIEWS WHERE TABLE_NAME = @view_name`).
		WithArgs(sql.Named("view_name", "missing_view")).
		WillReturnError(sql.ErrNoRows)

	got, err := sqlServerHandler{}.GetViewDefinition(context.Background(), db, "missing_view", "")
	if err != nil {
		t.Fatalf("GetViewDefinition returned error: %v", err)
	}
	if got != "" {
		t.Errorf("GetViewDefinition = %q, want empty", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %v", err)
	}
}
