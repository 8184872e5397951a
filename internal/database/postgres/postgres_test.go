package postgres

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
	return &database.DB{Pool: mockDB, Handler: postgresHandler{}, Config: cfg}, mock
}

func TestPostgresListTables(t *testing.T) {
	tests := []struct {
		name      string
		schemaArg string
		cfg       config.DatabaseConfig
		mockSetup func(sqlmock.Sqlmock)
		want      []string
	}{
		{
			name: "Falls back to current_schema",
			cfg:  config.DatabaseConfig{Dialect: "postgres"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"table_name"}).AddRow("orders").AddRow("users")
				mock.ExpectQuery(`SELECT table_name FROM information_schema\.tables WHERE table_schema = current_schema\(\) AND table_type = 'BASE TABLE' ORDER BY table_name`).
					WillReturnRows(rows)
			},
			want: []string{"orders", "users"},
		},
		{
			name: "Configured default schema filters",
			cfg:  config.DatabaseConfig{Dialect: "postgres", DefaultSchema: "app"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"table_name"}).AddRow("events")
				mock.ExpectQuery(`WHERE table_schema = \$1 AND table_type = 'BASE TABLE' ORDER BY table_name`).
					WithArgs("app").
					WillReturnRows(rows)
			},
			want: []string{"events"},
		},
		{
			name:      "Explicit schema wins over default",
			schemaArg: "audit",
			cfg:       config.DatabaseConfig{Dialect: "postgres", DefaultSchema: "app"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"table_name"}).AddRow("changes")
				mock.ExpectQuery(`WHERE table_schema = \$1 AND table_type = 'BASE TABLE' ORDER BY table_name`).
					WithArgs("audit").
					WillReturnRows(rows)
			},
			want: []string{"changes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t, tt.cfg)
			tt.mockSetup(mock)

			got, err := postgresHandler{}.ListTables(context.Background(), db, tt.schemaArg)
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

func TestPostgresGetViewDefinition(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(sqlmock.Sqlmock)
		want      string
	}{
		{
			name: "Definition found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"view_definition"}).AddRow("SELECT 1")
				mock.ExpectQuery(`SELECT view_definition FROM information_schema\.views WHERE table_schema = current_schema\(\) AND table_name = \$1`).
					WithArgs("v_simple").
					WillReturnRows(rows)
			},
			want: "SELECT 1",
		},
		{
			name: "Missing view yields empty definition",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT view_definition`).
					WithArgs("v_simple").
					WillReturnError(sql.ErrNoRows)
			},
			want: "",
		},
		{
			name: "Permission error is swallowed",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT view_definition`).
					WithArgs("v_simple").
					WillReturnError(errors.New("permission denied for view"))
			},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t, config.DatabaseConfig{Dialect: "postgres"})
			tt.mockSetup(mock)

			got, err := postgresHandler{}.GetViewDefinition(context.Background(), db, "v_simple", "")
			if err != nil {
				t.Fatalf("GetViewDefinition returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("GetViewDefinition = %q, want %q", got, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Unfulfilled mock expectations: %v", err)
			}
		})
	}
}

func TestPostgresGetPrimaryKey(t *testing.T) {
	db, mock := newMockDB(t, config.DatabaseConfig{Dialect: "postgres", DefaultSchema: "app"})
	rows := sqlmock.NewRows([]string{"column_name"}).AddRow("id")
	mock.ExpectQuery(`SELECT kcu\.column_name FROM information_schema\.table_constraints AS tc JOIN information_schema\.key_column_usage AS kcu .* WHERE tc\.constraint_type = 'PRIMARY KEY' AND tc\.table_schema = \$1 AND tc\.table_name = \$2 ORDER BY kcu\.ordinal_position`).
		WithArgs("app", "users").
		WillReturnRows(rows)

	got, err := postgresHandler{}.GetPrimaryKey(context.Background(), db, "users", "")
	if err != nil {
		t.Fatalf("GetPrimaryKey returned error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"id"}) {
		t.Errorf("GetPrimaryKey = %v, want [id]", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %v", err)
	}
}

func TestPostgresListColumns(t *testing.T) {
	db, mock := newMockDB(t, config.DatabaseConfig{Dialect: "postgres"})
	columns := []string{"column_name", "data_type", "character_maximum_length", "numeric_precision",
		"numeric_scale", "datetime_precision", "is_nullable", "column_default"}
	rows := sqlmock.NewRows(columns).
		AddRow("id", "bigint", nil, 64, 0, nil, "NO", "nextval('users_id_seq'::regclass)").
		AddRow("email", "character varying", 255, nil, nil, nil, "NO", nil).
		AddRow("joined_at", "timestamp with time zone", nil, nil, nil, 6, "YES", nil)
	mock.ExpectQuery(`FROM information_schema\.columns WHERE table_schema = current_schema\(\) AND table_name = \$1 ORDER BY ordinal_position`).
		WithArgs("users").
		WillReturnRows(rows)

	got, err := postgresHandler{}.ListColumns(context.Background(), db, "users", "")
	if err != nil {
		t.Fatalf("ListColumns returned error: %v", err)
	}
	wantTypes := []string{"bigint", "character varying(255)", "timestamp with time zone(6)"}
	if len(got) != len(wantTypes) {
		t.Fatalf("ListColumns returned %d columns, want %d", len(got), len(wantTypes))
	}
	for i, col := range got {
		if col.Type.String() != wantTypes[i] {
			t.Errorf("column %s type = %q, want %q", col.Name, col.Type.String(), wantTypes[i])
		}
	}
	if got[0].Default.String == "" {
		t.Error("column id should carry its sequence default")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %v", err)
	}
}

func TestPostgresQuoteIdentifier(t *testing.T) {
	h := postgresHandler{}
	if got := h.QuoteIdentifier("users"); got != `"users"` {
		t.Errorf("QuoteIdentifier(users) = %s", got)
	}
	if got := h.QuoteIdentifier(`weird"name`); got != `"weird""name"` {
		t.Errorf("QuoteIdentifier(weird\"name) = %s", got)
	}
}
