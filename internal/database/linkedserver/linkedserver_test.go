package linkedserver

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sqlbridge/db-schema-reflector/internal/config"
	"github.com/sqlbridge/db-schema-reflector/internal/database"
)

func newLinkedDB(t *testing.T, cfg config.DatabaseConfig) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return &database.DB{Pool: mockDB, Handler: linkedServerHandler{}, Config: cfg}, mock
}

func linkedConfig(defaultSchema string) config.DatabaseConfig {
	return config.DatabaseConfig{
		Dialect: "linkedserver",
		LinkedServer: config.LinkedServerConfig{
			Server:        "LS",
			Database:      "RemoteDb",
			DefaultSchema: defaultSchema,
		},
	}
}

func TestBracketIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		ident   string
		want    string
		wantErr bool
	}{
		{"Plain name", "Users", "[Users]", false},
		{"Name with spaces", "Order Details", "[Order Details]", false},
		{"Empty", "", "", true},
		{"Opening bracket", "bad[name", "", true},
		{"Closing bracket", "bad]name", "", true},
		{"Semicolon", "bad;name", "", true},
		{"Single quote", "bad'name", "", true},
		{"Newline", "bad\nname", "", true},
		{"Carriage return", "bad\rname", "", true},
		{"Tab", "bad\tname", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bracketIdentifier(tt.ident)
			if (err != nil) != tt.wantErr {
				t.Fatalf("bracketIdentifier(%q) error = %v, wantErr %v", tt.ident, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("bracketIdentifier(%q) = %q, want %q", tt.ident, got, tt.want)
			}
		})
	}
}

func TestInformationSchemaPath(t *testing.T) {
	cfg := config.LinkedServerConfig{Server: "LS", Database: "RemoteDb"}
	got, err := informationSchemaPath(cfg, "TABLES")
	if err != nil {
		t.Fatalf("informationSchemaPath returned error: %v", err)
	}
	want := "[LS].[RemoteDb].[INFORMATION_SCHEMA].[TABLES]"
	if got != want {
		t.Errorf("informationSchemaPath = %q, want %q", got, want)
	}

	if _, err := informationSchemaPath(config.LinkedServerConfig{Server: "LS]", Database: "db"}, "TABLES"); err == nil {
		t.Error("expected error for server name containing a bracket")
	}
	if _, err := informationSchemaPath(config.LinkedServerConfig{Server: "LS", Database: "db;drop"}, "TABLES"); err == nil {
		t.Error("expected error for database name containing a semicolon")
	}
}

func TestReflectionRequiresConfig(t *testing.T) {
	db, _ := newLinkedDB(t, config.DatabaseConfig{Dialect: "linkedserver"})
	h := linkedServerHandler{}
	ctx := context.Background()

	if _, err := h.ListTables(ctx, db, ""); err == nil || !strings.Contains(err.Error(), "linked_server") {
		t.Errorf("ListTables without config: got err %v, want configuration error naming linked_server", err)
	}
	if _, err := h.ListViews(ctx, db, ""); err == nil {
		t.Error("ListViews without config: expected configuration error")
	}
	if _, err := h.GetViewDefinition(ctx, db, "v", ""); err == nil {
		t.Error("GetViewDefinition without config: expected configuration error")
	}
	if _, err := h.GetPrimaryKey(ctx, db, "t", ""); err == nil {
		t.Error("GetPrimaryKey without config: expected configuration error")
	}
	if _, err := h.ListColumns(ctx, db, "t", ""); err == nil {
		t.Error("ListColumns without config: expected configuration error")
	}
}

func TestListTables(t *testing.T) {
	tests := []struct {
		name          string
		defaultSchema string
		schemaArg     string
		mockSetup     func(sqlmock.Sqlmock)
		want          []string
	}{
		{
			name: "No schema filter",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders").AddRow("users")
				mock.ExpectQuery(`SELECT TABLE_NAME FROM \[LS\]\.\[RemoteDb\]\.\[INFORMATION_SCHEMA\]\.\[TABLES\] WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`).
					WillReturnRows(rows)
			},
			want: []string{"orders", "users"},
		},
		{
			name:          "Configured default schema filters",
			defaultSchema: "dbo",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("users")
				mock.ExpectQuery(`WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = @schema ORDER BY TABLE_NAME`).
					WithArgs(sql.Named("schema", "dbo")).
					WillReturnRows(rows)
			},
			want: []string{"users"},
		},
		{
			name:          "Explicit schema wins over default",
			defaultSchema: "dbo",
			schemaArg:     "sales",
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
			db, mock := newLinkedDB(t, linkedConfig(tt.defaultSchema))
			tt.mockSetup(mock)

			got, err := linkedServerHandler{}.ListTables(context.Background(), db, tt.schemaArg)
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

func TestListViews(t *testing.T) {
	db, mock := newLinkedDB(t, linkedConfig("dbo"))
	rows := sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("active_users").AddRow("order_totals")
	mock.ExpectQuery(`SELECT TABLE_NAME FROM \[LS\]\.\[RemoteDb\]\.\[INFORMATION_SCHEMA\]\.\[VIEWS\] WHERE TABLE_SCHEMA = @schema ORDER BY TABLE_NAME`).
		WithArgs(sql.Named("schema", "dbo")).
		WillReturnRows(rows)

	got, err := linkedServerHandler{}.ListViews(context.Background(), db, "")
	if err != nil {
		t.Fatalf("ListViews returned error: %v", err)
	}
	want := []string{"active_users", "order_totals"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListViews = %v, want %v", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %v", err)
	}
}

func TestGetViewDefinition(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(sqlmock.Sqlmock)
		want      string
	}{
		{
			name: "Definition found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"VIEW_DEFINITION"}).AddRow("SELECT id FROM users")
				mock.ExpectQuery(`SELECT VIEW_DEFINITION FROM \[LS\]\.\[RemoteDb\]\.\[INFORMATION_SCHEMA\]\.\[VIEWS\] WHERE TABLE_NAME = @view_name`).
					WithArgs(sql.Named("view_name", "active_users")).
					WillReturnRows(rows)
			},
			want: "SELECT id FROM users",
		},
		{
			name: "Missing view yields empty definition",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT VIEW_DEFINITION`).
					WithArgs(sql.Named("view_name", "active_users")).
					WillReturnError(sql.ErrNoRows)
			},
			want: "",
		},
		{
			name: "Permission error is swallowed",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT VIEW_DEFINITION`).
					WithArgs(sql.Named("view_name", "active_users")).
					WillReturnError(errors.New("VIEW DEFINITION permission denied"))
			},
			want: "",
		},
		{
			name: "NULL definition yields empty string",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"VIEW_DEFINITION"}).AddRow(nil)
				mock.ExpectQuery(`SELECT VIEW_DEFINITION`).
					WithArgs(sql.Named("view_name", "active_users")).
					WillReturnRows(rows)
			},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newLinkedDB(t, linkedConfig(""))
			tt.mockSetup(mock)

			got, err := linkedServerHandler{}.GetViewDefinition(context.Background(), db, "active_users", "")
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

func TestGetPrimaryKey(t *testing.T) {
	catalogQuery := `SELECT KCU\.COLUMN_NAME FROM \[LS\]\.\[RemoteDb\]\.\[INFORMATION_SCHEMA\]\.\[TABLE_CONSTRAINTS\] AS TC JOIN \[LS\]\.\[RemoteDb\]\.\[INFORMATION_SCHEMA\]\.\[KEY_COLUMN_USAGE\] AS KCU`

	tests := []struct {
		name      string
		overrides map[string][]string
		schemaArg string
		mockSetup func(sqlmock.Sqlmock)
		want      []string
	}{
		{
			name:      "Schema-qualified override wins",
			overrides: map[string][]string{"dbo.users": {"tenant_id", "id"}, "users": {"id"}},
			schemaArg: "dbo",
			mockSetup: func(mock sqlmock.Sqlmock) {},
			want:      []string{"tenant_id", "id"},
		},
		{
			name:      "Schema-less override applies",
			overrides: map[string][]string{"users": {"id"}},
			schemaArg: "dbo",
			mockSetup: func(mock sqlmock.Sqlmock) {},
			want:      []string{"id"},
		},
		{
			name: "Catalog join when no override",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("order_id").AddRow("line_no")
				mock.ExpectQuery(catalogQuery).
					WithArgs(sql.Named("table_name", "users")).
					WillReturnRows(rows)
			},
			want: []string{"order_id", "line_no"},
		},
		{
			name: "Catalog failure yields empty key",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(catalogQuery).
					WithArgs(sql.Named("table_name", "users")).
					WillReturnError(errors.New("SELECT permission denied on TABLE_CONSTRAINTS"))
			},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := linkedConfig("")
			cfg.PKOverrides = tt.overrides
			db, mock := newLinkedDB(t, cfg)
			tt.mockSetup(mock)

			got, err := linkedServerHandler{}.GetPrimaryKey(context.Background(), db, "users", tt.schemaArg)
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

func TestListColumns(t *testing.T) {
	db, mock := newLinkedDB(t, linkedConfig("dbo"))
	columns := []string{"COLUMN_NAME", "DATA_TYPE", "CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION",
		"NUMERIC_SCALE", "DATETIME_PRECISION", "IS_NULLABLE", "COLUMN_DEFAULT"}
	rows := sqlmock.NewRows(columns).
		AddRow("id", "int", nil, 10, 0, nil, "NO", nil).
		AddRow("name", "nvarchar", 50, nil, nil, nil, "yes", "(N'unknown')").
		AddRow("notes", "nvarchar", -1, nil, nil, nil, "YES", nil).
		AddRow("price", "decimal", nil, 18, 2, nil, "NO", "((0))").
		AddRow("created_at", "datetime2", nil, nil, nil, 7, "NO", nil).
		AddRow("geo", "geography", nil, nil, nil, nil, "YES", nil)
	mock.ExpectQuery(`FROM \[LS\]\.\[RemoteDb\]\.\[INFORMATION_SCHEMA\]\.\[COLUMNS\] WHERE TABLE_NAME = @table_name AND TABLE_SCHEMA = @schema ORDER BY ORDINAL_POSITION`).
		WithArgs(sql.Named("table_name", "users"), sql.Named("schema", "dbo")).
		WillReturnRows(rows)

	got, err := linkedServerHandler{}.ListColumns(context.Background(), db, "users", "")
	if err != nil {
		t.Fatalf("ListColumns returned error: %v", err)
	}

	wantTypes := []string{"int", "nvarchar(50)", "nvarchar", "decimal(18,2)", "datetime2(7)", "NULL"}
	wantNullable := []bool{false, true, true, false, false, true}
	if len(got) != len(wantTypes) {
		t.Fatalf("ListColumns returned %d columns, want %d", len(got), len(wantTypes))
	}
	for i, col := range got {
		if col.Type.String() != wantTypes[i] {
			t.Errorf("column %s type = %q, want %q", col.Name, col.Type.String(), wantTypes[i])
		}
		if col.Nullable != wantNullable[i] {
			t.Errorf("column %s nullable = %v, want %v", col.Name, col.Nullable, wantNullable[i])
		}
	}
	if got[1].Default.String != "(N'unknown')" {
		t.Errorf("column name default = %q, want (N'unknown')", got[1].Default.String)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %v", err)
	}
}
