package database

import (
	"reflect"
	"testing"
)

func TestEffectiveSchema(t *testing.T) {
	tests := []struct {
		name       string
		explicit   string
		configured string
		want       string
	}{
		{"Explicit argument wins", "sales", "dbo", "sales"},
		{"Configured default applies when no argument", "", "dbo", "dbo"},
		{"Neither set means no filter", "", "", ""},
		{"Explicit without default", "audit", "", "audit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveSchema(tt.explicit, tt.configured); got != tt.want {
				t.Errorf("EffectiveSchema(%q, %q) = %q, want %q", tt.explicit, tt.configured, got, tt.want)
			}
		})
	}
}

func TestPKOverrideKey(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		table  string
		want   string
	}{
		{"Schema-qualified", "dbo", "Users", "dbo.users"},
		{"Schema-less", "", "Users", "users"},
		{"Mixed case schema", "Sales", "ORDERS", "sales.orders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PKOverrideKey(tt.schema, tt.table); got != tt.want {
				t.Errorf("PKOverrideKey(%q, %q) = %q, want %q", tt.schema, tt.table, got, tt.want)
			}
		})
	}
}

func TestLookupPKOverride(t *testing.T) {
	overrides := map[string][]string{
		"dbo.users": {"id", "tenant_id"},
		"users":     {"id"},
		"orders":    {"order_id"},
	}

	tests := []struct {
		name      string
		overrides map[string][]string
		table     string
		schema    string
		want      []string
		wantFound bool
	}{
		{"Schema-qualified key wins", overrides, "Users", "dbo", []string{"id", "tenant_id"}, true},
		{"Falls back to schema-less key", overrides, "Users", "sales", []string{"id"}, true},
		{"Schema-less lookup", overrides, "Orders", "", []string{"order_id"}, true},
		{"No entry", overrides, "events", "dbo", nil, false},
		{"Empty table", nil, "users", "dbo", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := LookupPKOverride(tt.overrides, tt.table, tt.schema)
			if found != tt.wantFound {
				t.Fatalf("LookupPKOverride(%q, %q) found = %v, want %v", tt.table, tt.schema, found, tt.wantFound)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("LookupPKOverride(%q, %q) = %v, want %v", tt.table, tt.schema, got, tt.want)
			}
		})
	}
}
