package database

import (
	"strings"
)

// EffectiveSchema resolves the schema filter for one reflection call.
// The explicit per-call argument wins over the configured default; an empty
// result means no filter is applied.
func EffectiveSchema(explicit, configured string) string {
	if explicit != "" {
		return explicit
	}
	return configured
}

// PKOverrideKey builds the lookup key for the primary-key override table:
// lower-cased "schema.table" when a schema is known, else "table".
func PKOverrideKey(schema, table string) string {
	if schema != "" {
		return strings.ToLower(schema + "." + table)
	}
	return strings.ToLower(table)
}

// LookupPKOverride consults the override table for a table's primary key.
// The schema-qualified key wins over the schema-less key.
func LookupPKOverride(overrides map[string][]string, table, schema string) ([]string, bool) {
	if len(overrides) == 0 {
		return nil, false
	}
	if schema != "" {
		if columns, ok := overrides[PKOverrideKey(schema, table)]; ok {
			return columns, true
		}
	}
	columns, ok := overrides[PKOverrideKey("", table)]
	return columns, ok
}
