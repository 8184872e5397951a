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
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// LinkedServerConfig addresses the remote database behind a SQL Server
// linked server. DefaultSchema, when set, filters reflection queries that
// are not given an explicit schema.
type LinkedServerConfig struct {
	Server        string
	Database      string
	DefaultSchema string
}

// Complete reports whether both required settings are present.
func (c LinkedServerConfig) Complete() bool {
	return c.Server != "" && c.Database != ""
}

// LinkedDSNParams carries the linked-server settings extracted from a DSN
// query string before the driver parses it.
type LinkedDSNParams struct {
	Server      string
	Database    string
	Schema      string
	PKOverrides string
}

// linkedDSNKeys are consumed by ExtractLinkedDSNParams and must never reach
// the driver. The driver owns the plain "database" parameter, so the linked
// settings travel under linked_-prefixed names.
var linkedDSNKeys = []string{"linked_server", "linked_database", "linked_schema", "pk_overrides"}

// ExtractLinkedDSNParams pulls the linked-server parameters out of a
// URL-form DSN and returns the DSN with those parameters stripped. A DSN
// without linked parameters passes through byte for byte: only URL-form
// DSNs can carry them, and keyword/value DSNs (postgres, mysql) must never
// be re-encoded on the way to the driver.
func ExtractLinkedDSNParams(dsn string) (string, LinkedDSNParams, error) {
	var params LinkedDSNParams
	if dsn == "" || !strings.Contains(dsn, "://") {
		return dsn, params, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", params, fmt.Errorf("invalid DSN: %w", err)
	}
	q := u.Query()
	carriesLinked := false
	for _, key := range linkedDSNKeys {
		if q.Has(key) {
			carriesLinked = true
			break
		}
	}
	if !carriesLinked {
		return dsn, params, nil
	}
	params.Server = q.Get("linked_server")
	params.Database = q.Get("linked_database")
	params.Schema = q.Get("linked_schema")
	params.PKOverrides = q.Get("pk_overrides")
	for _, key := range linkedDSNKeys {
		q.Del(key)
	}
	u.RawQuery = q.Encode()
	return u.String(), params, nil
}

// ApplyLinkedDSNParams merges DSN-extracted settings into the config.
// Explicitly configured linked settings win: the server/database/schema
// triple is only taken from the DSN when the config is still incomplete.
// Override entries merge additively, last writer per key.
func (cfg *DatabaseConfig) ApplyLinkedDSNParams(p LinkedDSNParams) error {
	if !cfg.LinkedServer.Complete() && p.Server != "" && p.Database != "" {
		cfg.LinkedServer = LinkedServerConfig{
			Server:        p.Server,
			Database:      p.Database,
			DefaultSchema: p.Schema,
		}
	}
	if p.PKOverrides != "" {
		parsed, err := ParsePKOverrides(p.PKOverrides)
		if err != nil {
			return err
		}
		cfg.PKOverrides = MergePKOverrides(cfg.PKOverrides, parsed)
	}
	return nil
}

// ParsePKOverrides parses the delimited primary-key override form
// "schema.table=col1,col2;table=id" into a lookup table keyed by the
// lower-cased "schema.table" or "table" spelling. Empty entries between
// delimiters are dropped; entries without an '=', with an empty key, or
// with no surviving columns are format errors.
func ParsePKOverrides(raw string) (map[string][]string, error) {
	overrides := make(map[string][]string)
	if strings.TrimSpace(raw) == "" {
		return overrides, nil
	}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, cols, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("malformed primary-key override %q: missing '='", entry)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, fmt.Errorf("malformed primary-key override %q: empty table key", entry)
		}
		columns := splitColumns(cols)
		if len(columns) == 0 {
			return nil, fmt.Errorf("malformed primary-key override %q: no columns", entry)
		}
		overrides[key] = columns
	}
	return overrides, nil
}

// ParsePKOverrideMap parses the mapping form of primary-key overrides,
// with each value a comma-separated column list. Empty keys are dropped.
func ParsePKOverrideMap(raw map[string]string) (map[string][]string, error) {
	overrides := make(map[string][]string)
	for key, cols := range raw {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		columns := splitColumns(cols)
		if len(columns) == 0 {
			return nil, fmt.Errorf("malformed primary-key override for %q: no columns", key)
		}
		overrides[key] = columns
	}
	return overrides, nil
}

// MergePKOverrides merges src into dst, last writer wins per key.
func MergePKOverrides(dst, src map[string][]string) map[string][]string {
	if dst == nil {
		dst = make(map[string][]string, len(src))
	}
	for key, columns := range src {
		dst[key] = columns
	}
	return dst
}

func splitColumns(cols string) []string {
	var columns []string
	for _, col := range strings.Split(cols, ",") {
		col = strings.TrimSpace(col)
		if col != "" {
			columns = append(columns, col)
		}
	}
	return columns
}
