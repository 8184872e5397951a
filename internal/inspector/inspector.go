// Package inspector walks a reflected catalog into a schema snapshot:
// tables with their primary keys and columns, views with their stored
// definitions.
package inspector

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sqlbridge/db-schema-reflector/internal/database"
)

type Inspector struct {
	dbAdapter database.DBAdapter
	retryOpts RetryOptions
}

func New(db database.DBAdapter) *Inspector {
	return &Inspector{
		dbAdapter: db,
		retryOpts: DefaultRetryOptions,
	}
}

// TableSnapshot is one table's reflected state.
type TableSnapshot struct {
	Name       string
	PrimaryKey []string
	Columns    []database.Column
}

// ViewSnapshot is one view's name and best-effort definition. Definition is
// empty when the catalog hides it.
type ViewSnapshot struct {
	Name       string
	Definition string
}

// SchemaSnapshot aggregates one walk over the catalog.
type SchemaSnapshot struct {
	Database string
	Schema   string
	Tables   []TableSnapshot
	Views    []ViewSnapshot
}

type SnapshotParams struct {
	// Schema is the per-call schema override passed to every reflection call.
	Schema string
	// TableFilters restricts the walk to the named tables; a non-empty column
	// list further restricts which columns are reported for that table.
	TableFilters map[string][]string
	// Limit caps the number of tables walked; 0 means no cap.
	Limit int
}

// Snapshot walks tables then views. Per-table collection fans out into
// goroutines and runs under retry; failures are aggregated and reported
// together after the walk completes.
func (s *Inspector) Snapshot(ctx context.Context, params SnapshotParams) (*SchemaSnapshot, error) {
	startTime := time.Now()
	log.Println("INFO: Starting schema snapshot...")

	tables, err := s.dbAdapter.ListTables(ctx, params.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	filteredTables := filterTables(tables, params.TableFilters)
	if params.Limit > 0 && len(filteredTables) > params.Limit {
		filteredTables = filteredTables[:params.Limit]
	}
	if len(filteredTables) == 0 {
		log.Println("INFO: No tables match the provided filters (--tables).")
	}

	snapshot := &SchemaSnapshot{
		Database: s.dbAdapter.GetConfig().DBName,
		Schema:   params.Schema,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	errorChannel := make(chan error, len(filteredTables)*2)

	log.Printf("INFO: Walking %d filtered table(s)...", len(filteredTables))

	for _, tableName := range filteredTables {
		wg.Add(1)
		go func(table string) {
			defer wg.Done()
			tableLogPrefix := fmt.Sprintf("Table[%s]", table)

			ts, err := withRetry(ctx, s.retryOpts, func(ctx context.Context) (TableSnapshot, error) {
				return s.collectTable(ctx, table, params.Schema)
			})
			if err != nil {
				log.Printf("ERROR: %s Failed to collect snapshot: %v", tableLogPrefix, err)
				errorChannel <- fmt.Errorf("%s: %w", tableLogPrefix, err)
				return
			}
			ts.Columns = filterColumns(table, ts.Columns, params.TableFilters)

			mu.Lock()
			snapshot.Tables = append(snapshot.Tables, ts)
			mu.Unlock()
		}(tableName)
	}

	wg.Wait()
	close(errorChannel)

	var allErrors []error
	for err := range errorChannel {
		allErrors = append(allErrors, err)
	}
	if len(allErrors) > 0 {
		errorMessages := make([]string, len(allErrors))
		for i, e := range allErrors {
			errorMessages[i] = e.Error()
		}
		return nil, fmt.Errorf("encountered %d error(s) during snapshot:\n- %s",
			len(allErrors), strings.Join(errorMessages, "\n- "))
	}

	views, err := s.dbAdapter.ListViews(ctx, params.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	for _, viewName := range views {
		// Definitions are best-effort; a hidden definition leaves the
		// view listed with an empty body.
		definition, defErr := s.dbAdapter.GetViewDefinition(ctx, viewName, params.Schema)
		if defErr != nil {
			log.Printf("WARN: View[%s] Failed to fetch definition: %v", viewName, defErr)
			definition = ""
		}
		snapshot.Views = append(snapshot.Views, ViewSnapshot{Name: viewName, Definition: definition})
	}

	sort.Slice(snapshot.Tables, func(i, j int) bool { return snapshot.Tables[i].Name < snapshot.Tables[j].Name })
	sort.Slice(snapshot.Views, func(i, j int) bool { return snapshot.Views[i].Name < snapshot.Views[j].Name })

	log.Printf("INFO: Schema snapshot completed in %s. %d table(s), %d view(s).",
		time.Since(startTime), len(snapshot.Tables), len(snapshot.Views))
	return snapshot, nil
}

func (s *Inspector) collectTable(ctx context.Context, table, schema string) (TableSnapshot, error) {
	ts := TableSnapshot{Name: table}

	pk, err := s.dbAdapter.GetPrimaryKey(ctx, table, schema)
	if err != nil {
		return ts, &ErrCatalogQuery{Msg: fmt.Sprintf("primary key for %s", table), Err: err}
	}
	ts.PrimaryKey = pk

	columns, err := s.dbAdapter.ListColumns(ctx, table, schema)
	if err != nil {
		return ts, &ErrCatalogQuery{Msg: fmt.Sprintf("columns for %s", table), Err: err}
	}
	ts.Columns = columns
	return ts, nil
}

func filterTables(allTables []string, tableFilters map[string][]string) []string {
	if len(tableFilters) == 0 {
		return allTables
	}
	filtered := make([]string, 0, len(tableFilters))
	allowed := make(map[string]bool)
	for table := range tableFilters {
		allowed[table] = true
	}
	for _, table := range allTables {
		if allowed[table] {
			filtered = append(filtered, table)
		}
	}
	sort.Strings(filtered)
	return filtered
}

func filterColumns(tableName string, allColumns []database.Column, tableFilters map[string][]string) []database.Column {
	if len(tableFilters) == 0 {
		return allColumns
	}
	specificColumnFilters, tableIncluded := tableFilters[tableName]
	if !tableIncluded || len(specificColumnFilters) == 0 {
		return allColumns
	}
	filtered := make([]database.Column, 0, len(specificColumnFilters))
	allowed := make(map[string]bool)
	for _, colName := range specificColumnFilters {
		allowed[colName] = true
	}
	for _, col := range allColumns {
		if allowed[col.Name] {
			filtered = append(filtered, col)
		}
	}
	return filtered
}

// FormatSnapshotAsText renders a snapshot with tables grouped before views,
// both ordered by name.
func FormatSnapshotAsText(snapshot *SchemaSnapshot) string {
	if snapshot == nil || (len(snapshot.Tables) == 0 && len(snapshot.Views) == 0) {
		return "No tables or views found.\n"
	}
	var buffer bytes.Buffer
	for _, table := range snapshot.Tables {
		buffer.WriteString(fmt.Sprintf("--- Table: %s ---\n", table.Name))
		if len(table.PrimaryKey) > 0 {
			buffer.WriteString(fmt.Sprintf("  Primary Key: (%s)\n", strings.Join(table.PrimaryKey, ", ")))
		}
		for _, col := range table.Columns {
			line := fmt.Sprintf("  Column: %s %s nullable=%t", col.Name, col.Type.String(), col.Nullable)
			if col.Default.Valid {
				line += fmt.Sprintf(" default=%s", col.Default.String)
			}
			buffer.WriteString(line + "\n")
		}
		buffer.WriteString("\n")
	}
	for _, view := range snapshot.Views {
		buffer.WriteString(fmt.Sprintf("--- View: %s ---\n", view.Name))
		if view.Definition != "" {
			buffer.WriteString(fmt.Sprintf("  Definition: %s\n", strings.TrimSpace(view.Definition)))
		} else {
			buffer.WriteString("  Definition: (not available)\n")
		}
		buffer.WriteString("\n")
	}
	return buffer.String()
}
