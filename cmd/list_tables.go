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
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listTablesCmd = &cobra.Command{
	Use:     "list_tables",
	Short:   "List the base tables of the reflected database",
	Long:    `Lists the base-table names of the reflected database, ordered by name. With the linkedserver dialect the listing is addressed through the configured linked server.`,
	Example: `./db_schema_reflector list_tables --dialect linkedserver --host sqlhost --username user --password pass --database localdb --linked-server LS --linked-database RemoteDb --linked-schema dbo`,
	RunE:    runListTables,
}

func runListTables(cmd *cobra.Command, args []string) error {
	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	tables, err := db.ListTables(cmd.Context(), schemaOverride)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	for _, table := range tables {
		fmt.Println(table)
	}
	return nil
}
