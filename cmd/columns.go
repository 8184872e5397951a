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

var columnsTable string

var columnsCmd = &cobra.Command{
	Use:     "columns",
	Short:   "Print the column descriptors of a table",
	Long:    `Prints one line per column, in ordinal position order: name, resolved type, nullability, and the default expression when one exists.`,
	Example: `./db_schema_reflector columns --table users --dialect linkedserver --host sqlhost --username user --password pass --database localdb --linked-server LS --linked-database RemoteDb --linked-schema dbo`,
	RunE:    runColumns,
}

func runColumns(cmd *cobra.Command, args []string) error {
	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	columns, err := db.ListColumns(cmd.Context(), columnsTable, schemaOverride)
	if err != nil {
		return fmt.Errorf("failed to list columns: %w", err)
	}
	for _, col := range columns {
		line := fmt.Sprintf("%s: %s nullable=%t", col.Name, col.Type.String(), col.Nullable)
		if col.Default.Valid {
			line += fmt.Sprintf(" default=%s", col.Default.String)
		}
		fmt.Println(line)
	}
	return nil
}

func init() {
	columnsCmd.Flags().StringVar(&columnsTable, "table", "", "Table name - MANDATORY")
	columnsCmd.MarkFlagRequired("table")
}
