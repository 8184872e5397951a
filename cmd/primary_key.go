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

var primaryKeyTable string

var primaryKeyCmd = &cobra.Command{
	Use:     "primary_key",
	Short:   "Print the ordered primary-key columns of a table",
	Long:    `Prints the primary-key columns of one table in key order. Configured overrides (--pk-overrides) are consulted before the catalog; when the catalog constraint views are not readable the result is empty rather than an error.`,
	Example: `./db_schema_reflector primary_key --table users --dialect linkedserver --host sqlhost --username user --password pass --database localdb --linked-server LS --linked-database RemoteDb --pk-overrides "dbo.users=id"`,
	RunE:    runPrimaryKey,
}

func runPrimaryKey(cmd *cobra.Command, args []string) error {
	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	columns, err := db.GetPrimaryKey(cmd.Context(), primaryKeyTable, schemaOverride)
	if err != nil {
		return fmt.Errorf("failed to get primary key: %w", err)
	}
	if len(columns) == 0 {
		fmt.Printf("no primary key found for table: %s\n", primaryKeyTable)
		return nil
	}
	for _, column := range columns {
		fmt.Println(column)
	}
	return nil
}

func init() {
	primaryKeyCmd.Flags().StringVar(&primaryKeyTable, "table", "", "Table name - MANDATORY")
	primaryKeyCmd.MarkFlagRequired("table")
}
