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

var viewDefinitionName string

var viewDefinitionCmd = &cobra.Command{
	Use:     "view_definition",
	Short:   "Print the stored definition of a view",
	Long:    `Prints the stored definition of one view. Definitions are best-effort: when the catalog hides VIEW_DEFINITION or the view does not exist, a not-found message is printed instead of an error.`,
	Example: `./db_schema_reflector view_definition --view active_users --dialect linkedserver --host sqlhost --username user --password pass --database localdb --linked-server LS --linked-database RemoteDb`,
	RunE:    runViewDefinition,
}

func runViewDefinition(cmd *cobra.Command, args []string) error {
	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	definition, err := db.GetViewDefinition(cmd.Context(), viewDefinitionName, schemaOverride)
	if err != nil {
		return fmt.Errorf("failed to get view definition: %w", err)
	}
	if definition == "" {
		fmt.Printf("view definition not found: %s\n", viewDefinitionName)
		return nil
	}
	fmt.Println(definition)
	return nil
}

func init() {
	viewDefinitionCmd.Flags().StringVar(&viewDefinitionName, "view", "", "View name - MANDATORY")
	viewDefinitionCmd.MarkFlagRequired("view")
}
