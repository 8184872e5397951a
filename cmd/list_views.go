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

var listViewsCmd = &cobra.Command{
	Use:     "list_views",
	Short:   "List the views of the reflected database",
	Example: `./db_schema_reflector list_views --dialect linkedserver --host sqlhost --username user --password pass --database localdb --linked-server LS --linked-database RemoteDb`,
	RunE:    runListViews,
}

func runListViews(cmd *cobra.Command, args []string) error {
	db, err := setupDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	views, err := db.ListViews(cmd.Context(), schemaOverride)
	if err != nil {
		return fmt.Errorf("failed to list views: %w", err)
	}
	for _, view := range views {
		fmt.Println(view)
	}
	return nil
}
