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
package utils

import (
	"fmt"
	"strings"
)

func GetDefaultOutputFilePath(dbName, commandName string) string {
	switch commandName {
	case "snapshot":
		return fmt.Sprintf("%s_schema.txt", dbName)
	default:
		return fmt.Sprintf("%s_%s.txt", dbName, commandName)
	}
}

// ParseTablesFlag parses a table filter of the form
// "table1[col1,col2],table2" into a table -> columns map. A table without a
// bracket list maps to nil, meaning all columns.
func ParseTablesFlag(tablesFlag string) (map[string][]string, error) {
	tableColumns := make(map[string][]string)
	if tablesFlag == "" {
		return tableColumns, nil
	}

	// strip any whitespace
	tablesFlag = strings.ReplaceAll(tablesFlag, " ", "")

	// Split by comma, but only if the comma is not within square brackets
	parts := SplitOutsideBrackets(tablesFlag)

	for _, part := range parts {
		part = strings.TrimSpace(part)

		// Check if there are columns specified
		bracketStart := strings.Index(part, "[")
		if bracketStart != -1 {
			bracketEnd := strings.Index(part, "]")
			if bracketEnd == -1 {
				return nil, fmt.Errorf("missing closing bracket in: %s", part)
			}

			tableName := strings.TrimSpace(part[:bracketStart])
			columnsStr := strings.TrimSpace(part[bracketStart+1 : bracketEnd])

			// Split columns by comma and trim spaces
			columns := strings.Split(columnsStr, ",")
			var trimmedColumns []string
			for _, col := range columns {
				trimmedColumns = append(trimmedColumns, strings.TrimSpace(col))
			}
			tableColumns[tableName] = trimmedColumns
		} else {
			// No columns specified, just table name
			tableColumns[part] = nil
		}
	}

	return tableColumns, nil
}

// SplitOutsideBrackets Helper function to split string by commas that are not within brackets
func SplitOutsideBrackets(s string) []string {
	var result []string
	var current strings.Builder
	inBrackets := false

	for _, char := range s {
		switch char {
		case '[':
			inBrackets = true
			current.WriteRune(char)
		case ']':
			inBrackets = false
			current.WriteRune(char)
		case ',':
			if inBrackets {
				current.WriteRune(char)
			} else {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}

	// Add the last part
	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}
