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

// Package sqltype turns textual catalog type descriptions (DATA_TYPE plus
// the size/precision columns of INFORMATION_SCHEMA.COLUMNS) into structured
// type descriptors.
package sqltype

import (
	"database/sql"
	"fmt"
	"strings"
)

// Family controls which catalog size columns parameterize a type name.
type Family int

const (
	// FamilyPlain types take no parameters (int, date, text, ...).
	FamilyPlain Family = iota
	// FamilyCharacter types take a length from CHARACTER_MAXIMUM_LENGTH.
	FamilyCharacter
	// FamilyDecimal types take precision/scale from NUMERIC_PRECISION/_SCALE.
	FamilyDecimal
	// FamilyDateTime types take a precision from DATETIME_PRECISION.
	FamilyDateTime
)

// unboundedLength is the catalog sentinel for MAX-sized character and
// binary columns (varchar(max), nvarchar(max), varbinary(max)).
const unboundedLength = -1

// Type is a resolved column type. The zero value is the untyped
// placeholder used when a catalog name is unknown or construction fails.
type Type struct {
	Name      string
	Length    *int64
	Precision *int64
	Scale     *int64
}

// IsNull reports whether t is the untyped placeholder.
func (t Type) IsNull() bool {
	return t.Name == ""
}

func (t Type) String() string {
	switch {
	case t.Name == "":
		return "NULL"
	case t.Length != nil:
		return fmt.Sprintf("%s(%d)", t.Name, *t.Length)
	case t.Precision != nil && t.Scale != nil:
		return fmt.Sprintf("%s(%d,%d)", t.Name, *t.Precision, *t.Scale)
	case t.Precision != nil:
		return fmt.Sprintf("%s(%d)", t.Name, *t.Precision)
	default:
		return t.Name
	}
}

// Catalog maps lower-cased catalog type names to their parameterization
// family. Names absent from the catalog resolve to the placeholder.
type Catalog map[string]Family

// Resolve maps a textual type name and the nullable catalog size columns to
// a Type. It never fails: unknown names and invalid parameter combinations
// degrade to the untyped placeholder.
func (c Catalog) Resolve(name string, charLen, numPrec, numScale, dtPrec *int64) Type {
	if name == "" {
		return Type{}
	}
	norm := strings.ToLower(strings.TrimSpace(name))
	family, ok := c[norm]
	if !ok {
		return Type{}
	}
	t, err := construct(norm, family, charLen, numPrec, numScale, dtPrec)
	if err != nil {
		return Type{}
	}
	return t
}

// FromCatalogRow resolves a scanned INFORMATION_SCHEMA.COLUMNS row. NULL
// catalog values become absent parameters.
func (c Catalog) FromCatalogRow(dataType sql.NullString, charLen, numPrec, numScale, dtPrec sql.NullInt64) Type {
	if !dataType.Valid {
		return Type{}
	}
	return c.Resolve(dataType.String, nullableInt(charLen), nullableInt(numPrec), nullableInt(numScale), nullableInt(dtPrec))
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func construct(name string, family Family, charLen, numPrec, numScale, dtPrec *int64) (Type, error) {
	switch family {
	case FamilyCharacter:
		if charLen == nil || *charLen == unboundedLength {
			return Type{Name: name}, nil
		}
		if *charLen < 0 {
			return Type{}, fmt.Errorf("invalid character length %d for %s", *charLen, name)
		}
		return Type{Name: name, Length: charLen}, nil
	case FamilyDecimal:
		if numPrec == nil {
			return Type{Name: name}, nil
		}
		if *numPrec < 0 {
			return Type{}, fmt.Errorf("invalid precision %d for %s", *numPrec, name)
		}
		if numScale == nil {
			return Type{Name: name, Precision: numPrec}, nil
		}
		if *numScale < 0 {
			return Type{}, fmt.Errorf("invalid scale %d for %s", *numScale, name)
		}
		return Type{Name: name, Precision: numPrec, Scale: numScale}, nil
	case FamilyDateTime:
		if dtPrec == nil {
			return Type{Name: name}, nil
		}
		if *dtPrec < 0 {
			return Type{}, fmt.Errorf("invalid datetime precision %d for %s", *dtPrec, name)
		}
		return Type{Name: name, Precision: dtPrec}, nil
	default:
		return Type{Name: name}, nil
	}
}

// SQLServer returns the type catalog for SQL Server databases, shared by the
// linked-server and direct dialects. Only the six bounded character/binary
// names carry a length; text/ntext/image report a length in the catalog but
// do not accept one.
func SQLServer() Catalog {
	return Catalog{
		"char":      FamilyCharacter,
		"nchar":     FamilyCharacter,
		"varchar":   FamilyCharacter,
		"nvarchar":  FamilyCharacter,
		"binary":    FamilyCharacter,
		"varbinary": FamilyCharacter,

		"decimal": FamilyDecimal,
		"numeric": FamilyDecimal,

		"datetime2":      FamilyDateTime,
		"time":           FamilyDateTime,
		"datetimeoffset": FamilyDateTime,

		"text":             FamilyPlain,
		"ntext":            FamilyPlain,
		"image":            FamilyPlain,
		"bit":              FamilyPlain,
		"tinyint":          FamilyPlain,
		"smallint":         FamilyPlain,
		"int":              FamilyPlain,
		"bigint":           FamilyPlain,
		"float":            FamilyPlain,
		"real":             FamilyPlain,
		"money":            FamilyPlain,
		"smallmoney":       FamilyPlain,
		"date":             FamilyPlain,
		"datetime":         FamilyPlain,
		"smalldatetime":    FamilyPlain,
		"timestamp":        FamilyPlain,
		"rowversion":       FamilyPlain,
		"uniqueidentifier": FamilyPlain,
		"xml":              FamilyPlain,
		"sql_variant":      FamilyPlain,
	}
}

// MySQL returns the type catalog for MySQL databases.
func MySQL() Catalog {
	return Catalog{
		"char":      FamilyCharacter,
		"varchar":   FamilyCharacter,
		"binary":    FamilyCharacter,
		"varbinary": FamilyCharacter,

		"decimal": FamilyDecimal,
		"numeric": FamilyDecimal,

		"datetime":  FamilyDateTime,
		"time":      FamilyDateTime,
		"timestamp": FamilyDateTime,

		"tinytext":   FamilyPlain,
		"text":       FamilyPlain,
		"mediumtext": FamilyPlain,
		"longtext":   FamilyPlain,
		"tinyblob":   FamilyPlain,
		"blob":       FamilyPlain,
		"mediumblob": FamilyPlain,
		"longblob":   FamilyPlain,
		"bit":        FamilyPlain,
		"tinyint":    FamilyPlain,
		"smallint":   FamilyPlain,
		"mediumint":  FamilyPlain,
		"int":        FamilyPlain,
		"integer":    FamilyPlain,
		"bigint":     FamilyPlain,
		"float":      FamilyPlain,
		"double":     FamilyPlain,
		"date":       FamilyPlain,
		"year":       FamilyPlain,
		"json":       FamilyPlain,
		"enum":       FamilyPlain,
		"set":        FamilyPlain,
	}
}

// Postgres returns the type catalog for PostgreSQL databases. Names match
// the spellings information_schema reports (e.g. "character varying", not
// "varchar"), with the short aliases included for callers that normalize.
func Postgres() Catalog {
	return Catalog{
		"character varying": FamilyCharacter,
		"character":         FamilyCharacter,
		"varchar":           FamilyCharacter,
		"char":              FamilyCharacter,

		"numeric": FamilyDecimal,
		"decimal": FamilyDecimal,

		"timestamp without time zone": FamilyDateTime,
		"timestamp with time zone":    FamilyDateTime,
		"time without time zone":      FamilyDateTime,
		"time with time zone":         FamilyDateTime,
		"timestamp":                   FamilyDateTime,
		"time":                        FamilyDateTime,
		"interval":                    FamilyDateTime,

		"text":             FamilyPlain,
		"bytea":            FamilyPlain,
		"boolean":          FamilyPlain,
		"smallint":         FamilyPlain,
		"integer":          FamilyPlain,
		"bigint":           FamilyPlain,
		"real":             FamilyPlain,
		"double precision": FamilyPlain,
		"money":            FamilyPlain,
		"date":             FamilyPlain,
		"uuid":             FamilyPlain,
		"json":             FamilyPlain,
		"jsonb":            FamilyPlain,
		"inet":             FamilyPlain,
		"cidr":             FamilyPlain,
		"macaddr":          FamilyPlain,
		"name":             FamilyPlain,
		"oid":              FamilyPlain,
	}
}
