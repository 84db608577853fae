// Package schema discovers which optional tables and columns exist in the live
// database and exposes the result as a per-request capability set.
package schema

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Dialect selects the catalog views used for introspection.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Catalog answers existence questions about the schema and reports lookup failures.
type Catalog interface {
	LookupTable(ctx context.Context, table string) (bool, error)
	LookupColumns(ctx context.Context, table string, candidates []string) (ColumnTypes, error)
}

// ColumnTypes maps each present column to its lowercased declared data type.
// Absent columns have no key.
type ColumnTypes map[string]string

// Has reports whether column is present.
func (t ColumnTypes) Has(column string) bool {
	_, ok := t[column]
	return ok
}

// IsNumericType reports whether a catalog data type stores numbers, e.g.
// "integer", "smallint", "numeric(4,0)", "double precision" or "real".
func IsNumericType(dataType string) bool {
	t := strings.ToLower(strings.TrimSpace(dataType))
	for _, needle := range []string{"int", "numeric", "decimal", "real", "double", "float"} {
		if strings.Contains(t, needle) {
			return true
		}
	}
	return false
}

// SQLCatalog queries the database catalog: information_schema on PostgreSQL,
// sqlite_master and pragma_table_info on SQLite. Names are always bound.
type SQLCatalog struct {
	db         *gorm.DB
	dialect    Dialect
	schemaName string
}

// NewSQLCatalog constructs a catalog reader. schemaName is the PostgreSQL schema
// (defaults to "public") and is ignored on SQLite.
func NewSQLCatalog(db *gorm.DB, dialect Dialect, schemaName string) *SQLCatalog {
	if strings.TrimSpace(schemaName) == "" {
		schemaName = "public"
	}
	return &SQLCatalog{db: db, dialect: dialect, schemaName: schemaName}
}

// LookupTable reports whether the table exists.
func (c *SQLCatalog) LookupTable(ctx context.Context, table string) (bool, error) {
	var count int64
	var err error
	switch c.dialect {
	case DialectPostgres:
		err = c.db.WithContext(ctx).
			Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?", c.schemaName, table).
			Scan(&count).Error
	case DialectSQLite:
		err = c.db.WithContext(ctx).
			Raw("SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?", table).
			Scan(&count).Error
	default:
		return false, fmt.Errorf("unsupported dialect %q", c.dialect)
	}
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LookupColumns returns which of the candidate columns exist on the table, with
// their data types.
func (c *SQLCatalog) LookupColumns(ctx context.Context, table string, candidates []string) (ColumnTypes, error) {
	found := make(ColumnTypes, len(candidates))
	if len(candidates) == 0 {
		return found, nil
	}

	var rows []struct {
		Name     string
		DataType string
	}
	var err error
	switch c.dialect {
	case DialectPostgres:
		err = c.db.WithContext(ctx).
			Raw("SELECT column_name AS name, data_type FROM information_schema.columns WHERE table_schema = ? AND table_name = ? AND column_name IN ?", c.schemaName, table, candidates).
			Scan(&rows).Error
	case DialectSQLite:
		err = c.db.WithContext(ctx).
			Raw("SELECT name, type AS data_type FROM pragma_table_info(?) WHERE name IN ?", table, candidates).
			Scan(&rows).Error
	default:
		return nil, fmt.Errorf("unsupported dialect %q", c.dialect)
	}
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		found[row.Name] = strings.ToLower(strings.TrimSpace(row.DataType))
	}
	return found, nil
}
