package schema

import (
	"context"
	"sort"
)

// Field declares one logical attribute and the physical column names it may have,
// in order of preference.
type Field struct {
	Name       string
	Table      string
	Candidates []string
}

// Capabilities maps logical fields to the physical columns resolved for the current
// request. The zero value reports everything as absent.
type Capabilities struct {
	tables  map[string]bool
	columns map[string]string
	types   map[string]string
	tableOf map[string]string
}

// Resolve checks each table once and fetches all of its candidate columns in one
// lookup. Fields of a missing table are absent without querying their columns.
func Resolve(ctx context.Context, prober Prober, fields ...Field) Capabilities {
	caps := Capabilities{
		tables:  make(map[string]bool),
		columns: make(map[string]string),
		types:   make(map[string]string),
		tableOf: make(map[string]string),
	}

	var order []string
	candidates := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, f := range fields {
		caps.tableOf[f.Name] = f.Table
		if seen[f.Table] == nil {
			seen[f.Table] = map[string]bool{}
			order = append(order, f.Table)
		}
		for _, candidate := range f.Candidates {
			if !seen[f.Table][candidate] {
				seen[f.Table][candidate] = true
				candidates[f.Table] = append(candidates[f.Table], candidate)
			}
		}
	}

	found := make(map[string]ColumnTypes, len(order))
	for _, table := range order {
		present := prober.HasTable(ctx, table)
		caps.tables[table] = present
		if present {
			found[table] = prober.Columns(ctx, table, candidates[table]...)
		}
	}

	for _, f := range fields {
		columns := found[f.Table]
		for _, candidate := range f.Candidates {
			if dataType, ok := columns[candidate]; ok {
				caps.columns[f.Name] = candidate
				caps.types[f.Name] = dataType
				break
			}
		}
	}

	return caps
}

// Numeric reports whether f resolved to a column with a numeric data type.
func (c Capabilities) Numeric(f Field) bool {
	if _, ok := c.columns[f.Name]; !ok {
		return false
	}
	return IsNumericType(c.types[f.Name])
}

// Column returns the physical column for f.
func (c Capabilities) Column(f Field) (string, bool) {
	column, ok := c.columns[f.Name]
	return column, ok
}

// Has reports whether f resolved to a column.
func (c Capabilities) Has(f Field) bool {
	_, ok := c.columns[f.Name]
	return ok
}

// HasAll reports whether every field resolved.
func (c Capabilities) HasAll(fields ...Field) bool {
	for _, f := range fields {
		if !c.Has(f) {
			return false
		}
	}
	return true
}

// HasTable reports whether the table was found.
func (c Capabilities) HasTable(table string) bool {
	return c.tables[table]
}

// AllowList returns map[table]map[column]bool of every resolved column, suitable
// for querybuilder WithSchema.
func (c Capabilities) AllowList() map[string]map[string]bool {
	allow := make(map[string]map[string]bool)
	for table, present := range c.tables {
		if present {
			allow[table] = map[string]bool{}
		}
	}
	for name, column := range c.columns {
		table := c.tableOf[name]
		if allow[table] == nil {
			allow[table] = map[string]bool{}
		}
		allow[table][column] = true
	}
	return allow
}

// Snapshot describes the resolution for diagnostics.
type Snapshot struct {
	Tables  map[string]bool   `json:"tables"`
	Columns map[string]string `json:"columns"`
	Missing []string          `json:"missing"`
}

// Snapshot returns a copy of the resolution.
func (c Capabilities) Snapshot() Snapshot {
	snap := Snapshot{
		Tables:  make(map[string]bool, len(c.tables)),
		Columns: make(map[string]string, len(c.columns)),
		Missing: []string{},
	}
	for table, ok := range c.tables {
		snap.Tables[table] = ok
	}
	for name, column := range c.columns {
		snap.Columns[name] = column
	}
	for name := range c.tableOf {
		if _, ok := c.columns[name]; !ok {
			snap.Missing = append(snap.Missing, name)
		}
	}
	sort.Strings(snap.Missing)
	return snap
}
