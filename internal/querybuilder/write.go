package querybuilder

import (
	"errors"
	"fmt"
	"strings"
)

type assignment struct {
	column string
	param  Param
}

func validateTable(table string, schema map[string]map[string]bool) error {
	if table == "" {
		return errors.New("table required")
	}
	if !ValidIdentifier(table) {
		return fmt.Errorf("invalid table: %s", table)
	}
	if schema != nil {
		if _, ok := schema[table]; !ok {
			return fmt.Errorf("invalid table: %s", table)
		}
	}
	return nil
}

func validateAssignments(table string, sets []assignment, schema map[string]map[string]bool) error {
	if len(sets) == 0 {
		return errors.New("no columns to write")
	}
	seen := make(map[string]struct{}, len(sets))
	for _, s := range sets {
		if !ValidIdentifier(s.column) {
			return fmt.Errorf("invalid column: %s", s.column)
		}
		if schema != nil && !schema[table][s.column] {
			return fmt.Errorf("invalid column: %s.%s", table, s.column)
		}
		if _, dup := seen[s.column]; dup {
			return fmt.Errorf("duplicate column: %s", s.column)
		}
		seen[s.column] = struct{}{}
	}
	return nil
}

// InsertQuery builds an INSERT statement.
type InsertQuery struct {
	table         string
	sets          []assignment
	returning     string
	allowedSchema map[string]map[string]bool
}

// Insert starts an INSERT INTO table statement.
func Insert(table string) *InsertQuery {
	return &InsertQuery{table: table}
}

// WithSchema enables allow-list validation.
func (q *InsertQuery) WithSchema(schema map[string]map[string]bool) *InsertQuery {
	q.allowedSchema = schema
	return q
}

// Set adds a column value.
func (q *InsertQuery) Set(column string, value Param) *InsertQuery {
	q.sets = append(q.sets, assignment{column: column, param: value})
	return q
}

// SetIf adds the column value only when ok is true.
func (q *InsertQuery) SetIf(ok bool, column string, value Param) *InsertQuery {
	if !ok {
		return q
	}
	return q.Set(column, value)
}

// Returning appends RETURNING column.
func (q *InsertQuery) Returning(column string) *InsertQuery {
	q.returning = column
	return q
}

// Build renders the statement.
func (q *InsertQuery) Build() (Statement, error) {
	if err := validateTable(q.table, q.allowedSchema); err != nil {
		return Statement{}, err
	}
	if err := validateAssignments(q.table, q.sets, q.allowedSchema); err != nil {
		return Statement{}, err
	}

	cols := make([]string, 0, len(q.sets))
	marks := make([]string, 0, len(q.sets))
	params := make([]Param, 0, len(q.sets))
	for _, s := range q.sets {
		cols = append(cols, s.column)
		marks = append(marks, "?")
		params = append(params, s.param)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", q.table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	if q.returning != "" {
		if !ValidIdentifier(q.returning) {
			return Statement{}, fmt.Errorf("invalid returning column: %s", q.returning)
		}
		sql += " RETURNING " + q.returning
	}
	return Statement{SQL: sql, Params: params}, nil
}

// UpdateQuery builds an UPDATE statement.
type UpdateQuery struct {
	table         string
	sets          []assignment
	where         *FilterGroup
	allowedSchema map[string]map[string]bool
}

// Update starts an UPDATE table statement.
func Update(table string) *UpdateQuery {
	return &UpdateQuery{table: table}
}

// WithSchema enables allow-list validation.
func (q *UpdateQuery) WithSchema(schema map[string]map[string]bool) *UpdateQuery {
	q.allowedSchema = schema
	return q
}

// Set adds a column assignment.
func (q *UpdateQuery) Set(column string, value Param) *UpdateQuery {
	q.sets = append(q.sets, assignment{column: column, param: value})
	return q
}

// SetIf adds the assignment only when ok is true.
func (q *UpdateQuery) SetIf(ok bool, column string, value Param) *UpdateQuery {
	if !ok {
		return q
	}
	return q.Set(column, value)
}

// Filter appends an item to the root AND group.
func (q *UpdateQuery) Filter(item interface{}) *UpdateQuery {
	q.where = appendToRoot(q.where, item)
	return q
}

// Build renders the statement. An UPDATE without filters is rejected.
func (q *UpdateQuery) Build() (Statement, error) {
	if err := validateTable(q.table, q.allowedSchema); err != nil {
		return Statement{}, err
	}
	if err := validateAssignments(q.table, q.sets, q.allowedSchema); err != nil {
		return Statement{}, err
	}
	if q.where == nil || len(q.where.Items) == 0 {
		return Statement{}, errors.New("update requires a filter")
	}

	params := make([]Param, 0, len(q.sets))
	parts := make([]string, 0, len(q.sets))
	for _, s := range q.sets {
		parts = append(parts, s.column+" = ?")
		params = append(params, s.param)
	}

	r := renderer{aliases: map[string]string{"": q.table}, schema: q.allowedSchema, params: &params}
	clause, err := r.group(*q.where, 0)
	if err != nil {
		return Statement{}, err
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", q.table, strings.Join(parts, ", "), clause)
	return Statement{SQL: sql, Params: params}, nil
}

// DeleteQuery builds a DELETE statement.
type DeleteQuery struct {
	table         string
	where         *FilterGroup
	allowedSchema map[string]map[string]bool
}

// Delete starts a DELETE FROM table statement.
func Delete(table string) *DeleteQuery {
	return &DeleteQuery{table: table}
}

// WithSchema enables allow-list validation.
func (q *DeleteQuery) WithSchema(schema map[string]map[string]bool) *DeleteQuery {
	q.allowedSchema = schema
	return q
}

// Filter appends an item to the root AND group.
func (q *DeleteQuery) Filter(item interface{}) *DeleteQuery {
	q.where = appendToRoot(q.where, item)
	return q
}

// Build renders the statement. A DELETE without filters is rejected.
func (q *DeleteQuery) Build() (Statement, error) {
	if err := validateTable(q.table, q.allowedSchema); err != nil {
		return Statement{}, err
	}
	if q.where == nil || len(q.where.Items) == 0 {
		return Statement{}, errors.New("delete requires a filter")
	}

	var params []Param
	r := renderer{aliases: map[string]string{"": q.table}, schema: q.allowedSchema, params: &params}
	clause, err := r.group(*q.where, 0)
	if err != nil {
		return Statement{}, err
	}

	return Statement{SQL: fmt.Sprintf("DELETE FROM %s WHERE %s", q.table, clause), Params: params}, nil
}
