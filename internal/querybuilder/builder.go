package querybuilder

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// maxFilterDepth bounds nested filter groups.
const maxFilterDepth = 8

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var allowedOperators = map[string]bool{
	"=": true, "!=": true, "<>": true, ">": true, "<": true, ">=": true, "<=": true,
	"IN": true, "LIKE": true, "IS NULL": true, "IS NOT NULL": true,
}

var allowedJoinTypes = map[string]bool{
	"INNER": true, "LEFT": true,
}

var allowedSortDir = map[string]bool{
	"ASC": true, "DESC": true,
}

// ValidIdentifier reports whether name can be interpolated as a table or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ColumnRef references a column, optionally qualified by a table alias.
type ColumnRef struct {
	TableAlias string
	ColumnName string
}

// Col parses "alias.column" or "column".
func Col(ref string) ColumnRef {
	parts := strings.Split(ref, ".")
	if len(parts) == 2 {
		return ColumnRef{TableAlias: parts[0], ColumnName: parts[1]}
	}
	return ColumnRef{ColumnName: ref}
}

func (c ColumnRef) String() string {
	if c.TableAlias == "" {
		return c.ColumnName
	}
	return c.TableAlias + "." + c.ColumnName
}

type projectionKind int

const (
	projectColumn projectionKind = iota
	projectLiteral
	projectAggregate
)

type projection struct {
	kind      projectionKind
	column    ColumnRef
	literal   Literal
	aggregate Aggregate
	as        string
}

// Join is a JOIN ... ON left = right clause.
type Join struct {
	Type  string
	Table string
	Alias string
	Left  ColumnRef
	Right ColumnRef
}

// Sort is one ORDER BY term.
type Sort struct {
	Column ColumnRef
	Dir    string
}

// Query builds a SELECT statement.
type Query struct {
	allowedSchema map[string]map[string]bool
	baseTable     string
	baseAlias     string
	projections   []projection
	joins         []Join
	where         *FilterGroup
	groupBy       []ColumnRef
	sorts         []Sort
	limit         int
	offset        int
	isCount       bool
	errors        []error
}

// New returns an empty SELECT builder.
func New() *Query {
	return &Query{}
}

// WithSchema enables allow-list validation for every table and column reference.
// The expected format is map[table]map[column]bool.
func (q *Query) WithSchema(schema map[string]map[string]bool) *Query {
	q.allowedSchema = schema
	return q
}

// From sets the base table and alias.
func (q *Query) From(table, alias string) *Query {
	q.baseTable = table
	q.baseAlias = alias
	return q
}

// Select adds required columns, each projected under its own column name.
func (q *Query) Select(refs ...string) *Query {
	for _, ref := range refs {
		col := Col(ref)
		q.projections = append(q.projections, projection{kind: projectColumn, column: col, as: col.ColumnName})
	}
	return q
}

// SelectAs adds a required column projected under a different name.
func (q *Query) SelectAs(ref, as string) *Query {
	q.projections = append(q.projections, projection{kind: projectColumn, column: Col(ref), as: as})
	return q
}

// SelectOptional projects alias.column AS as when present is true, and the fallback
// literal AS as otherwise. The output shape is the same either way.
func (q *Query) SelectOptional(alias, column string, present bool, as string, fallback Literal) *Query {
	if !present {
		q.projections = append(q.projections, projection{kind: projectLiteral, literal: fallback, as: as})
		return q
	}
	q.projections = append(q.projections, projection{
		kind:   projectColumn,
		column: ColumnRef{TableAlias: alias, ColumnName: column},
		as:     as,
	})
	return q
}

// SelectAggregate adds an aggregate projection.
func (q *Query) SelectAggregate(agg Aggregate, as string) *Query {
	q.projections = append(q.projections, projection{kind: projectAggregate, aggregate: agg, as: as})
	return q
}

// Count switches the statement to SELECT COUNT(*); projections, ordering and
// pagination are ignored.
func (q *Query) Count() *Query {
	q.isCount = true
	return q
}

// Join adds a JOIN table alias ON left = right clause.
func (q *Query) Join(joinType, table, alias, left, right string) *Query {
	q.joins = append(q.joins, Join{
		Type:  strings.ToUpper(joinType),
		Table: table,
		Alias: alias,
		Left:  Col(left),
		Right: Col(right),
	})
	return q
}

// JoinIf adds the join only when ok is true.
func (q *Query) JoinIf(ok bool, joinType, table, alias, left, right string) *Query {
	if !ok {
		return q
	}
	return q.Join(joinType, table, alias, left, right)
}

// Where replaces the root filter group.
func (q *Query) Where(group *FilterGroup) *Query {
	q.where = group
	return q
}

// Filter appends an item (Filter or *FilterGroup) to the root AND group.
func (q *Query) Filter(item interface{}) *Query {
	q.where = appendToRoot(q.where, item)
	return q
}

// FilterIf appends the item only when ok is true.
func (q *Query) FilterIf(ok bool, item interface{}) *Query {
	if !ok {
		return q
	}
	return q.Filter(item)
}

// GroupBy adds grouping columns.
func (q *Query) GroupBy(refs ...string) *Query {
	for _, ref := range refs {
		q.groupBy = append(q.groupBy, Col(ref))
	}
	return q
}

// OrderBy appends a sort column and direction.
func (q *Query) OrderBy(ref, dir string) *Query {
	q.sorts = append(q.sorts, Sort{Column: Col(ref), Dir: strings.ToUpper(dir)})
	return q
}

// Limit sets the maximum number of rows.
func (q *Query) Limit(limit int) *Query {
	q.limit = limit
	return q
}

// Offset sets the number of rows to skip.
func (q *Query) Offset(offset int) *Query {
	q.offset = offset
	return q
}

// Page applies a clamped page as LIMIT/OFFSET.
func (q *Query) Page(p Page) *Query {
	q.limit = p.Size
	q.offset = p.Offset()
	return q
}

// Build renders the statement.
func (q *Query) Build() (Statement, error) {
	var params []Param
	sql, err := q.render(&params)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql, Params: params}, nil
}

func (q *Query) render(params *[]Param) (string, error) {
	if len(q.errors) > 0 {
		return "", q.errors[0]
	}
	if q.baseTable == "" {
		return "", errors.New("base table required")
	}
	if !ValidIdentifier(q.baseTable) || (q.baseAlias != "" && !ValidIdentifier(q.baseAlias)) {
		return "", fmt.Errorf("invalid base table: %s", q.baseTable)
	}
	if q.allowedSchema != nil {
		if _, ok := q.allowedSchema[q.baseTable]; !ok {
			return "", fmt.Errorf("invalid base table: %s", q.baseTable)
		}
	}

	aliases, err := q.registerAliases()
	if err != nil {
		return "", err
	}
	r := renderer{aliases: aliases, schema: q.allowedSchema, params: params}

	var sb strings.Builder
	if q.isCount {
		sb.WriteString("SELECT COUNT(*)")
	} else if err := q.buildProjections(&sb, r); err != nil {
		return "", err
	}

	sb.WriteString(" FROM ")
	sb.WriteString(q.baseTable)
	if q.baseAlias != "" {
		sb.WriteString(" ")
		sb.WriteString(q.baseAlias)
	}

	for _, j := range q.joins {
		if err := r.validateJoin(j); err != nil {
			return "", err
		}
		sb.WriteString(fmt.Sprintf(" %s JOIN %s %s ON %s = %s", j.Type, j.Table, j.Alias, j.Left, j.Right))
	}

	if q.where != nil {
		clause, err := r.group(*q.where, 0)
		if err != nil {
			return "", err
		}
		if clause != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(clause)
		}
	}

	if q.isCount {
		return sb.String(), nil
	}

	if len(q.groupBy) > 0 {
		parts := make([]string, 0, len(q.groupBy))
		for _, col := range q.groupBy {
			if err := r.validateCol(col); err != nil {
				return "", fmt.Errorf("invalid group column: %w", err)
			}
			parts = append(parts, col.String())
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if len(q.sorts) > 0 {
		parts := make([]string, 0, len(q.sorts))
		for _, s := range q.sorts {
			if err := r.validateCol(s.Column); err != nil {
				return "", fmt.Errorf("invalid sort column: %w", err)
			}
			if !allowedSortDir[s.Dir] {
				return "", fmt.Errorf("invalid sort direction: %s", s.Dir)
			}
			parts = append(parts, s.Column.String()+" "+s.Dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if q.limit > 0 {
		*params = append(*params, Int(int64(q.limit)))
		sb.WriteString(" LIMIT ?")
		if q.offset > 0 {
			*params = append(*params, Int(int64(q.offset)))
			sb.WriteString(" OFFSET ?")
		}
	}

	return sb.String(), nil
}

func (q *Query) registerAliases() (map[string]string, error) {
	aliases := map[string]string{"": q.baseTable, q.baseTable: q.baseTable}
	if q.baseAlias != "" {
		aliases[q.baseAlias] = q.baseTable
	}
	for _, j := range q.joins {
		if j.Alias == "" {
			return nil, errors.New("join alias required")
		}
		if _, exists := aliases[j.Alias]; exists {
			return nil, fmt.Errorf("duplicate alias: %s", j.Alias)
		}
		aliases[j.Alias] = j.Table
	}
	return aliases, nil
}

func (q *Query) buildProjections(sb *strings.Builder, r renderer) error {
	sb.WriteString("SELECT ")
	if len(q.projections) == 0 {
		sb.WriteString("*")
		return nil
	}

	cols := make([]string, 0, len(q.projections))
	for _, p := range q.projections {
		if !ValidIdentifier(p.as) {
			return fmt.Errorf("invalid projection name: %s", p.as)
		}
		switch p.kind {
		case projectLiteral:
			cols = append(cols, p.literal.SQL()+" AS "+p.as)
		case projectAggregate:
			expr, err := r.aggregate(p.aggregate)
			if err != nil {
				return err
			}
			cols = append(cols, expr+" AS "+p.as)
		default:
			if err := r.validateCol(p.column); err != nil {
				return fmt.Errorf("invalid column: %w", err)
			}
			cols = append(cols, p.column.String()+" AS "+p.as)
		}
	}
	sb.WriteString(strings.Join(cols, ", "))
	return nil
}

// renderer validates identifiers and collects parameters for one statement.
type renderer struct {
	aliases map[string]string
	schema  map[string]map[string]bool
	params  *[]Param
}

func (r renderer) validateCol(ref ColumnRef) error {
	if !ValidIdentifier(ref.ColumnName) || (ref.TableAlias != "" && !ValidIdentifier(ref.TableAlias)) {
		return fmt.Errorf("%s", ref)
	}
	table, ok := r.aliases[ref.TableAlias]
	if !ok {
		return fmt.Errorf("unknown alias in %s", ref)
	}
	if r.schema != nil && !r.schema[table][ref.ColumnName] {
		return fmt.Errorf("%s", ref)
	}
	return nil
}

func (r renderer) validateJoin(j Join) error {
	if !allowedJoinTypes[j.Type] {
		return fmt.Errorf("invalid join type: %s", j.Type)
	}
	if !ValidIdentifier(j.Table) || !ValidIdentifier(j.Alias) {
		return fmt.Errorf("invalid join table: %s", j.Table)
	}
	if r.schema != nil {
		if _, ok := r.schema[j.Table]; !ok {
			return fmt.Errorf("invalid join table: %s", j.Table)
		}
	}
	if err := r.validateCol(j.Left); err != nil {
		return fmt.Errorf("invalid join left column: %w", err)
	}
	if err := r.validateCol(j.Right); err != nil {
		return fmt.Errorf("invalid join right column: %w", err)
	}
	return nil
}

func (r renderer) aggregate(agg Aggregate) (string, error) {
	if agg.all {
		return agg.fn + "(*)", nil
	}
	if err := r.validateCol(agg.column); err != nil {
		return "", fmt.Errorf("invalid aggregate column: %w", err)
	}
	if agg.distinct {
		return fmt.Sprintf("%s(DISTINCT %s)", agg.fn, agg.column), nil
	}
	return fmt.Sprintf("%s(%s)", agg.fn, agg.column), nil
}

func (r renderer) group(g FilterGroup, depth int) (string, error) {
	if depth > maxFilterDepth {
		return "", errors.New("filter depth exceeded")
	}
	op := strings.ToUpper(g.Operator)
	if op != "AND" && op != "OR" {
		return "", errors.New("invalid logical operator")
	}

	parts := make([]string, 0, len(g.Items))
	for _, item := range g.Items {
		var (
			clause string
			err    error
		)
		switch v := item.(type) {
		case Filter:
			clause, err = r.filter(v)
		case FilterGroup:
			clause, err = r.group(v, depth+1)
			if clause != "" {
				clause = "(" + clause + ")"
			}
		}
		if err != nil {
			return "", err
		}
		if clause != "" {
			parts = append(parts, clause)
		}
	}
	return strings.Join(parts, " "+op+" "), nil
}

func (r renderer) filter(f Filter) (string, error) {
	if err := r.validateCol(f.Column); err != nil {
		return "", fmt.Errorf("invalid column: %w", err)
	}
	op := strings.ToUpper(f.Op)
	if !allowedOperators[op] {
		return "", fmt.Errorf("invalid operator: %s", f.Op)
	}

	target := f.Column.String()
	switch {
	case f.Fold:
		target = "LOWER(TRIM(CAST(" + target + " AS TEXT)))"
	case f.Lower:
		target = "LOWER(" + target + ")"
	}

	switch op {
	case "IS NULL", "IS NOT NULL":
		return target + " " + op, nil
	case "IN":
		if f.Sub != nil {
			sql, err := f.Sub.render(r.params)
			if err != nil {
				return "", fmt.Errorf("invalid subquery: %w", err)
			}
			return target + " IN (" + sql + ")", nil
		}
		if len(f.Params) == 0 {
			return "1 = 0", nil
		}
		marks := make([]string, len(f.Params))
		for i := range f.Params {
			marks[i] = "?"
		}
		*r.params = append(*r.params, f.Params...)
		return target + " IN (" + strings.Join(marks, ", ") + ")", nil
	default:
		if len(f.Params) != 1 {
			return "", fmt.Errorf("operator %s expects one value", op)
		}
		*r.params = append(*r.params, f.Params[0])
		if f.Escape && op == "LIKE" {
			return target + ` LIKE ? ESCAPE '\'`, nil
		}
		return target + " " + op + " ?", nil
	}
}
