package querybuilder

import "strings"

// Filter is a single comparison whose value side is always bound.
type Filter struct {
	Column ColumnRef
	Op     string
	Params []Param
	Sub    *Query
	Lower  bool
	// Fold compares on LOWER(TRIM(CAST(column AS TEXT))) so text and numeric
	// columns match the same folded values.
	Fold   bool
	Escape bool
}

// FilterGroup joins filters and nested groups with AND or OR.
type FilterGroup struct {
	Operator string
	Items    []interface{}
}

// F builds a comparison filter, e.g. F("s.id", "=", Int(4)).
func F(ref, op string, value Param) Filter {
	return Filter{Column: Col(ref), Op: op, Params: []Param{value}}
}

// In builds ref IN (?, ?, ...). An empty list never matches.
func In(ref string, values []Param) Filter {
	return Filter{Column: Col(ref), Op: "IN", Params: values}
}

// InFolded builds a case- and padding-insensitive membership test. Values are
// trimmed, lowercased and deduplicated before binding; an empty list never matches.
func InFolded(ref string, values []string) Filter {
	seen := make(map[string]bool, len(values))
	params := make([]Param, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if seen[v] {
			continue
		}
		seen[v] = true
		params = append(params, String(v))
	}
	return Filter{Column: Col(ref), Op: "IN", Params: params, Fold: true}
}

// InSubquery builds ref IN (SELECT ...), with the subquery's parameters bound in place.
func InSubquery(ref string, sub *Query) Filter {
	return Filter{Column: Col(ref), Op: "IN", Sub: sub}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Contains builds a case-insensitive LOWER(ref) LIKE '%text%' match. Wildcards in
// text match literally.
func Contains(ref, text string) Filter {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(text))) + "%"
	return Filter{Column: Col(ref), Op: "LIKE", Params: []Param{String(pattern)}, Lower: true, Escape: true}
}

// IsNull builds ref IS NULL.
func IsNull(ref string) Filter {
	return Filter{Column: Col(ref), Op: "IS NULL"}
}

// And joins its items with AND. Items may be Filter or *FilterGroup values.
func And(items ...interface{}) *FilterGroup {
	return createGroup("AND", items...)
}

// Or joins its items with OR. Items may be Filter or *FilterGroup values.
func Or(items ...interface{}) *FilterGroup {
	return createGroup("OR", items...)
}

func createGroup(op string, items ...interface{}) *FilterGroup {
	g := &FilterGroup{Operator: op}
	for _, item := range items {
		g.add(item)
	}
	return g
}

func (g *FilterGroup) add(item interface{}) {
	switch v := item.(type) {
	case Filter:
		g.Items = append(g.Items, v)
	case *FilterGroup:
		if v != nil && len(v.Items) > 0 {
			g.Items = append(g.Items, *v)
		}
	}
}

func appendToRoot(root *FilterGroup, item interface{}) *FilterGroup {
	if root == nil {
		return And(item)
	}
	if strings.ToUpper(root.Operator) != "AND" {
		return And(root, item)
	}
	root.add(item)
	return root
}
