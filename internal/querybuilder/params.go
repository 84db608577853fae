package querybuilder

import (
	"strings"
	"time"
)

// Kind tags the type of a bound parameter.
type Kind byte

const (
	KindInt    Kind = 'i'
	KindFloat  Kind = 'd'
	KindString Kind = 's'
	KindTime   Kind = 't'
	KindBool   Kind = 'b'
)

// Param is a single bound value together with its type tag.
type Param struct {
	Kind  Kind
	Value interface{}
}

// Int binds an integer value.
func Int(v int64) Param {
	return Param{Kind: KindInt, Value: v}
}

// Uint binds an unsigned identifier.
func Uint(v uint) Param {
	return Param{Kind: KindInt, Value: int64(v)}
}

// Float binds a floating point value.
func Float(v float64) Param {
	return Param{Kind: KindFloat, Value: v}
}

// String binds a text value.
func String(v string) Param {
	return Param{Kind: KindString, Value: v}
}

// Time binds a timestamp, normalised to UTC.
func Time(v time.Time) Param {
	return Param{Kind: KindTime, Value: v.UTC()}
}

// Bool binds a boolean value.
func Bool(v bool) Param {
	return Param{Kind: KindBool, Value: v}
}

// Strings binds every value as text, preserving order.
func Strings(values ...string) []Param {
	params := make([]Param, 0, len(values))
	for _, v := range values {
		params = append(params, String(v))
	}
	return params
}

// Statement is a rendered SQL string with its ordered parameters.
type Statement struct {
	SQL    string
	Params []Param
}

// Args returns the bound values in placeholder order.
func (s Statement) Args() []interface{} {
	args := make([]interface{}, 0, len(s.Params))
	for _, p := range s.Params {
		args = append(args, p.Value)
	}
	return args
}

// TypeTags returns one type marker per parameter, e.g. "isst".
func (s Statement) TypeTags() string {
	var sb strings.Builder
	for _, p := range s.Params {
		sb.WriteByte(byte(p.Kind))
	}
	return sb.String()
}

// Literal is a constant default rendered in place of an absent optional column.
type Literal int

const (
	// Null renders NULL.
	Null Literal = iota
	// EmptyString renders ''.
	EmptyString
	// Zero renders 0.
	Zero
)

// SQL returns the literal text.
func (l Literal) SQL() string {
	switch l {
	case EmptyString:
		return "''"
	case Zero:
		return "0"
	default:
		return "NULL"
	}
}

// Aggregate is a constant aggregate projection over an allow-listed column.
type Aggregate struct {
	fn       string
	distinct bool
	all      bool
	column   ColumnRef
}

// CountAll renders COUNT(*).
func CountAll() Aggregate {
	return Aggregate{fn: "COUNT", all: true}
}

// CountDistinctOf renders COUNT(DISTINCT ref).
func CountDistinctOf(ref string) Aggregate {
	return Aggregate{fn: "COUNT", distinct: true, column: Col(ref)}
}

// MaxOf renders MAX(ref).
func MaxOf(ref string) Aggregate {
	return Aggregate{fn: "MAX", column: Col(ref)}
}
