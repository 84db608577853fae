// Package querybuilder assembles parameterized SQL statements from typed fragments.
//
// Statements are composed from required and optional pieces: columns that may or may
// not exist in the live schema are selected through SelectOptional, which falls back
// to a literal default when the column is absent, and joins or filters can be attached
// conditionally with JoinIf and FilterIf.
//
// Two rules hold for every statement:
//
//   - Values are always bound. Every Param is rendered as a "?" placeholder and
//     returned, with its type tag, in Statement.Params.
//   - Identifiers are never taken from user input. Table and column names must be
//     plain identifiers and, when WithSchema is set, must appear in the allow-list.
//
// Basic usage:
//
//	stmt, err := querybuilder.New().
//		From("submissions", "s").
//		Select("s.id", "s.problem_id").
//		SelectOptional("s", verdictCol, hasVerdict, "verdict", querybuilder.Null).
//		Filter(querybuilder.F("s.problem_id", "=", querybuilder.Int(7))).
//		OrderBy("s.id", "DESC").
//		Page(querybuilder.Clamp(page, per, querybuilder.DefaultBounds)).
//		Build()
//
// The "?" placeholders are rewritten by gorm for the active dialect.
package querybuilder
