package normalize

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cast"
)

// Row is one scanned result row keyed by projection name. Drivers disagree on value
// types ([]byte on one, string or int64 on another), so every accessor coerces.
type Row map[string]interface{}

// String returns the value as trimmed text; NULL becomes "".
func (r Row) String(key string) string {
	return String(r[key])
}

// Int64 returns the value as an integer; NULL or unparsable text becomes 0.
func (r Row) Int64(key string) int64 {
	return Int64(r[key])
}

// Uint returns a non-negative identifier.
func (r Row) Uint(key string) uint {
	v := Int64(r[key])
	if v < 0 {
		return 0
	}
	return uint(v)
}

// Float64 returns the value as a float; NULL becomes 0.
func (r Row) Float64(key string) float64 {
	return Float64(r[key])
}

// OptionalFloat returns nil for NULL.
func (r Row) OptionalFloat(key string) *float64 {
	return OptionalFloat(r[key])
}

// OptionalTime returns nil for NULL or unparsable values.
func (r Row) OptionalTime(key string) *time.Time {
	return OptionalTime(r[key])
}

// String coerces a driver value to text.
func String(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return strings.TrimSpace(string(val))
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	}
	return strings.TrimSpace(cast.ToString(v))
}

// Int64 coerces a driver value to an integer. Float text is truncated.
func Int64(v interface{}) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case []byte:
		return Int64(string(val))
	case string:
		s := strings.TrimSpace(val)
		if n, err := cast.ToInt64E(s); err == nil {
			return n
		}
		return int64(cast.ToFloat64(s))
	}
	return cast.ToInt64(v)
}

// Float64 coerces a driver value to a float.
func Float64(v interface{}) float64 {
	if b, ok := v.([]byte); ok {
		return cast.ToFloat64(strings.TrimSpace(string(b)))
	}
	if s, ok := v.(string); ok {
		return cast.ToFloat64(strings.TrimSpace(s))
	}
	return cast.ToFloat64(v)
}

// OptionalFloat coerces a driver value, preserving NULL as nil.
func OptionalFloat(v interface{}) *float64 {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if len(val) == 0 {
			return nil
		}
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		if b, ok := v.([]byte); ok {
			f, err = cast.ToFloat64E(strings.TrimSpace(string(b)))
		}
		if err != nil {
			return nil
		}
	}
	return &f
}

// OptionalTime coerces a driver value to a UTC timestamp.
func OptionalTime(v interface{}) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return OptionalTime(string(val))
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

// Excerpt shortens text to at most limit runes, appending an ellipsis when cut.
func Excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
