package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Canonical trimester labels.
const (
	Spring = "Spring"
	Summer = "Summer"
	Fall   = "Fall"
)

// DefaultTrimesterTable maps stored numeric codes to labels. Code 0 is a legacy
// spelling of Fall found in existing rows and should be migrated away.
var DefaultTrimesterTable = map[string]string{
	"0": Fall,
	"1": Spring,
	"2": Summer,
	"3": Fall,
}

var canonicalLabels = []string{Spring, Summer, Fall}

// TrimesterMapper canonicalises stored trimester values.
type TrimesterMapper struct {
	codes map[string]string
}

// NewTrimesterMapper builds a mapper from a code table. Labels in the table are
// canonicalised; a nil table selects DefaultTrimesterTable.
func NewTrimesterMapper(table map[string]string) TrimesterMapper {
	if table == nil {
		table = DefaultTrimesterTable
	}
	codes := make(map[string]string, len(table))
	for code, label := range table {
		code = strings.TrimSpace(code)
		if canonical, ok := canonicalLabel(label); ok && code != "" {
			codes[code] = canonical
		}
	}
	return TrimesterMapper{codes: codes}
}

// ParseTrimesterTable parses "0=Fall,1=Spring,2=Summer,3=Fall".
func ParseTrimesterTable(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	table := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, label, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid trimester mapping %q", pair)
		}
		canonical, known := canonicalLabel(label)
		if !known {
			return nil, fmt.Errorf("unknown trimester label %q", strings.TrimSpace(label))
		}
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, fmt.Errorf("invalid trimester mapping %q", pair)
		}
		table[code] = canonical
	}
	return table, nil
}

// Label maps a stored value to Spring, Summer or Fall. Unrecognised values are
// returned trimmed but otherwise unchanged.
func (m TrimesterMapper) Label(raw interface{}) string {
	value := String(raw)
	if value == "" {
		return ""
	}
	if label, ok := m.codes[value]; ok {
		return label
	}
	if label, ok := canonicalLabel(value); ok {
		return label
	}
	return value
}

// RawValues lists the stored spellings that map to label: the label in its usual
// cases plus every numeric code. Callers compare them case-insensitively against
// trimmed column values. An unknown label matches only itself.
func (m TrimesterMapper) RawValues(label string) []string {
	canonical, ok := canonicalLabel(label)
	if !ok {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	values := []string{canonical, strings.ToLower(canonical), strings.ToUpper(canonical)}
	codes := make([]string, 0, len(m.codes))
	for code, mapped := range m.codes {
		if mapped == canonical {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return append(values, codes...)
}

// Code returns the numeric code to store for label in an integer trimester
// column. When several codes share a label the highest wins, so the "0" alias
// for Fall is never written.
func (m TrimesterMapper) Code(label string) (int64, bool) {
	canonical, ok := canonicalLabel(label)
	if !ok {
		return 0, false
	}
	best, found := int64(0), false
	for code, mapped := range m.codes {
		if mapped != canonical {
			continue
		}
		n, err := strconv.ParseInt(code, 10, 64)
		if err != nil {
			continue
		}
		if !found || n > best {
			best, found = n, true
		}
	}
	return best, found
}

// Labels returns the canonical labels in calendar order.
func (m TrimesterMapper) Labels() []string {
	return append([]string(nil), canonicalLabels...)
}

func canonicalLabel(value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, label := range canonicalLabels {
		if strings.EqualFold(value, label) {
			return label, true
		}
	}
	return "", false
}
