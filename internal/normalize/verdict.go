package normalize

import (
	"strings"
)

// Verdict is a judged outcome category.
type Verdict string

const (
	AC     Verdict = "AC"     // Accepted
	WA     Verdict = "WA"     // Wrong answer
	CE     Verdict = "CE"     // Compilation error
	RE     Verdict = "RE"     // Runtime error
	TLE    Verdict = "TLE"    // Time limit exceeded
	MANUAL Verdict = "MANUAL" // Awaiting or graded by hand
)

var verdictOrder = []Verdict{AC, WA, CE, RE, TLE, MANUAL}

// Verdicts returns every category in display order.
func Verdicts() []Verdict {
	return append([]Verdict(nil), verdictOrder...)
}

// Classify folds a stored verdict into a category; anything unknown is MANUAL.
func Classify(raw interface{}) Verdict {
	v := Verdict(strings.ToUpper(String(raw)))
	switch v {
	case AC, WA, CE, RE, TLE:
		return v
	default:
		return MANUAL
	}
}

// VerdictCounts holds one counter per category, all present from construction.
type VerdictCounts map[Verdict]int64

// NewVerdictCounts returns zero counts for every category.
func NewVerdictCounts() VerdictCounts {
	counts := make(VerdictCounts, len(verdictOrder))
	for _, v := range verdictOrder {
		counts[v] = 0
	}
	return counts
}

// Add classifies raw and increments its category by n.
func (c VerdictCounts) Add(raw interface{}, n int64) {
	c[Classify(raw)] += n
}

// Total is the sum of every category.
func (c VerdictCounts) Total() int64 {
	var total int64
	for _, v := range verdictOrder {
		total += c[v]
	}
	return total
}

// Peak is the largest single category count.
func (c VerdictCounts) Peak() int64 {
	var peak int64
	for _, v := range verdictOrder {
		if c[v] > peak {
			peak = c[v]
		}
	}
	return peak
}

// Merge adds other into c.
func (c VerdictCounts) Merge(other VerdictCounts) {
	for _, v := range verdictOrder {
		c[v] += other[v]
	}
}
