package normalize

import "sort"

// VerdictRow is one grouped input row: the grouping key, a display label, the raw
// verdict and how many submissions carry it.
type VerdictRow struct {
	Key     string
	Label   string
	Verdict interface{}
	Count   int64
}

// VerdictGroup aggregates one grouping key.
type VerdictGroup struct {
	Key    string        `json:"key"`
	Label  string        `json:"label"`
	Counts VerdictCounts `json:"counts"`
	Total  int64         `json:"total"`
	Peak   int64         `json:"peak"`
}

// VerdictSummary is the aggregation over all groups.
type VerdictSummary struct {
	Categories []Verdict      `json:"categories"`
	Groups     []VerdictGroup `json:"groups"`
	Totals     VerdictCounts  `json:"totals"`
	GrandTotal int64          `json:"grand_total"`
	MaxCell    int64          `json:"max_cell"`
}

// AggregateVerdicts groups rows by key. Groups are ordered by label then key.
// A row with Count 0 counts as one submission.
func AggregateVerdicts(rows []VerdictRow) VerdictSummary {
	groups := map[string]*VerdictGroup{}
	for _, row := range rows {
		g, ok := groups[row.Key]
		if !ok {
			label := row.Label
			if label == "" {
				label = row.Key
			}
			g = &VerdictGroup{Key: row.Key, Label: label, Counts: NewVerdictCounts()}
			groups[row.Key] = g
		}
		n := row.Count
		if n <= 0 {
			n = 1
		}
		g.Counts.Add(row.Verdict, n)
	}

	summary := VerdictSummary{
		Categories: Verdicts(),
		Groups:     make([]VerdictGroup, 0, len(groups)),
		Totals:     NewVerdictCounts(),
	}
	for _, g := range groups {
		g.Total = g.Counts.Total()
		g.Peak = g.Counts.Peak()
		summary.Totals.Merge(g.Counts)
		if g.Peak > summary.MaxCell {
			summary.MaxCell = g.Peak
		}
		summary.Groups = append(summary.Groups, *g)
	}
	sort.Slice(summary.Groups, func(i, j int) bool {
		if summary.Groups[i].Label != summary.Groups[j].Label {
			return summary.Groups[i].Label < summary.Groups[j].Label
		}
		return summary.Groups[i].Key < summary.Groups[j].Key
	})
	summary.GrandTotal = summary.Totals.Total()
	return summary
}
