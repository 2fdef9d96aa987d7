// Package relevance evaluates retrieval quality against a known relevant
// set: precision, recall, and F1 as rounded integer percentages.
package relevance

import "math"

// Report holds the confusion counts and derived quality percentages for
// one evaluated query. Percentages are rounded to whole numbers; any 0/0
// division yields 0.
type Report struct {
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	FalseNegatives int `json:"falseNegatives"`
	Precision      int `json:"precision"`
	Recall         int `json:"recall"`
	F1             int `json:"f1"`
}

// Evaluate compares the returned document ids against the relevant set.
// Duplicates in either list count once.
func Evaluate(results []string, relevant []string) Report {
	relevantSet := make(map[string]struct{}, len(relevant))
	for _, id := range relevant {
		relevantSet[id] = struct{}{}
	}
	resultSet := make(map[string]struct{}, len(results))
	truePositives := 0
	for _, id := range results {
		if _, dup := resultSet[id]; dup {
			continue
		}
		resultSet[id] = struct{}{}
		if _, ok := relevantSet[id]; ok {
			truePositives++
		}
	}

	report := Report{
		TruePositives:  truePositives,
		FalsePositives: len(resultSet) - truePositives,
		FalseNegatives: len(relevantSet) - truePositives,
	}

	var precision, recall float64
	if retrieved := report.TruePositives + report.FalsePositives; retrieved > 0 {
		precision = float64(report.TruePositives) / float64(retrieved)
	}
	if expected := report.TruePositives + report.FalseNegatives; expected > 0 {
		recall = float64(report.TruePositives) / float64(expected)
	}
	report.Precision = toPercent(precision)
	report.Recall = toPercent(recall)
	if precision+recall > 0 {
		report.F1 = toPercent(2 * precision * recall / (precision + recall))
	}
	return report
}

func toPercent(v float64) int {
	return int(math.Round(v * 100))
}
