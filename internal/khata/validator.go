// validator.go - Structural checks that gate commit

package khata

import (
	"fmt"
	"strings"
)

// ValidationResult is the holistic verdict over a set of review rows.
// RowErrors is keyed by row index.
type ValidationResult struct {
	Valid     bool             `json:"valid"`
	Errors    []string         `json:"errors"`
	RowErrors map[int][]string `json:"rowErrors,omitempty"`
}

// Validate never drops rows; every problem is reported against its row
func Validate(rows []MatchedMark) ValidationResult {
	res := ValidationResult{Errors: []string{}, RowErrors: map[int][]string{}}
	if len(rows) == 0 {
		res.Errors = append(res.Errors, "জমা দেওয়ার মতো কোনো সারি নেই")
		return res
	}

	for i, r := range rows {
		var problems []string
		if strings.TrimSpace(r.Name) == "" {
			problems = append(problems, msgNoName)
		}
		if strings.TrimSpace(r.RollNumber) == "" {
			problems = append(problems, msgNoRoll)
		}
		if !r.TotalMarks.IsFinite() {
			problems = append(problems, "মোট নম্বর পড়া যায়নি")
		} else if r.TotalMarks < 0 || r.TotalMarks > 100 {
			problems = append(problems, fmt.Sprintf("মোট নম্বর %g, ০ থেকে ১০০ এর মধ্যে হতে হবে", float64(r.TotalMarks)))
		}
		if r.Status == StatusError {
			for _, e := range r.Errors {
				if !contains(problems, e) {
					problems = append(problems, e)
				}
			}
			if len(problems) == 0 {
				problems = append(problems, "সারিটি মেলানো যায়নি")
			}
		}

		if len(problems) == 0 {
			continue
		}
		res.RowErrors[i] = problems
		for _, p := range problems {
			res.Errors = append(res.Errors, fmt.Sprintf("সারি %d (রোল %s): %s", i+1, r.RollNumber, p))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
