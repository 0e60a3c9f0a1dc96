// conflict.go - Detect marks that a commit would overwrite

package khata

import (
	"context"
	"fmt"
)

// ConflictReport lists students that already have marks for the target
type ConflictReport struct {
	HasConflict bool     `json:"hasConflict"`
	StudentIDs  []string `json:"studentIds"`
}

// FindConflicts flags a student only when existing holds a record for the
// exact (student, class, subject, term, year) tuple. Equal values still count.
func FindConflicts(existing []MarkRecord, target Target, studentIDs []string) ConflictReport {
	have := make(map[string]bool, len(existing))
	for _, rec := range existing {
		if target.Matches(rec) {
			have[rec.StudentID] = true
		}
	}

	report := ConflictReport{StudentIDs: []string{}}
	seen := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		if seen[id] || !have[id] {
			continue
		}
		seen[id] = true
		report.StudentIDs = append(report.StudentIDs, id)
	}
	report.HasConflict = len(report.StudentIDs) > 0
	return report
}

// DetectConflicts queries marks for target and reports overlaps with studentIDs
func DetectConflicts(ctx context.Context, marks MarkRepository, target Target, studentIDs []string) (ConflictReport, error) {
	if len(studentIDs) == 0 {
		return ConflictReport{StudentIDs: []string{}}, nil
	}
	existing, err := marks.Query(ctx, target.ClassID, target.SubjectID, target.Term, target.Year)
	if err != nil {
		return ConflictReport{}, fmt.Errorf("failed to query existing marks: %w", err)
	}
	return FindConflicts(existing, target, studentIDs), nil
}
