// matcher.go - Resolve extracted rows against a class roster

package khata

import "strings"

const (
	msgNoName        = "নাম নেই"
	msgNoRoll        = "রোল নম্বর নেই"
	msgDuplicateRoll = "একই রোল নম্বর একাধিকবার এসেছে"
	msgAmbiguousRoll = "রোস্টারে এই রোল নম্বরে একাধিক শিক্ষার্থী আছে"
)

// MatchRecord looks rec up in roster by roll number. It does not know about
// the rest of the batch, so duplicates are left to MatchAll.
func MatchRecord(rec ExtractedMark, roster []Student) MatchedMark {
	m := MatchedMark{
		RollNumber: rec.RollNumber,
		Name:       rec.Name,
		TotalMarks: rec.TotalMarks,
		Errors:     []string{},
	}

	if strings.TrimSpace(rec.Name) == "" {
		m.Errors = append(m.Errors, msgNoName)
	}
	if strings.TrimSpace(rec.RollNumber) == "" {
		m.Errors = append(m.Errors, msgNoRoll)
	}
	if len(m.Errors) > 0 {
		m.Status = StatusError
		return m
	}

	key := RollKey(rec.RollNumber)
	var hit *Student
	for i := range roster {
		if RollKey(roster[i].RollNumber) != key {
			continue
		}
		if hit != nil {
			m.Status = StatusError
			m.Errors = append(m.Errors, msgAmbiguousRoll)
			return m
		}
		hit = &roster[i]
	}

	if hit == nil {
		m.Status = StatusNew
		return m
	}
	student := *hit
	m.Student = &student
	m.StudentID = student.ID
	m.Status = StatusFound
	return m
}

// MatchAll matches a batch. Every occurrence of a roll after the first is an
// error, whatever it matched on its own.
func MatchAll(records []ExtractedMark, roster []Student) []MatchedMark {
	out := make([]MatchedMark, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		m := MatchRecord(rec, roster)
		if strings.TrimSpace(rec.RollNumber) != "" {
			key := RollKey(rec.RollNumber)
			if seen[key] {
				m.Status = StatusError
				m.Student = nil
				m.StudentID = ""
				m.Errors = append(m.Errors, msgDuplicateRoll)
			}
			seen[key] = true
		}
		out[i] = m
	}
	return out
}

// Rematch re-derives status for edited rows
func Rematch(rows []MatchedMark, roster []Student) []MatchedMark {
	records := make([]ExtractedMark, len(rows))
	for i, r := range rows {
		records[i] = r.Extracted()
	}
	return MatchAll(records, roster)
}

// ResolvedStudentIDs lists the distinct student ids of found rows, in row order
func ResolvedStudentIDs(rows []MatchedMark) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.Status != StatusFound || r.StudentID == "" || seen[r.StudentID] {
			continue
		}
		seen[r.StudentID] = true
		ids = append(ids, r.StudentID)
	}
	return ids
}
