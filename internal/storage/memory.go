// memory.go - In-process repositories for local runs and tests

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/khata"
)

// MemoryRoster implements khata.RosterRepository in memory
type MemoryRoster struct {
	mu      sync.RWMutex
	classes map[string][]khata.Student
}

// NewMemoryRoster creates an empty roster store
func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{classes: make(map[string][]khata.Student)}
}

// Lookup returns a copy of the class roster ordered by roll
func (r *MemoryRoster) Lookup(ctx context.Context, classID string) ([]khata.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	students := append([]khata.Student{}, r.classes[classID]...)
	sort.SliceStable(students, func(i, j int) bool {
		return students[i].RollNumber < students[j].RollNumber
	})
	return students, nil
}

// Create adds a student; rolls with the same khata.RollKey collide
func (r *MemoryRoster) Create(ctx context.Context, classID string, ns khata.NewStudent) (*khata.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := khata.RollKey(ns.RollNumber)
	for _, s := range r.classes[classID] {
		if khata.RollKey(s.RollNumber) == want {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRoll, ns.RollNumber)
		}
	}

	student := newStudent(classID, ns)
	r.classes[classID] = append(r.classes[classID], student)
	return &student, nil
}

// MemoryMarks implements khata.MarkRepository in memory
type MemoryMarks struct {
	mu      sync.RWMutex
	records map[markKey]khata.MarkRecord
}

type markKey struct {
	studentID, classID, subjectID string
	term, year                    int
}

func keyOf(rec khata.MarkRecord) markKey {
	return markKey{rec.StudentID, rec.ClassID, rec.SubjectID, rec.Term, rec.Year}
}

// NewMemoryMarks creates an empty mark store
func NewMemoryMarks() *MemoryMarks {
	return &MemoryMarks{records: make(map[markKey]khata.MarkRecord)}
}

// Query lists marks for one class/subject/term/year ordered by student
func (m *MemoryMarks) Query(ctx context.Context, classID, subjectID string, term, year int) ([]khata.MarkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []khata.MarkRecord{}
	for k, rec := range m.records {
		if k.classID == classID && k.subjectID == subjectID && k.term == term && k.year == year {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// Upsert mirrors the Mongo update: total, source and timestamp are replaced,
// everything else survives an overwrite
func (m *MemoryMarks) Upsert(ctx context.Context, rec khata.MarkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	k := keyOf(rec)
	if existing, ok := m.records[k]; ok {
		existing.TotalMarks = rec.TotalMarks
		existing.Source = rec.Source
		existing.UpdatedAt = rec.UpdatedAt
		m.records[k] = existing
		return nil
	}

	rec.QuizMarks = 0
	rec.EngagementScore = 0
	rec.CreatedAt = rec.UpdatedAt
	m.records[k] = rec
	return nil
}
