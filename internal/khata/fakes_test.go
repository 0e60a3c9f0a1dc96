package khata

import (
	"context"
	"errors"
	"fmt"

	"github.com/bosocmputer/khata_ocr/internal/ai"
	"github.com/bosocmputer/khata_ocr/internal/common"
	"github.com/bosocmputer/khata_ocr/internal/processor"
)

type memRoster struct {
	students  map[string][]Student
	failNames map[string]bool
	lookupErr error
	seq       int
	creates   int
}

func newMemRoster(classID string, students ...Student) *memRoster {
	for i := range students {
		students[i].ClassID = classID
	}
	return &memRoster{
		students:  map[string][]Student{classID: students},
		failNames: map[string]bool{},
	}
}

func (r *memRoster) Lookup(ctx context.Context, classID string) ([]Student, error) {
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	return append([]Student(nil), r.students[classID]...), nil
}

func (r *memRoster) Create(ctx context.Context, classID string, ns NewStudent) (*Student, error) {
	r.creates++
	if r.failNames[ns.Name] {
		return nil, errors.New("roster write failed")
	}
	r.seq++
	s := Student{ID: fmt.Sprintf("new-%d", r.seq), ClassID: classID, Name: ns.Name, RollNumber: ns.RollNumber}
	r.students[classID] = append(r.students[classID], s)
	return &s, nil
}

type memMarks struct {
	records  map[string]MarkRecord
	failIDs  map[string]bool
	queryErr error
}

func newMemMarks(existing ...MarkRecord) *memMarks {
	m := &memMarks{records: map[string]MarkRecord{}, failIDs: map[string]bool{}}
	for _, rec := range existing {
		m.records[markKey(rec)] = rec
	}
	return m
}

func markKey(rec MarkRecord) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d", rec.StudentID, rec.ClassID, rec.SubjectID, rec.Term, rec.Year)
}

func (m *memMarks) Query(ctx context.Context, classID, subjectID string, term, year int) ([]MarkRecord, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var out []MarkRecord
	for _, rec := range m.records {
		if rec.ClassID == classID && rec.SubjectID == subjectID && rec.Term == term && rec.Year == year {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memMarks) Upsert(ctx context.Context, rec MarkRecord) error {
	if m.failIDs[rec.StudentID] {
		return errors.New("mark write failed")
	}
	m.records[markKey(rec)] = rec
	return nil
}

func (m *memMarks) get(studentID string, t Target) (MarkRecord, bool) {
	rec, ok := m.records[markKey(MarkRecord{StudentID: studentID, ClassID: t.ClassID, SubjectID: t.SubjectID, Term: t.Term, Year: t.Year})]
	return rec, ok
}

type fakeVision struct {
	text  string
	err   error
	calls int
}

func (f *fakeVision) GetProviderName() string { return "fake" }

func (f *fakeVision) ReadKhata(ctx context.Context, req ai.VisionRequest, reqCtx *common.RequestContext) (*ai.VisionResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.VisionResult{Text: f.text, Provider: "fake"}, nil
}

func images(n int) []processor.ImageBlob {
	out := make([]processor.ImageBlob, n)
	for i := range out {
		out[i] = processor.ImageBlob{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}
	}
	return out
}

var testTarget = Target{ClassID: "class-5a", SubjectID: "math", Term: 1, Year: 2025, TeacherID: "teacher-1"}
