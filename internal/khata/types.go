// types.go - Records flowing through the khata pipeline and the stores it talks to

package khata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Marks is a total mark as read from a khata. It decodes from a JSON number, a
// numeric string in Bengali or Arabic digits, or null. Anything unreadable
// becomes NaN so the validator can report it instead of the decoder.
type Marks float64

// UnmarshalJSON implements json.Unmarshaler
func (m *Marks) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = Marks(math.NaN())
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = ParseMarks(s)
		return nil
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*m = Marks(math.NaN())
		return nil
	}
	*m = Marks(f)
	return nil
}

// MarshalJSON writes non-finite marks as null
func (m Marks) MarshalJSON() ([]byte, error) {
	if !m.IsFinite() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(m))
}

// IsFinite reports whether m is neither NaN nor infinite
func (m Marks) IsFinite() bool {
	f := float64(m)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ParseMarks reads a total written with Bengali or Arabic digits. "৮৫", "85",
// " 85.5 " and "85/100" all parse; anything else is NaN.
func ParseMarks(s string) Marks {
	s = strings.TrimSpace(ToASCIIDigits(s))
	if i := strings.Index(s, "/"); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	if s == "" {
		return Marks(math.NaN())
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Marks(math.NaN())
	}
	return Marks(f)
}

// ExtractedMark is one row as claimed by the vision model
type ExtractedMark struct {
	RollNumber string `json:"rollNumber"`
	Name       string `json:"name"`
	TotalMarks Marks  `json:"totalMarks"`
}

var (
	rollKeys  = []string{"rollNumber", "roll", "roll_number", "rollNo", "roll_no"}
	nameKeys  = []string{"name", "studentName", "student_name"}
	marksKeys = []string{"totalMarks", "marks", "total", "total_marks", "score"}
)

// UnmarshalJSON accepts the field spellings models tend to drift into
func (e *ExtractedMark) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("extracted mark is null")
	}

	*e = ExtractedMark{TotalMarks: Marks(math.NaN())}
	if raw, ok := firstField(fields, rollKeys); ok {
		e.RollNumber = scalarText(raw)
	}
	if raw, ok := firstField(fields, nameKeys); ok {
		e.Name = scalarText(raw)
	}
	if raw, ok := firstField(fields, marksKeys); ok {
		if err := e.TotalMarks.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("totalMarks: %w", err)
		}
	}
	return nil
}

func firstField(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := fields[k]; ok {
			return raw, true
		}
	}
	return nil, false
}

// scalarText renders a JSON string or number as text; null and composites are ""
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	case '{', '[', 'n':
		return ""
	default:
		return string(raw)
	}
}

// MatchStatus classifies a row against the roster
type MatchStatus string

const (
	StatusFound MatchStatus = "found"
	StatusNew   MatchStatus = "new"
	StatusError MatchStatus = "error"
)

// MatchedMark is the editable review row derived from an ExtractedMark
type MatchedMark struct {
	RollNumber string      `json:"rollNumber"`
	Name       string      `json:"name"`
	TotalMarks Marks       `json:"totalMarks"`
	Student    *Student    `json:"student,omitempty"`
	StudentID  string      `json:"studentId,omitempty"`
	Status     MatchStatus `json:"status"`
	Errors     []string    `json:"errors"`
}

// Extracted strips the match data back to the model's claim
func (m MatchedMark) Extracted() ExtractedMark {
	return ExtractedMark{RollNumber: m.RollNumber, Name: m.Name, TotalMarks: m.TotalMarks}
}

// Student is a roster entry
type Student struct {
	ID         string    `bson:"_id" json:"id"`
	ClassID    string    `bson:"class_id" json:"classId"`
	TeacherID  string    `bson:"teacher_id,omitempty" json:"teacherId,omitempty"`
	Name       string    `bson:"name" json:"name"`
	RollNumber string    `bson:"roll_number" json:"rollNumber"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// NewStudent is what the pipeline knows when it has to create a roster entry
type NewStudent struct {
	Name       string `json:"name"`
	RollNumber string `json:"rollNumber"`
	TeacherID  string `json:"teacherId,omitempty"`
}

// MarkRecord is the persisted mark row, unique per (student, class, subject, term, year)
type MarkRecord struct {
	StudentID       string    `bson:"student_id" json:"studentId"`
	ClassID         string    `bson:"class_id" json:"classId"`
	SubjectID       string    `bson:"subject_id" json:"subjectId"`
	Term            int       `bson:"term" json:"term"`
	Year            int       `bson:"year" json:"year"`
	TotalMarks      float64   `bson:"total_marks" json:"totalMarks"`
	QuizMarks       float64   `bson:"quiz_marks" json:"quizMarks"`
	EngagementScore float64   `bson:"engagement_score" json:"engagementScore"`
	Source          string    `bson:"source,omitempty" json:"source,omitempty"`
	CreatedAt       time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updatedAt"`
}

// Target names the mark slot a khata is being entered into
type Target struct {
	ClassID   string `json:"classId"`
	SubjectID string `json:"subjectId"`
	Term      int    `json:"term"`
	Year      int    `json:"year"`
	TeacherID string `json:"teacherId,omitempty"`
}

// Validate rejects targets no mark record could be keyed by
func (t Target) Validate() error {
	switch {
	case strings.TrimSpace(t.ClassID) == "":
		return errors.New("classId is required")
	case strings.TrimSpace(t.SubjectID) == "":
		return errors.New("subjectId is required")
	case t.Term < 1 || t.Term > 3:
		return fmt.Errorf("term must be 1, 2 or 3 (got %d)", t.Term)
	case t.Year < 2000 || t.Year > 2100:
		return fmt.Errorf("year %d is out of range", t.Year)
	}
	return nil
}

// Matches reports whether rec is keyed to the same class/subject/term/year
func (t Target) Matches(rec MarkRecord) bool {
	return rec.ClassID == t.ClassID && rec.SubjectID == t.SubjectID &&
		rec.Term == t.Term && rec.Year == t.Year
}

// RosterRepository reads and extends class rosters
type RosterRepository interface {
	Lookup(ctx context.Context, classID string) ([]Student, error)
	Create(ctx context.Context, classID string, s NewStudent) (*Student, error)
}

// MarkRepository reads and writes mark records
type MarkRepository interface {
	Query(ctx context.Context, classID, subjectID string, term, year int) ([]MarkRecord, error)
	Upsert(ctx context.Context, rec MarkRecord) error
}
