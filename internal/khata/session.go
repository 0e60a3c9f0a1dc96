// session.go - Review session value and its state machine

package khata

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the pipeline position of a session
type State string

const (
	StateUpload     State = "upload"
	StateProcessing State = "processing"
	StatePreview    State = "preview"
	StateConfirm    State = "confirm"
	StateSuccess    State = "success"
)

var transitions = map[State][]State{
	StateUpload:     {StateProcessing},
	StateProcessing: {StatePreview, StateUpload},
	StatePreview:    {StateUpload, StateConfirm, StateSuccess},
	StateConfirm:    {StatePreview, StateSuccess},
}

var (
	// ErrIllegalTransition is returned for any move not in the transition table
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrNotEditable is returned when rows are edited outside preview
	ErrNotEditable = errors.New("rows can only be edited in preview")
	// ErrRowIndex is returned for an edit or delete past the end of the rows
	ErrRowIndex = errors.New("row index out of range")

	errUnresolved = errors.New("row has no resolved student")
)

// CanTransition reports whether s may move to next
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Session is everything a teacher's review of one khata needs. It is a plain
// value; callers that share sessions across goroutines copy with Clone.
type Session struct {
	ID         string          `json:"id"`
	Target     Target          `json:"target"`
	State      State           `json:"state"`
	Rows       []MatchedMark   `json:"rows"`
	Roster     []Student       `json:"-"`
	Warnings   []string        `json:"warnings"`
	Validation []string        `json:"validationErrors,omitempty"`
	Conflicts  []string        `json:"conflicts,omitempty"`
	Error      string          `json:"error,omitempty"`
	Notice     string          `json:"notice,omitempty"`
	Committed  int             `json:"committed"`
	Failures   []CommitFailure `json:"failures,omitempty"`
	RawText    string          `json:"-"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// NewSession starts a session in upload
func NewSession(target Target) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		Target:    target,
		State:     StateUpload,
		Rows:      []MatchedMark{},
		Warnings:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the session, refusing anything outside the table
func (s *Session) Transition(next State) error {
	if !s.State.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.State, next)
	}
	s.State = next
	s.UpdatedAt = time.Now()
	return nil
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	c := *s
	c.Rows = make([]MatchedMark, len(s.Rows))
	for i, r := range s.Rows {
		c.Rows[i] = cloneRow(r)
	}
	c.Roster = append([]Student(nil), s.Roster...)
	c.Warnings = append([]string(nil), s.Warnings...)
	c.Validation = append([]string(nil), s.Validation...)
	c.Conflicts = append([]string(nil), s.Conflicts...)
	c.Failures = append([]CommitFailure(nil), s.Failures...)
	return &c
}

func cloneRow(r MatchedMark) MatchedMark {
	if r.Student != nil {
		st := *r.Student
		r.Student = &st
	}
	r.Errors = append([]string{}, r.Errors...)
	return r
}

// RowPatch carries the fields a teacher changed; nil fields are kept
type RowPatch struct {
	RollNumber *string `json:"rollNumber"`
	Name       *string `json:"name"`
	TotalMarks *Marks  `json:"totalMarks"`
}

// EditRow returns a new row list with rows[index] patched and every row
// re-matched, so a roll edit can move any row between found, new and error.
// An edited roll is padded to width like an extracted one.
func EditRow(rows []MatchedMark, index int, patch RowPatch, roster []Student, width int) ([]MatchedMark, error) {
	if index < 0 || index >= len(rows) {
		return nil, fmt.Errorf("%w: %d", ErrRowIndex, index)
	}
	records := extractedRows(rows)
	rec := &records[index]
	if patch.RollNumber != nil {
		rec.RollNumber = NormalizeRoll(*patch.RollNumber, rollWidth(width))
	}
	if patch.Name != nil {
		rec.Name = cleanName(*patch.Name)
	}
	if patch.TotalMarks != nil {
		rec.TotalMarks = *patch.TotalMarks
	}
	return MatchAll(records, roster), nil
}

// AddRow returns a new row list with rec appended
func AddRow(rows []MatchedMark, rec ExtractedMark, roster []Student, width int) []MatchedMark {
	rec.RollNumber = NormalizeRoll(rec.RollNumber, rollWidth(width))
	rec.Name = cleanName(rec.Name)
	return MatchAll(append(extractedRows(rows), rec), roster)
}

// DeleteRow returns a new row list without rows[index]
func DeleteRow(rows []MatchedMark, index int, roster []Student) ([]MatchedMark, error) {
	if index < 0 || index >= len(rows) {
		return nil, fmt.Errorf("%w: %d", ErrRowIndex, index)
	}
	records := extractedRows(rows)
	records = append(records[:index], records[index+1:]...)
	return MatchAll(records, roster), nil
}

func extractedRows(rows []MatchedMark) []ExtractedMark {
	out := make([]ExtractedMark, len(rows))
	for i, r := range rows {
		out[i] = r.Extracted()
	}
	return out
}
