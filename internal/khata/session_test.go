package khata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	all := []State{StateUpload, StateProcessing, StatePreview, StateConfirm, StateSuccess}
	legal := map[[2]State]bool{
		{StateUpload, StateProcessing}:  true,
		{StateProcessing, StatePreview}: true,
		{StateProcessing, StateUpload}:  true,
		{StatePreview, StateUpload}:     true,
		{StatePreview, StateConfirm}:    true,
		{StatePreview, StateSuccess}:    true,
		{StateConfirm, StatePreview}:    true,
		{StateConfirm, StateSuccess}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			s := &Session{State: from}
			err := s.Transition(to)
			if legal[[2]State{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, s.State)
			} else {
				assert.ErrorIs(t, err, ErrIllegalTransition, "%s -> %s", from, to)
				assert.Equal(t, from, s.State)
			}
		}
	}
}

func TestSessionCloneIsIndependent(t *testing.T) {
	s := NewSession(testTarget)
	s.Rows = MatchAll([]ExtractedMark{{RollNumber: "01", Name: "করিম", TotalMarks: 70}}, roster)
	s.Warnings = []string{"w"}

	c := s.Clone()
	c.Rows[0].Name = "changed"
	c.Rows[0].Student.Name = "changed"
	c.Warnings[0] = "changed"

	assert.Equal(t, "করিম", s.Rows[0].Name)
	assert.Equal(t, "করিম", s.Rows[0].Student.Name)
	assert.Equal(t, "w", s.Warnings[0])
}

func TestSessionJSONHidesInternals(t *testing.T) {
	s := NewSession(testTarget)
	s.RawText = "raw model text"
	s.Roster = roster

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "raw model text")
	assert.Contains(t, string(out), `"state":"upload"`)
}

func TestRowEditsArePure(t *testing.T) {
	rows := MatchAll([]ExtractedMark{
		{RollNumber: "01", Name: "করিম", TotalMarks: 70},
		{RollNumber: "02", Name: "রহিম", TotalMarks: 60},
	}, roster)

	name := "নতুন নাম"
	edited, err := EditRow(rows, 1, RowPatch{Name: &name}, roster, DefaultRollWidth)
	require.NoError(t, err)
	assert.Equal(t, "রহিম", rows[1].Name)
	assert.Equal(t, name, edited[1].Name)

	added := AddRow(rows, ExtractedMark{RollNumber: "০১", Name: "দ্বিতীয় করিম", TotalMarks: 10}, roster, DefaultRollWidth)
	assert.Len(t, rows, 2)
	require.Len(t, added, 3)
	assert.Equal(t, "01", added[2].RollNumber)
	assert.Equal(t, StatusError, added[2].Status, "duplicate of row 1")

	deleted, err := DeleteRow(added, 0, roster)
	require.NoError(t, err)
	assert.Len(t, added, 3)
	require.Len(t, deleted, 2)
	assert.Equal(t, StatusFound, deleted[1].Status, "no longer a duplicate")

	_, err = DeleteRow(rows, 5, roster)
	assert.ErrorIs(t, err, ErrRowIndex)
	_, err = EditRow(rows, -1, RowPatch{}, roster, DefaultRollWidth)
	assert.ErrorIs(t, err, ErrRowIndex)
}

func TestRowEditsPadRolls(t *testing.T) {
	rows := MatchAll([]ExtractedMark{{RollNumber: "33", Name: "নতুন", TotalMarks: 50}}, roster)

	seven := " 7 "
	edited, err := EditRow(rows, 0, RowPatch{RollNumber: &seven}, roster, DefaultRollWidth)
	require.NoError(t, err)
	assert.Equal(t, "07", edited[0].RollNumber)

	added := AddRow(edited, ExtractedMark{RollNumber: "৯", Name: "সুমি", TotalMarks: 80}, roster, DefaultRollWidth)
	assert.Equal(t, "09", added[1].RollNumber)

	wide := AddRow(rows, ExtractedMark{RollNumber: "5", Name: "অন্য", TotalMarks: 1}, roster, 3)
	assert.Equal(t, "005", wide[1].RollNumber)
	assert.Equal(t, StatusFound, wide[1].Status, "roster roll 5 still matches")

	code := "a-12"
	kept, err := EditRow(rows, 0, RowPatch{RollNumber: &code}, roster, DefaultRollWidth)
	require.NoError(t, err)
	assert.Equal(t, "a-12", kept[0].RollNumber)
}
