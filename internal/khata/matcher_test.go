package khata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roster = []Student{
	{ID: "s1", Name: "করিম", RollNumber: "01"},
	{ID: "s2", Name: "রহিম", RollNumber: "02"},
	{ID: "s5", Name: "সালমা", RollNumber: "5"},
}

func TestMatchRecord(t *testing.T) {
	tests := []struct {
		name   string
		rec    ExtractedMark
		status MatchStatus
		id     string
	}{
		{"exact roll", ExtractedMark{RollNumber: "01", Name: "করিম"}, StatusFound, "s1"},
		{"unpadded roster roll", ExtractedMark{RollNumber: "05", Name: "সালমা"}, StatusFound, "s5"},
		{"bengali digits", ExtractedMark{RollNumber: "০২", Name: "রহিম"}, StatusFound, "s2"},
		{"unknown roll", ExtractedMark{RollNumber: "09", Name: "নতুন"}, StatusNew, ""},
		{"no name", ExtractedMark{RollNumber: "01"}, StatusError, ""},
		{"no roll", ExtractedMark{Name: "করিম"}, StatusError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MatchRecord(tt.rec, roster)
			assert.Equal(t, tt.status, m.Status)
			assert.Equal(t, tt.id, m.StudentID)
			if tt.status == StatusError {
				assert.NotEmpty(t, m.Errors)
			} else {
				assert.Empty(t, m.Errors)
			}
		})
	}
}

func TestMatchRecordIsIdempotent(t *testing.T) {
	rec := ExtractedMark{RollNumber: "01", Name: "করিম", TotalMarks: 70}
	first := MatchRecord(rec, roster)
	second := MatchRecord(rec, roster)
	assert.Equal(t, first, second)

	rows := MatchAll([]ExtractedMark{rec, {RollNumber: "01", Name: "again"}}, roster)
	assert.Equal(t, rows, Rematch(rows, roster))
}

func TestMatchRecordDoesNotAliasRoster(t *testing.T) {
	local := append([]Student(nil), roster...)
	m := MatchRecord(ExtractedMark{RollNumber: "01", Name: "করিম"}, local)
	m.Student.Name = "changed"
	assert.Equal(t, "করিম", local[0].Name)
}

func TestMatchAllFlagsDuplicatesAfterFirst(t *testing.T) {
	rows := MatchAll([]ExtractedMark{
		{RollNumber: "01", Name: "করিম"},
		{RollNumber: "1", Name: "করিম ২"},
		{RollNumber: "09", Name: "নতুন"},
		{RollNumber: "০৯", Name: "নতুন ২"},
	}, roster)

	assert.Equal(t, StatusFound, rows[0].Status)
	assert.Equal(t, StatusError, rows[1].Status)
	assert.Nil(t, rows[1].Student)
	assert.Equal(t, StatusNew, rows[2].Status)
	assert.Equal(t, StatusError, rows[3].Status)
}

func TestMatchRecordAmbiguousRoster(t *testing.T) {
	dup := append([]Student{{ID: "s9", Name: "অন্য", RollNumber: "1"}}, roster...)
	m := MatchRecord(ExtractedMark{RollNumber: "01", Name: "করিম"}, dup)
	assert.Equal(t, StatusError, m.Status)
	assert.Empty(t, m.StudentID)
}

func TestEditingRollRederivesStatus(t *testing.T) {
	rows := MatchAll([]ExtractedMark{{RollNumber: "09", Name: "করিম", TotalMarks: 60}}, roster)
	require.Equal(t, StatusNew, rows[0].Status)

	found := "01"
	rows, err := EditRow(rows, 0, RowPatch{RollNumber: &found}, roster, DefaultRollWidth)
	require.NoError(t, err)
	assert.Equal(t, StatusFound, rows[0].Status)
	assert.Equal(t, "s1", rows[0].StudentID)

	unknown := "33"
	rows, err = EditRow(rows, 0, RowPatch{RollNumber: &unknown}, roster, DefaultRollWidth)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, rows[0].Status)
	assert.Nil(t, rows[0].Student)

	empty := ""
	rows, err = EditRow(rows, 0, RowPatch{RollNumber: &empty}, roster, DefaultRollWidth)
	require.NoError(t, err)
	assert.Equal(t, StatusError, rows[0].Status)

	rows, err = EditRow(rows, 0, RowPatch{RollNumber: &found}, roster, DefaultRollWidth)
	require.NoError(t, err)
	assert.Equal(t, StatusFound, rows[0].Status)
}

func TestResolvedStudentIDs(t *testing.T) {
	rows := MatchAll([]ExtractedMark{
		{RollNumber: "01", Name: "করিম"},
		{RollNumber: "09", Name: "নতুন"},
		{RollNumber: "02", Name: "রহিম"},
	}, roster)
	assert.Equal(t, []string{"s1", "s2"}, ResolvedStudentIDs(rows))
}
