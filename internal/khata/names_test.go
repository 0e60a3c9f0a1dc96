package khata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"করিম", "করিম", 100, 100},
		{"মোঃ করিম", "করিম", 100, 100},
		{"Md. Karim", "karim", 100, 100},
		{"করিম উদ্দিন", "করিম উদ্দীন", 80, 99.9},
		{"করিম", "সুমাইয়া", 0, 40},
		{"", "", 100, 100},
		{"", "করিম", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			got := NameSimilarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestNameMismatchesOnlyFoundRows(t *testing.T) {
	rows := []MatchedMark{
		{RollNumber: "01", Name: "মোঃ করিম", Status: StatusFound, Student: &Student{Name: "করিম"}},
		{RollNumber: "02", Name: "সুমাইয়া", Status: StatusFound, Student: &Student{Name: "রহিম"}},
		{RollNumber: "03", Name: "অচেনা", Status: StatusNew},
		{RollNumber: "04", Name: "কেউ", Status: StatusError},
	}

	got := NameMismatches(rows)
	assert.Len(t, got, 1)
	assert.Contains(t, got[0], "রোল 02")
}

func TestPipelineWarnsOnNameMismatch(t *testing.T) {
	f := newFixture(`[{"rollNumber":"01","name":"সুমাইয়া","totalMarks":70}]`,
		Student{ID: "s1", Name: "করিম", RollNumber: "01"})

	out, err := f.start(t, 1)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeExtracted, out)
	assert.Equal(t, StatusFound, f.session.Rows[0].Status)
	assert.Len(t, f.session.Warnings, 1)
}
