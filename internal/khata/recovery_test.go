package khata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bareRows = `[{"name":"X","rollNumber":"01","totalMarks":70}]`

func TestRecoverWrappingStylesAgree(t *testing.T) {
	want := []ExtractedMark{{RollNumber: "01", Name: "X", TotalMarks: 70}}

	inputs := map[string]string{
		"bare":          bareRows,
		"fenced":        "here it is:\n```json\n" + bareRows + "\n```",
		"untagged":      "```\n" + bareRows + "\n```",
		"prose":         "I found these marks: " + bareRows + " Hope that helps.",
		"wrapped":       `{"extractedMarks":` + bareRows + `,"warnings":[]}`,
		"wrapped prose": "Result -> {\"students\": " + bareRows + "} done",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			rec := Recover(in)
			require.True(t, rec.OK, rec.Raw)
			assert.Equal(t, want, rec.Marks)
		})
	}
}

func TestRecoverStrategyOrder(t *testing.T) {
	tests := []struct {
		in       string
		strategy string
	}{
		{bareRows, "direct"},
		{"Sure! " + bareRows, "array"},
		{`Output: {"marks": ` + bareRows + `}`, "object"},
		{"```json\n{\"results\": " + bareRows + "}\n```", "object"},
		{`Here you go: {"result":` + bareRows + `}`, "nested"},
		{`{"page":1,"table":{"rows":` + bareRows + `}}`, "nested"},
	}
	for _, tt := range tests {
		rec := Recover(tt.in)
		require.True(t, rec.OK)
		assert.Equal(t, tt.strategy, rec.Strategy, tt.in)
	}
}

func TestRecoverFenceWhenBracketsInProse(t *testing.T) {
	in := "Note [page 2 smudged]\n```json\n" + bareRows + "\n```"
	rec := Recover(in)
	require.True(t, rec.OK)
	assert.Equal(t, "array", rec.Strategy, "the prose bracket does not decode so the next array is tried")
	assert.Len(t, rec.Marks, 1)
}

func TestRecoverCarriesWarnings(t *testing.T) {
	rec := Recover(`{"extractedMarks":[{"name":"A","rollNumber":"1","totalMarks":5}],"warnings":["page 2 partially unreadable"]}`)
	require.True(t, rec.OK)
	assert.Equal(t, []string{"page 2 partially unreadable"}, rec.Warnings)
}

func TestRecoverRepairsRawNewlines(t *testing.T) {
	rec := Recover("[{\"name\":\"Abdul\nKarim\",\"rollNumber\":\"02\",\"totalMarks\":40}]")
	require.True(t, rec.OK)
	assert.Equal(t, "Abdul\nKarim", rec.Marks[0].Name)
}

func TestRecoverBracketsInsideStrings(t *testing.T) {
	rec := Recover(`prefix [{"name":"A ] B","rollNumber":"03","totalMarks":50}] suffix`)
	require.True(t, rec.OK)
	assert.Equal(t, "A ] B", rec.Marks[0].Name)
}

func TestRecoverEmptyArrayIsSuccess(t *testing.T) {
	rec := Recover("```json\n[]\n```")
	require.True(t, rec.OK)
	assert.Empty(t, rec.Marks)
	assert.NotNil(t, rec.Marks)
}

func TestRecoverFailurePreservesRaw(t *testing.T) {
	for _, in := range []string{
		"I could not read the image",
		"",
		`{"message":"no table here"}`,
		"[1, 2, 3]",
		"{ unbalanced [",
	} {
		var rec Recovery
		assert.NotPanics(t, func() { rec = Recover(in) })
		assert.False(t, rec.OK, in)
		assert.Equal(t, in, rec.Raw)
		assert.Empty(t, rec.Marks)
	}
}

func TestRecoverNestedUnderUnknownKey(t *testing.T) {
	rec := Recover("Here you go: {\"result\":[{\"rollNumber\":\"01\",\"name\":\"X\",\"totalMarks\":70}]}")
	require.True(t, rec.OK)
	assert.Equal(t, "nested", rec.Strategy)
	assert.Equal(t, []ExtractedMark{{RollNumber: "01", Name: "X", TotalMarks: 70}}, rec.Marks)
}

func TestRecoverNestedIgnoresUnrelatedLists(t *testing.T) {
	for _, in := range []string{
		`{"result":[]}`,
		`{"result":[{"page":1},{"page":2}]}`,
		`{"tags":["a","b"]}`,
	} {
		rec := Recover(in)
		assert.False(t, rec.OK, in)
	}
}

// The bracket scans reach a decodable payload first, so the last two
// strategies are exercised directly.
func TestRecoverFenceAndSpanStrategies(t *testing.T) {
	p, ok := recoverFence("Notes first.\n```json\n" + bareRows + "\n```\nthanks")
	require.True(t, ok)
	assert.Len(t, p.Marks, 1)

	p, ok = recoverFence("```\n{\"marks\":" + bareRows + ",\"warnings\":[\"smudged\"]}\n```")
	require.True(t, ok)
	assert.Equal(t, []string{"smudged"}, p.Warnings)

	_, ok = recoverFence("no fence here " + bareRows)
	assert.False(t, ok)

	p, ok = recoverSpan("rows: " + bareRows + " end")
	require.True(t, ok)
	assert.Len(t, p.Marks, 1)

	_, ok = recoverSpan("] backwards [")
	assert.False(t, ok)
}
