package storage

import (
	"context"
	"testing"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/khata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMemoryRosterCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRoster()

	b, err := r.Create(ctx, "c1", khata.NewStudent{Name: " রহিম ", RollNumber: "02"})
	require.NoError(t, err)
	_, err = r.Create(ctx, "c1", khata.NewStudent{Name: "করিম", RollNumber: "01"})
	require.NoError(t, err)
	_, err = r.Create(ctx, "c2", khata.NewStudent{Name: "অন্য", RollNumber: "01"})
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "রহিম", b.Name)
	assert.Equal(t, "c1", b.ClassID)

	students, err := r.Lookup(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "01", students[0].RollNumber)

	_, err = r.Create(ctx, "c1", khata.NewStudent{Name: "দ্বিতীয়", RollNumber: "1"})
	assert.ErrorIs(t, err, ErrDuplicateRoll)
	_, err = r.Create(ctx, "c1", khata.NewStudent{Name: "তৃতীয়", RollNumber: "০২"})
	assert.ErrorIs(t, err, ErrDuplicateRoll)

	empty, err := r.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryMarksUpsertKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMarks()
	rec := khata.MarkRecord{StudentID: "s1", ClassID: "c1", SubjectID: "math", Term: 1, Year: 2025, TotalMarks: 40}

	require.NoError(t, m.Upsert(ctx, rec))

	// another part of the application fills quiz marks
	k := keyOf(rec)
	stored := m.records[k]
	stored.QuizMarks = 8
	m.records[k] = stored

	rec.TotalMarks = 85
	rec.UpdatedAt = time.Now().Add(time.Minute)
	require.NoError(t, m.Upsert(ctx, rec))

	got, err := m.Query(ctx, "c1", "math", 1, 2025)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 85.0, got[0].TotalMarks)
	assert.Equal(t, 8.0, got[0].QuizMarks)
	assert.True(t, got[0].UpdatedAt.After(got[0].CreatedAt))
}

func TestMemoryMarksQueryIsExact(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMarks()
	base := khata.MarkRecord{StudentID: "s1", ClassID: "c1", SubjectID: "math", Term: 1, Year: 2025}
	require.NoError(t, m.Upsert(ctx, base))

	other := base
	other.Term = 2
	require.NoError(t, m.Upsert(ctx, other))

	got, err := m.Query(ctx, "c1", "math", 1, 2025)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	got, err = m.Query(ctx, "c1", "science", 1, 2025)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarkUpdateLeavesOtherFieldsOnOverwrite(t *testing.T) {
	rec := khata.MarkRecord{StudentID: "s1", ClassID: "c1", SubjectID: "math", Term: 3, Year: 2025, TotalMarks: 77, Source: "khata_ocr"}

	filter := markFilter(rec)
	assert.Len(t, filter, 5)
	assert.Equal(t, 3, filter["term"])

	update := markUpdate(rec)
	set := update["$set"].(bson.M)
	assert.Equal(t, 77.0, set["total_marks"])
	assert.NotContains(t, set, "quiz_marks")
	assert.NotContains(t, set, "engagement_score")

	onInsert := update["$setOnInsert"].(bson.M)
	assert.Contains(t, onInsert, "quiz_marks")
	assert.Contains(t, onInsert, "engagement_score")
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "sqlite", "", "", 0)
	assert.Error(t, err)

	repos, err := Open(context.Background(), "memory", "", "", time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &CachedRoster{}, repos.Roster)
	assert.NoError(t, repos.Close(context.Background()))
}
