// commit.go - Write reviewed rows to the roster and mark stores

package khata

import (
	"context"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/common"
)

// MarkSource tags mark records written by this pipeline
const MarkSource = "khata_ocr"

// CommitFailure describes one skipped row
type CommitFailure struct {
	Row        int    `json:"row"`
	RollNumber string `json:"rollNumber"`
	Name       string `json:"name"`
	Stage      string `json:"stage"` // "match", "create_student" or "upsert_mark"
	Error      string `json:"error"`
}

// CommitResult carries the committed count, the caller's success signal
type CommitResult struct {
	Committed int             `json:"committed"`
	Failures  []CommitFailure `json:"failures,omitempty"`
}

// Committer writes rows in order, skipping any row whose writes fail
type Committer struct {
	roster RosterRepository
	marks  MarkRepository
	now    func() time.Time
}

// NewCommitter creates a Committer over the given stores
func NewCommitter(roster RosterRepository, marks MarkRepository) *Committer {
	return &Committer{roster: roster, marks: marks, now: time.Now}
}

// Commit creates students for new rows and upserts one mark per resolved row.
// A roll created earlier in the batch is reused by later rows.
func (c *Committer) Commit(ctx context.Context, target Target, rows []MatchedMark, reqCtx *common.RequestContext) CommitResult {
	result := CommitResult{}
	created := make(map[string]string)

	for i, row := range rows {
		fail := func(stage string, err error) {
			reqCtx.LogWarning("Row %d (roll %s) skipped at %s: %v", i+1, row.RollNumber, stage, err)
			result.Failures = append(result.Failures, CommitFailure{
				Row:        i,
				RollNumber: row.RollNumber,
				Name:       row.Name,
				Stage:      stage,
				Error:      err.Error(),
			})
		}

		if err := ctx.Err(); err != nil {
			fail("upsert_mark", err)
			continue
		}

		studentID := row.StudentID
		switch row.Status {
		case StatusFound:
		case StatusNew:
			key := RollKey(row.RollNumber)
			if id, ok := created[key]; ok {
				studentID = id
				break
			}
			reqCtx.StartSubStep("create_new_student")
			student, err := c.roster.Create(ctx, target.ClassID, NewStudent{
				Name:       row.Name,
				RollNumber: row.RollNumber,
				TeacherID:  target.TeacherID,
			})
			if err != nil {
				reqCtx.EndSubStep("❌ FAILED")
				fail("create_student", err)
				continue
			}
			reqCtx.EndSubStep(student.ID)
			studentID = student.ID
			created[key] = studentID
		default:
			fail("match", errUnresolved)
			continue
		}

		if studentID == "" {
			fail("match", errUnresolved)
			continue
		}

		now := c.now()
		rec := MarkRecord{
			StudentID:  studentID,
			ClassID:    target.ClassID,
			SubjectID:  target.SubjectID,
			Term:       target.Term,
			Year:       target.Year,
			TotalMarks: float64(row.TotalMarks),
			Source:     MarkSource,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := c.marks.Upsert(ctx, rec); err != nil {
			fail("upsert_mark", err)
			continue
		}
		result.Committed++
	}

	reqCtx.LogInfo("💾 Committed %d of %d rows", result.Committed, len(rows))
	return result
}
