// pipeline.go - Drive a review session from upload to success

package khata

import (
	"context"
	"errors"
	"fmt"

	"github.com/bosocmputer/khata_ocr/internal/ai"
	"github.com/bosocmputer/khata_ocr/internal/common"
	"github.com/bosocmputer/khata_ocr/internal/processor"
)

// MaxImages is the most khata pages accepted in one extraction
const MaxImages = 5

var (
	ErrNoImages         = errors.New("at least one khata image is required")
	ErrTooManyImages    = fmt.Errorf("at most %d khata images are allowed", MaxImages)
	ErrExtractionFailed = errors.New("khata extraction failed")
	ErrRecoveryFailed   = errors.New("could not read marks from the model response")
)

// NoticeEmpty is shown when the model answered but no rows survived
const NoticeEmpty = "কোনো নম্বর পাওয়া যায়নি। আরও পরিষ্কার ছবি দিয়ে আবার চেষ্টা করুন।"

// Extraction is a successful read of one or more khata pages
type Extraction struct {
	Marks        []ExtractedMark    `json:"extractedMarks"`
	Warnings     []string           `json:"warnings"`
	Strategy     string             `json:"strategy"`
	Provider     string             `json:"provider"`
	FallbackUsed bool               `json:"fallbackUsed"`
	Tokens       *common.TokenUsage `json:"tokens,omitempty"`
	Raw          string             `json:"-"`
}

// Extractor sends khata pages to a vision model and recovers rows from its reply
type Extractor struct {
	vision    ai.VisionProvider
	maxImages int
	rollWidth int
}

// NewExtractor creates an Extractor. maxImages is capped at MaxImages.
func NewExtractor(vision ai.VisionProvider, maxImages, rollWidth int) *Extractor {
	if maxImages <= 0 || maxImages > MaxImages {
		maxImages = MaxImages
	}
	if rollWidth <= 0 {
		rollWidth = DefaultRollWidth
	}
	return &Extractor{vision: vision, maxImages: maxImages, rollWidth: rollWidth}
}

// CheckImages rejects an image count before anything is sent
func (e *Extractor) CheckImages(n int) error {
	switch {
	case n == 0:
		return ErrNoImages
	case n > e.maxImages:
		return fmt.Errorf("%w (got %d)", ErrTooManyImages, n)
	}
	return nil
}

// Extract makes one vision call with every page. A provider failure wraps
// ErrExtractionFailed; an unreadable reply wraps ErrRecoveryFailed and still
// returns the Extraction so Raw survives. Zero rows is not an error.
func (e *Extractor) Extract(ctx context.Context, images []processor.ImageBlob, reqCtx *common.RequestContext) (*Extraction, error) {
	if err := e.CheckImages(len(images)); err != nil {
		return nil, err
	}

	reqCtx.StartStep("extract_marks")
	res, err := e.vision.ReadKhata(ctx, ai.VisionRequest{
		Prompt: ai.KhataExtractionPrompt(),
		Images: images,
	}, reqCtx)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	reqCtx.EndStep("success", res.Tokens, nil)

	out := &Extraction{
		Provider:     res.Provider,
		FallbackUsed: res.FallbackUsed,
		Tokens:       res.Tokens,
		Raw:          res.Text,
		Warnings:     []string{},
	}

	reqCtx.StartStep("recover_response")
	rec := Recover(res.Text)
	if !rec.OK {
		reqCtx.LogError("No recovery strategy matched (%d chars of model output)", len(res.Text))
		reqCtx.EndStep("failed", nil, ErrRecoveryFailed)
		return out, ErrRecoveryFailed
	}
	reqCtx.EndStep("success", nil, nil)
	reqCtx.LogInfo("🧩 Recovered %d rows using %q", len(rec.Marks), rec.Strategy)

	marks, notes := Normalize(rec.Marks, e.rollWidth)
	out.Marks = marks
	out.Strategy = rec.Strategy
	out.Warnings = append(out.Warnings, rec.Warnings...)
	if res.IsPartial {
		out.Warnings = append(out.Warnings, "AI এর উত্তর অসম্পূর্ণ ছিল, কিছু সারি বাদ পড়ে থাকতে পারে")
	}
	out.Warnings = append(out.Warnings, notes...)
	return out, nil
}

// Outcome names where a pipeline step left the session
type Outcome string

const (
	OutcomeExtracted Outcome = "extracted"
	OutcomeEmpty     Outcome = "empty"
	OutcomeFailed    Outcome = "failed"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeConflict  Outcome = "conflict"
	OutcomeCommitted Outcome = "committed"
	OutcomeCancelled Outcome = "cancelled"
)

// Pipeline moves sessions through extract, review and commit
type Pipeline struct {
	extractor *Extractor
	roster    RosterRepository
	marks     MarkRepository
	committer *Committer
}

// NewPipeline wires a Pipeline
func NewPipeline(extractor *Extractor, roster RosterRepository, marks MarkRepository) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		roster:    roster,
		marks:     marks,
		committer: NewCommitter(roster, marks),
	}
}

// Start runs Begin then Complete
func (p *Pipeline) Start(ctx context.Context, s *Session, images []processor.ImageBlob, reqCtx *common.RequestContext) (Outcome, *Extraction, error) {
	if err := p.Begin(s, len(images)); err != nil {
		return OutcomeFailed, nil, err
	}
	return p.Complete(ctx, s, images, reqCtx)
}

// Begin validates the upload and moves the session to processing. A rejected
// upload leaves the session in upload with the error attached.
func (p *Pipeline) Begin(s *Session, imageCount int) error {
	if s.State != StateUpload {
		return fmt.Errorf("%w: extraction from %s", ErrIllegalTransition, s.State)
	}
	if err := s.Target.Validate(); err != nil {
		s.Error = err.Error()
		return err
	}
	if err := p.extractor.CheckImages(imageCount); err != nil {
		s.Error = err.Error()
		return err
	}
	s.Error = ""
	s.Notice = ""
	return s.Transition(StateProcessing)
}

// Complete extracts, matches and lands the session in preview, or back in
// upload with an error or an empty-result notice
func (p *Pipeline) Complete(ctx context.Context, s *Session, images []processor.ImageBlob, reqCtx *common.RequestContext) (Outcome, *Extraction, error) {
	if s.State != StateProcessing {
		return OutcomeFailed, nil, fmt.Errorf("%w: complete from %s", ErrIllegalTransition, s.State)
	}

	fail := func(msg string, err error) (Outcome, *Extraction, error) {
		s.Rows = []MatchedMark{}
		s.Error = msg
		if terr := s.Transition(StateUpload); terr != nil {
			return OutcomeFailed, nil, terr
		}
		return OutcomeFailed, nil, err
	}

	ext, err := p.extractor.Extract(ctx, images, reqCtx)
	if err != nil {
		if ext != nil {
			s.RawText = ext.Raw
		}
		if errors.Is(err, ErrRecoveryFailed) {
			return fail("AI এর উত্তর থেকে নম্বর পড়া যায়নি। আবার চেষ্টা করুন।", err)
		}
		return fail(ai.UserFriendlyMessage(err), err)
	}
	s.RawText = ext.Raw
	s.Warnings = append([]string{}, ext.Warnings...)

	if len(ext.Marks) == 0 {
		s.Rows = []MatchedMark{}
		s.Notice = NoticeEmpty
		if err := s.Transition(StateUpload); err != nil {
			return OutcomeFailed, ext, err
		}
		return OutcomeEmpty, ext, nil
	}

	reqCtx.StartStep("match_roster")
	roster, err := p.roster.Lookup(ctx, s.Target.ClassID)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return fail("শিক্ষার্থী তালিকা পাওয়া যায়নি। আবার চেষ্টা করুন।", fmt.Errorf("roster lookup: %w", err))
	}
	s.Roster = roster
	s.Rows = MatchAll(ext.Marks, roster)
	if mismatches := NameMismatches(s.Rows); len(mismatches) > 0 {
		reqCtx.LogWarning("⚠️ %d rows have names that differ from the roster", len(mismatches))
		s.Warnings = append(s.Warnings, mismatches...)
	}
	reqCtx.EndStep("success", nil, nil)

	if err := s.Transition(StatePreview); err != nil {
		return OutcomeFailed, ext, err
	}
	return OutcomeExtracted, ext, nil
}

// Back abandons review and returns to upload
func (p *Pipeline) Back(s *Session) error {
	if err := s.Transition(StateUpload); err != nil {
		return err
	}
	s.Rows = []MatchedMark{}
	s.Roster = nil
	s.Warnings = []string{}
	s.Validation = nil
	s.Conflicts = nil
	s.Error = ""
	s.Notice = ""
	return nil
}

// EditRow patches one row in preview
func (p *Pipeline) EditRow(s *Session, index int, patch RowPatch) error {
	if s.State != StatePreview {
		return ErrNotEditable
	}
	rows, err := EditRow(s.Rows, index, patch, s.Roster, p.extractor.rollWidth)
	if err != nil {
		return err
	}
	p.setRows(s, rows)
	return nil
}

// AddRow appends a row in preview
func (p *Pipeline) AddRow(s *Session, rec ExtractedMark) error {
	if s.State != StatePreview {
		return ErrNotEditable
	}
	p.setRows(s, AddRow(s.Rows, rec, s.Roster, p.extractor.rollWidth))
	return nil
}

// DeleteRow removes a row in preview
func (p *Pipeline) DeleteRow(s *Session, index int) error {
	if s.State != StatePreview {
		return ErrNotEditable
	}
	rows, err := DeleteRow(s.Rows, index, s.Roster)
	if err != nil {
		return err
	}
	p.setRows(s, rows)
	return nil
}

func (p *Pipeline) setRows(s *Session, rows []MatchedMark) {
	s.Rows = rows
	s.Validation = nil
	s.Error = ""
}

// Proceed validates, checks for conflicts and either stops at confirm or commits
func (p *Pipeline) Proceed(ctx context.Context, s *Session, reqCtx *common.RequestContext) (Outcome, error) {
	if s.State != StatePreview {
		return OutcomeFailed, fmt.Errorf("%w: proceed from %s", ErrIllegalTransition, s.State)
	}

	reqCtx.StartStep("validate_rows")
	v := Validate(s.Rows)
	if !v.Valid {
		reqCtx.EndStep("failed", nil, fmt.Errorf("%d problems", len(v.Errors)))
		for i := range s.Rows {
			if errs, ok := v.RowErrors[i]; ok {
				s.Rows[i].Errors = errs
			}
		}
		s.Validation = v.Errors
		return OutcomeInvalid, nil
	}
	reqCtx.EndStep("success", nil, nil)
	s.Validation = nil

	reqCtx.StartStep("conflict_check")
	report, err := DetectConflicts(ctx, p.marks, s.Target, ResolvedStudentIDs(s.Rows))
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		s.Error = "আগের নম্বর যাচাই করা যায়নি। আবার চেষ্টা করুন।"
		return OutcomeFailed, err
	}
	reqCtx.EndStep("success", nil, nil)

	if report.HasConflict {
		reqCtx.LogWarning("⚠️ %d students already have marks for this term", len(report.StudentIDs))
		s.Conflicts = report.StudentIDs
		if err := s.Transition(StateConfirm); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeConflict, nil
	}

	return p.commit(ctx, s, reqCtx)
}

// ConfirmOverwrite commits after the teacher chose to replace existing marks
func (p *Pipeline) ConfirmOverwrite(ctx context.Context, s *Session, reqCtx *common.RequestContext) (Outcome, error) {
	if s.State != StateConfirm {
		return OutcomeFailed, fmt.Errorf("%w: confirm from %s", ErrIllegalTransition, s.State)
	}
	return p.commit(ctx, s, reqCtx)
}

// CancelOverwrite returns to preview without writing anything
func (p *Pipeline) CancelOverwrite(s *Session) (Outcome, error) {
	if err := s.Transition(StatePreview); err != nil {
		return OutcomeFailed, err
	}
	s.Conflicts = nil
	return OutcomeCancelled, nil
}

func (p *Pipeline) commit(ctx context.Context, s *Session, reqCtx *common.RequestContext) (Outcome, error) {
	reqCtx.StartStep("commit_marks")
	result := p.committer.Commit(ctx, s.Target, s.Rows, reqCtx)
	reqCtx.EndStep("success", nil, nil)

	s.Committed = result.Committed
	s.Failures = result.Failures
	s.Conflicts = nil
	s.Error = ""
	if err := s.Transition(StateSuccess); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeCommitted, nil
}
