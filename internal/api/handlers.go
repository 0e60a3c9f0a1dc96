// handlers.go - HTTP handlers for khata extraction, review and roster access

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bosocmputer/khata_ocr/internal/ai"
	"github.com/bosocmputer/khata_ocr/internal/common"
	"github.com/bosocmputer/khata_ocr/internal/khata"
	"github.com/bosocmputer/khata_ocr/internal/processor"
	"github.com/bosocmputer/khata_ocr/internal/storage"
	"github.com/gin-gonic/gin"
)

// Handler serves the khata endpoints
type Handler struct {
	pipeline *khata.Pipeline
	sessions *SessionStore
	intake   *Intake
	roster   khata.RosterRepository
	marks    khata.MarkRepository
}

// NewHandler wires a Handler
func NewHandler(pipeline *khata.Pipeline, sessions *SessionStore, intake *Intake, roster khata.RosterRepository, marks khata.MarkRepository) *Handler {
	return &Handler{
		pipeline: pipeline,
		sessions: sessions,
		intake:   intake,
		roster:   roster,
		marks:    marks,
	}
}

// Register mounts every route under r
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1")

	k := v1.Group("/khata")
	k.POST("/extract", h.Extract)
	k.GET("/sessions/:id", h.GetSession)
	k.POST("/sessions/:id/rows", h.AddRow)
	k.PATCH("/sessions/:id/rows/:index", h.EditRow)
	k.DELETE("/sessions/:id/rows/:index", h.DeleteRow)
	k.POST("/sessions/:id/back", h.Back)
	k.POST("/sessions/:id/proceed", h.Proceed)
	k.POST("/sessions/:id/confirm", h.Confirm)
	k.POST("/sessions/:id/cancel", h.Cancel)

	v1.GET("/classes/:classId/students", h.ListStudents)
	v1.POST("/classes/:classId/students", h.CreateStudent)
	v1.GET("/marks", h.ListMarks)
}

func fail(c *gin.Context, status int, message string, err error, requestID string) {
	body := gin.H{
		"success": false,
		"error":   message,
	}
	if err != nil {
		body["details"] = err.Error()
	}
	if requestID != "" {
		body["request_id"] = requestID
	}
	c.JSON(status, body)
}

// statusFor maps pipeline and store errors to HTTP codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, khata.ErrRowIndex):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionBusy), errors.Is(err, khata.ErrIllegalTransition), errors.Is(err, khata.ErrNotEditable):
		return http.StatusConflict
	case errors.Is(err, processor.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, khata.ErrNoImages), errors.Is(err, khata.ErrTooManyImages), errors.Is(err, ErrBadImage):
		return http.StatusBadRequest
	case errors.Is(err, khata.ErrRecoveryFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ai.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ai.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, khata.ErrExtractionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Extract handles POST /api/v1/khata/extract as multipart or JSON
func (h *Handler) Extract(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		var fields TargetFields
		if err := c.ShouldBind(&fields); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request format", err, "")
			return
		}
		reqCtx := common.NewRequestContext(fields.TeacherID)
		form, err := c.MultipartForm()
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid multipart form", err, reqCtx.RequestID)
			return
		}
		images, err := h.intake.FromMultipart(form, reqCtx)
		h.runExtraction(c, fields.Target(), images, err, reqCtx)
		return
	}

	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request format", err, "")
		return
	}
	reqCtx := common.NewRequestContext(req.TeacherID)
	images, err := h.intake.FromRequest(c.Request.Context(), req, reqCtx)
	h.runExtraction(c, req.Target(), images, err, reqCtx)
}

func (h *Handler) runExtraction(c *gin.Context, target khata.Target, images []processor.ImageBlob, intakeErr error, reqCtx *common.RequestContext) {
	if intakeErr != nil {
		fail(c, statusFor(intakeErr), "ছবি গ্রহণ করা যায়নি", intakeErr, reqCtx.RequestID)
		return
	}

	session := khata.NewSession(target)
	if err := h.pipeline.Begin(session, len(images)); err != nil {
		fail(c, http.StatusBadRequest, session.Error, err, reqCtx.RequestID)
		return
	}
	h.sessions.Put(session)

	outcome, extraction, err := h.pipeline.Complete(c.Request.Context(), session, images, reqCtx)
	h.sessions.Put(session)

	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"success":    false,
			"error":      session.Error,
			"details":    err.Error(),
			"outcome":    outcome,
			"session":    session,
			"request_id": reqCtx.RequestID,
		})
		return
	}

	response := gin.H{
		"success":        true,
		"outcome":        outcome,
		"extractedMarks": extraction.Marks,
		"warnings":       session.Warnings,
		"session":        session,
		"request_id":     reqCtx.RequestID,
		"token_usage":    reqCtx.TotalTokens,
		"provider":       extraction.Provider,
		"fallback_used":  extraction.FallbackUsed,
	}
	if c.Query("debug") == "true" {
		response["processing"] = reqCtx.GetSummary()
		response["recovery_strategy"] = extraction.Strategy
	}
	c.JSON(http.StatusOK, response)
}

// GetSession handles GET /api/v1/khata/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		fail(c, statusFor(err), "Session not found", err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": session})
}

// update runs fn against the session and writes the standard reply
func (h *Handler) update(c *gin.Context, fn func(*khata.Session, *common.RequestContext) (khata.Outcome, error)) {
	var (
		outcome khata.Outcome
		reqCtx  *common.RequestContext
	)
	session, err := h.sessions.Update(c.Param("id"), func(s *khata.Session) error {
		reqCtx = common.NewRequestContext(s.Target.TeacherID)
		var err error
		outcome, err = fn(s, reqCtx)
		return err
	})

	requestID := ""
	if reqCtx != nil {
		requestID = reqCtx.RequestID
	}
	if err != nil {
		body := gin.H{"success": false, "error": err.Error(), "request_id": requestID}
		if session != nil {
			body["session"] = session
		}
		c.JSON(statusFor(err), body)
		return
	}

	status := http.StatusOK
	if outcome == khata.OutcomeInvalid {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"success":    outcome != khata.OutcomeInvalid,
		"outcome":    outcome,
		"session":    session,
		"request_id": requestID,
	})
}

func rowIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		fail(c, http.StatusBadRequest, "row index must be a number", err, "")
		return 0, false
	}
	return index, true
}

// AddRow handles POST /api/v1/khata/sessions/:id/rows
func (h *Handler) AddRow(c *gin.Context) {
	var req RowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request format", err, "")
		return
	}
	h.update(c, func(s *khata.Session, _ *common.RequestContext) (khata.Outcome, error) {
		return "", h.pipeline.AddRow(s, req.Mark())
	})
}

// EditRow handles PATCH /api/v1/khata/sessions/:id/rows/:index
func (h *Handler) EditRow(c *gin.Context) {
	index, ok := rowIndex(c)
	if !ok {
		return
	}
	var patch khata.RowPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request format", err, "")
		return
	}
	h.update(c, func(s *khata.Session, _ *common.RequestContext) (khata.Outcome, error) {
		return "", h.pipeline.EditRow(s, index, patch)
	})
}

// DeleteRow handles DELETE /api/v1/khata/sessions/:id/rows/:index
func (h *Handler) DeleteRow(c *gin.Context) {
	index, ok := rowIndex(c)
	if !ok {
		return
	}
	h.update(c, func(s *khata.Session, _ *common.RequestContext) (khata.Outcome, error) {
		return "", h.pipeline.DeleteRow(s, index)
	})
}

// Back handles POST /api/v1/khata/sessions/:id/back
func (h *Handler) Back(c *gin.Context) {
	h.update(c, func(s *khata.Session, _ *common.RequestContext) (khata.Outcome, error) {
		return "", h.pipeline.Back(s)
	})
}

// Proceed handles POST /api/v1/khata/sessions/:id/proceed
func (h *Handler) Proceed(c *gin.Context) {
	h.update(c, func(s *khata.Session, reqCtx *common.RequestContext) (khata.Outcome, error) {
		return h.pipeline.Proceed(c.Request.Context(), s, reqCtx)
	})
}

// Confirm handles POST /api/v1/khata/sessions/:id/confirm
func (h *Handler) Confirm(c *gin.Context) {
	h.update(c, func(s *khata.Session, reqCtx *common.RequestContext) (khata.Outcome, error) {
		return h.pipeline.ConfirmOverwrite(c.Request.Context(), s, reqCtx)
	})
}

// Cancel handles POST /api/v1/khata/sessions/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	h.update(c, func(s *khata.Session, _ *common.RequestContext) (khata.Outcome, error) {
		return h.pipeline.CancelOverwrite(s)
	})
}

// ListStudents handles GET /api/v1/classes/:classId/students
func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.roster.Lookup(c.Request.Context(), c.Param("classId"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to load roster", err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "students": students, "count": len(students)})
}

// CreateStudent handles POST /api/v1/classes/:classId/students
func (h *Handler) CreateStudent(c *gin.Context) {
	var req CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request format", err, "")
		return
	}
	student, err := h.roster.Create(c.Request.Context(), c.Param("classId"), khata.NewStudent{
		Name:       req.Name,
		RollNumber: khata.NormalizeRoll(req.RollNumber, khata.DefaultRollWidth),
		TeacherID:  req.TeacherID,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrDuplicateRoll) {
			status = http.StatusConflict
		}
		fail(c, status, "Failed to create student", err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "student": student})
}

// ListMarks handles GET /api/v1/marks
func (h *Handler) ListMarks(c *gin.Context) {
	var q MarksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "Invalid query", err, "")
		return
	}
	records, err := h.marks.Query(c.Request.Context(), q.ClassID, q.SubjectID, q.Term, q.Year)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to load marks", err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "marks": records, "count": len(records)})
}
