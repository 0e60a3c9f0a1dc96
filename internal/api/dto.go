package api

import (
	"math"

	"github.com/bosocmputer/khata_ocr/internal/khata"
)

// TargetFields identifies the mark slot; used by JSON bodies and multipart forms
type TargetFields struct {
	ClassID   string `json:"classId" form:"classId" binding:"required"`
	SubjectID string `json:"subjectId" form:"subjectId" binding:"required"`
	Term      int    `json:"term" form:"term" binding:"required,min=1,max=3"`
	Year      int    `json:"year" form:"year" binding:"required,min=2000,max=2100"`
	TeacherID string `json:"teacherId" form:"teacherId"`
}

// Target converts to the pipeline type
func (t TargetFields) Target() khata.Target {
	return khata.Target{
		ClassID:   t.ClassID,
		SubjectID: t.SubjectID,
		Term:      t.Term,
		Year:      t.Year,
		TeacherID: t.TeacherID,
	}
}

// InlineImage is a base64 image, plain or as a data URL
type InlineImage struct {
	Data     string `json:"data" binding:"required"`
	MIMEType string `json:"mimeType"`
}

// ExtractRequest is the JSON form of an extraction upload
type ExtractRequest struct {
	TargetFields
	Images    []InlineImage `json:"images" binding:"omitempty,dive"`
	ImageURLs []string      `json:"imageUrls" binding:"omitempty,dive,url"`
}

// RowRequest adds a row in review. A missing or null total stays unread so
// the validator reports it instead of a zero being stored.
type RowRequest struct {
	RollNumber string       `json:"rollNumber"`
	Name       string       `json:"name" binding:"required"`
	TotalMarks *khata.Marks `json:"totalMarks"`
}

// Mark converts to the pipeline row
func (r RowRequest) Mark() khata.ExtractedMark {
	total := khata.Marks(math.NaN())
	if r.TotalMarks != nil {
		total = *r.TotalMarks
	}
	return khata.ExtractedMark{RollNumber: r.RollNumber, Name: r.Name, TotalMarks: total}
}

// CreateStudentRequest adds a student to a class roster
type CreateStudentRequest struct {
	Name       string `json:"name" binding:"required"`
	RollNumber string `json:"rollNumber" binding:"required"`
	TeacherID  string `json:"teacherId"`
}

// MarksQuery selects committed marks
type MarksQuery struct {
	ClassID   string `form:"classId" binding:"required"`
	SubjectID string `form:"subjectId" binding:"required"`
	Term      int    `form:"term" binding:"required,min=1,max=3"`
	Year      int    `form:"year" binding:"required"`
}
