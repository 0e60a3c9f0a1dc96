package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepTrackingAccumulatesTokens(t *testing.T) {
	rc := NewRequestContext("teacher-1")
	require.NotEmpty(t, rc.RequestID)

	rc.StartStep("extract_marks")
	rc.StartSubStep("call_vision_model")
	rc.EndSubStep("2 images")
	rc.EndStep("success", &TokenUsage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120}, nil)

	rc.StartStep("commit_marks")
	rc.EndStep("failed", nil, errors.New("boom"))

	require.Len(t, rc.Steps, 2)
	assert.Len(t, rc.Steps[0].SubSteps, 1)
	assert.Equal(t, "boom", rc.Steps[1].Error)
	assert.Equal(t, 120, rc.TotalTokens.TotalTokens)

	summary := rc.GetSummary()
	assert.Equal(t, 2, summary["total_steps"])
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "12,345", formatNumber(12345))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}
