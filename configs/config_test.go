package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvGetters(t *testing.T) {
	t.Setenv("KHATA_TEST_INT", "7")
	t.Setenv("KHATA_TEST_BAD_INT", "seven")
	t.Setenv("KHATA_TEST_BOOL", "false")
	t.Setenv("KHATA_TEST_FLOAT", "1.25")

	assert.Equal(t, 7, getEnvInt("KHATA_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("KHATA_TEST_BAD_INT", 1))
	assert.Equal(t, 3, getEnvInt("KHATA_TEST_MISSING", 3))
	assert.False(t, getEnvBool("KHATA_TEST_BOOL", true))
	assert.Equal(t, 1.25, getEnvFloat("KHATA_TEST_FLOAT", 0))
	assert.Equal(t, "x", getEnv("KHATA_TEST_MISSING", "x"))
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, 5, MAX_KHATA_IMAGES)
	assert.Equal(t, 2, ROLL_NUMBER_WIDTH)
	assert.Equal(t, "gemini", OCR_PROVIDER)
}
