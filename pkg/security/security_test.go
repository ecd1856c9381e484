package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fieldops/maintsched/pkg/core"
)

func TestValidateScheduleID(t *testing.T) {
	assert.NoError(t, ValidateScheduleID(uuid.NewString()))

	invalid := []string{
		"",
		"not-a-uuid",
		"123",
		"3F2B8C1E-9D4A-4E6B-8F00-1A2B3C4D5E6F",
		"{3f2b8c1e-9d4a-4e6b-8f00-1a2b3c4d5e6f}",
	}
	for _, id := range invalid {
		err := ValidateScheduleID(id)
		assert.True(t, errors.Is(err, core.ErrInvalidSchedule), "expected %q to be invalid", id)
	}
}

func TestValidateRef(t *testing.T) {
	assert.NoError(t, ValidateRef("equipment_ref", "COMPRESSOR-12"))
	assert.NoError(t, ValidateRef("equipment_ref", strings.Repeat("é", MaxRefLength)))
	err := ValidateRef("equipment_ref", strings.Repeat("x", MaxRefLength+1))
	assert.True(t, errors.Is(err, core.ErrInvalidSchedule))
	assert.Contains(t, err.Error(), "equipment_ref")
}

func TestSanitizeText_RemovesControlChars(t *testing.T) {
	input := "oil\x00 change\x07\nline two\tend\x7f"
	assert.Equal(t, "oil change\nline two\tend", SanitizeText(input))
}

func TestSanitizeText_Truncates(t *testing.T) {
	long := strings.Repeat("a", MaxTextLength+100)
	got := SanitizeText(long)

	assert.Len(t, []rune(got), MaxTextLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSanitizeErrorMessage(t *testing.T) {
	assert.Equal(t, "", SanitizeErrorMessage(""))
	assert.Equal(t, "plain", SanitizeErrorMessage("plain"))
	assert.Len(t, []rune(SanitizeErrorMessage(strings.Repeat("b", 5000))), MaxErrorMessageLength)
}

func TestClampOccurrences(t *testing.T) {
	assert.Equal(t, 1, ClampOccurrences(0))
	assert.Equal(t, 1, ClampOccurrences(-3))
	assert.Equal(t, 12, ClampOccurrences(12))
	assert.Equal(t, MaxOccurrences, ClampOccurrences(MaxOccurrences+1))
}
