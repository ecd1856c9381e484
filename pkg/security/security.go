package security

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fieldops/maintsched/pkg/core"
)

// Limits
const (
	// MaxOccurrences is the hard cap on occurrences one expansion may
	// generate. It also bounds family size, and therefore cascade deletes.
	MaxOccurrences = core.MaxRuleOccurrences

	// MaxTextLength is the maximum length for free-form description,
	// observation and completion note fields
	MaxTextLength = 8192

	// MaxRefLength is the maximum length for equipment refs, priority and
	// assignee fields
	MaxRefLength = 255

	// MaxErrorMessageLength is the maximum length for error messages
	// returned to transport clients
	MaxErrorMessageLength = 4096
)

// ValidateScheduleID checks that id is a canonical UUID string.
func ValidateScheduleID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", core.ErrInvalidSchedule)
	}
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return fmt.Errorf("%w: malformed id %q", core.ErrInvalidSchedule, truncate(id, 64))
	}
	return nil
}

// ValidateRef rejects opaque reference fields that are too long.
func ValidateRef(field, v string) error {
	if utf8.RuneCountInString(v) > MaxRefLength {
		return fmt.Errorf("%w: %s exceeds %d characters", core.ErrInvalidSchedule, field, MaxRefLength)
	}
	return nil
}

// SanitizeText strips control characters (except newlines and tabs) from
// free-form text and truncates it to MaxTextLength.
func SanitizeText(s string) string {
	return sanitize(s, MaxTextLength)
}

// SanitizeErrorMessage truncates and sanitizes error messages for clients
func SanitizeErrorMessage(msg string) string {
	return sanitize(msg, MaxErrorMessageLength)
}

func sanitize(msg string, limit int) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	return truncate(sanitized.String(), limit)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}

// ClampOccurrences keeps an expansion cap within [1, MaxOccurrences].
func ClampOccurrences(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxOccurrences {
		return MaxOccurrences
	}
	return n
}
