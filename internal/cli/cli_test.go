package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/maintsched/internal/config"
	"github.com/fieldops/maintsched/pkg/core"
)

var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// setupCLI points the commands at a fresh SQLite file and captures output.
func setupCLI(t *testing.T) *bytes.Buffer {
	t.Helper()
	cfg = &config.Config{
		Driver:            "sqlite",
		DSN:               filepath.Join(t.TempDir(), "maintsched.db"),
		Timezone:          "UTC",
		MaxOccurrences:    500,
		ConversionLockTTL: 5 * time.Minute,
		Log:               config.LogConfig{Level: "error", Format: "text"},
	}
	out := &bytes.Buffer{}
	stdout = out
	createOpts = createOptions{kind: "preventive", durationUnit: "months"}
	transitionOpts = transitionOptions{}
	familyDeleteScope = string(core.ScopeFamily)
	familyDeleteForce = false
	t.Cleanup(func() {
		cfg = nil
		stdout = os.Stdout
		stdin = os.Stdin
	})

	require.NoError(t, runMigrate(migrateCmd, nil))
	assert.Contains(t, out.String(), "Migrated sqlite database.")
	out.Reset()
	return out
}

func createBiweekly(t *testing.T, out *bytes.Buffer) []string {
	t.Helper()
	createOpts.date = "2024-01-01"
	createOpts.equipment = "PUMP-7"
	createOpts.recurrence = "quinzenal"
	createOpts.count = 3
	require.NoError(t, runCreate(createCmd, nil))
	ids := uuidPattern.FindAllString(out.String(), -1)
	require.Len(t, ids, 5, "anchor row plus four member rows")
	out.Reset()
	return ids[1:]
}

func TestCreate_LegacyRecurrence(t *testing.T) {
	out := setupCLI(t)
	createOpts.date = "2024-01-01"
	createOpts.equipment = "PUMP-7"
	createOpts.recurrence = "quinzenal"
	createOpts.count = 3

	require.NoError(t, runCreate(createCmd, nil))
	text := out.String()
	for _, d := range []string{"2024-01-01", "2024-01-15", "2024-01-29", "2024-02-12"} {
		assert.Contains(t, text, d)
	}
	assert.Contains(t, text, "Agendado")
	assert.NotContains(t, text, "Warning")
}

func TestCreate_Truncated(t *testing.T) {
	out := setupCLI(t)
	cfg.MaxOccurrences = 6
	createOpts.date = "2024-01-31"
	createOpts.recurrence = "monthly"

	require.NoError(t, runCreate(createCmd, nil))
	assert.Contains(t, out.String(), "2024-02-29", "clamped to month end")
	assert.Contains(t, out.String(), "Warning: series stopped at the cap of 6 occurrences.")
}

func TestCreate_Rejections(t *testing.T) {
	setupCLI(t)

	createOpts.date = "01/02/2024"
	assert.ErrorContains(t, runCreate(createCmd, nil), "invalid date")

	createOpts.date = "2024-01-01"
	createOpts.recurrence = "fortnightly-ish"
	assert.ErrorIs(t, runCreate(createCmd, nil), core.ErrInvalidRecurrenceRule)

	createOpts.recurrence = "weekly"
	createOpts.count = 2
	createOpts.until = "2024-03-01"
	assert.ErrorContains(t, runCreate(createCmd, nil), "only one of")

	createOpts.count = 0
	createOpts.until = "2023-12-01"
	assert.ErrorIs(t, runCreate(createCmd, nil), core.ErrInvalidRecurrenceRule)
}

func TestTransition_ToConverted(t *testing.T) {
	out := setupCLI(t)
	ids := createBiweekly(t, out)

	require.NoError(t, runTransition(transitionCmd, []string{ids[1], "em andamento"}))
	assert.Contains(t, out.String(), "IN_PROGRESS")
	out.Reset()

	transitionOpts = transitionOptions{notes: "seal replaced", cost: 42, duration: 90 * time.Minute}
	require.NoError(t, runTransition(transitionCmd, []string{ids[1], "concluido"}))
	assert.Contains(t, out.String(), "COMPLETED")
	out.Reset()

	require.NoError(t, runTransition(transitionCmd, []string{ids[1], "CONVERTED"}))
	assert.Contains(t, out.String(), "CONVERTED")
	assert.Contains(t, out.String(), "OS-")
	out.Reset()

	err := runTransition(transitionCmd, []string{ids[1], "CANCELLED"})
	assert.ErrorIs(t, err, core.ErrTerminalState)

	err = runTransition(transitionCmd, []string{ids[2], "done-ish"})
	assert.ErrorIs(t, err, core.ErrUnknownStatus)
}

func TestFamily_InfoListDelete(t *testing.T) {
	out := setupCLI(t)
	ids := createBiweekly(t, out)

	require.NoError(t, runFamilyInfo(familyInfoCmd, []string{ids[2]}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{ids[0], "yes", "3", "no"}, strings.Fields(lines[1]))
	out.Reset()

	require.NoError(t, runFamilyList(familyListCmd, []string{ids[0]}))
	assert.Len(t, uuidPattern.FindAllString(out.String(), -1), 4)
	out.Reset()

	stdin = strings.NewReader("n\n")
	require.NoError(t, runFamilyDelete(familyDeleteCmd, []string{ids[1]}))
	assert.Contains(t, out.String(), "This will delete 4 schedules")
	assert.Contains(t, out.String(), "Aborted.")
	out.Reset()

	stdin = strings.NewReader("yes\n")
	require.NoError(t, runFamilyDelete(familyDeleteCmd, []string{ids[1]}))
	assert.Contains(t, out.String(), "Deleted 4 schedules.")

	err := runFamilyInfo(familyInfoCmd, []string{ids[0]})
	assert.ErrorIs(t, err, core.ErrScheduleNotFound)
}

func TestFamily_DeleteSelf(t *testing.T) {
	out := setupCLI(t)
	ids := createBiweekly(t, out)

	familyDeleteScope = "self"
	require.NoError(t, runFamilyDelete(familyDeleteCmd, []string{ids[3]}))
	assert.Contains(t, out.String(), "Deleted 1 schedules.")
	out.Reset()

	require.NoError(t, runFamilyInfo(familyInfoCmd, []string{ids[0]}))
	assert.Contains(t, out.String(), ids[0])
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, "2", strings.Fields(lines[1])[2])

	familyDeleteScope = "everything"
	assert.ErrorIs(t, runFamilyDelete(familyDeleteCmd, []string{ids[0]}), core.ErrInvalidScope)
}

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	d, err := parseDate("2024-02-29", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, loc), d)

	d, err = parseDate("2024-02-29T10:00:00Z", loc)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC)))
}
