package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/maintsched/pkg/core"
	"github.com/fieldops/maintsched/pkg/core/coretest"
)

var day = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *coretest.MemoryRepository, status core.Status) *core.Schedule {
	t.Helper()
	id := uuid.New().String()
	s := &core.Schedule{
		ID:            id,
		AnchorID:      id,
		ScheduledDate: day,
		Status:        status,
		EquipmentRef:  "PUMP-07",
		Version:       1,
	}
	repo.Put(s)
	return s
}

func fixedClock() func() time.Time {
	return func() time.Time { return day.Add(time.Hour) }
}

func payload() *core.CompletionPayload {
	return &core.CompletionPayload{Notes: "replaced seal", ActualCost: 120.5, ActualDuration: 90 * time.Minute}
}

func TestMachine_Transition_SetsTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	m := New(repo, WithClock(fixedClock()))
	s := seed(t, repo, core.StatusScheduled)

	got, err := m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, core.StatusInProgress, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Equal(t, day.Add(time.Hour), *got.StartedAt)
	assert.Equal(t, 2, got.Version)

	got, err = m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
}

func TestMachine_Apply_DoesNotModifySnapshot(t *testing.T) {
	repo := coretest.NewMemoryRepository()
	m := New(repo)
	s := seed(t, repo, core.StatusScheduled)

	_, err := m.Apply(context.Background(), s, core.StatusInProgress, nil)
	require.NoError(t, err)
	assert.Equal(t, core.StatusScheduled, s.Status)
	assert.Nil(t, s.StartedAt)
}

func TestMachine_Transition_NotFound(t *testing.T) {
	m := New(coretest.NewMemoryRepository())
	_, err := m.Transition(context.Background(), core.TransitionRequest{ScheduleID: uuid.New().String(), Target: core.StatusInProgress})
	assert.ErrorIs(t, err, core.ErrScheduleNotFound)
}

func TestMachine_Transition_Rejections(t *testing.T) {
	tests := []struct {
		name string
		from core.Status
		to   core.Status
		want error
	}{
		{"scheduled to converted", core.StatusScheduled, core.StatusConverted, core.ErrInvalidTransition},
		{"in progress to scheduled", core.StatusInProgress, core.StatusScheduled, core.ErrInvalidTransition},
		{"completed to cancelled", core.StatusCompleted, core.StatusCancelled, core.ErrInvalidTransition},
		{"cancelled to scheduled", core.StatusCancelled, core.StatusScheduled, core.ErrTerminalState},
		{"cancelled to completed", core.StatusCancelled, core.StatusCompleted, core.ErrTerminalState},
		{"converted to completed", core.StatusConverted, core.StatusCompleted, core.ErrTerminalState},
		{"converted to converted", core.StatusConverted, core.StatusConverted, core.ErrTerminalState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := coretest.NewMemoryRepository()
			m := New(repo)
			s := seed(t, repo, tt.from)

			_, err := m.Transition(context.Background(), core.TransitionRequest{ScheduleID: s.ID, Target: tt.to, Payload: payload()})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var te *core.TransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, s.ID, te.ScheduleID)
			assert.Equal(t, tt.from, te.From)
			assert.Equal(t, tt.to, te.To)

			stored, err := repo.Load(context.Background(), s.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.from, stored.Status)
			assert.Equal(t, 1, stored.Version)
		})
	}
}

func TestMachine_Complete_RequiresPayload(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	m := New(repo)
	s := seed(t, repo, core.StatusInProgress)

	_, err := m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusCompleted})
	assert.ErrorIs(t, err, core.ErrCompletionPayloadRequired)

	_, err = m.Transition(ctx, core.TransitionRequest{
		ScheduleID: s.ID,
		Target:     core.StatusCompleted,
		Payload:    &core.CompletionPayload{ActualCost: -1},
	})
	assert.ErrorIs(t, err, core.ErrInvalidCompletionPayload)

	stored, err := repo.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusInProgress, stored.Status)
}

func TestMachine_Complete_PersistsPayload(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	m := New(repo, WithClock(fixedClock()))
	s := seed(t, repo, core.StatusScheduled)

	_, err := m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusCompleted, Payload: payload()})
	require.NoError(t, err)

	stored, err := repo.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, stored.Status)
	assert.Equal(t, "replaced seal", stored.CompletionNotes)
	require.NotNil(t, stored.ActualCost)
	assert.InDelta(t, 120.5, *stored.ActualCost, 0.001)
	assert.Equal(t, 90*time.Minute, stored.ActualDuration)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, day.Add(time.Hour), *stored.CompletedAt)
}

func TestMachine_Convert_InvokesAdapterOnce(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	var calls atomic.Int32
	conv := core.ConverterFunc(func(ctx context.Context, s *core.Schedule) (string, error) {
		calls.Add(1)
		assert.NotNil(t, s.ConversionLockedUntil, "adapter runs under a claim")
		return "OS-1", nil
	})
	m := New(repo, WithConverter(conv), WithClock(fixedClock()))
	s := seed(t, repo, core.StatusCompleted)

	got, err := m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	require.NoError(t, err)
	assert.Equal(t, core.StatusConverted, got.Status)
	require.NotNil(t, got.ServiceOrderRef)
	assert.Equal(t, "OS-1", *got.ServiceOrderRef)
	assert.NotNil(t, got.ConvertedAt)
	assert.Nil(t, got.ConversionLockedUntil)

	_, err = m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	assert.ErrorIs(t, err, core.ErrTerminalState)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMachine_Convert_FailureLeavesCompleted(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	fail := true
	conv := core.ConverterFunc(func(ctx context.Context, s *core.Schedule) (string, error) {
		if fail {
			return "", errors.New("order service unavailable")
		}
		return "OS-2", nil
	})
	m := New(repo, WithConverter(conv))
	s := seed(t, repo, core.StatusCompleted)

	_, err := m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConversionFailed)
	var ce *core.ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, s.ID, ce.ScheduleID)
	assert.Contains(t, err.Error(), "order service unavailable")

	stored, err := repo.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, stored.Status)
	assert.Nil(t, stored.ConversionLockedUntil, "claim released")
	assert.Nil(t, stored.ServiceOrderRef)

	fail = false
	got, err := m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	require.NoError(t, err)
	assert.Equal(t, "OS-2", *got.ServiceOrderRef)
}

func TestMachine_Convert_EmptyRefIsFailure(t *testing.T) {
	repo := coretest.NewMemoryRepository()
	conv := core.ConverterFunc(func(ctx context.Context, s *core.Schedule) (string, error) { return "", nil })
	m := New(repo, WithConverter(conv))
	s := seed(t, repo, core.StatusCompleted)

	_, err := m.Transition(context.Background(), core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	assert.ErrorIs(t, err, core.ErrConversionFailed)
}

func TestMachine_Convert_NoAdapter(t *testing.T) {
	repo := coretest.NewMemoryRepository()
	m := New(repo)
	s := seed(t, repo, core.StatusCompleted)

	_, err := m.Transition(context.Background(), core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	assert.ErrorIs(t, err, core.ErrNoConverter)
}

func TestMachine_Convert_LiveClaimBlocks(t *testing.T) {
	repo := coretest.NewMemoryRepository()
	conv := core.ConverterFunc(func(ctx context.Context, s *core.Schedule) (string, error) {
		t.Fatal("adapter must not run while another claim is live")
		return "", nil
	})
	m := New(repo, WithConverter(conv), WithClock(fixedClock()))
	s := seed(t, repo, core.StatusCompleted)
	until := day.Add(time.Hour + time.Minute)
	s.ConversionLockedUntil = &until
	repo.Put(s)

	_, err := m.Transition(context.Background(), core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	assert.ErrorIs(t, err, core.ErrConversionInProgress)
}

func TestMachine_Convert_StaleClaimTakenOver(t *testing.T) {
	repo := coretest.NewMemoryRepository()
	conv := core.ConverterFunc(func(ctx context.Context, s *core.Schedule) (string, error) { return "OS-3", nil })
	m := New(repo, WithConverter(conv), WithClock(fixedClock()), WithConversionLockTTL(time.Minute))
	s := seed(t, repo, core.StatusCompleted)
	expired := day
	s.ConversionLockedUntil = &expired
	repo.Put(s)

	got, err := m.Transition(context.Background(), core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	require.NoError(t, err)
	assert.Equal(t, core.StatusConverted, got.Status)
}

func TestMachine_Convert_ConcurrentClaimsInvokeOnce(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	var calls atomic.Int32
	conv := core.ConverterFunc(func(ctx context.Context, s *core.Schedule) (string, error) {
		calls.Add(1)
		return "OS-" + s.ID[:8], nil
	})
	m := New(repo, WithConverter(conv))
	s := seed(t, repo, core.StatusCompleted)

	snapshot, err := repo.Load(ctx, s.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Apply(ctx, snapshot, core.StatusConverted, nil); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(1), calls.Load())
}

func TestMachine_Convert_ClaimBlocksMutations(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	var m *Machine
	var calls atomic.Int32
	conv := core.ConverterFunc(func(ctx context.Context, s *core.Schedule) (string, error) {
		calls.Add(1)
		note := "moved to bay 2"
		_, err := m.UpdateDetails(ctx, s.ID, Details{Observations: &note})
		assert.ErrorIs(t, err, core.ErrConversionInProgress)
		_, err = m.Reschedule(ctx, s.ID, day.AddDate(0, 0, 3))
		assert.ErrorIs(t, err, core.ErrConversionInProgress)
		return "OS-1", nil
	})
	m = New(repo, WithConverter(conv), WithClock(fixedClock()))
	s := seed(t, repo, core.StatusCompleted)

	got, err := m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	require.NoError(t, err)
	assert.Equal(t, core.StatusConverted, got.Status)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, got.ScheduledDate.Equal(day))
	assert.Empty(t, got.Observations)
}

func TestMachine_Mutations_AllowedAfterClaimExpires(t *testing.T) {
	repo := coretest.NewMemoryRepository()
	m := New(repo, WithClock(fixedClock()))
	s := seed(t, repo, core.StatusCompleted)
	expired := day
	s.ConversionLockedUntil = &expired
	repo.Put(s)

	note := "checked"
	got, err := m.UpdateDetails(context.Background(), s.ID, Details{Observations: &note})
	require.NoError(t, err)
	assert.Equal(t, "checked", got.Observations)
}

func TestMachine_Convert_ConflictOnRecordRetriesWithoutAdapter(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	var calls atomic.Int32
	conv := core.ConverterFunc(func(ctx context.Context, s *core.Schedule) (string, error) {
		calls.Add(1)
		// Another writer bumps the row behind the machine's back.
		cur, err := repo.Load(ctx, s.ID)
		require.NoError(t, err)
		cur.Observations = "touched by import job"
		cur.Version++
		repo.Put(cur)
		return "OS-9", nil
	})
	m := New(repo, WithConverter(conv), WithClock(fixedClock()))
	s := seed(t, repo, core.StatusCompleted)

	got, err := m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	require.NoError(t, err)
	assert.Equal(t, core.StatusConverted, got.Status)
	require.NotNil(t, got.ServiceOrderRef)
	assert.Equal(t, "OS-9", *got.ServiceOrderRef)
	assert.Nil(t, got.ConversionLockedUntil)
	assert.Equal(t, "touched by import job", got.Observations, "record is applied on the reloaded row")
	assert.Equal(t, int32(1), calls.Load())

	_, err = m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	assert.ErrorIs(t, err, core.ErrTerminalState)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMachine_Convert_LostClaimKeepsOrderUnrecorded(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	conv := core.ConverterFunc(func(ctx context.Context, s *core.Schedule) (string, error) {
		cur, err := repo.Load(ctx, s.ID)
		require.NoError(t, err)
		cur.ConversionLockedUntil = nil
		cur.Version++
		repo.Put(cur)
		return "OS-4", nil
	})
	m := New(repo, WithConverter(conv), WithClock(fixedClock()))
	s := seed(t, repo, core.StatusCompleted)

	_, err := m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrVersionConflict)

	stored, err := repo.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, stored.Status)
	assert.Nil(t, stored.ServiceOrderRef)
}

func TestMachine_StaleSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	m := New(repo)
	s := seed(t, repo, core.StatusScheduled)

	stale, err := repo.Load(ctx, s.ID)
	require.NoError(t, err)

	_, err = m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusInProgress})
	require.NoError(t, err)

	_, err = m.Apply(ctx, stale, core.StatusCancelled, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrVersionConflict)
	var te *core.TransitionError
	assert.ErrorAs(t, err, &te)
}

func TestMachine_ConcurrentConflictingTransitions(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	m := New(repo)
	s := seed(t, repo, core.StatusInProgress)

	snapshot, err := repo.Load(ctx, s.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	targets := []core.Status{core.StatusCompleted, core.StatusCancelled}
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to core.Status) {
			defer wg.Done()
			_, errs[i] = m.Apply(ctx, snapshot, to, payload())
		}(i, to)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.ErrorIs(t, err, core.ErrVersionConflict)
		}
	}
	assert.Equal(t, 1, failed)

	stored, err := repo.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Contains(t, targets, stored.Status)
	assert.Equal(t, 2, stored.Version)
}

func TestMachine_SaveErrorWrapped(t *testing.T) {
	repo := coretest.NewMemoryRepository()
	m := New(repo)
	s := seed(t, repo, core.StatusScheduled)
	boom := errors.New("disk full")
	repo.Faults.SaveErr = boom

	_, err := m.Transition(context.Background(), core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusInProgress})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), s.ID)
}

func TestMachine_OnTransition(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	m := New(repo, WithConverter(core.ConverterFunc(func(ctx context.Context, s *core.Schedule) (string, error) {
		return "OS-9", nil
	})))
	s := seed(t, repo, core.StatusScheduled)

	var seen []string
	m.OnTransition(func(ctx context.Context, got *core.Schedule, from core.Status) {
		seen = append(seen, string(from)+">"+string(got.Status))
	})

	_, err := m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusCompleted, Payload: payload()})
	require.NoError(t, err)
	_, err = m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusConverted})
	require.NoError(t, err)
	_, err = m.Transition(ctx, core.TransitionRequest{ScheduleID: s.ID, Target: core.StatusCancelled})
	require.Error(t, err)

	assert.Equal(t, []string{"SCHEDULED>COMPLETED", "COMPLETED>CONVERTED"}, seen)
}

func TestMachine_Reschedule(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	m := New(repo)
	s := seed(t, repo, core.StatusScheduled)

	moved := day.AddDate(0, 0, 3)
	got, err := m.Reschedule(ctx, s.ID, moved)
	require.NoError(t, err)
	assert.Equal(t, moved, got.ScheduledDate)

	_, err = m.Reschedule(ctx, s.ID, time.Time{})
	assert.ErrorIs(t, err, core.ErrInvalidSchedule)
}

func TestMachine_Reschedule_AnchorPastUntil(t *testing.T) {
	repo := coretest.NewMemoryRepository()
	m := New(repo)
	s := seed(t, repo, core.StatusScheduled)
	until := day.AddDate(0, 1, 0)
	s.Rule = &core.RecurrenceRule{Frequency: core.FrequencyWeekly, Interval: 1, Termination: core.TerminateOnDate, Until: &until}
	repo.Put(s)

	_, err := m.Reschedule(context.Background(), s.ID, until.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, core.ErrInvalidRecurrenceRule)
}

func TestMachine_Mutations_RejectTerminal(t *testing.T) {
	ctx := context.Background()
	for _, status := range []core.Status{core.StatusConverted, core.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			repo := coretest.NewMemoryRepository()
			m := New(repo)
			s := seed(t, repo, status)

			_, err := m.Reschedule(ctx, s.ID, day.AddDate(0, 0, 1))
			assert.ErrorIs(t, err, core.ErrTerminalState)

			note := "late"
			_, err = m.UpdateDetails(ctx, s.ID, Details{Observations: &note})
			assert.ErrorIs(t, err, core.ErrTerminalState)

			_, err = m.UpdateRule(ctx, s.ID, nil)
			assert.ErrorIs(t, err, core.ErrTerminalState)
		})
	}
}

func TestMachine_UpdateRule(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	m := New(repo)
	anchor := seed(t, repo, core.StatusScheduled)
	occ := anchor.Occurrence(uuid.New().String(), day.AddDate(0, 0, 7))
	repo.Put(occ)

	rule := &core.RecurrenceRule{Frequency: core.FrequencyMonthly, Interval: 1, Termination: core.TerminateIndefinite}
	got, err := m.UpdateRule(ctx, anchor.ID, rule)
	require.NoError(t, err)
	require.NotNil(t, got.Rule)
	assert.Equal(t, core.FrequencyMonthly, got.Rule.Frequency)

	rule.Interval = 99
	stored, err := repo.Load(ctx, anchor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Rule.Interval, "stored rule does not alias the argument")

	_, err = m.UpdateRule(ctx, occ.ID, rule)
	assert.ErrorIs(t, err, core.ErrNotAnchor)

	_, err = m.UpdateRule(ctx, anchor.ID, &core.RecurrenceRule{Frequency: core.FrequencyDaily})
	assert.ErrorIs(t, err, core.ErrInvalidRecurrenceRule)

	got, err = m.UpdateRule(ctx, anchor.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, got.Rule)
}

func TestMachine_UpdateDetails(t *testing.T) {
	ctx := context.Background()
	repo := coretest.NewMemoryRepository()
	m := New(repo)
	s := seed(t, repo, core.StatusInProgress)

	assignee := "tech-12"
	cost := 300.0
	desc := "check bearings\x00"
	got, err := m.UpdateDetails(ctx, s.ID, Details{AssignedTo: &assignee, EstimatedCost: &cost, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "tech-12", got.AssignedTo)
	assert.Equal(t, 300.0, got.EstimatedCost)
	assert.Equal(t, "check bearings", got.Description)
	assert.Equal(t, "PUMP-07", got.EquipmentRef)

	negative := -1.0
	_, err = m.UpdateDetails(ctx, s.ID, Details{EstimatedCost: &negative})
	assert.ErrorIs(t, err, core.ErrInvalidSchedule)
}
