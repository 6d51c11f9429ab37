package runner

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/stride/internal/domain"
)

// newManualTimer returns a timer whose background loop never fires, so tests
// drive it with tick().
func newManualTimer(t *testing.T, cfg Config) *Timer {
	t.Helper()
	cfg.TickInterval = time.Hour
	timer := NewTimer(cfg)
	t.Cleanup(timer.Close)
	return timer
}

func ticks(timer *Timer, n int) {
	for i := 0; i < n; i++ {
		timer.tick()
	}
}

func TestTimer_RunPauseResume(t *testing.T) {
	timer := newManualTimer(t, Config{})

	require.NoError(t, timer.Start("run", 1200, 200, 0))
	ticks(timer, 10)

	s := timer.Snapshot()
	assert.Equal(t, 10, s.ElapsedSeconds)
	assert.Equal(t, 2, s.EnergyUnits)
	assert.True(t, s.Running)

	require.NoError(t, timer.Pause())
	assert.False(t, timer.Snapshot().Running)

	ticks(timer, 3)
	assert.Equal(t, 10, timer.Snapshot().ElapsedSeconds, "paused clock must not advance")

	require.NoError(t, timer.Resume())
	ticks(timer, 5)
	assert.Equal(t, 15, timer.Snapshot().ElapsedSeconds)
}

func TestTimer_StartConflict(t *testing.T) {
	timer := newManualTimer(t, Config{})

	require.NoError(t, timer.Start("yoga", 300, 50, 0))
	err := timer.Start("swim", 600, 100, 0)

	assert.ErrorIs(t, err, ErrActivityConflict)
	assert.Equal(t, "yoga", timer.ActiveActivityID())
	assert.Equal(t, 300, timer.Snapshot().TargetSeconds)
}

func TestTimer_SingleOwner(t *testing.T) {
	timer := newManualTimer(t, Config{})

	require.NoError(t, timer.Start("a", 60, 10, 0))
	ticks(timer, 2)

	for _, id := range []string{"b", "c", "d"} {
		assert.ErrorIs(t, timer.Start(id, 60, 10, 0), ErrActivityConflict)
		assert.Equal(t, "a", timer.ActiveActivityID())
	}
	assert.Equal(t, 2, timer.Snapshot().ElapsedSeconds)
}

func TestTimer_ResumeWithoutStart(t *testing.T) {
	timer := newManualTimer(t, Config{})

	assert.ErrorIs(t, timer.Resume(), ErrNoActiveSession)
	assert.False(t, timer.HasActiveSession())
	assert.ErrorIs(t, timer.Pause(), ErrNoActiveSession)
}

func TestTimer_InvalidConfiguration(t *testing.T) {
	timer := newManualTimer(t, Config{})
	require.NoError(t, timer.Start("run", 600, 100, 5))

	tests := []struct {
		name       string
		activityID string
		targetSec  int
		energy     int
		resumeFrom int
	}{
		{"zero duration", "run", 0, 100, 0},
		{"negative duration", "run", -10, 100, 0},
		{"zero energy", "run", 600, 0, 0},
		{"negative resume", "run", 600, 100, -1},
		{"empty activity", "", 600, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := timer.Start(tt.activityID, tt.targetSec, tt.energy, tt.resumeFrom)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)

			s := timer.Snapshot()
			assert.Equal(t, "run", s.ActivityID)
			assert.Equal(t, 600, s.TargetSeconds)
			assert.Equal(t, 5, s.ElapsedSeconds)
		})
	}
}

func TestTimer_ResumeFidelity(t *testing.T) {
	timer := newManualTimer(t, Config{})

	require.NoError(t, timer.Start("a", 600, 100, 200))
	s := timer.Snapshot()
	assert.Equal(t, 200, s.ElapsedSeconds)
	assert.True(t, s.Running)

	require.NoError(t, timer.Pause())
	ticks(timer, 4)
	assert.Equal(t, 200, timer.Snapshot().ElapsedSeconds)

	require.NoError(t, timer.Resume())
	ticks(timer, 1)
	assert.Equal(t, 201, timer.Snapshot().ElapsedSeconds)
}

func TestTimer_RestartSameActivityKeepsRun(t *testing.T) {
	timer := newManualTimer(t, Config{})

	require.NoError(t, timer.Start("a", 600, 100, 0))
	runID := timer.Snapshot().RunID
	ticks(timer, 30)

	require.NoError(t, timer.Start("a", 600, 100, 30))
	s := timer.Snapshot()
	assert.Equal(t, runID, s.RunID)
	assert.Equal(t, 30, s.ElapsedSeconds)
}

func TestTimer_ResetIdempotent(t *testing.T) {
	timer := newManualTimer(t, Config{})
	require.NoError(t, timer.Start("a", 600, 100, 0))
	ticks(timer, 3)

	timer.Reset()
	first := timer.Snapshot()
	timer.Reset()
	second := timer.Snapshot()

	assert.Equal(t, domain.Session{}, first)
	assert.Equal(t, first, second)
	assert.False(t, timer.HasActiveSession())
	assert.Empty(t, timer.ActiveActivityID())

	ticks(timer, 2)
	assert.Equal(t, 0, timer.Snapshot().ElapsedSeconds)
}

func TestTimer_EnergyProportional(t *testing.T) {
	timer := newManualTimer(t, Config{})
	require.NoError(t, timer.Start("bike", 900, 150, 0))

	ticks(timer, 450)

	s := timer.Snapshot()
	assert.Equal(t, 450, s.ElapsedSeconds)
	assert.Equal(t, 75, s.EnergyUnits)
}

func TestTimer_CompletionNotCapped(t *testing.T) {
	var mu sync.Mutex
	var finished []domain.Session
	var completedFlags []bool
	timer := newManualTimer(t, Config{OnFinish: func(s domain.Session, completed bool) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, s)
		completedFlags = append(completedFlags, completed)
	}})

	events, unsubscribe := timer.Subscribe(16)
	defer unsubscribe()

	require.NoError(t, timer.Start("plank", 3, 1, 0))
	ticks(timer, 5)

	s := timer.Snapshot()
	assert.Equal(t, 5, s.ElapsedSeconds)
	assert.True(t, s.Running)
	assert.True(t, s.Completed())

	completedEvents := 0
	for len(events) > 0 {
		if (<-events).Type == EventCompleted {
			completedEvents++
		}
	}
	assert.Equal(t, 1, completedEvents)

	timer.Reset()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finished, 1, "completed session is reported once, not again on reset")
	assert.True(t, completedFlags[0])
	assert.Equal(t, 3, finished[0].ElapsedSeconds)
}

func TestTimer_StopOnComplete(t *testing.T) {
	timer := newManualTimer(t, Config{StopOnComplete: true})
	require.NoError(t, timer.Start("plank", 3, 1, 0))

	ticks(timer, 5)

	s := timer.Snapshot()
	assert.Equal(t, 3, s.ElapsedSeconds)
	assert.False(t, s.Running)
}

func TestTimer_ResetReportsProgress(t *testing.T) {
	reports := 0
	var got domain.Session
	timer := newManualTimer(t, Config{OnFinish: func(s domain.Session, completed bool) {
		reports++
		got = s
		assert.False(t, completed)
	}})

	require.NoError(t, timer.Start("row", 600, 100, 0))
	timer.Reset()
	assert.Equal(t, 0, reports, "no progress, nothing to report")

	require.NoError(t, timer.Start("row", 600, 100, 0))
	ticks(timer, 12)
	timer.Reset()
	assert.Equal(t, 1, reports)
	assert.Equal(t, 12, got.ElapsedSeconds)
	assert.Equal(t, "row", got.ActivityID)
}

func TestTimer_Replace(t *testing.T) {
	var reported domain.Session
	timer := newManualTimer(t, Config{OnFinish: func(s domain.Session, _ bool) { reported = s }})

	require.NoError(t, timer.Start("a", 600, 100, 0))
	ticks(timer, 7)

	prev, err := timer.Replace("b", 300, 30, 0)
	require.NoError(t, err)
	assert.Equal(t, "a", prev.ActivityID)
	assert.Equal(t, 7, reported.ElapsedSeconds)
	assert.Equal(t, "b", timer.ActiveActivityID())
	assert.Equal(t, 0, timer.Snapshot().ElapsedSeconds)
}

func TestTimer_Retarget(t *testing.T) {
	timer := newManualTimer(t, Config{})
	require.NoError(t, timer.Start("run", 600, 100, 0))
	ticks(timer, 60)

	require.NoError(t, timer.Retarget("run", 1200))
	s := timer.Snapshot()
	assert.Equal(t, 1200, s.TargetSeconds)
	assert.Equal(t, 200, s.TargetEnergyUnits)
	assert.Equal(t, 10, s.EnergyUnits)

	assert.ErrorIs(t, timer.Retarget("swim", 300), ErrActivityConflict)
	assert.ErrorIs(t, timer.Retarget("run", 0), ErrInvalidConfiguration)

	timer.Reset()
	assert.ErrorIs(t, timer.Retarget("run", 300), ErrNoActiveSession)
}

func TestTimer_SubscribeAndClose(t *testing.T) {
	timer := NewTimer(Config{TickInterval: time.Hour})

	events, unsubscribe := timer.Subscribe(1)
	require.NoError(t, timer.Start("a", 60, 10, 0))
	timer.tick()
	timer.tick()

	event := <-events
	assert.Equal(t, EventTick, event.Type, "only the newest event is kept")
	assert.Equal(t, 2, event.Session.ElapsedSeconds)

	timer.Close()
	_, ok := <-events
	assert.False(t, ok)

	unsubscribe()
	timer.Close()

	late, _ := timer.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
}

func TestTimer_LoopAdvances(t *testing.T) {
	timer := NewTimer(Config{TickInterval: 5 * time.Millisecond})
	defer timer.Close()

	require.NoError(t, timer.Start("a", 600, 100, 0))

	require.Eventually(t, func() bool {
		return timer.Snapshot().ElapsedSeconds >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestTimer_ConcurrentCommands(t *testing.T) {
	timer := newManualTimer(t, Config{})
	require.NoError(t, timer.Start("a", 600, 100, 0))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ticks(timer, 100)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = timer.Pause()
				_ = timer.Resume()
				_ = timer.Snapshot()
			}
		}()
	}
	wg.Wait()

	s := timer.Snapshot()
	assert.LessOrEqual(t, s.ElapsedSeconds, 400)
	assert.Equal(t, domain.EnergyFor(s.ElapsedSeconds, 600, 100), s.EnergyUnits)
}

func TestTimer_ClosedRefusesCommands(t *testing.T) {
	timer := NewTimer(Config{TickInterval: time.Hour})
	require.NoError(t, timer.Start("a", 60, 10, 0))
	require.NoError(t, timer.Pause())
	timer.Close()

	assert.ErrorIs(t, timer.Resume(), ErrTimerClosed)
	assert.ErrorIs(t, timer.Start("a", 60, 10, 0), ErrTimerClosed)
	_, err := timer.Replace("b", 60, 10, 0)
	assert.ErrorIs(t, err, ErrTimerClosed)

	s := timer.Snapshot()
	assert.Equal(t, "a", s.ActivityID)
	assert.False(t, s.Running)
}
