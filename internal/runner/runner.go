package runner

import (
	"errors"
	"sync"
	"time"

	"github.com/hperssn/stride/internal/domain"
	"github.com/hperssn/stride/internal/logging"
)

var (
	ErrInvalidConfiguration = errors.New("invalid session configuration")
	ErrNoActiveSession      = errors.New("no active session")
	ErrActivityConflict     = errors.New("another activity is in progress")
	ErrTimerClosed          = errors.New("timer is closed")
)

// EventType identifies what changed in the session.
type EventType string

const (
	EventStarted    EventType = "started"
	EventTick       EventType = "tick"
	EventPaused     EventType = "paused"
	EventResumed    EventType = "resumed"
	EventRetargeted EventType = "retargeted"
	EventCompleted  EventType = "completed"
	EventReset      EventType = "reset"
)

// Event carries a full copy of the session after a change.
type Event struct {
	Type    EventType      `json:"type"`
	Session domain.Session `json:"session"`
	At      time.Time      `json:"at"`
}

// FinishFunc receives a session that reached its target or was discarded with
// progress. It runs outside the timer lock.
type FinishFunc func(s domain.Session, completed bool)

// Config contains runtime options for Timer.
type Config struct {
	TickInterval   time.Duration
	StopOnComplete bool
	OnFinish       FinishFunc
}

// Timer owns the single canonical session and advances it once per tick.
// It lives independently of any observer; detaching observers never touches it.
type Timer struct {
	mu        sync.Mutex
	cfg       Config
	session   domain.Session
	completed string // run id that already fired EventCompleted
	finished  string // run id already handed to OnFinish

	subs    map[int]chan Event
	nextSub int

	looping bool
	closed  bool
	stopCh  chan struct{}
}

// NewTimer creates an idle Timer. The tick loop starts with the first session.
func NewTimer(cfg Config) *Timer {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Timer{
		cfg:    cfg,
		subs:   make(map[int]chan Event),
		stopCh: make(chan struct{}),
	}
}

// Start begins (or restarts in place) a session for activityID. Restarting the
// same activity keeps its run id and sets the elapsed time to resumeFrom. A
// session for any other activity is left alone and ErrActivityConflict returned.
// A closed timer accepts no new sessions.
func (t *Timer) Start(activityID string, targetSec, targetEnergy, resumeFrom int) error {
	if err := validateStart(activityID, targetSec, targetEnergy, resumeFrom); err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTimerClosed
	}
	if t.session.Active() && t.session.ActivityID != activityID {
		active := t.session.ActivityID
		t.mu.Unlock()
		logging.Logger.Debug("Start refused", "activity_id", activityID, "active_activity_id", active)
		return ErrActivityConflict
	}
	t.startLocked(activityID, targetSec, targetEnergy, resumeFrom)
	t.mu.Unlock()
	return nil
}

// Replace atomically discards whatever session is active and starts a new one.
func (t *Timer) Replace(activityID string, targetSec, targetEnergy, resumeFrom int) (domain.Session, error) {
	if err := validateStart(activityID, targetSec, targetEnergy, resumeFrom); err != nil {
		return domain.Session{}, err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domain.Session{}, ErrTimerClosed
	}
	prev := t.session
	var report *domain.Session
	if prev.Active() && prev.ActivityID != activityID {
		report = t.takeFinishedLocked(false)
		t.session = domain.Session{}
	}
	t.startLocked(activityID, targetSec, targetEnergy, resumeFrom)
	t.mu.Unlock()

	t.report(report, false)
	return prev, nil
}

func (t *Timer) startLocked(activityID string, targetSec, targetEnergy, resumeFrom int) {
	next := domain.NewSession(activityID, targetSec, targetEnergy, resumeFrom)
	if t.session.ActivityID == activityID {
		next.RunID = t.session.RunID
		next.StartedAt = t.session.StartedAt
	}
	if next.RunID != t.completed || !next.Completed() {
		t.completed = ""
		t.finished = ""
	}
	t.session = next
	t.emitLocked(EventStarted)
	t.ensureLoopLocked()

	logging.Logger.Debug("Session started",
		"activity_id", activityID,
		"run_id", next.RunID,
		"elapsed", resumeFrom,
		"target_sec", targetSec,
	)
}

// Pause stops the clock and keeps the session.
func (t *Timer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.session.Active() {
		return ErrNoActiveSession
	}
	if !t.session.Running {
		return nil
	}
	t.session.Running = false
	t.emitLocked(EventPaused)
	return nil
}

// Resume restarts the clock of the active session from its retained elapsed time.
// It fails with ErrTimerClosed once Close has been called.
func (t *Timer) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTimerClosed
	}
	if !t.session.Active() {
		return ErrNoActiveSession
	}
	if t.session.Running {
		return nil
	}
	t.session.Running = true
	t.emitLocked(EventResumed)
	t.ensureLoopLocked()
	return nil
}

// Retarget changes the target duration of the active session for activityID and
// scales its energy goal proportionally.
func (t *Timer) Retarget(activityID string, targetSec int) error {
	if targetSec <= 0 {
		return ErrInvalidConfiguration
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.session.Active() {
		return ErrNoActiveSession
	}
	if t.session.ActivityID != activityID {
		return ErrActivityConflict
	}
	t.session.Retarget(targetSec)
	t.emitLocked(EventRetargeted)
	return nil
}

// Reset clears the session. Calling it with nothing active is a no-op.
func (t *Timer) Reset() {
	t.mu.Lock()
	if !t.session.Active() {
		t.mu.Unlock()
		return
	}
	report := t.takeFinishedLocked(false)
	t.session = domain.Session{}
	t.completed = ""
	t.finished = ""
	t.emitLocked(EventReset)
	t.mu.Unlock()

	t.report(report, false)
}

// Snapshot returns a copy of the current session.
func (t *Timer) Snapshot() domain.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

func (t *Timer) HasActiveSession() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Active()
}

func (t *Timer) ActiveActivityID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.ActivityID
}

// Subscribe registers an observer channel. Slow readers only ever miss older
// events; the newest one is always delivered. The returned func unregisters and
// closes the channel and may be called more than once.
func (t *Timer) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.mu.Unlock()

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
}

// Close stops the tick loop and closes all subscriber channels. The session
// itself is discarded with the process; nothing is persisted.
func (t *Timer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	close(t.stopCh)
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

func (t *Timer) ensureLoopLocked() {
	if t.looping {
		return
	}
	t.looping = true
	go t.run()
}

func (t *Timer) run() {
	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *Timer) tick() {
	t.mu.Lock()
	if !t.session.Running {
		t.mu.Unlock()
		return
	}

	t.session.ElapsedSeconds++
	t.session.Recompute()

	var report *domain.Session
	if t.session.Completed() && t.completed != t.session.RunID {
		t.completed = t.session.RunID
		if t.cfg.StopOnComplete {
			t.session.Running = false
		}
		report = t.takeFinishedLocked(true)
		t.emitLocked(EventCompleted)
	} else {
		t.emitLocked(EventTick)
	}
	t.mu.Unlock()

	t.report(report, true)
}

// takeFinishedLocked returns the session to hand to OnFinish, or nil when it has
// no progress or was already reported.
func (t *Timer) takeFinishedLocked(completed bool) *domain.Session {
	if t.cfg.OnFinish == nil || t.finished == t.session.RunID {
		return nil
	}
	if !completed && t.session.ElapsedSeconds == 0 {
		return nil
	}
	t.finished = t.session.RunID
	s := t.session
	return &s
}

func (t *Timer) report(s *domain.Session, completed bool) {
	if s == nil {
		return
	}
	t.cfg.OnFinish(*s, completed)
}

func (t *Timer) emitLocked(eventType EventType) {
	event := Event{Type: eventType, Session: t.session, At: time.Now()}
	for _, ch := range t.subs {
		select {
		case ch <- event:
			continue
		default:
		}
		// Drop the oldest queued event to make room for the newest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}

func validateStart(activityID string, targetSec, targetEnergy, resumeFrom int) error {
	if activityID == "" || targetSec <= 0 || targetEnergy <= 0 || resumeFrom < 0 {
		return ErrInvalidConfiguration
	}
	return nil
}
