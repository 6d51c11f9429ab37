package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hperssn/stride/internal/domain"
	"github.com/hperssn/stride/internal/logging"
)

var ErrUnknownPolicy = errors.New("unknown conflict policy")

// Process is the command surface of the session owner.
type Process interface {
	Start(activityID string, targetSec, targetEnergy, resumeFrom int) error
	Replace(activityID string, targetSec, targetEnergy, resumeFrom int) (domain.Session, error)
	Pause() error
	Resume() error
	Reset()
	Snapshot() domain.Session
	HasActiveSession() bool
	ActiveActivityID() string
	Subscribe(buffer int) (<-chan Event, func())
}

// ConflictPolicy decides what IssueStart does when another activity holds the
// timer.
type ConflictPolicy string

const (
	// PolicyReject leaves the other activity alone and reports the conflict.
	PolicyReject ConflictPolicy = "reject"
	// PolicyResumeExisting resumes the other activity when it is paused
	// instead of starting the requested one.
	PolicyResumeExisting ConflictPolicy = "resume-existing"
	// PolicyPreempt discards the other activity and starts the requested one.
	PolicyPreempt ConflictPolicy = "preempt"
)

// ParsePolicy validates a policy name.
func ParsePolicy(name string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(name); p {
	case PolicyReject, PolicyResumeExisting, PolicyPreempt:
		return p, nil
	case "":
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// Outcome reports what a start request actually did.
type Outcome string

const (
	OutcomeStarted      Outcome = "started"
	OutcomeSwitchedBack Outcome = "switched-back"
	OutcomePreempted    Outcome = "preempted"
)

// BinderConfig contains observer options.
type BinderConfig struct {
	PollInterval time.Duration
	AttachDelay  time.Duration
	Policy       ConflictPolicy
}

// Binder attaches screens to the shared Process and forwards their commands.
type Binder struct {
	process Process
	cfg     BinderConfig
}

func NewBinder(process Process, cfg BinderConfig) *Binder {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReject
	}
	return &Binder{process: process, cfg: cfg}
}

// Attach reconciles a screen for activityID with the timer and starts
// delivering views until the subscription is detached or ctx ends.
func (b *Binder) Attach(ctx context.Context, activityID string) (*Subscription, error) {
	if activityID == "" {
		return nil, ErrInvalidConfiguration
	}

	if b.cfg.AttachDelay > 0 {
		select {
		case <-time.After(b.cfg.AttachDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	events, unsubscribe := b.process.Subscribe(4)
	initial := reconcile(activityID, b.process.Snapshot())

	sub := &Subscription{
		activityID:  activityID,
		initial:     initial,
		views:       make(chan View, 1),
		done:        make(chan struct{}),
		unsubscribe: unsubscribe,
	}
	sub.views <- initial

	logging.Logger.Debug("Observer attached",
		"activity_id", activityID,
		"state", initial.State,
		"elsewhere", initial.Elsewhere,
	)

	go sub.loop(ctx, b.process, events, b.cfg.PollInterval)
	return sub, nil
}

// Detach stops a subscription. The timer keeps running.
func (b *Binder) Detach(sub *Subscription) {
	if sub != nil {
		sub.Detach()
	}
}

// IssueStart asks the timer to start activityID and applies the conflict
// policy when another activity holds it.
func (b *Binder) IssueStart(activityID string, targetSec, targetEnergy, resumeFrom int) (Outcome, error) {
	err := b.process.Start(activityID, targetSec, targetEnergy, resumeFrom)
	if err == nil {
		return OutcomeStarted, nil
	}
	if !errors.Is(err, ErrActivityConflict) {
		return "", err
	}

	switch b.cfg.Policy {
	case PolicyResumeExisting:
		s := b.process.Snapshot()
		if !s.Active() || s.ActivityID == activityID {
			// The other session ended between the calls; try again once.
			if err := b.process.Start(activityID, targetSec, targetEnergy, resumeFrom); err != nil {
				return "", err
			}
			return OutcomeStarted, nil
		}
		if s.Running {
			return "", err
		}
		if err := b.process.Resume(); err != nil {
			return "", err
		}
		logging.Logger.Info("Start deferred, resumed paused activity",
			"requested_activity_id", activityID,
			"resumed_activity_id", s.ActivityID,
		)
		return OutcomeSwitchedBack, nil

	case PolicyPreempt:
		prev, err := b.process.Replace(activityID, targetSec, targetEnergy, resumeFrom)
		if err != nil {
			return "", err
		}
		logging.Logger.Info("Activity preempted",
			"activity_id", activityID,
			"preempted_activity_id", prev.ActivityID,
			"preempted_elapsed", prev.ElapsedSeconds,
		)
		return OutcomePreempted, nil

	default:
		return "", err
	}
}

func (b *Binder) IssuePause() error {
	return b.process.Pause()
}

func (b *Binder) IssueResume() error {
	return b.process.Resume()
}

func (b *Binder) IssueReset() {
	b.process.Reset()
}

// Subscription is one screen's attachment to the timer.
type Subscription struct {
	activityID  string
	initial     View
	views       chan View
	done        chan struct{}
	once        sync.Once
	unsubscribe func()
}

func (s *Subscription) ActivityID() string {
	return s.activityID
}

// Initial returns the view decided at attach time.
func (s *Subscription) Initial() View {
	return s.initial
}

// Views yields reconciled views; a slow reader only sees the newest one. The
// channel is closed after Detach.
func (s *Subscription) Views() <-chan View {
	return s.views
}

// Detach is idempotent and does not wait for the delivery loop.
func (s *Subscription) Detach() {
	s.once.Do(func() {
		close(s.done)
		s.unsubscribe()
	})
}

func (s *Subscription) loop(ctx context.Context, process Process, events <-chan Event, every time.Duration) {
	defer close(s.views)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	last := s.initial
	publish := func(session domain.Session) {
		view := reconcile(s.activityID, session)
		if view == last {
			return
		}
		last = view
		select {
		case s.views <- view:
			return
		default:
		}
		select {
		case <-s.views:
		default:
		}
		select {
		case s.views <- view:
		default:
		}
	}

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.Detach()
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			publish(event.Session)
		case <-ticker.C:
			publish(process.Snapshot())
		}
	}
}
