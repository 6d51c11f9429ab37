package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Session is the canonical state of the one active timed activity.
// The zero value is the empty session.
type Session struct {
	RunID             string    `json:"runId,omitempty"`
	ActivityID        string    `json:"activityId"`
	ElapsedSeconds    int       `json:"elapsedSeconds"`
	EnergyUnits       int       `json:"energyUnits"`
	TargetSeconds     int       `json:"targetSeconds"`
	TargetEnergyUnits int       `json:"targetEnergyUnits"`
	Running           bool      `json:"running"`
	StartedAt         time.Time `json:"startedAt,omitzero"`
}

// NewSession builds a session for activityID resumed from resumeFrom seconds.
func NewSession(activityID string, targetSec, targetEnergy, resumeFrom int) Session {
	s := Session{
		RunID:             uuid.New().String(),
		ActivityID:        activityID,
		ElapsedSeconds:    resumeFrom,
		TargetSeconds:     targetSec,
		TargetEnergyUnits: targetEnergy,
		Running:           true,
		StartedAt:         time.Now(),
	}
	s.Recompute()
	return s
}

// Active reports whether the session is associated with an activity.
func (s Session) Active() bool {
	return s.ActivityID != ""
}

// Completed reports whether the elapsed time reached the target.
func (s Session) Completed() bool {
	return s.Active() && s.ElapsedSeconds >= s.TargetSeconds
}

// Recompute derives EnergyUnits from the elapsed time and the configured rate.
func (s *Session) Recompute() {
	s.EnergyUnits = EnergyFor(s.ElapsedSeconds, s.TargetSeconds, s.TargetEnergyUnits)
}

// Retarget changes the target duration and scales the energy goal with it.
func (s *Session) Retarget(targetSec int) {
	if targetSec <= 0 || s.TargetSeconds <= 0 {
		return
	}
	s.TargetEnergyUnits = ScaleEnergy(s.TargetEnergyUnits, s.TargetSeconds, targetSec)
	s.TargetSeconds = targetSec
	s.Recompute()
}

// EnergyFor returns the energy accumulated after elapsed seconds at the rate
// targetEnergy/targetSec, rounded to the nearest unit.
func EnergyFor(elapsed, targetSec, targetEnergy int) int {
	if elapsed <= 0 || targetSec <= 0 || targetEnergy <= 0 {
		return 0
	}
	return int(math.Round(float64(targetEnergy) * float64(elapsed) / float64(targetSec)))
}

// ScaleEnergy rescales an energy goal from one duration to another.
func ScaleEnergy(energy, fromSec, toSec int) int {
	if fromSec <= 0 {
		return energy
	}
	scaled := int(math.Round(float64(energy) * float64(toSec) / float64(fromSec)))
	if scaled < 1 {
		return 1
	}
	return scaled
}
