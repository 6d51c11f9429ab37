package storage

import (
	"time"

	"github.com/hperssn/stride/internal/domain"
)

// SessionRecord is a finished or discarded session as kept in the journal.
type SessionRecord struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	ActivityID        string    `json:"activityId"`
	TargetSeconds     int       `json:"targetSeconds"`
	TargetEnergyUnits int       `json:"targetEnergyUnits"`
	ElapsedSeconds    int       `json:"elapsedSeconds"`
	EnergyUnits       int       `json:"energyUnits"`
	Completed         bool      `json:"completed"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
}

// FromDomainSession converts a domain.Session to a SessionRecord
func FromDomainSession(s domain.Session, userID string, completed bool) *SessionRecord {
	return &SessionRecord{
		ID:                s.RunID,
		UserID:            userID,
		ActivityID:        s.ActivityID,
		TargetSeconds:     s.TargetSeconds,
		TargetEnergyUnits: s.TargetEnergyUnits,
		ElapsedSeconds:    s.ElapsedSeconds,
		EnergyUnits:       s.EnergyUnits,
		Completed:         completed,
		StartedAt:         s.StartedAt,
		FinishedAt:        time.Now(),
	}
}
