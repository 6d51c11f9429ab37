package storage

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

type Repository interface {
	SaveSession(record *SessionRecord) error

	GetSessionsByUser(userID string) ([]SessionRecord, error)

	GetRecentSessions(userID string, since time.Time) ([]SessionRecord, error)

	GetSessionStats(userID string) (*SessionStats, error)

	Close() error
}

type SessionStats struct {
	TotalSessions  int     `json:"totalSessions"`
	CompletedCount int     `json:"completedCount"`
	TotalSeconds   int     `json:"totalSeconds"`
	TotalEnergy    int     `json:"totalEnergy"`
	CompletionRate float64 `json:"completionRate"`
}

// Open returns the repository for driver ("sqlite" or "postgres").
func Open(driver, dsn string) (Repository, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return NewSQLiteRepository(dsn)
	case "postgres":
		return NewPostgresRepository(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func (s *SessionStats) finish() {
	if s.TotalSessions > 0 {
		s.CompletionRate = float64(s.CompletedCount) / float64(s.TotalSessions) * 100
	}
}
