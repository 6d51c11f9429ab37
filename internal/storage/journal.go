package storage

import (
	"sync"

	"github.com/hperssn/stride/internal/domain"
	"github.com/hperssn/stride/internal/logging"
)

// Journal writes finished sessions to a Repository on behalf of the user that
// claimed their activity. Write failures are logged and dropped.
type Journal struct {
	repo Repository

	mu     sync.Mutex
	owners map[string]string // activity id -> user id
}

func NewJournal(repo Repository) *Journal {
	return &Journal{repo: repo, owners: make(map[string]string)}
}

// Claim attributes sessions of activityID to userID. Call it before starting
// the session so a run that finishes right away is still recorded for userID.
// The returned func restores the previous owner when the start did not happen.
func (j *Journal) Claim(activityID, userID string) (release func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	prev, had := j.owners[activityID]
	j.owners[activityID] = userID
	return func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if j.owners[activityID] != userID {
			return
		}
		if had {
			j.owners[activityID] = prev
		} else {
			delete(j.owners, activityID)
		}
	}
}

// Record stores a finished session. Its signature matches runner.FinishFunc.
func (j *Journal) Record(s domain.Session, completed bool) {
	j.mu.Lock()
	owner := j.owners[s.ActivityID]
	j.mu.Unlock()

	record := FromDomainSession(s, owner, completed)
	if err := j.repo.SaveSession(record); err != nil {
		logging.Logger.Error("Failed to journal session",
			"error", err,
			"run_id", s.RunID,
			"activity_id", s.ActivityID,
		)
		return
	}
	logging.Logger.Debug("Session journaled",
		"run_id", s.RunID,
		"user_id", owner,
		"completed", completed,
	)
}
