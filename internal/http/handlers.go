package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hperssn/stride/internal/catalog"
	"github.com/hperssn/stride/internal/domain"
	"github.com/hperssn/stride/internal/logging"
	"github.com/hperssn/stride/internal/runner"
	"github.com/hperssn/stride/internal/storage"
)

// Timer is the read side of the session owner plus retargeting.
type Timer interface {
	Snapshot() domain.Session
	HasActiveSession() bool
	ActiveActivityID() string
	Retarget(activityID string, targetSec int) error
}

type startRequest struct {
	ActivityID        string `json:"activityId"`
	TargetSeconds     int    `json:"targetSeconds"`
	TargetEnergyUnits int    `json:"targetEnergyUnits"`
	ResumeFromSeconds int    `json:"resumeFromSeconds"`
}

type startResponse struct {
	Outcome runner.Outcome `json:"outcome"`
	Session domain.Session `json:"session"`
}

type retargetRequest struct {
	ActivityID    string `json:"activityId"`
	TargetSeconds int    `json:"targetSeconds"`
}

func getTimer(t Timer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, t.Snapshot(), http.StatusOK)
	}
}

func getActive(t Timer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Active     bool   `json:"active"`
			ActivityID string `json:"activityId"`
		}{
			Active:     t.HasActiveSession(),
			ActivityID: t.ActiveActivityID(),
		}
		respondJSON(w, status, http.StatusOK)
	}
}

func startTimer(t Timer, b *runner.Binder, c *catalog.Catalog, j *storage.Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		// Catalog exercises may be started by id alone.
		if req.TargetSeconds == 0 && req.TargetEnergyUnits == 0 && c != nil {
			if e, ok := c.Find(req.ActivityID); ok {
				req.TargetSeconds = e.Minutes * 60
				req.TargetEnergyUnits = e.Calories
			}
		}

		release := func() {}
		if j != nil {
			release = j.Claim(req.ActivityID, GetUserID(r))
		}
		outcome, err := b.IssueStart(req.ActivityID, req.TargetSeconds, req.TargetEnergyUnits, req.ResumeFromSeconds)
		if err != nil {
			release()
			respondCommandError(w, t, err)
			return
		}
		if outcome == runner.OutcomeSwitchedBack {
			release()
		}

		logging.Logger.Info("Timer start handled",
			"activity_id", req.ActivityID,
			"outcome", outcome,
			"user_id", GetUserID(r),
		)
		respondJSON(w, startResponse{Outcome: outcome, Session: t.Snapshot()}, http.StatusCreated)
	}
}

func pauseTimer(t Timer, b *runner.Binder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := b.IssuePause(); err != nil {
			respondCommandError(w, t, err)
			return
		}
		respondJSON(w, t.Snapshot(), http.StatusOK)
	}
}

func resumeTimer(t Timer, b *runner.Binder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := b.IssueResume(); err != nil {
			respondCommandError(w, t, err)
			return
		}
		respondJSON(w, t.Snapshot(), http.StatusOK)
	}
}

func resetTimer(b *runner.Binder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.IssueReset()
		w.WriteHeader(http.StatusNoContent)
	}
}

func retargetTimer(t Timer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req retargetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := t.Retarget(req.ActivityID, req.TargetSeconds); err != nil {
			respondCommandError(w, t, err)
			return
		}
		respondJSON(w, t.Snapshot(), http.StatusOK)
	}
}

func getHistory(repo storage.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := GetUserID(r)

		var (
			records []storage.SessionRecord
			err     error
		)
		if since := r.URL.Query().Get("since"); since != "" {
			d, perr := time.ParseDuration(since)
			if perr != nil || d <= 0 {
				respondError(w, "since must be a positive duration", http.StatusBadRequest)
				return
			}
			records, err = repo.GetRecentSessions(userID, time.Now().Add(-d))
		} else {
			records, err = repo.GetSessionsByUser(userID)
		}
		if err != nil {
			logging.Logger.Error("Failed to load history", "error", err, "user_id", userID)
			respondError(w, "failed to load history", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []storage.SessionRecord{}
		}
		respondJSON(w, records, http.StatusOK)
	}
}

func getStats(repo storage.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := repo.GetSessionStats(GetUserID(r))
		if err != nil {
			logging.Logger.Error("Failed to load stats", "error", err)
			respondError(w, "failed to load stats", http.StatusInternalServerError)
			return
		}
		respondJSON(w, stats, http.StatusOK)
	}
}

func getCatalog(c *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("calories") == "" {
			respondJSON(w, c.Exercises, http.StatusOK)
			return
		}

		calories, err := strconv.Atoi(q.Get("calories"))
		if err != nil || calories <= 0 {
			respondError(w, "calories must be a positive integer", http.StatusBadRequest)
			return
		}
		limit := 0
		if l := q.Get("limit"); l != "" {
			if limit, err = strconv.Atoi(l); err != nil {
				respondError(w, "invalid limit", http.StatusBadRequest)
				return
			}
		}

		suggestions := c.Match(calories, limit)
		if suggestions == nil {
			suggestions = []catalog.Suggestion{}
		}
		respondJSON(w, suggestions, http.StatusOK)
	}
}

func respondCommandError(w http.ResponseWriter, t Timer, err error) {
	switch {
	case errors.Is(err, runner.ErrInvalidConfiguration):
		respondError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, runner.ErrNoActiveSession):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, runner.ErrTimerClosed):
		respondError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, runner.ErrActivityConflict):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error":            err.Error(),
			"activeActivityId": t.ActiveActivityID(),
		})
	default:
		respondError(w, err.Error(), http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Logger.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
