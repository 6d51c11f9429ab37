package runner

import "github.com/hperssn/stride/internal/domain"

// ViewState describes what an attached screen is showing.
type ViewState string

const (
	// ViewIdle means the screen shows zeroed state for its own activity.
	ViewIdle ViewState = "idle"
	// ViewAdopted means the screen mirrors the timer's session.
	ViewAdopted ViewState = "adopted"
)

// View is the reconciled state an observer renders for its activity.
type View struct {
	ActivityID string         `json:"activityId"`
	State      ViewState      `json:"state"`
	Session    domain.Session `json:"session"`
	// Elsewhere names another activity the timer is tracking in the
	// background, if any. Its progress is never shown under this activity.
	Elsewhere string `json:"elsewhere,omitempty"`
}

// reconcile decides what a screen for activityID shows given the timer's
// session. A session for a different activity is never adopted.
func reconcile(activityID string, s domain.Session) View {
	switch {
	case !s.Active():
		return View{ActivityID: activityID, State: ViewIdle}
	case s.ActivityID == activityID:
		return View{ActivityID: activityID, State: ViewAdopted, Session: s}
	default:
		return View{ActivityID: activityID, State: ViewIdle, Elsewhere: s.ActivityID}
	}
}
