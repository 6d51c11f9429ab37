package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/stride/internal/logging"
	"github.com/hperssn/stride/internal/runner"
	"github.com/hperssn/stride/internal/stream"
)

func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, data []byte) error {
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// StreamActivityViews attaches an observer for the activity in the URL and
// streams its reconciled views until the client goes away.
func StreamActivityViews(binder *runner.Binder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activityID := chi.URLParam(r, "id")

		sub, err := binder.Attach(r.Context(), activityID)
		if err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer binder.Detach(sub)

		flusher, ok := startStream(w)
		if !ok {
			return
		}

		for {
			select {
			case view, ok := <-sub.Views():
				if !ok {
					return
				}
				data, err := json.Marshal(view)
				if err != nil {
					logging.Logger.Error("Failed to encode view", "error", err)
					return
				}
				if err := writeEvent(w, flusher, data); err != nil {
					return
				}

			case <-r.Context().Done():
				return
			}
		}
	}
}

// StreamActivityFeed streams raw timer events for the activity, including
// those relayed from other processes.
func StreamActivityFeed(hub *stream.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activityID := chi.URLParam(r, "id")

		client := hub.Register(activityID)
		defer hub.Unregister(client)

		flusher, ok := startStream(w)
		if !ok {
			return
		}

		for {
			select {
			case msg, ok := <-client.Send:
				if !ok {
					return
				}
				if err := writeEvent(w, flusher, msg); err != nil {
					return
				}

			case <-r.Context().Done():
				return
			}
		}
	}
}
