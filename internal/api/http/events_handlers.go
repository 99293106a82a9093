package http

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	syncx "github.com/mind-engage/mindengage-tutoring/internal/sync"
)

// GET /api/events?after=<offset>&limit=<n>
func EventsHandler(events *syncx.EventRepo, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var after int64
		if v := q.Get("after"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "after must be a non-negative offset")
				return
			}
			after = n
		}
		limit, _ := strconv.Atoi(q.Get("limit"))

		evs, err := events.Since(r.Context(), after, limit)
		if err != nil {
			fail(w, log, err)
			return
		}
		next := after
		if len(evs) > 0 {
			next = evs[len(evs)-1].Offset
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": evs, "next": next})
	}
}
