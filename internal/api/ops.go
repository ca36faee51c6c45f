package api

import (
	"net/http"
	"strconv"

	"github.com/careslot/schedule-engine/internal/queue"
)

// QueueStats is the operator view of the generation queue.
type QueueStats struct {
	Pending int64           `json:"pending"`
	Dead    []queue.DeadJob `json:"dead"`
}

// queueStatsHandler reports the pending job count and recent dead-lettered
// jobs. Dead jobs require operator attention; nothing retries them.
func queueStatsHandler(q *queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := int64(20)
		if v := r.URL.Query().Get("dead_limit"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid_dead_limit", "dead_limit must be a non-negative integer")
				return
			}
			limit = n
		}

		pending, err := q.PendingCount(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "queue_unavailable", err.Error())
			return
		}

		dead, err := q.DeadJobs(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "queue_unavailable", err.Error())
			return
		}
		if dead == nil {
			dead = []queue.DeadJob{}
		}

		writeJSON(w, http.StatusOK, QueueStats{Pending: pending, Dead: dead})
	}
}
