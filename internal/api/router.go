package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careslot/schedule-engine/internal/queue"
)

type RouterConfig struct {
	Service ScheduleService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Queue   *queue.Queue
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(CallerMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Schedule lifecycle
	r.Post("/schedules", submitScheduleHandler(cfg.Service))
	r.Get("/schedules", listSchedulesHandler(cfg.Service))
	r.Get("/schedules/{id}", getScheduleHandler(cfg.Service))
	r.Put("/schedules/{id}", updateScheduleHandler(cfg.Service))
	r.Post("/schedules/{id}/approve", transitionHandler(cfg.Service.Approve))
	r.Post("/schedules/{id}/reject", transitionHandler(cfg.Service.Reject))
	r.Post("/schedules/{id}/deactivate", transitionHandler(cfg.Service.Deactivate))
	r.Post("/schedules/{id}/reactivate", transitionHandler(cfg.Service.Reactivate))
	r.Get("/schedules/{id}/slots", listSlotsHandler(cfg.Service))

	// Slot hooks for the appointment system
	r.Post("/slots/{id}/book", slotTransitionHandler(cfg.Service.BookSlot))
	r.Post("/slots/{id}/release", slotTransitionHandler(cfg.Service.ReleaseSlot))

	// Operator introspection
	if cfg.Queue != nil {
		r.Get("/ops/queue", queueStatsHandler(cfg.Queue))
	}

	return r
}
