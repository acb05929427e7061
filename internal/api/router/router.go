package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/expertease/consult-engine/internal/appointments"
	"github.com/expertease/consult-engine/internal/availability"
	httpmiddleware "github.com/expertease/consult-engine/internal/http/middleware"
	"github.com/expertease/consult-engine/internal/signaling"
	"github.com/expertease/consult-engine/internal/subscription"
	"github.com/expertease/consult-engine/internal/video"
	"github.com/expertease/consult-engine/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AvailabilityHandler *availability.Handler
	AppointmentsHandler *appointments.Handler
	SubscriptionHandler *subscription.Handler
	VideoHandler        *video.Handler
	SignalingHandler    *signaling.Handler
	MetricsHandler      http.Handler
	RateLimiter         *httpmiddleware.RateLimiter
	CORSAllowedOrigins  []string
	AuthJWTSecret       string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}
	if cfg.AuthJWTSecret != "" {
		r.Use(httpmiddleware.ActorAuth(cfg.AuthJWTSecret))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.AvailabilityHandler != nil {
		r.Route("/worker/{workerID}/availability", func(r chi.Router) {
			r.Post("/", cfg.AvailabilityHandler.AddSlot)
			r.Get("/", cfg.AvailabilityHandler.ListSlots)
		})
	}

	if cfg.AppointmentsHandler != nil {
		r.Route("/appointment", func(r chi.Router) {
			r.Post("/book", cfg.AppointmentsHandler.BookClinic)
			r.Post("/video-request", cfg.AppointmentsHandler.BookVideo)
			r.Post("/cancel", cfg.AppointmentsHandler.Cancel)
		})
		r.Post("/worker/respond", cfg.AppointmentsHandler.Respond)
		r.Get("/worker/{workerID}/appointments", cfg.AppointmentsHandler.ListForWorker)
		r.Get("/patient/{patientID}/appointments", cfg.AppointmentsHandler.ListForPatient)
	}

	if cfg.SubscriptionHandler != nil {
		r.Get("/worker/{workerID}/subscription/usage", cfg.SubscriptionHandler.Usage)
	}

	if cfg.VideoHandler != nil {
		r.Route("/video", func(r chi.Router) {
			r.Post("/create-session/{appointmentID}", cfg.VideoHandler.CreateSession)
			r.Post("/start", cfg.VideoHandler.Start)
			r.Get("/join/{roomID}", cfg.VideoHandler.Join)
			r.Post("/end", cfg.VideoHandler.End)
		})
	}

	if cfg.SignalingHandler != nil {
		r.Get("/ws", cfg.SignalingHandler.ServeWS)
	}

	return r
}
