package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"quiz-night-service/internal/app"
)

// RouterConfig carries the transport-level settings.
type RouterConfig struct {
	AdminUser     string
	AdminPassword string
	// RateLimitRPS enables per-client limiting of public writes when positive.
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP. Only enable it
	// behind a proxy that sets those headers, since the rate limiter keys on that address.
	TrustProxy bool
}

// NewRouter wires every quiz operation to its HTTP route.
func NewRouter(service *app.QuizService, cfg RouterConfig, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	api := NewAPIHandler(service, log)
	ws := NewWSHandler(service, log)
	admin := adminOnly(cfg.AdminUser, cfg.AdminPassword, log)

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimitRPS > 0 {
		limit = newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).middleware
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Get("/teams", api.Teams)
	r.Get("/current-round", api.RoundState)
	r.Get("/data/teamAnswers.json", api.Answers)
	r.Get("/correct-answers", api.AnswerKey)
	r.Get("/scores", api.Scores)
	r.Get("/teams/rejoin", api.Rejoin)

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/register-team", api.RegisterTeam)
		r.Post("/submit-answers", api.SubmitAnswers)
		r.Post("/teams/get-or-assign-token", api.GetOrAssignToken)
		r.Post("/teams/heartbeat", api.Heartbeat)
	})

	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.Post("/current-round", api.SetRoundState)
		r.Post("/save-correct-answers", api.SaveAnswerKey)
		r.Post("/update-correct-answer", api.UpdateAnswerKeyQuestion)
		r.Post("/save-scores", api.SaveScores)
		r.Post("/reset-teams", api.ResetSession)
		r.Get("/admin/active-teams", api.ActiveTeams)
		r.Post("/admin/remove-team", api.RemoveTeam)
	})

	return r
}
