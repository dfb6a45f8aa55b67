package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/credittasks/backend/internal/account"
	"github.com/credittasks/backend/internal/auth"
	"github.com/credittasks/backend/internal/middleware"
	"github.com/credittasks/backend/internal/tasks"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Auth    *auth.Handler
	Account *account.Handler
	Tasks   *tasks.Handler
}

// New returns the API router. Every route except registration, login and
// health requires a bearer token.
func New(h Handlers, tokens middleware.TokenValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(chimw.Timeout(15 * time.Second))
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(tokens))

		r.Get("/me", h.Account.GetMe)
		r.Get("/me/ledger", h.Account.ListLedger)

		r.Post("/tasks", h.Tasks.CreateTask)
		r.Get("/tasks", h.Tasks.ListTasks)
		r.Get("/tasks/{id}", h.Tasks.GetTask)
		r.Post("/tasks/{id}/execute", h.Tasks.Execute)
	})

	return r
}
