package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zahanm/collect-beans/internal/emulator/ledger"
)

// NewRouter wires the backend endpoints.
func NewRouter(l *ledger.Ledger, session *ledger.Session, collector *ledger.Collector) chi.Router {
	sortHandler := NewSortHandler(session)
	collectHandler := NewCollectHandler(collector)
	configHandler := NewConfigHandler(l)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/sort", func(r chi.Router) {
		r.Get("/progress", sortHandler.Progress)
		r.Post("/progress", sortHandler.SetDestination)
		r.Get("/next", sortHandler.Next)
		r.Post("/next", sortHandler.Submit)
		r.Get("/link", sortHandler.Link)
		r.Get("/commit", sortHandler.Commit)
		r.Post("/commit", sortHandler.Commit)
		r.Post("/check", sortHandler.Check)
		r.Get("/sorted", sortHandler.Sorted)
		r.Post("/sorted", sortHandler.Revert)
	})

	r.Route("/collect", func(r chi.Router) {
		r.Post("/run", collectHandler.Run)
		r.Get("/backup", collectHandler.Backup)
		r.Post("/backup", collectHandler.Backup)
		r.Get("/last-imported", collectHandler.LastImported)
		r.Get("/other-importers", collectHandler.OtherImporters)
	})

	r.Post("/config/reload", configHandler.Reload)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
