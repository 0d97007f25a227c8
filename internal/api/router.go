package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"affiliate-gateway/internal/observability"
)

func Router(h *Handler, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		r.Route("/functions", func(r chi.Router) {
			withPreflight(r, "/list-campaigns", "/create-campaign", "/keywords", "/pixel",
				"/invoke-pixel", "/countries", "/offers", "/keyword-stats")
			r.Post("/list-campaigns", h.Dispatch("list-campaigns", h.listCampaigns))
			r.Post("/create-campaign", h.Dispatch("create-campaign", h.createCampaign))
			r.Get("/keywords", h.Dispatch("get-keywords", h.getKeywords))
			r.Post("/keywords", h.Dispatch("save-keywords", h.saveKeywords))
			r.Get("/pixel", h.Dispatch("get-pixel", h.getPixel))
			r.Post("/pixel", h.Dispatch("save-pixel", h.savePixel))
			r.Post("/invoke-pixel", h.Dispatch("invoke-pixel", h.invokePixel))
			r.Get("/countries", h.Dispatch("countries", h.countries))
			r.Get("/offers", h.Dispatch("offers", h.offers))
			r.Post("/keyword-stats", h.Dispatch("keyword-stats", h.keywordStats))
		})

		r.Route("/api", func(r chi.Router) {
			withPreflight(r, "/session/resolve", "/profile", "/campaigns/mine")
			r.Post("/session/resolve", h.Dispatch("session-resolve", h.resolveSurface))
			r.Get("/profile", h.Dispatch("get-profile", h.getProfile))
			r.Put("/profile", h.Dispatch("update-profile", h.updateProfile))
			r.Get("/campaigns/mine", h.Dispatch("my-campaigns", h.myCampaigns))
		})
	})

	// long-lived stream, outside the request timeout
	r.Options("/events/session", preflight)
	r.Get("/events/session", h.watchSurface)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}

func withPreflight(r chi.Router, paths ...string) {
	for _, p := range paths {
		r.Options(p, preflight)
	}
}
