package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the Chi router with all routes configured.
// Rate limiting is applied globally: 60 requests per minute per IP.
func NewRouter(handlers *Handlers, db dbPinger, redisClient redisPinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/health", HealthHandlerFunc(db, redisClient, log))

	r.Get("/geodata", handlers.GetGeodata)
	r.Get("/geodata/{id}", handlers.GetGeodataByID)

	r.Route("/weather", func(r chi.Router) {
		r.Get("/current", handlers.GetCurrentWeather)
		r.Get("/daily", handlers.GetDailyWeather)
		r.Get("/hourly", handlers.GetHourlyWeather)
		r.Get("/full", handlers.GetFullWeather)
		r.Post("/refresh", handlers.RefreshWeather)
		r.Get("/user", handlers.GetWeatherByUser)
		r.Get("/location/{id}", handlers.ListWeatherByLocation)
		r.Post("/create", handlers.CreateWeather)
		r.Get("/{id}", handlers.GetWeather)
		r.Put("/{id}", handlers.UpdateWeather)
		r.Delete("/{id}", handlers.DeleteWeather)
	})

	r.Route("/export", func(r chi.Router) {
		r.Get("/json", handlers.ExportJSON)
		r.Get("/xml", handlers.ExportXML)
		r.Get("/csv", handlers.ExportCSV)
		r.Get("/weather/json", handlers.ExportWeatherJSON)
		r.Get("/locations/json", handlers.ExportLocationsJSON)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
