package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(a *API, wsHandler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Route("/api/games", func(r chi.Router) {
		r.Post("/", a.CreateGame)
		r.Get("/", a.ListGames)
		r.Get("/{code}", a.GetGame)
		r.Post("/{code}/start", a.StartGame)
		r.Delete("/{code}", a.DeleteGame)
		r.Get("/{code}/stats", a.GameStats)
	})

	r.Route("/api/players", func(r chi.Router) {
		r.Post("/", a.JoinGame)
		r.Get("/{id}", a.GetPlayer)
		r.Get("/game/{code}", a.PlayersByGame)
		r.Patch("/{id}/team", a.ChangeTeam)
		r.Post("/{id}/place-material", a.PlaceMaterial)
		r.Post("/{id}/guess", a.MakeGuess)
	})

	r.Route("/api/movements", func(r chi.Router) {
		r.Get("/", a.RecentMovements)
		r.Get("/game/{code}", a.MovementsByGame)
		r.Get("/player/{id}", a.MovementsByPlayer)
		r.Get("/stats/game/{code}", a.MovementStats)
	})

	r.Get("/api/health", Healthz)
	r.Get("/ws", wsHandler)

	return r
}
