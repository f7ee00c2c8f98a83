package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/tabletennis-bracket/docs"
	"github.com/Dosada05/tabletennis-bracket/handlers"
	"github.com/Dosada05/tabletennis-bracket/middleware"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// websocket connections are long-lived and stay outside the timeout
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Route("/tournaments", func(r chi.Router) {
			// Публичные маршруты
			r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)
			r.Get("/{tournamentID}/bracket", tournamentHandler.GetBracketHandler)
			r.Get("/{tournamentID}/standings", tournamentHandler.GetStandingsHandler)
			r.Get("/{tournamentID}/status", tournamentHandler.GetStatusHandler)

			// Защищенные маршруты только для организаторов
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(middleware.Authorize("organizer"))

				r.Post("/", tournamentHandler.CreateHandler)
				r.Patch("/{tournamentID}/status", tournamentHandler.ChangeStatusHandler)
				r.Post("/{tournamentID}/participants", tournamentHandler.RegisterParticipantsHandler)
				r.Post("/{tournamentID}/bracket", tournamentHandler.BuildBracketHandler)
				r.Post("/{tournamentID}/bracket/resync", tournamentHandler.ResyncHandler)
				r.Put("/{tournamentID}/referees/assignments", matchHandler.AssignRefereesHandler)
			})
		})

		r.Route("/referees/me", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize("organizer", "referee"))

			r.Get("/matches", matchHandler.AssignedMatchesHandler)
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", matchHandler.GetHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(middleware.Authorize("organizer", "referee"))

				r.Put("/sets/{setIndex}", matchHandler.RecordSetHandler)
				r.Put("/sets", matchHandler.SubmitSetsHandler)
				r.Post("/points", matchHandler.LivePointsHandler)
			})

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(middleware.Authorize("organizer"))

				r.Post("/confirm", matchHandler.ConfirmHandler)
				r.Post("/walkover", matchHandler.WalkoverHandler)
				r.Put("/referee", matchHandler.AssignRefereeHandler)
			})
		})
	})
}
