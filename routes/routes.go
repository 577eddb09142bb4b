package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/pfc-club/petanque-platform/handlers"
)

// SetupRoutes собирает все HTTP-маршруты платформы.
func SetupRoutes(
	router *chi.Mux,
	teamHandler *handlers.TeamHandler,
	courtHandler *handlers.CourtHandler,
	matchHandler *handlers.MatchHandler,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler())

	router.Route("/teams", func(r chi.Router) {
		r.Get("/", teamHandler.ListTeams)
		r.Post("/", teamHandler.CreateTeam)
		r.Get("/{teamID}", teamHandler.GetTeam)
		r.Put("/{teamID}", teamHandler.RenameTeam)
		r.Delete("/{teamID}", teamHandler.DeleteTeam)
		r.Post("/{teamID}/pin", teamHandler.RegeneratePIN)
		r.Post("/{teamID}/players", teamHandler.AddPlayer)
	})
	router.Put("/players/{playerID}", teamHandler.UpdatePlayer)
	router.Delete("/players/{playerID}", teamHandler.RemovePlayer)

	router.Route("/draft", func(r chi.Router) {
		r.Post("/", teamHandler.PerformDraft)
		r.Delete("/", teamHandler.TeardownDraft)
	})

	router.Route("/courts", func(r chi.Router) {
		r.Get("/", courtHandler.ListCourts)
		r.Post("/", courtHandler.CreateCourt)
		r.Get("/{courtID}", courtHandler.GetCourt)
		r.Put("/{courtID}", courtHandler.UpdateCourt)
		r.Patch("/{courtID}/state", courtHandler.SetCourtState)
		r.Delete("/{courtID}", courtHandler.DeleteCourt)
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetMatch)
		r.Delete("/{matchID}", matchHandler.CancelMatch)
		r.Post("/{matchID}/activate", matchHandler.Activate)
		r.Get("/{matchID}/result", matchHandler.GetResult)
		r.Post("/{matchID}/result", matchHandler.SubmitResult)
		r.Post("/{matchID}/confirm", matchHandler.ConfirmResult)
		r.Post("/{matchID}/evidence", matchHandler.UploadEvidence)
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.ListTournaments)
		r.Post("/", tournamentHandler.CreateTournament)
		r.Get("/{tournamentID}", tournamentHandler.GetTournament)
		r.Put("/{tournamentID}", tournamentHandler.UpdateTournament)
		r.Post("/{tournamentID}/archive", tournamentHandler.ArchiveTournament)
		r.Delete("/{tournamentID}", tournamentHandler.DeleteTournament)

		r.Post("/{tournamentID}/teams", tournamentHandler.RegisterTeam)
		r.Delete("/{tournamentID}/teams/{teamID}", tournamentHandler.WithdrawTeam)

		r.Post("/{tournamentID}/courts", tournamentHandler.AssignCourt)
		r.Delete("/{tournamentID}/courts/{courtID}", tournamentHandler.UnassignCourt)

		r.Get("/{tournamentID}/stages", tournamentHandler.ListStages)
		r.Post("/{tournamentID}/stages", tournamentHandler.CreateStage)

		r.Get("/{tournamentID}/rounds", tournamentHandler.ListRounds)
		r.Post("/{tournamentID}/rounds", tournamentHandler.GenerateRound)

		r.Get("/{tournamentID}/matches", tournamentHandler.ListMatches)
		r.Get("/{tournamentID}/standings", tournamentHandler.Standings)
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
