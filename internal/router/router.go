package router

import (
	"net/http"

	"planethero/internal/config"
	"planethero/internal/handlers/api/v1/analytics"
	"planethero/internal/handlers/api/v1/auth"
	"planethero/internal/handlers/api/v1/games"
	"planethero/internal/handlers/api/v1/profile"
	"planethero/internal/handlers/health"
	"planethero/internal/middleware"
	"planethero/internal/models"
	"planethero/internal/monitoring"
	"planethero/internal/response"
	"planethero/internal/services"

	_ "planethero/docs" // registers the swagger document

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// Dependencies are everything the route table needs
type Dependencies struct {
	Services        *services.ServiceCollection
	Auth            auth.Dependencies
	Authenticator   *middleware.Authenticator
	ResponseBuilder *response.Builder
	Dashboard       *monitoring.Dashboard
	Config          *config.Config
}

// SetupRouter configures all HTTP routes and returns the main handler
func SetupRouter(deps Dependencies, logger *zap.Logger) http.Handler {
	sc := deps.Services
	builder := deps.ResponseBuilder
	authn := deps.Authenticator

	authController := auth.NewAuthController(deps.Auth, deps.Config.Auth, deps.Config.Server.AllowedOrigins, builder, logger)
	profileController := profile.NewProfileController(sc.ProfileView, builder, logger)
	gamesController := games.NewGamesController(sc.Games, sc.Completion, sc.Facts, builder, logger)
	analyticsController := analytics.NewAnalyticsController(sc.Analytics, builder, logger)

	r := mux.NewRouter().StrictSlash(true)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		builder.WriteError(w, req, services.NewNotFoundError("Route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		builder.WriteError(w, req, &services.ServiceError{
			Type:       services.ErrorTypeValidation,
			Message:    "Method not allowed",
			Code:       "METHOD_NOT_ALLOWED",
			StatusCode: http.StatusMethodNotAllowed,
		})
	})

	// ===============================
	// SYSTEM
	// ===============================

	r.HandleFunc("/health", health.HealthHandler(deps.Dashboard)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", health.LivenessHandler(deps.Dashboard)).Methods(http.MethodGet)
	r.HandleFunc("/status", health.StatusHandler(deps.Dashboard)).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// ===============================
	// AUTH
	// ===============================

	authRoutes := r.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/google/login", authController.Login).Methods(http.MethodGet)
	authRoutes.HandleFunc("/google/callback", authController.Callback).Methods(http.MethodGet)
	authRoutes.Handle("/logout", authn.RequireSession()(http.HandlerFunc(authController.Logout))).Methods(http.MethodPost)
	authRoutes.Handle("/events", authn.RequireSession()(http.HandlerFunc(authController.Events))).Methods(http.MethodGet)

	// ===============================
	// API V1
	// ===============================

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/badges", profileController.ListBadges).Methods(http.MethodGet)

	signedIn := api.NewRoute().Subrouter()
	signedIn.Use(authn.RequireSession())
	signedIn.HandleFunc("/profile", profileController.GetProfile).Methods(http.MethodGet)
	signedIn.HandleFunc("/games", gamesController.ListGames).Methods(http.MethodGet)

	students := api.PathPrefix("/games").Subrouter()
	students.Use(authn.RequireSession(), authn.RequireRole(models.RoleStudent))
	students.HandleFunc("/{gameType}/sessions", gamesController.StartGame).Methods(http.MethodPost)
	students.HandleFunc("/sessions/{id}/complete", gamesController.CompleteGame).Methods(http.MethodPost)
	students.HandleFunc("/sessions/{id}", gamesController.AbandonGame).Methods(http.MethodDelete)

	teachers := api.PathPrefix("/analytics").Subrouter()
	teachers.Use(authn.RequireSession(), authn.RequireRole(models.RoleTeacher))
	teachers.HandleFunc("/class", analyticsController.ClassSummary).Methods(http.MethodGet)

	logger.Info("Router setup completed",
		zap.String("swagger_ui", "/swagger/index.html"),
		zap.Strings("allowed_origins", deps.Config.Server.AllowedOrigins),
	)

	return chain(r,
		middleware.RequestID(logger),
		middleware.StructuredLogging(logger),
		middleware.Recovery(builder, logger),
		middleware.SecureHeaders,
		middleware.CORS(middleware.DefaultCORSConfig(deps.Config.Server.AllowedOrigins), logger),
	)
}

// chain wraps h so that the first middleware is the outermost
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
