package portal

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"github.com/skybi/verisuite/internal/api/schema"
	"github.com/skybi/verisuite/internal/config"
	"github.com/skybi/verisuite/internal/session"
	"github.com/skybi/verisuite/internal/verify"
)

// Service represents the portal API service.
// Its endpoints are the panel actions of the verification suite front end; they drive the session controller and the
// verification workflow controller.
type Service struct {
	server *http.Server

	Config   *config.Config
	Session  *session.Controller
	Workflow *verify.Controller

	writer *schema.Writer
}

// Startup starts up the portal API
func (service *Service) Startup() error {
	server := &http.Server{
		Addr:    service.Config.PortalAPIListenAddress,
		Handler: service.Router(),
	}
	service.server = server
	return server.ListenAndServe()
}

// Router assembles the HTTP handler of the portal API
func (service *Service) Router() http.Handler {
	// Create the HTTP schema writer
	service.writer = &schema.Writer{
		InternalErrorHook: func(err error) {
			log.Error().Err(err).Msg("the portal API experienced an unexpected error")
		},
	}

	// Create the HTTP router
	router := chi.NewRouter()
	router.Use(middleware.RedirectSlashes)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{service.Config.PortalAPIAllowedOrigin},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	router.NotFound(func(writer http.ResponseWriter, _ *http.Request) {
		service.writer.WriteErrors(writer, http.StatusNotFound, schema.ErrNotFound)
	})
	router.MethodNotAllowed(func(writer http.ResponseWriter, _ *http.Request) {
		service.writer.WriteErrors(writer, http.StatusMethodNotAllowed, schema.ErrMethodNotAllowed)
	})

	// Register the session controller endpoints
	router.Post("/v1/auth/callback", service.EndpointAuthCallback)
	router.Post("/v1/auth/logout", service.EndpointLogout)
	router.Get("/v1/session", service.EndpointGetSession)
	router.Post("/v1/session/heartbeat", service.EndpointHeartbeat)
	router.Post("/v1/session/route", service.EndpointNavigate)
	router.Post("/v1/session/onboarding/dismiss", service.EndpointDismissOnboarding)

	// Register the verification workflow endpoints; they are only reachable while logged in
	router.Get("/v1/verifications/aadhaar", withMiddlewares(service.EndpointGetWorkflow, service.MiddlewareRequireSession))
	router.Post("/v1/verifications/aadhaar/otp", withMiddlewares(service.EndpointRequestChallenge, service.MiddlewareRequireSession))
	router.Post("/v1/verifications/aadhaar/submit", withMiddlewares(service.EndpointSubmitChallenge, service.MiddlewareRequireSession))
	router.Post("/v1/verifications/aadhaar/reset", withMiddlewares(service.EndpointResetWorkflow, service.MiddlewareRequireSession))
	router.Post("/v1/verifications/aadhaar/export", withMiddlewares(service.EndpointExportResult, service.MiddlewareRequireSession))

	return router
}

// Shutdown shuts down the portal API
func (service *Service) Shutdown() {
	if service.server != nil {
		service.server.Close()
		service.server = nil
	}
}

// MiddlewareRequireSession rejects requests while no authenticated session is present
func (service *Service) MiddlewareRequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if !service.Session.IsLoggedIn() {
			service.writer.WriteErrors(writer, http.StatusUnauthorized, schema.ErrUnauthorized)
			return
		}
		next(writer, request)
	}
}

func withMiddlewares(end http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	final := end
	for i := len(middlewares); i > 0; i-- {
		final = middlewares[i-1](final)
	}
	return final
}
