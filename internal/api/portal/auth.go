package portal

import (
	"errors"
	"net/http"

	"github.com/skybi/verisuite/internal/api/schema"
	"github.com/skybi/verisuite/internal/session"
)

type endpointAuthCallbackRequestPayload struct {
	Credential *string `json:"credential" required:"true"`
}

type sessionResponse struct {
	LoggedIn       bool   `json:"logged_in"`
	CurrentRoute   string `json:"current_route"`
	ShowOnboarding bool   `json:"show_onboarding"`
	LoginError     string `json:"login_error,omitempty"`
}

func (service *Service) buildSessionResponse() sessionResponse {
	return sessionResponse{
		LoggedIn:       service.Session.IsLoggedIn(),
		CurrentRoute:   service.Session.CurrentRoute(),
		ShowOnboarding: service.Session.ShowOnboarding(),
		LoginError:     service.Session.LoginError(),
	}
}

// EndpointAuthCallback handles the 'POST /v1/auth/callback' endpoint.
// It receives the opaque credential of the identity-provider callback and hands it to the session controller.
func (service *Service) EndpointAuthCallback(writer http.ResponseWriter, request *http.Request) {
	payload, validationErrs, err := schema.UnmarshalBody[endpointAuthCallbackRequestPayload](request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}

	if err := service.Session.HandleProviderCallback(request.Context(), *payload.Credential); err != nil {
		if errors.Is(err, session.ErrExchangeInFlight) {
			service.writer.WriteErrors(writer, http.StatusConflict, schema.ErrOperationInFlight)
			return
		}
		service.writer.WriteInternalError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, service.buildSessionResponse())
}

// EndpointLogout handles the 'POST /v1/auth/logout' endpoint
func (service *Service) EndpointLogout(writer http.ResponseWriter, request *http.Request) {
	if err := service.Session.Logout(request.Context()); err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, service.buildSessionResponse())
}

// EndpointGetSession handles the 'GET /v1/session' endpoint
func (service *Service) EndpointGetSession(writer http.ResponseWriter, _ *http.Request) {
	service.writer.WriteJSON(writer, service.buildSessionResponse())
}

// EndpointHeartbeat handles the 'POST /v1/session/heartbeat' endpoint.
// It performs a single liveness check, refreshing the activity timestamp or terminating an expired session.
func (service *Service) EndpointHeartbeat(writer http.ResponseWriter, request *http.Request) {
	if err := service.Session.CheckLiveness(request.Context()); err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, service.buildSessionResponse())
}

type endpointNavigateRequestPayload struct {
	Path *string `json:"path" required:"true"`
}

// EndpointNavigate handles the 'POST /v1/session/route' endpoint.
// The navigation consistency invariant may immediately override the requested route; the response carries the route
// the session actually rests on.
func (service *Service) EndpointNavigate(writer http.ResponseWriter, request *http.Request) {
	payload, validationErrs, err := schema.UnmarshalBody[endpointNavigateRequestPayload](request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}

	if err := service.Session.Navigate(request.Context(), *payload.Path); err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, service.buildSessionResponse())
}

// EndpointDismissOnboarding handles the 'POST /v1/session/onboarding/dismiss' endpoint
func (service *Service) EndpointDismissOnboarding(writer http.ResponseWriter, request *http.Request) {
	if err := service.Session.DismissOnboarding(request.Context()); err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, service.buildSessionResponse())
}
