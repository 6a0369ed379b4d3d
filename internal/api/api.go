package api

import (
	"errors"
	"net/http"

	"github.com/skybi/verisuite/internal/api/portal"
	"github.com/skybi/verisuite/internal/config"
	"github.com/skybi/verisuite/internal/session"
	"github.com/skybi/verisuite/internal/verify"
)

// Service represents the portal API service
type Service struct {
	Config   *config.Config
	Session  *session.Controller
	Workflow *verify.Controller

	portal *portal.Service
}

// Startup starts up the portal API
func (service *Service) Startup(errs chan<- error) {
	portalService := &portal.Service{
		Config:   service.Config,
		Session:  service.Session,
		Workflow: service.Workflow,
	}
	service.portal = portalService
	go func() {
		if err := portalService.Startup(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
}

// Shutdown shuts down the portal API
func (service *Service) Shutdown() {
	if service.portal != nil {
		service.portal.Shutdown()
		service.portal = nil
	}
}
