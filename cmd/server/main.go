package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skybi/verisuite/internal/api"
	"github.com/skybi/verisuite/internal/clock"
	"github.com/skybi/verisuite/internal/config"
	"github.com/skybi/verisuite/internal/document"
	"github.com/skybi/verisuite/internal/document/pdf"
	"github.com/skybi/verisuite/internal/session"
	"github.com/skybi/verisuite/internal/store"
	"github.com/skybi/verisuite/internal/store/inmem"
	"github.com/skybi/verisuite/internal/store/postgres"
	"github.com/skybi/verisuite/internal/store/redis"
	"github.com/skybi/verisuite/internal/verifier"
	"github.com/skybi/verisuite/internal/verify"
)

func main() {
	// Set up zerolog to use pretty printing
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out: os.Stderr,
	})
	log.Info().Msg("starting up...")

	// Load the application configuration
	log.Info().Msg("loading configuration...")
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load the configuration")
	}
	if cfg.IsEnvProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Debug().Str("config", fmt.Sprintf("%+v", cfg)).Msg("")

	// Initialize the key-value store driver
	log.Info().Str("driver", cfg.StoreDriver).Msg("initializing the key-value store...")
	var driver store.Driver
	switch cfg.StoreDriver {
	case "redis":
		driver = redis.New(cfg.RedisURL)
	case "postgres":
		driver = postgres.New(cfg.PostgresDSN)
	default:
		driver = inmem.New()
	}
	if err := driver.Initialize(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("could not initialize the key-value store")
	}
	defer driver.Close()

	// Restore the session controller and schedule the periodic expiry check
	log.Info().Msg("restoring the session state...")
	client := verifier.New(cfg.VerifierBaseURL)
	sessionController := session.NewController(store.Namespace(driver, "session"), clock.System{}, client, cfg.SessionTimeout)
	if err := sessionController.Restore(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("could not restore the session state")
	}
	sessionController.StartExpiryWatch(cfg.SessionTimeoutCheckInterval)
	defer sessionController.Close()

	// Restore the verification workflow controller
	log.Info().Msg("restoring the verification workflow state...")
	exporter := document.NewFileExporter(pdf.New(), cfg.ExportDirectory)
	workflowController := verify.NewController(store.Namespace(driver, "verify.aadhaar"), client, sessionController, exporter)
	if err := workflowController.Restore(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("could not restore the verification workflow state")
	}

	// Start up the portal API
	log.Info().Str("portal_api", cfg.PortalAPIListenAddress).Msg("starting up the portal API...")
	apis := &api.Service{
		Config:   cfg,
		Session:  sessionController,
		Workflow: workflowController,
	}
	apiErrs := make(chan error, 1)
	apis.Startup(apiErrs)
	go func() {
		err := <-apiErrs
		log.Fatal().Err(err).Msg("the API service raised an unexpected error")
	}()
	defer func() {
		log.Info().Msg("shutting down the portal API...")
		apis.Shutdown()
	}()

	log.Info().Msg("done!")
	defer log.Info().Msg("shutting down...")

	// Wait for the application to be terminated
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt)
	<-shutdown
}
