package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicworks/be-pw-proposals/internal/client"
	"github.com/civicworks/be-pw-proposals/internal/config"
	"github.com/civicworks/be-pw-proposals/internal/database"
	"github.com/civicworks/be-pw-proposals/internal/handler"
	"github.com/civicworks/be-pw-proposals/internal/logger"
	"github.com/civicworks/be-pw-proposals/internal/metrics"
	"github.com/civicworks/be-pw-proposals/internal/middleware"
	"github.com/civicworks/be-pw-proposals/internal/repository"
	"github.com/civicworks/be-pw-proposals/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Proposals Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize stores
	var (
		proposalStore service.ProposalStore
		auditStore    service.AuditStore
	)
	switch cfg.Database.Driver {
	case "memory":
		mem := repository.NewMemoryStore()
		proposalStore = mem
		auditStore = mem
		log.Warn().Msg("Using in-memory store; data will not survive a restart")
	default:
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		log.Info().Msg("Database connection established")

		proposalStore = repository.NewProposalRepository(db)
		auditStore = repository.NewAuditRepository(db)
	}

	// Initialize lifecycle event publisher
	events, err := client.NewEventPublisher(cfg.NATS.URL, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer events.Close()
	if cfg.NATS.URL != "" {
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("Lifecycle event publisher initialized")
	}

	// Initialize identity client
	var identity *client.IdentityClient
	if cfg.Identity.BaseURL != "" {
		identity = client.NewIdentityClient(cfg.Identity.BaseURL, cfg.Identity.Timeout)
		log.Info().Str("identity_url", cfg.Identity.BaseURL).Msg("Identity client initialized")
	}

	// Initialize metrics
	m := metrics.New()

	// Initialize the lifecycle engine
	proposalService := service.NewProposalService(
		proposalStore, auditStore, events, m, log, cfg.Proposals.SerialPrefix)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(proposalService, identity, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("/metrics", m.Handler())

	// Proposal routes
	mux.HandleFunc("/api/v1/proposals", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListProposals(w, r)
		case http.MethodPost:
			httpHandler.CreateProposal(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/proposals/get", httpHandler.GetProposal)
	mux.HandleFunc("/api/v1/proposals/delete", httpHandler.DeleteProposal)
	mux.HandleFunc("/api/v1/proposals/technical-approval", httpHandler.DecideTechnical)
	mux.HandleFunc("/api/v1/proposals/administrative-approval", httpHandler.DecideAdministrative)
	mux.HandleFunc("/api/v1/proposals/tender/start", httpHandler.StartTender)
	mux.HandleFunc("/api/v1/proposals/tender/advance", httpHandler.AdvanceTender)
	mux.HandleFunc("/api/v1/proposals/tender/award", httpHandler.AwardTender)
	mux.HandleFunc("/api/v1/proposals/tender/cancel", httpHandler.CancelTender)
	mux.HandleFunc("/api/v1/proposals/work-order", httpHandler.CreateWorkOrder)
	mux.HandleFunc("/api/v1/proposals/work-order/update", httpHandler.UpdateWorkOrder)
	mux.HandleFunc("/api/v1/proposals/work/start", httpHandler.StartWork)
	mux.HandleFunc("/api/v1/proposals/progress", httpHandler.UpdateProgress)
	mux.HandleFunc("/api/v1/proposals/installments", httpHandler.AddInstallment)
	mux.HandleFunc("/api/v1/proposals/work/complete", httpHandler.CompleteWork)
	mux.HandleFunc("/api/v1/proposals/work/cancel", httpHandler.CancelWork)
	mux.HandleFunc("/api/v1/proposals/audit", httpHandler.AuditTrail)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
