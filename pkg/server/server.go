// Package server provides the public entry point for initializing the
// Bastion orchestration server.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/adamsih300u/bastion-sub010/internal/agents"
	"github.com/adamsih300u/bastion-sub010/internal/api"
	"github.com/adamsih300u/bastion-sub010/internal/api/handlers"
	"github.com/adamsih300u/bastion-sub010/internal/checkpoint"
	"github.com/adamsih300u/bastion-sub010/internal/config"
	"github.com/adamsih300u/bastion-sub010/internal/conversation"
	"github.com/adamsih300u/bastion-sub010/internal/intent"
	"github.com/adamsih300u/bastion-sub010/internal/telemetry"
)

// Server holds the initialized orchestration server.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Checkpoints is the checkpoint layer. Exposed so callers can surface
	// fallback mode in their own health reporting.
	Checkpoints *checkpoint.Manager

	// Config is the loaded configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown. It flushes
	// telemetry and closes the checkpoint store.
	ShutdownFunc func(context.Context) error
}

// New initializes all components and returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the server with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	telemetryShutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	checkpoints := checkpoint.NewManager(ctx, checkpoint.ManagerConfig{
		ConnectURL:     cfg.Database.URL,
		MaxRetries:     cfg.Database.ConnectRetries,
		HealthInterval: cfg.Database.HealthInterval,
	})
	if checkpoints.UsingFallback() {
		log.Warn().Msg("⚠️ Checkpoints are in-process only; conversations will not survive a restart")
	} else {
		log.Info().Msg("✅ Durable checkpoint store initialized")
	}

	router := intent.NewRouter(
		intent.DefaultProfiles(),
		intent.KeywordClassifier{},
		intent.NewPermissionPolicy(intent.DefaultPolicyRules),
	)
	log.Info().Msg("✅ Intent router initialized")

	settings := agents.DefaultSettings()
	var gen agents.Generator
	if cfg.Anthropic.Enabled {
		gen = agents.NewAnthropicGenerator()
		log.Info().Msg("✅ Anthropic model backend enabled")
	} else {
		log.Warn().Msg("⚠️ ANTHROPIC_API_KEY not set; chat agent runs in local mode")
	}
	registry := agents.NewRegistry(agents.NewChatAgent(gen, settings))

	machine := conversation.NewMachine(checkpoints, router, registry, agents.FirstWordsTitle{}, conversation.Config{
		MaxConcurrentTurns:  int64(cfg.Turns.MaxConcurrent),
		RecentMessageWindow: cfg.Turns.MessageWindow,
		KnownTags:           cfg.Filters.Tags,
		KnownCategories:     cfg.Filters.Categories,
	})
	log.Info().Msg("✅ Conversation state machine initialized")

	h := handlers.New(machine, registry)
	httpRouter := api.NewRouter(cfg, h, checkpoints)

	shutdown := func(ctx context.Context) error {
		checkpoints.Cleanup()
		return telemetryShutdown(ctx)
	}

	return &Server{
		Handler:      httpRouter,
		Checkpoints:  checkpoints,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
