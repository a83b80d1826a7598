// Package main provides the session broker binary that pairs websocket
// clients into two-party game sessions and relays their moves through a
// Lua rules engine.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/parlor/internal/broker"
	"github.com/cory-johannsen/parlor/internal/config"
	"github.com/cory-johannsen/parlor/internal/game/catalog"
	"github.com/cory-johannsen/parlor/internal/game/code"
	"github.com/cory-johannsen/parlor/internal/game/engine"
	"github.com/cory-johannsen/parlor/internal/game/session"
	"github.com/cory-johannsen/parlor/internal/observability"
	"github.com/cory-johannsen/parlor/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting session broker",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("game", cfg.Broker.Game),
	)

	// Load the game catalog and the rules script for the configured game.
	catStart := time.Now()
	cat, err := catalog.LoadDirectory(cfg.Games.Dir)
	if err != nil {
		logger.Fatal("loading game catalog", zap.Error(err))
	}
	def, ok := cat.Get(cfg.Broker.Game)
	if !ok {
		logger.Fatal("configured game not in catalog",
			zap.String("game", cfg.Broker.Game),
			zap.Strings("available", cat.IDs()),
		)
	}
	limit := def.InstructionLimit
	if limit == 0 {
		limit = cfg.Games.InstructionLimit
	}
	rules, err := engine.NewLuaEngine(def.Script, limit, logger)
	if err != nil {
		logger.Fatal("loading rules engine", zap.Error(err))
	}
	defer rules.Close()
	logger.Info("rules engine ready",
		zap.String("game", def.ID),
		zap.String("script", def.Script),
		zap.Duration("elapsed", time.Since(catStart)),
	)

	// Wire the transport hub to the session registry.
	hub := broker.NewHub(cfg.Server, logger)
	registry := session.NewRegistry(
		rules,
		code.NewGenerator(cfg.Broker.CodeLength),
		cfg.Broker.CodeRetries,
		hub,
		logger,
	)
	hub.OnDisconnect = registry.HandleDisconnect
	handler := broker.NewHandler(registry, logger)
	srv := broker.NewServer(cfg.Server, hub, handler, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("websocket", srv)

	logger.Info("broker wired", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("lifecycle error", zap.Error(err))
	}
}
