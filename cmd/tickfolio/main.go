package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"tickfolio/internal/application/usecase/pipeline"
	"tickfolio/internal/infrastructure/config"
	"tickfolio/internal/infrastructure/logger"
	"tickfolio/internal/infrastructure/svc"

	"github.com/rs/zerolog/log"
)

func main() {
	logger.Setup(config.Log{})

	configPath := flag.String("config", "configs/config.toml", "path to config.toml; empty runs the built-in portfolio")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
		}
	}
	logger.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	log.Info().
		Str("config", *configPath).
		Str("home", cfg.Portfolio.HomeCurrency).
		Int("positions", len(cfg.Portfolio.Positions)).
		Str("feed", cfg.Feed.Provider).
		Msg("tickfolio started")

	runErr := pipeline.New(sc.PipelineDeps()).Run(ctx)
	if err := sc.Close(); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("pipeline stopped")
		os.Exit(1)
	}
	log.Info().Msg("tickfolio stopped")
}
