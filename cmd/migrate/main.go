package main

import (
	"context"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"

	"github.com/fdg312/meal-recommender/internal/config"
	"github.com/fdg312/meal-recommender/internal/dbmigrate"
	"github.com/fdg312/meal-recommender/internal/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		log.Fatal().Msg("usage: go run ./cmd/migrate [up|down|status|version|reset]")
	}

	command := os.Args[1]
	switch command {
	case dbmigrate.CommandUp, dbmigrate.CommandDown, dbmigrate.CommandStatus, dbmigrate.CommandVersion, dbmigrate.CommandReset:
	default:
		log.Fatal().Msgf("unsupported command %q (allowed: up, down, status, version, reset)", command)
	}

	dialect, dsn, source, warning, err := dbmigrate.SelectTarget(cfg, false)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	if warning != "" {
		log.Warn().Msg("migrate: " + warning)
	}
	log.Info().Str("command", command).Str("dialect", dialect).Str("using", source).Msg("migrate")

	if err := dbmigrate.Run(context.Background(), command, dialect, dsn); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	log.Info().Msgf("migrate: %s completed successfully", command)
}
