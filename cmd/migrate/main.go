// migrate applies the embedded schema migrations to DATABASE_URL.
package main

import (
	"flag"
	"os"

	"github.com/jrsteele09/go-session-server/internal/config"
	"github.com/jrsteele09/go-session-server/internal/db/migrate"
	"github.com/jrsteele09/go-session-server/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg)

	if err := migrate.Run(cfg.GetDatabaseURL(), migrate.Direction(*direction)); err != nil {
		log.Error().Err(err).Msg("migrate failed")
		os.Exit(1)
	}
	log.Info().Str("direction", *direction).Msg("migrations applied")
}
