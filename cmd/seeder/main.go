// cmd/seeder/main.go
package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/waseller/campaign-engine/internal/config"
	"github.com/waseller/campaign-engine/internal/db"
	"github.com/waseller/campaign-engine/internal/logger"
)

func main() {
	logger.Init()
	cfg := config.Load()

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer conn.Close()

	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	seedFiles := []string{
		"seed/customers.sql",
		"seed/orders.sql",
		"seed/carts.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to read seed file")
		}
		if _, err := conn.Exec(string(content)); err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to execute seed file")
		}
		log.Info().Str("file", file).Msg("seeded")
	}

	log.Info().Msg("database seeding completed")
}
