// cmd/server/main.go
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/waseller/campaign-engine/internal/config"
	"github.com/waseller/campaign-engine/internal/controller"
	"github.com/waseller/campaign-engine/internal/db"
	"github.com/waseller/campaign-engine/internal/logger"
	"github.com/waseller/campaign-engine/internal/repository"
	"github.com/waseller/campaign-engine/internal/service"
)

func main() {
	logger.Init()
	cfg := config.Load()

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	customerRepo := &repository.CustomerRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		Resolver:      &service.AudienceResolver{Customers: customerRepo},
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	campaignController.Routes(r)

	log.Info().Str("port", cfg.Port).Msg("control API listening")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
