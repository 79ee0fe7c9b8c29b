// cmd/scheduler/main.go
//
// Periodic tick runner. The orchestrator itself is scheduler-agnostic; this
// binary drives it with an in-process cron. cmd/worker offers the same tick
// behind a queue consumer instead.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/waseller/campaign-engine/internal/config"
	"github.com/waseller/campaign-engine/internal/db"
	"github.com/waseller/campaign-engine/internal/gateway"
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

	orchestrator := newOrchestrator(cfg, conn)

	c := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.TickInterval)
	_, err = c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.TickBudget)
		defer cancel()
		orchestrator.Tick(ctx)
	})
	if err != nil {
		log.Fatal().Err(err).Str("spec", spec).Msg("invalid cron spec")
	}

	c.Start()
	log.Info().Dur("interval", cfg.TickInterval).Dur("budget", cfg.TickBudget).Msg("scheduler running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("scheduler shutting down")
	<-c.Stop().Done()
}

func newOrchestrator(cfg *config.Config, conn *sqlx.DB) *service.Orchestrator {
	customerRepo := &repository.CustomerRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	orderRepo := &repository.OrderRepository{DB: conn}
	cartRepo := &repository.CartRepository{DB: conn}
	eventRepo := &repository.ReminderEventRepository{DB: conn}

	sender := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayTimeout)

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		Resolver:      &service.AudienceResolver{Customers: customerRepo},
	}

	return &service.Orchestrator{
		Campaigns:  campaignRepo,
		Recipients: recipientRepo,
		Service:    campaignService,
		Dispatcher: &service.Dispatcher{
			Campaigns:  campaignRepo,
			Recipients: recipientRepo,
			Sender:     sender,
		},
		Reminders: &service.ReminderEngine{
			Carts:        cartRepo,
			Orders:       orderRepo,
			Customers:    customerRepo,
			Events:       eventRepo,
			Sender:       sender,
			MinCartValue: cfg.MinCartValue,
			PageSize:     cfg.ReminderPage,
			SendDelay:    cfg.ReminderDelay,
		},
	}
}
