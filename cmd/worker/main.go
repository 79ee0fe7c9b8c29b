// cmd/worker/main.go
//
// Queue-driven tick runner: consumes tick messages from AMQP and runs one
// orchestrator invocation per message. Deployments that already have a
// message broker point a periodic publisher at the queue instead of running
// cmd/scheduler.
package main

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

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

	mq, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to AMQP")
	}
	defer mq.Close()

	ch, err := mq.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open AMQP channel")
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(cfg.TickQueue, true, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare tick queue")
	}

	// One tick at a time; a second in-flight tick would race the first for
	// pending recipients.
	if err := ch.Qos(1, 0, false); err != nil {
		log.Fatal().Err(err).Msg("failed to set prefetch")
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register consumer")
	}

	log.Info().Str("queue", q.Name).Msg("worker running, waiting for tick messages")

	for d := range msgs {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.TickBudget)
		summary := orchestrator.Tick(ctx)
		cancel()

		log.Debug().Int("promoted", summary.Promoted).Int("drained", summary.Drained).
			Msg("queued tick processed")
		d.Ack(false)
	}
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
