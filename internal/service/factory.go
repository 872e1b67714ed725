package service

import (
	"log/slog"

	"cadence.app/outreach/internal/gateway"
	"cadence.app/outreach/internal/queue"
	"cadence.app/outreach/internal/store"
)

type Services struct {
	stores   store.Provider
	txRunner store.TxRunner
	gateway  gateway.Gateway
	producer queue.Producer
	logger   *slog.Logger
}

func NewServices(stores store.Provider, txRunner store.TxRunner, gw gateway.Gateway, producer queue.Producer, logger *slog.Logger) *Services {
	return &Services{
		stores:   stores,
		txRunner: txRunner,
		gateway:  gw,
		producer: producer,
		logger:   logger,
	}
}

func (s *Services) WebhookProcessor() WebhookProcessor {
	return NewWebhookProcessor(s.stores, s.txRunner, s.gateway)
}

func (s *Services) WebhookIngest() WebhookIngestService {
	return NewWebhookIngestService(s.stores.WebhookEvents(), s.producer, s.WebhookProcessor(), s.logger)
}
