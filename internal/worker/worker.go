// Package worker provides async transaction scoring for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/engine"
)

// Worker scores transactions delivered over the EventBus instead of
// the synchronous HTTP path. Verdict and alert publication happen
// inside the engine, so the worker only ingests.
type Worker struct {
	bus    domain.EventBus
	engine *engine.Engine
	logger *slog.Logger

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, eng *engine.Engine, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		engine: eng,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			w.logger.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	w.logger.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicTransactionIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processTransaction(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicTransactionIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processTransaction(ctx, msg.TenantID, msg)
}

// TransactionMessage is the ingestion payload for async scoring.
type TransactionMessage struct {
	TxID       string                 `json:"txId,omitempty"`
	TenantID   string                 `json:"tenantId,omitempty"`
	UserID     string                 `json:"userId"`
	MerchantID string                 `json:"merchantId"`
	Amount     domain.Amount          `json:"amount"`
	Category   string                 `json:"category,omitempty"`
	User       domain.Location        `json:"userLocation"`
	Merchant   domain.Location        `json:"merchantLocation"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
	Features   map[string]interface{} `json:"features,omitempty"`
}

// toTransaction converts the message to a domain transaction.
func (m *TransactionMessage) toTransaction() *domain.Transaction {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &domain.Transaction{
		ID:               m.TxID,
		UserID:           m.UserID,
		MerchantID:       m.MerchantID,
		Amount:           m.Amount.Value,
		Currency:         m.Amount.Currency,
		Category:         m.Category,
		Timestamp:        ts,
		CreatedAt:        time.Now().UTC(),
		UserLocation:     domain.Coordinate{Lat: m.User.Lat, Lon: m.User.Lon},
		MerchantLocation: domain.Coordinate{Lat: m.Merchant.Lat, Lon: m.Merchant.Lon},
		Features:         m.Features,
	}
}

// processTransaction scores a transaction through the decision pipeline.
func (w *Worker) processTransaction(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var txMsg TransactionMessage
	if err := json.Unmarshal(msg.Payload, &txMsg); err != nil {
		w.logger.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if txMsg.TenantID != "" {
		tenantID = txMsg.TenantID
	}

	if txMsg.UserID == "" || txMsg.MerchantID == "" || txMsg.Amount.Value <= 0 {
		w.logger.Error("invalid transaction message",
			"message_id", msg.ID,
			"tenant_id", tenantID,
		)
		return nil // malformed messages are dropped, not retried
	}

	verdict, alert, err := w.engine.ScoreTransaction(ctx, tenantID, txMsg.toTransaction())
	if err != nil {
		w.logger.Error("async scoring failed",
			"tx_id", txMsg.TxID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	w.logger.Info("transaction processed",
		"tx_id", verdict.TxID,
		"tenant_id", tenantID,
		"level", verdict.Level,
		"probability", verdict.Blended.Probability,
		"alerted", alert != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	w.logger.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
