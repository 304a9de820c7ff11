package worker

import (
	"context"

	"github.com/ismailopm12/gamesbazar.net/internal/broker"
	"github.com/ismailopm12/gamesbazar.net/internal/models"
	"github.com/ismailopm12/gamesbazar.net/internal/service"
	"github.com/ismailopm12/gamesbazar.net/internal/util"

	"go.uber.org/zap"
)

// StockWorker consumes fulfillment events and keeps the cached stock
// figures in sync with the ledger. Refreshes are best-effort; the cache
// is advisory and the ledger stays authoritative either way.
type StockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	inventory    *service.InventoryService
	logger       *zap.Logger
}

// NewStockWorker creates a new stock worker
func NewStockWorker(consumer *broker.Consumer, inventory *service.InventoryService) *StockWorker {
	logger := util.GetLogger()
	eventHandler := broker.NewEventHandler()

	w := &StockWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		inventory:    inventory,
		logger:       logger,
	}

	eventHandler.OnOrderCompleted(w.handleOrderCompleted)
	eventHandler.OnOrderStockout(w.handleOrderStockout)
	eventHandler.OnWalletCredited(w.handleWalletCredited)

	return w
}

// Start starts the worker
func (w *StockWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	w.logger.Info("Stopping stock worker")
	return w.consumer.Close()
}

func (w *StockWorker) handleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	w.logger.Info("Order completed",
		zap.String("order_id", event.OrderID),
		zap.String("variant_id", event.VariantID),
		zap.Int("quantity", event.Quantity))

	if err := w.inventory.RefreshStock(ctx, event.VariantID); err != nil {
		w.logger.Warn("Failed to refresh stock cache",
			zap.String("variant_id", event.VariantID),
			zap.Error(err))
	}
	return nil
}

func (w *StockWorker) handleOrderStockout(ctx context.Context, event *models.OrderStockoutEvent) error {
	w.logger.Warn("Order parked for restock",
		zap.String("order_id", event.OrderID),
		zap.String("variant_id", event.VariantID),
		zap.Int("requested", event.Requested),
		zap.Int("available", event.Available))

	if err := w.inventory.RefreshStock(ctx, event.VariantID); err != nil {
		w.logger.Warn("Failed to refresh stock cache",
			zap.String("variant_id", event.VariantID),
			zap.Error(err))
	}
	return nil
}

func (w *StockWorker) handleWalletCredited(ctx context.Context, event *models.WalletCreditedEvent) error {
	w.logger.Info("Wallet credited",
		zap.String("user_id", event.UserID),
		zap.Int64("amount", event.Amount),
		zap.String("source", event.Source))
	return nil
}
