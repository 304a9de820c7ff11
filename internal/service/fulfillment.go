package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ismailopm12/gamesbazar.net/internal/broker"
	"github.com/ismailopm12/gamesbazar.net/internal/models"
	"github.com/ismailopm12/gamesbazar.net/internal/redisclient"
	"github.com/ismailopm12/gamesbazar.net/internal/store"
	"github.com/ismailopm12/gamesbazar.net/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidPayload is returned for webhook deliveries rejected before any mutation
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrUnknownInvoice is returned when no payment session matches the invoice id
	ErrUnknownInvoice = errors.New("unknown invoice id")
	// ErrAmountMismatch is returned when the webhook amount disagrees with the
	// order total; the order is left for manual review
	ErrAmountMismatch = errors.New("webhook amount does not match order total")
)

// gateway terminal statuses
const gatewayStatusCompleted = "COMPLETED"

// FulfillmentService is the single reconciliation point for payment
// confirmations: the gateway webhook, the wallet checkout and the manual
// admin approval all funnel through the same completion path.
type FulfillmentService struct {
	store     *store.Store
	redis     *redisclient.Client
	inventory *InventoryService
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewFulfillmentService creates a new fulfillment service
func NewFulfillmentService(
	store *store.Store,
	redis *redisclient.Client,
	inventory *InventoryService,
	publisher *broker.EventPublisher,
) *FulfillmentService {
	return &FulfillmentService{
		store:     store,
		redis:     redis,
		inventory: inventory,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// WebhookPayload is the gateway callback body
type WebhookPayload struct {
	InvoiceID string          `json:"invoice_id"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Metadata  WebhookMetadata `json:"metadata"`
}

// WebhookMetadata carries the reference echoed from initiation
type WebhookMetadata struct {
	OrderRef string `json:"order_id"`
}

// Validate rejects structurally broken payloads before any state is touched
func (p *WebhookPayload) Validate() error {
	if p.InvoiceID == "" {
		return fmt.Errorf("%w: missing invoice_id", ErrInvalidPayload)
	}
	if p.Status == "" {
		return fmt.Errorf("%w: missing status", ErrInvalidPayload)
	}
	if p.Metadata.OrderRef == "" {
		return fmt.Errorf("%w: missing metadata.order_id", ErrInvalidPayload)
	}
	return nil
}

// HandleWebhook reconciles one gateway delivery. Deliveries are at-least-once
// and unordered, so every path in here must tolerate replays: a repeat of a
// terminal status is acknowledged as success without assigning codes,
// decrementing stock or crediting a wallet a second time.
func (fs *FulfillmentService) HandleWebhook(ctx context.Context, payload *WebhookPayload) error {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.HandleWebhook")
	defer span.End()

	if err := payload.Validate(); err != nil {
		util.WebhookDeliveriesTotal.WithLabelValues("invalid").Inc()
		return err
	}

	completed := strings.EqualFold(payload.Status, gatewayStatusCompleted)
	statusLabel := "failed"
	if completed {
		statusLabel = "completed"
	}
	eventID := payload.InvoiceID + ":" + statusLabel

	// Replay fast-path; the processed_events row is the durable record.
	first, rerr := fs.redis.MarkInvoiceSeen(ctx, payload.InvoiceID, statusLabel)
	if rerr != nil {
		fs.logger.Warn("Invoice replay cache unavailable", zap.Error(rerr))
	} else if !first {
		processed, perr := fs.store.IsEventProcessed(ctx, eventID)
		if perr == nil && processed {
			util.WebhookReplaysTotal.Inc()
			fs.logger.Info("Duplicate webhook delivery ignored",
				zap.String("invoice_id", payload.InvoiceID),
				zap.String("status", statusLabel))
			return nil
		}
		// marker without a durable record: an earlier attempt died mid-flight,
		// fall through and let the status guards do their job
	}

	err := fs.reconcile(ctx, payload, completed)
	if err != nil {
		// let the gateway retry a delivery that failed for infra reasons
		if rerr == nil {
			_ = fs.redis.ForgetInvoice(ctx, payload.InvoiceID, statusLabel)
		}
		util.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return err
	}

	if err := fs.store.MarkEventProcessed(ctx, eventID, models.EventTypePaymentReceived); err != nil {
		fs.logger.Error("Failed to mark webhook processed", zap.Error(err))
	}
	util.WebhookDeliveriesTotal.WithLabelValues(statusLabel).Inc()
	return nil
}

func (fs *FulfillmentService) reconcile(ctx context.Context, payload *WebhookPayload, completed bool) error {
	ref := payload.Metadata.OrderRef

	// The invoice must belong to a session we opened; a fabricated callback
	// with a plausible-looking reference is rejected here.
	payment, err := fs.store.GetPaymentByTransactionID(ctx, payload.InvoiceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownInvoice, payload.InvoiceID)
		}
		return err
	}
	if payment.OrderRef != ref {
		return fmt.Errorf("%w: reference does not match payment session", ErrInvalidPayload)
	}

	if userID, ok := ParseTopUpRef(ref); ok {
		return fs.reconcileTopUp(ctx, payload, payment, userID, completed)
	}
	return fs.reconcileOrder(ctx, payload, ref, completed)
}

func (fs *FulfillmentService) reconcileTopUp(ctx context.Context, payload *WebhookPayload, payment *models.Payment, userID string, completed bool) error {
	if !completed {
		if err := fs.store.SettlePayment(ctx, payment.OrderRef, models.PaymentStatusFailed); err != nil {
			return err
		}
		fs.publishPaymentFailed(ctx, payment.OrderRef, payload.InvoiceID, payload.Status)
		return nil
	}

	if payment.Status == models.PaymentStatusCompleted {
		// top-up already credited; replay is a no-op
		return nil
	}

	if err := fs.store.SettlePayment(ctx, payment.OrderRef, models.PaymentStatusCompleted); err != nil {
		return err
	}

	// credit the session amount, not whatever the payload claims
	if err := fs.store.CreditBalance(ctx, userID, payment.Amount); err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}

	util.WalletCreditsTotal.Inc()
	fs.logger.Info("Wallet topped up",
		zap.String("user_id", userID),
		zap.Int64("amount", payment.Amount))

	event := &models.WalletCreditedEvent{
		BaseEvent: newBaseEvent(models.EventTypeWalletCredited),
		UserID:    userID,
		Amount:    payment.Amount,
		Source:    "gateway_topup",
	}
	if err := fs.publisher.PublishWalletCredited(ctx, event); err != nil {
		fs.logger.Error("Failed to publish WalletCredited event", zap.Error(err))
	}
	return nil
}

func (fs *FulfillmentService) reconcileOrder(ctx context.Context, payload *WebhookPayload, orderID string, completed bool) error {
	order, err := fs.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: unresolvable order %s", ErrInvalidPayload, orderID)
		}
		return err
	}

	if !completed {
		if err := fs.store.SettlePayment(ctx, orderID, models.PaymentStatusFailed); err != nil {
			return err
		}
		// never clobber a refunded or already-completed order with a late failure
		err := fs.store.TransitionOrder(ctx, orderID, models.OrderStatusFailed,
			models.OrderStatusPending, models.OrderStatusProcessing)
		if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
			return err
		}
		util.OrdersFailedTotal.WithLabelValues("gateway_declined").Inc()
		fs.publishPaymentFailed(ctx, orderID, payload.InvoiceID, payload.Status)
		fs.publishOrderFailed(ctx, orderID, payload.Status)
		return nil
	}

	// a short or partial payment never completes an order silently
	if payload.Amount > 0 && payload.Amount != order.TotalAmount {
		return fmt.Errorf("%w: got %d, order total %d", ErrAmountMismatch, payload.Amount, order.TotalAmount)
	}

	if err := fs.store.SettlePayment(ctx, orderID, models.PaymentStatusCompleted); err != nil {
		return err
	}
	return fs.Fulfill(ctx, order, models.OrderStatusPending, models.OrderStatusProcessing)
}

// Fulfill moves an order into completed and claims its codes. On shortage
// the order parks in processing with the payment kept completed: the money
// was collected, so this is an operator case, not a payment failure, and the
// webhook is still acknowledged. The from list guards which states may enter
// completed through this call.
func (fs *FulfillmentService) Fulfill(ctx context.Context, order *models.Order, from ...string) error {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.Fulfill")
	defer span.End()

	if order.Status == models.OrderStatusCompleted {
		return fs.finishInterruptedClaim(ctx, order)
	}

	if err := fs.store.TransitionOrder(ctx, order.ID, models.OrderStatusCompleted, from...); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			current, gerr := fs.store.GetOrderByID(ctx, order.ID)
			if gerr == nil && current.Status == models.OrderStatusCompleted {
				return fs.finishInterruptedClaim(ctx, current)
			}
			return fmt.Errorf("order %s in state %s: %w", order.ID, order.Status, err)
		}
		return err
	}

	_, err := fs.inventory.Assign(ctx, order.VariantID, order.ID, order.Quantity)
	if errors.Is(err, store.ErrInsufficientStock) {
		return fs.parkForRestock(ctx, order)
	}
	if err != nil {
		// infrastructure failure mid-claim: drop back to processing so a
		// retry or an operator can finish the job
		_ = fs.store.TransitionOrder(ctx, order.ID, models.OrderStatusProcessing, models.OrderStatusCompleted)
		return fmt.Errorf("failed to assign codes: %w", err)
	}

	util.OrdersCompletedTotal.Inc()
	fs.logger.Info("Order fulfilled",
		zap.String("order_id", order.ID),
		zap.Int("quantity", order.Quantity))

	event := &models.OrderCompletedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCompleted),
		OrderID:       order.ID,
		UserID:        order.UserID.String,
		VariantID:     order.VariantID,
		Quantity:      order.Quantity,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
	}
	if err := fs.publisher.PublishOrderCompleted(ctx, event); err != nil {
		fs.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}
	return nil
}

// finishInterruptedClaim covers the crash window between an order entering
// completed and its codes being claimed: a replayed delivery claims the
// shortfall instead of silently acking an order with nothing attached.
func (fs *FulfillmentService) finishInterruptedClaim(ctx context.Context, order *models.Order) error {
	delivered, err := fs.store.GetCodesByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}
	missing := order.Quantity - len(delivered)
	if missing <= 0 {
		return nil
	}

	_, err = fs.inventory.Assign(ctx, order.VariantID, order.ID, missing)
	if errors.Is(err, store.ErrInsufficientStock) {
		return fs.parkForRestock(ctx, order)
	}
	return err
}

func (fs *FulfillmentService) parkForRestock(ctx context.Context, order *models.Order) error {
	err := fs.store.TransitionOrder(ctx, order.ID, models.OrderStatusProcessing,
		models.OrderStatusCompleted, models.OrderStatusPending)
	if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		return err
	}

	available, cerr := fs.store.CountAvailableCodes(ctx, order.VariantID)
	if cerr != nil {
		fs.logger.Error("Failed to count available codes", zap.Error(cerr))
	}

	util.OrdersStockoutTotal.Inc()
	fs.logger.Warn("Order parked for restock",
		zap.String("order_id", order.ID),
		zap.String("variant_id", order.VariantID),
		zap.Int("requested", order.Quantity),
		zap.Int("available", available))

	event := &models.OrderStockoutEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderStockout),
		OrderID:   order.ID,
		VariantID: order.VariantID,
		Requested: order.Quantity,
		Available: available,
	}
	if err := fs.publisher.PublishOrderStockout(ctx, event); err != nil {
		fs.logger.Error("Failed to publish OrderStockout event", zap.Error(err))
	}
	return nil
}

// CompleteOrder records a completed payment for an order and fulfills it.
// Wallet checkouts and manual admin approvals enter here; if a pending
// payment row exists (manual bKash/Nagad submissions) it is settled,
// otherwise a completed row is created so the two tables stay consistent.
func (fs *FulfillmentService) CompleteOrder(ctx context.Context, order *models.Order, from ...string) error {
	_, err := fs.store.GetPaymentByOrderRef(ctx, order.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		payment := &models.Payment{
			OrderRef:      order.ID,
			UserID:        order.UserID,
			Amount:        order.TotalAmount,
			PaymentMethod: order.PaymentMethod,
			Provider:      providerFor(order.PaymentMethod),
			Status:        models.PaymentStatusCompleted,
			CompletedAt:   sql.NullTime{Time: time.Now(), Valid: true},
		}
		if cerr := fs.store.CreatePayment(ctx, payment); cerr != nil {
			return fmt.Errorf("failed to create payment record: %w", cerr)
		}
	case err != nil:
		return err
	default:
		if serr := fs.store.SettlePayment(ctx, order.ID, models.PaymentStatusCompleted); serr != nil {
			return serr
		}
	}

	return fs.Fulfill(ctx, order, from...)
}

// adminTransitions lists which source states each admin-selected target may
// come from. Completed additionally runs the shared fulfillment path.
var adminTransitions = map[string][]string{
	models.OrderStatusProcessing: {models.OrderStatusPending, models.OrderStatusFailed},
	models.OrderStatusCompleted:  {models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusFailed},
	models.OrderStatusFailed:     {models.OrderStatusPending, models.OrderStatusProcessing},
	models.OrderStatusRefunded: {models.OrderStatusPending, models.OrderStatusProcessing,
		models.OrderStatusCompleted, models.OrderStatusFailed},
}

// AdminSetStatus drives the order state machine from the back office
func (fs *FulfillmentService) AdminSetStatus(ctx context.Context, orderID, status string) error {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.AdminSetStatus")
	defer span.End()

	from, ok := adminTransitions[status]
	if !ok {
		return fmt.Errorf("%w: cannot set status %q", store.ErrInvalidTransition, status)
	}

	order, err := fs.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	if status == models.OrderStatusCompleted {
		return fs.CompleteOrder(ctx, order, from...)
	}

	if err := fs.store.TransitionOrder(ctx, orderID, status, from...); err != nil {
		return err
	}

	if status == models.OrderStatusRefunded {
		util.OrdersRefundedTotal.Inc()
		event := &models.OrderRefundedEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderRefunded),
			OrderID:   orderID,
		}
		if perr := fs.publisher.PublishOrderRefunded(ctx, event); perr != nil {
			fs.logger.Error("Failed to publish OrderRefunded event", zap.Error(perr))
		}
	}
	return nil
}

func (fs *FulfillmentService) publishPaymentFailed(ctx context.Context, orderRef, invoiceID, reason string) {
	util.PaymentFailedTotal.Inc()
	event := &models.PaymentFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentFailed),
		OrderRef:  orderRef,
		InvoiceID: invoiceID,
		Reason:    reason,
	}
	if err := fs.publisher.PublishPaymentFailed(ctx, event); err != nil {
		fs.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
}

func (fs *FulfillmentService) publishOrderFailed(ctx context.Context, orderID, reason string) {
	event := &models.OrderFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderFailed),
		OrderID:   orderID,
		Reason:    reason,
	}
	if err := fs.publisher.PublishOrderFailed(ctx, event); err != nil {
		fs.logger.Error("Failed to publish OrderFailed event", zap.Error(err))
	}
}

func providerFor(method string) string {
	switch method {
	case models.MethodWallet:
		return models.ProviderWallet
	case models.MethodGateway:
		return models.ProviderGateway
	default:
		return models.ProviderManual
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
