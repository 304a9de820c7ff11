package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ismailopm12/gamesbazar.net/internal/gateway"
	"github.com/ismailopm12/gamesbazar.net/internal/models"
	"github.com/ismailopm12/gamesbazar.net/internal/store"
	"github.com/ismailopm12/gamesbazar.net/internal/util"

	"go.uber.org/zap"
)

var (
	// ErrVariantUnavailable is returned for inactive or unknown variants
	ErrVariantUnavailable = errors.New("variant is not available for purchase")
	// ErrOutOfStock is returned when the advisory pre-check rules a purchase out
	ErrOutOfStock = errors.New("variant is out of stock")
	// ErrMissingTransactionID is returned for manual payments without a sender reference
	ErrMissingTransactionID = errors.New("transaction id is required for manual payments")
)

// CheckoutService initiates purchases and wallet top-ups. It only ever
// produces pending payments for asynchronous methods; fulfillment is
// deferred to the webhook or manual admin approval. The wallet method is
// the one synchronous path: debit and fulfill inside the request.
type CheckoutService struct {
	store       *store.Store
	gateway     *gateway.Client
	inventory   *InventoryService
	fulfillment *FulfillmentService
	wallet      *WalletService
	logger      *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store *store.Store,
	gw *gateway.Client,
	inventory *InventoryService,
	fulfillment *FulfillmentService,
	wallet *WalletService,
) *CheckoutService {
	return &CheckoutService{
		store:       store,
		gateway:     gw,
		inventory:   inventory,
		fulfillment: fulfillment,
		wallet:      wallet,
		logger:      util.GetLogger(),
	}
}

// CheckoutRequest is a purchase submission
type CheckoutRequest struct {
	UserID           string `json:"-"`
	VariantID        string `json:"variant_id" binding:"required"`
	Quantity         int    `json:"quantity" binding:"required,min=1"`
	PlayerUID        string `json:"player_uid" binding:"required"`
	PlayerName       string `json:"player_name"`
	CustomerName     string `json:"customer_name"`
	CustomerPhone    string `json:"customer_phone"`
	CustomerDistrict string `json:"customer_district"`
	CustomerEmail    string `json:"customer_email"`
	PaymentMethod    string `json:"payment_method" binding:"required"`
	TransactionID    string `json:"transaction_id"`
}

// CheckoutResponse reports the created order and, for gateway payments,
// where to send the buyer next
type CheckoutResponse struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	PaymentURL string `json:"payment_url,omitempty"`
	InvoiceID  string `json:"invoice_id,omitempty"`
}

// Checkout validates the purchase, captures the total at today's price and
// routes to the method-specific flow.
func (cs *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	variant, err := cs.store.GetVariantByID(ctx, req.VariantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVariantUnavailable
		}
		return nil, err
	}
	if !variant.IsActive {
		return nil, ErrVariantUnavailable
	}

	if !cs.inventory.TryReserve(ctx, req.VariantID, req.Quantity) {
		util.OrdersFailedTotal.WithLabelValues("out_of_stock").Inc()
		return nil, ErrOutOfStock
	}

	// total captured now; later price edits never change what was charged
	total := variant.Price * int64(req.Quantity)

	switch req.PaymentMethod {
	case models.MethodWallet:
		return cs.checkoutWallet(ctx, req, total)
	case models.MethodGateway:
		return cs.checkoutGateway(ctx, req, total)
	case models.MethodBkash, models.MethodNagad:
		return cs.checkoutManual(ctx, req, total)
	default:
		cs.inventory.Release(ctx, req.VariantID, req.Quantity)
		return nil, fmt.Errorf("unsupported payment method %q", req.PaymentMethod)
	}
}

func (cs *CheckoutService) newOrder(req *CheckoutRequest, total int64) *models.Order {
	country := "Bangladesh"
	return &models.Order{
		UserID:           sql.NullString{String: req.UserID, Valid: req.UserID != ""},
		VariantID:        req.VariantID,
		Quantity:         req.Quantity,
		PlayerUID:        req.PlayerUID,
		PlayerName:       req.PlayerName,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		CustomerDistrict: req.CustomerDistrict,
		CustomerCountry:  country,
		TotalAmount:      total,
		Status:           models.OrderStatusPending,
		PaymentMethod:    req.PaymentMethod,
	}
}

// checkoutWallet debits the buyer and fulfills synchronously. The debit is
// a single conditional statement, so two tabs racing for the same balance
// cannot both win.
func (cs *CheckoutService) checkoutWallet(ctx context.Context, req *CheckoutRequest, total int64) (*CheckoutResponse, error) {
	if err := cs.wallet.Debit(ctx, req.UserID, total); err != nil {
		cs.inventory.Release(ctx, req.VariantID, req.Quantity)
		return nil, err
	}

	order := cs.newOrder(req, total)
	if err := cs.store.CreateOrder(ctx, order); err != nil {
		// give the money back; the purchase never existed
		if rerr := cs.wallet.Credit(ctx, req.UserID, total, "wallet_checkout_rollback"); rerr != nil {
			cs.logger.Error("Failed to refund wallet after order creation failure",
				zap.String("user_id", req.UserID),
				zap.Error(rerr))
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	util.OrdersCreatedTotal.Inc()

	if err := cs.fulfillment.CompleteOrder(ctx, order, models.OrderStatusPending); err != nil {
		return nil, err
	}

	completed, err := cs.store.GetOrderByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &CheckoutResponse{OrderID: order.ID, Status: completed.Status}, nil
}

// checkoutGateway creates a pending order and opens a hosted checkout
// session. A gateway failure leaves the order pending and initiation can be
// retried without duplicating payment rows.
func (cs *CheckoutService) checkoutGateway(ctx context.Context, req *CheckoutRequest, total int64) (*CheckoutResponse, error) {
	order := cs.newOrder(req, total)
	if err := cs.store.CreateOrder(ctx, order); err != nil {
		cs.inventory.Release(ctx, req.VariantID, req.Quantity)
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	util.OrdersCreatedTotal.Inc()

	session, err := cs.InitiateGatewayPayment(ctx, order.ID, req.CustomerName, req.CustomerEmail)
	if err != nil {
		return nil, err
	}

	return &CheckoutResponse{
		OrderID:    order.ID,
		Status:     models.OrderStatusPending,
		PaymentURL: session.PaymentURL,
		InvoiceID:  session.InvoiceID,
	}, nil
}

// checkoutManual records a pending order plus a pending payment carrying
// the buyer-supplied sender transaction id, awaiting admin approval.
func (cs *CheckoutService) checkoutManual(ctx context.Context, req *CheckoutRequest, total int64) (*CheckoutResponse, error) {
	if req.TransactionID == "" {
		cs.inventory.Release(ctx, req.VariantID, req.Quantity)
		return nil, ErrMissingTransactionID
	}

	order := cs.newOrder(req, total)
	if err := cs.store.CreateOrder(ctx, order); err != nil {
		cs.inventory.Release(ctx, req.VariantID, req.Quantity)
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	util.OrdersCreatedTotal.Inc()

	payment := &models.Payment{
		OrderRef:      order.ID,
		UserID:        order.UserID,
		Amount:        total,
		PaymentMethod: req.PaymentMethod,
		Provider:      models.ProviderManual,
		TransactionID: req.TransactionID,
		Status:        models.PaymentStatusPending,
	}
	if err := cs.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}

	return &CheckoutResponse{OrderID: order.ID, Status: models.OrderStatusPending}, nil
}

// InitiateGatewayPayment opens a hosted checkout session for an existing
// pending order and upserts the pending payment row correlated to it by the
// gateway invoice id. Nothing else is mutated: on gateway trouble the order
// stays pending and the buyer can retry.
func (cs *CheckoutService) InitiateGatewayPayment(ctx context.Context, orderID, customerName, customerEmail string) (*gateway.CheckoutSession, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.InitiateGatewayPayment")
	defer span.End()

	order, err := cs.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("order %s is %s, not pending", orderID, order.Status)
	}

	start := time.Now()
	session, err := cs.gateway.CreateCheckout(ctx, order.ID, customerName, customerEmail, order.TotalAmount)
	util.GatewaySessionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.GatewaySessionsTotal.WithLabelValues("error").Inc()
		cs.logger.Error("Gateway session creation failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to initiate payment: %w", err)
	}
	util.GatewaySessionsTotal.WithLabelValues("created").Inc()

	payment := &models.Payment{
		OrderRef:      order.ID,
		UserID:        order.UserID,
		Amount:        order.TotalAmount,
		PaymentMethod: models.MethodGateway,
		Provider:      models.ProviderGateway,
		TransactionID: session.InvoiceID,
		Status:        models.PaymentStatusPending,
	}
	if err := cs.store.UpsertPendingPayment(ctx, payment); err != nil {
		return nil, err
	}

	cs.logger.Info("Gateway session created",
		zap.String("order_id", order.ID),
		zap.String("invoice_id", session.InvoiceID))
	return session, nil
}

// InitiateTopUp opens a hosted checkout session for a wallet top-up. There
// is no order row; the pending payment keyed by the synthetic reference is
// the session record the webhook later has to match.
func (cs *CheckoutService) InitiateTopUp(ctx context.Context, userID string, amount int64) (*gateway.CheckoutSession, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.InitiateTopUp")
	defer span.End()

	if amount <= 0 {
		return nil, fmt.Errorf("top-up amount must be positive, got %d", amount)
	}

	profile, err := cs.store.GetProfileByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ref := NewTopUpRef(userID)
	name := profile.FullName
	if name == "" {
		name = profile.Email
	}

	start := time.Now()
	session, err := cs.gateway.CreateCheckout(ctx, ref, name, profile.Email, amount)
	util.GatewaySessionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.GatewaySessionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to initiate top-up: %w", err)
	}
	util.GatewaySessionsTotal.WithLabelValues("created").Inc()

	payment := &models.Payment{
		OrderRef:      ref,
		UserID:        sql.NullString{String: userID, Valid: true},
		Amount:        amount,
		PaymentMethod: models.MethodGateway,
		Provider:      models.ProviderGateway,
		TransactionID: session.InvoiceID,
		Status:        models.PaymentStatusPending,
	}
	if err := cs.store.UpsertPendingPayment(ctx, payment); err != nil {
		return nil, err
	}

	cs.logger.Info("Top-up session created",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("invoice_id", session.InvoiceID))
	return session, nil
}
