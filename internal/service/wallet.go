package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ismailopm12/gamesbazar.net/internal/broker"
	"github.com/ismailopm12/gamesbazar.net/internal/models"
	"github.com/ismailopm12/gamesbazar.net/internal/store"
	"github.com/ismailopm12/gamesbazar.net/internal/util"

	"go.uber.org/zap"
)

// ErrInvalidAmount is returned for non-positive wallet amounts
var ErrInvalidAmount = errors.New("amount must be positive")

// WalletService owns the per-user balance. Both directions go through
// single conditional statements in the store, never read-then-write.
type WalletService struct {
	store     *store.Store
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewWalletService creates a new wallet service
func NewWalletService(store *store.Store, publisher *broker.EventPublisher) *WalletService {
	return &WalletService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Credit adds amount to a user's balance unconditionally
func (ws *WalletService) Credit(ctx context.Context, userID string, amount int64, source string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ws.store.CreditBalance(ctx, userID, amount); err != nil {
		return err
	}

	util.WalletCreditsTotal.Inc()
	ws.logger.Info("Wallet credited",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("source", source))

	event := &models.WalletCreditedEvent{
		BaseEvent: newBaseEvent(models.EventTypeWalletCredited),
		UserID:    userID,
		Amount:    amount,
		Source:    source,
	}
	if err := ws.publisher.PublishWalletCredited(ctx, event); err != nil {
		ws.logger.Error("Failed to publish WalletCredited event", zap.Error(err))
	}
	return nil
}

// Debit subtracts amount from a user's balance; fails without any state
// change when the balance is short.
func (ws *WalletService) Debit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ws.store.DebitBalance(ctx, userID, amount); err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			util.WalletDebitsRejectedTotal.Inc()
		}
		return err
	}

	util.WalletDebitsTotal.Inc()
	ws.logger.Info("Wallet debited",
		zap.String("user_id", userID),
		zap.Int64("amount", amount))
	return nil
}

// Balance returns the user's current balance
func (ws *WalletService) Balance(ctx context.Context, userID string) (int64, error) {
	profile, err := ws.store.GetProfileByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return profile.Balance, nil
}

// RequestTopUp records a manual top-up claim for later admin review. No
// balance moves here; credit happens exactly once, at approval time.
func (ws *WalletService) RequestTopUp(ctx context.Context, userID string, amount int64, method, transactionID string) (*models.MoneyRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	req := &models.MoneyRequest{
		UserID:        userID,
		Amount:        amount,
		PaymentMethod: method,
		TransactionID: transactionID,
		Status:        models.MoneyRequestPending,
	}
	if err := ws.store.CreateMoneyRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create money request: %w", err)
	}

	ws.logger.Info("Money request submitted",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("method", method))
	return req, nil
}

// ApproveMoneyRequest flips a pending request to approved and credits the
// wallet. The guarded status flip is what makes the credit single-shot; if
// the credit itself fails the request is put back to pending for a retry.
func (ws *WalletService) ApproveMoneyRequest(ctx context.Context, requestID, adminNote string) error {
	ctx, span := util.StartSpan(ctx, "WalletService.ApproveMoneyRequest")
	defer span.End()

	req, err := ws.store.GetMoneyRequestByID(ctx, requestID)
	if err != nil {
		return err
	}

	if err := ws.store.SettleMoneyRequest(ctx, requestID, models.MoneyRequestApproved, adminNote); err != nil {
		return err
	}

	if err := ws.Credit(ctx, req.UserID, req.Amount, "money_request"); err != nil {
		if rerr := ws.store.ReopenMoneyRequest(ctx, requestID); rerr != nil {
			ws.logger.Error("Failed to reopen money request after credit failure",
				zap.String("request_id", requestID),
				zap.Error(rerr))
		}
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	return nil
}

// RejectMoneyRequest flips a pending request to rejected with a note
func (ws *WalletService) RejectMoneyRequest(ctx context.Context, requestID, adminNote string) error {
	return ws.store.SettleMoneyRequest(ctx, requestID, models.MoneyRequestRejected, adminNote)
}
