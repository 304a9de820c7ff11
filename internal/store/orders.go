package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ismailopm12/gamesbazar.net/internal/models"

	"github.com/lib/pq"
)

// CreateOrder inserts a new order. TotalAmount is captured at creation time
// so later price changes never alter what the buyer was charged.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, product_variant_id, quantity, player_uid, player_name,
			customer_name, customer_phone, customer_district, customer_country,
			total_amount, status, payment_method, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, order, query,
		order.UserID, order.VariantID, order.Quantity, order.PlayerUID, order.PlayerName,
		order.CustomerName, order.CustomerPhone, order.CustomerDistrict, order.CustomerCountry,
		order.TotalAmount, order.Status, order.PaymentMethod, order.CompletedAt)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// TransitionOrder moves an order to a new status only if its current status
// is one of the allowed source states. completed_at is set on entry into
// completed and cleared on any transition out of it, so it is non-null
// exactly for completed orders. Zero rows affected means the order was in a
// conflicting state (e.g. a late webhook against an already refunded order)
// and the transition is rejected.
func (s *Store) TransitionOrder(ctx context.Context, orderID, newStatus string, from ...string) error {
	var query string
	if newStatus == models.OrderStatusCompleted {
		query = `UPDATE orders SET status = $1, completed_at = NOW() WHERE id = $2 AND status = ANY($3)`
	} else {
		query = `UPDATE orders SET status = $1, completed_at = NULL WHERE id = $2 AND status = ANY($3)`
	}

	res, err := s.db.ExecContext(ctx, query, newStatus, orderID, pq.Array(from))
	if err != nil {
		return fmt.Errorf("failed to transition order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// CreatePayment inserts a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_ref, user_id, amount, payment_method, payment_provider,
			transaction_id, status, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, payment, query,
		payment.OrderRef, payment.UserID, payment.Amount, payment.PaymentMethod,
		payment.Provider, payment.TransactionID, payment.Status, payment.CompletedAt)
}

// GetPaymentByOrderRef retrieves the latest payment for an order or top-up reference
func (s *Store) GetPaymentByOrderRef(ctx context.Context, orderRef string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE order_ref = $1 ORDER BY created_at DESC LIMIT 1", orderRef)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment for %s: %w", orderRef, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByTransactionID retrieves a payment by the gateway invoice id
func (s *Store) GetPaymentByTransactionID(ctx context.Context, txID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE transaction_id = $1 ORDER BY created_at DESC LIMIT 1", txID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment with transaction %s: %w", txID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpsertPendingPayment finds the payment row for an order reference and
// refreshes its transaction id, or creates the row if absent. A buyer
// retrying initiation after a failed attempt must not stack duplicate rows.
func (s *Store) UpsertPendingPayment(ctx context.Context, payment *models.Payment) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET transaction_id = $1, payment_provider = $2
		 WHERE order_ref = $3 AND status != $4`,
		payment.TransactionID, payment.Provider, payment.OrderRef, models.PaymentStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	return s.CreatePayment(ctx, payment)
}

// SettlePayment flips a pending payment to completed or failed. The status
// guard makes settlement single-shot: an out-of-order delivery arriving
// after the payment reached a terminal status leaves the row untouched, and
// a replayed success never re-stamps completed_at. Zero rows is a no-op,
// not an error; the order-level guards decide what a conflict means.
func (s *Store) SettlePayment(ctx context.Context, orderRef, status string) error {
	var query string
	if status == models.PaymentStatusCompleted {
		query = "UPDATE payments SET status = $1, completed_at = NOW() WHERE order_ref = $2 AND status = $3"
	} else {
		query = "UPDATE payments SET status = $1 WHERE order_ref = $2 AND status = $3"
	}
	_, err := s.db.ExecContext(ctx, query, status, orderRef, models.PaymentStatusPending)
	return err
}

// ReopenMoneyRequest puts an approved request back to pending, used when
// the follow-up balance credit could not be applied
func (s *Store) ReopenMoneyRequest(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE money_requests SET status = $1, processed_at = NULL WHERE id = $2",
		models.MoneyRequestPending, id)
	return err
}

// CreateMoneyRequest inserts a pending manual top-up claim
func (s *Store) CreateMoneyRequest(ctx context.Context, req *models.MoneyRequest) error {
	query := `
		INSERT INTO money_requests (user_id, amount, payment_method, transaction_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, req, query,
		req.UserID, req.Amount, req.PaymentMethod, req.TransactionID, req.Status)
}

// GetMoneyRequestByID retrieves a money request
func (s *Store) GetMoneyRequestByID(ctx context.Context, id string) (*models.MoneyRequest, error) {
	var req models.MoneyRequest
	err := s.db.GetContext(ctx, &req, "SELECT * FROM money_requests WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("money request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// SettleMoneyRequest flips a pending request to approved/rejected. The
// status guard makes approval single-shot: the balance credit that follows
// an approval can never run twice for the same request.
func (s *Store) SettleMoneyRequest(ctx context.Context, id, status, adminNote string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE money_requests SET status = $1, admin_note = $2, processed_at = NOW()
		 WHERE id = $3 AND status = $4`,
		status, adminNote, id, models.MoneyRequestPending)
	if err != nil {
		return fmt.Errorf("failed to settle money request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}
