package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ismailopm12/gamesbazar.net/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the wallet balance
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrInsufficientStock is returned when fewer codes are available than requested
	ErrInsufficientStock = errors.New("insufficient voucher stock")
	// ErrInvalidTransition is returned when an order status guard rejects an update
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetVariantByID retrieves a product variant by ID
func (s *Store) GetVariantByID(ctx context.Context, id string) (*models.Variant, error) {
	var variant models.Variant
	err := s.db.GetContext(ctx, &variant, "SELECT * FROM product_variants WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("variant %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// GetActiveVariants retrieves all active variants for a product
func (s *Store) GetActiveVariants(ctx context.Context, productID string) ([]models.Variant, error) {
	var variants []models.Variant
	err := s.db.SelectContext(ctx, &variants,
		"SELECT * FROM product_variants WHERE product_id = $1 AND is_active ORDER BY price", productID)
	return variants, err
}

// GetAllVariants retrieves every variant, active or not
func (s *Store) GetAllVariants(ctx context.Context) ([]models.Variant, error) {
	var variants []models.Variant
	err := s.db.SelectContext(ctx, &variants, "SELECT * FROM product_variants ORDER BY created_at")
	return variants, err
}

// GetProfileByID retrieves a user profile by ID
func (s *Store) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, "SELECT * FROM profiles WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreditBalance adds amount to a user's wallet as a single atomic adjustment.
// Never read-then-write: concurrent webhook deliveries for the same user
// must each land their full amount.
func (s *Store) CreditBalance(ctx context.Context, userID string, amount int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET balance = balance + $1, updated_at = NOW() WHERE id = $2",
		amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return nil
}

// DebitBalance subtracts amount from a user's wallet, checked and applied in
// one conditional statement. Zero rows affected means the balance was short.
func (s *Store) DebitBalance(ctx context.Context, userID string, amount int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET balance = balance - $1, updated_at = NOW() WHERE id = $2 AND balance >= $1",
		amount, userID)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// HasRole reports whether the user holds the given role. Admin-ness is
// solely a role-table membership fact; there are no special-cased identities.
func (s *Store) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)", userID, role)
	return exists, err
}

// IsEventProcessed checks if a webhook delivery has already been handled
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed records a handled webhook delivery
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
