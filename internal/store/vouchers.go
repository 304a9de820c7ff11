package store

import (
	"context"
	"fmt"

	"github.com/ismailopm12/gamesbazar.net/internal/models"
)

// ClaimCodes binds the n oldest available codes of a variant to an order,
// marks them delivered and decrements the cached stock counter, all in one
// transaction. FOR UPDATE SKIP LOCKED keeps two concurrent fulfillments for
// the same variant off each other's rows, so claimed sets are always
// disjoint. If fewer than n codes are available nothing is claimed and
// ErrInsufficientStock is returned; partial assignment would under-deliver
// against what was charged.
func (s *Store) ClaimCodes(ctx context.Context, variantID, orderID string, n int) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("claim quantity must be >= 1, got %d", n)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		UPDATE voucher_codes
		SET order_id = $1, status = $2, delivered_at = NOW()
		WHERE id IN (
			SELECT id FROM voucher_codes
			WHERE product_variant_id = $3 AND status = $4
			ORDER BY created_at, id
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING code`

	var codes []string
	err = tx.SelectContext(ctx, &codes, query,
		orderID, models.VoucherStatusDelivered, variantID, models.VoucherStatusAvailable, n)
	if err != nil {
		return nil, fmt.Errorf("failed to claim codes: %w", err)
	}

	if len(codes) != n {
		// rollback via defer; the partial claim never commits
		return nil, ErrInsufficientStock
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE product_variants SET stock_quantity = stock_quantity - $1, updated_at = NOW() WHERE id = $2",
		n, variantID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return codes, nil
}

// CountAvailableCodes returns the live available-code count for a variant.
// This is the source of truth for stock; the cached counter on the variant
// row is only ever touched inside ClaimCodes.
func (s *Store) CountAvailableCodes(ctx context.Context, variantID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM voucher_codes WHERE product_variant_id = $1 AND status = $2",
		variantID, models.VoucherStatusAvailable)
	return count, err
}

// InsertCodes bulk-stocks a variant with new available codes
func (s *Store) InsertCodes(ctx context.Context, variantID string, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		"INSERT INTO voucher_codes (code, product_variant_id, status) VALUES ($1, $2, $3)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, code := range codes {
		if _, err := stmt.ExecContext(ctx, code, variantID, models.VoucherStatusAvailable); err != nil {
			return fmt.Errorf("failed to insert code: %w", err)
		}
	}

	return tx.Commit()
}

// GetCodesByOrderID retrieves the codes delivered to an order
func (s *Store) GetCodesByOrderID(ctx context.Context, orderID string) ([]models.VoucherCode, error) {
	var codes []models.VoucherCode
	err := s.db.SelectContext(ctx, &codes,
		"SELECT * FROM voucher_codes WHERE order_id = $1 ORDER BY delivered_at", orderID)
	return codes, err
}
