package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ismailopm12/gamesbazar.net/internal/redisclient"
	"github.com/ismailopm12/gamesbazar.net/internal/store"
	"github.com/ismailopm12/gamesbazar.net/internal/util"

	"go.uber.org/zap"
)

// InventoryService owns the voucher-code pool per variant. The database
// claim is the single authority; the Redis counter only serves display
// reads and the advisory checkout pre-check.
type InventoryService struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(store *store.Store, redis *redisclient.Client) *InventoryService {
	return &InventoryService{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// Assign claims n codes for an order and decrements stock, atomically.
// Shared by the webhook handler, wallet checkout and manual admin
// completion so the three entry points cannot drift apart.
func (is *InventoryService) Assign(ctx context.Context, variantID, orderID string, n int) ([]string, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Assign")
	defer span.End()

	start := time.Now()
	codes, err := is.store.ClaimCodes(ctx, variantID, orderID, n)
	util.CodeClaimLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	util.CodesDeliveredTotal.Add(float64(len(codes)))
	if rerr := is.RefreshStock(ctx, variantID); rerr != nil {
		is.logger.Warn("Stock cache refresh failed after claim",
			zap.String("variant_id", variantID),
			zap.Error(rerr))
	}
	return codes, nil
}

// AvailableStock returns the available-code count, serving from the cache
// and falling back to the live count on a miss.
func (is *InventoryService) AvailableStock(ctx context.Context, variantID string) (int, error) {
	cached, ok, err := is.redis.GetStock(ctx, variantID)
	if err == nil && ok {
		return cached, nil
	}
	if err != nil {
		is.logger.Warn("Stock cache read failed, using live count",
			zap.String("variant_id", variantID),
			zap.Error(err))
	}

	count, err := is.store.CountAvailableCodes(ctx, variantID)
	if err != nil {
		return 0, err
	}
	if cerr := is.redis.SetStock(ctx, variantID, count); cerr != nil {
		is.logger.Warn("Failed to prime stock cache", zap.Error(cerr))
	}
	return count, nil
}

// TryReserve runs the advisory cache pre-check for a checkout. A false
// result means the purchase is hopeless and can be rejected before any
// order row exists. Cache trouble is never a reason to block a sale.
func (is *InventoryService) TryReserve(ctx context.Context, variantID string, n int) bool {
	ok, err := is.redis.TryReserveStock(ctx, variantID, n)
	if err != nil {
		is.logger.Warn("Stock pre-check unavailable, proceeding",
			zap.String("variant_id", variantID),
			zap.Error(err))
		return true
	}
	return ok
}

// Release returns an advisory reservation to the cache after an initiation
// that did not go through.
func (is *InventoryService) Release(ctx context.Context, variantID string, n int) {
	if err := is.redis.ReleaseStock(ctx, variantID, n); err != nil {
		is.logger.Warn("Failed to release advisory reservation",
			zap.String("variant_id", variantID),
			zap.Error(err))
	}
}

// RefreshStock rewrites the cached counter from the live count, erasing any
// drift accumulated by advisory reservations.
func (is *InventoryService) RefreshStock(ctx context.Context, variantID string) error {
	count, err := is.store.CountAvailableCodes(ctx, variantID)
	if err != nil {
		return fmt.Errorf("failed to count available codes: %w", err)
	}
	if err := is.redis.SetStock(ctx, variantID, count); err != nil {
		return fmt.Errorf("failed to refresh stock cache: %w", err)
	}
	return nil
}

// Restock bulk-adds available codes to a variant (admin stocking operation)
func (is *InventoryService) Restock(ctx context.Context, variantID string, codes []string) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.Restock")
	defer span.End()

	if err := is.store.InsertCodes(ctx, variantID, codes); err != nil {
		return err
	}
	if rerr := is.RefreshStock(ctx, variantID); rerr != nil {
		is.logger.Warn("Stock cache refresh failed after restock",
			zap.String("variant_id", variantID),
			zap.Error(rerr))
	}
	is.logger.Info("Variant restocked",
		zap.String("variant_id", variantID),
		zap.Int("count", len(codes)))
	return nil
}

// SyncStockToRedis primes the cache for every variant at startup
func (is *InventoryService) SyncStockToRedis(ctx context.Context) error {
	variants, err := is.store.GetAllVariants(ctx)
	if err != nil {
		return err
	}

	for _, v := range variants {
		if rerr := is.RefreshStock(ctx, v.ID); rerr != nil {
			is.logger.Warn("Stock cache refresh failed",
				zap.String("variant_id", v.ID),
				zap.Error(rerr))
		}
	}

	is.logger.Info("Stock cache synced", zap.Int("variants", len(variants)))
	return nil
}
