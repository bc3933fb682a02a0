// Package wardrobe binds the shared inventory and history stores to a single
// account so the outfit engine can work against them.
package wardrobe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/magicwardrobe/cache"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/history"
	"github.com/kasuganosora/magicwardrobe/inventory"
	"github.com/kasuganosora/magicwardrobe/model"
	"github.com/kasuganosora/magicwardrobe/outfit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrConfirmInProgress is returned when another process holds the account's
// confirm lock.
var ErrConfirmInProgress = errors.New("wardrobe: confirm in progress, please retry")

const defaultLockTTL = 30 * time.Second

// Backend is one account's view of the inventory and history stores.
type Backend struct {
	owner   int64
	inv     *inventory.Service
	hist    *history.Service
	cache   cache.Cache // nil disables the cross-process confirm lock
	lockTTL time.Duration
	logger  *zap.Logger
}

var (
	_ outfit.Store    = (*Backend)(nil)
	_ outfit.TxRunner = (*Backend)(nil)
)

// NewBackend creates a Backend for owner.
func NewBackend(owner int64, inv *inventory.Service, hist *history.Service, c cache.Cache,
	lockTTL time.Duration, logger *zap.Logger) *Backend {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Backend{owner: owner, inv: inv, hist: hist, cache: c, lockTTL: lockTTL, logger: logger}
}

// Owner returns the bound account id.
func (b *Backend) Owner() int64 { return b.owner }

func (b *Backend) ListAll(ctx context.Context) ([]model.Garment, error) {
	return b.inv.ListAll(ctx, b.owner)
}

func (b *Backend) Search(ctx context.Context, vec []float32, cat catalog.Category, topK int) ([]model.Garment, error) {
	return b.inv.Search(ctx, b.owner, vec, cat, topK)
}

func (b *Backend) MarkWorn(ctx context.Context, id int64) error {
	return b.inv.MarkWorn(ctx, b.owner, id)
}

func (b *Backend) Append(ctx context.Context, ids []int64, label string) error {
	_, err := b.hist.Append(ctx, b.owner, ids, label)
	return err
}

// RunInTx runs fn against a Backend bound to one database transaction.
// The account's confirm lock is held for the duration so two processes
// serving the same account cannot confirm at once.
func (b *Backend) RunInTx(ctx context.Context, fn func(outfit.Store) error) error {
	if b.cache != nil {
		lockKey := fmt.Sprintf("lock:confirm:%d", b.owner)
		ok, err := b.cache.SetNX(ctx, lockKey, "1", b.lockTTL)
		if err != nil || !ok {
			if err != nil {
				b.logger.Warn("confirm lock unavailable", zap.Int64("account_id", b.owner), zap.Error(err))
			}
			return ErrConfirmInProgress
		}
		defer b.unlock(context.WithoutCancel(ctx), lockKey)
	}

	return b.inv.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Backend{
			owner:  b.owner,
			inv:    b.inv.WithTx(tx),
			hist:   b.hist.WithTx(tx),
			logger: b.logger,
		})
	})
}

// unlock releases the confirm lock even when the request was cancelled;
// otherwise the account stays locked until the TTL runs out.
func (b *Backend) unlock(ctx context.Context, key string) {
	if err := b.cache.Del(ctx, key); err != nil {
		b.logger.Warn("confirm lock release", zap.Int64("account_id", b.owner), zap.Error(err))
	}
}
