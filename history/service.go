package history

import (
	"context"
	"fmt"
	"time"

	"github.com/kasuganosora/magicwardrobe/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entry is an outfit record with the garments that still exist.
type Entry struct {
	model.OutfitRecord
	Items []model.Garment `json:"items"`
}

// Service stores confirmed outfits.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new history Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// WithTx returns a Service whose queries run inside tx.
func (svc *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, logger: svc.logger}
}

// Append writes one immutable outfit record.
func (svc *Service) Append(ctx context.Context, owner int64, ids []int64, label string) (*model.OutfitRecord, error) {
	now := time.Now()
	rec := &model.OutfitRecord{
		AccountID:   owner,
		ItemIDs:     append([]int64{}, ids...),
		Description: label,
		WornAt:      now,
		CreatedAt:   now,
	}
	if err := svc.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("history: append: %w", err)
	}
	svc.logger.Info("outfit recorded",
		zap.Int64("account_id", owner),
		zap.Int64("outfit_id", rec.ID),
		zap.Int64s("items", ids))
	return rec, nil
}

// List returns the owner's most recent outfits, newest worn first, each
// hydrated with its garments in their recorded order. Deleted garments are
// skipped. limit <= 0 returns everything.
func (svc *Service) List(ctx context.Context, owner int64, limit int) ([]Entry, error) {
	q := svc.db.WithContext(ctx).
		Where("account_id = ?", owner).
		Order("worn_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []model.OutfitRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	if len(recs) == 0 {
		return []Entry{}, nil
	}

	var ids []int64
	seen := make(map[int64]struct{})
	for _, r := range recs {
		for _, id := range r.ItemIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	byID := make(map[int64]model.Garment, len(ids))
	if len(ids) > 0 {
		var garments []model.Garment
		if err := svc.db.WithContext(ctx).
			Where("account_id = ? AND id IN ?", owner, ids).
			Find(&garments).Error; err != nil {
			return nil, fmt.Errorf("history: hydrate: %w", err)
		}
		for _, g := range garments {
			byID[g.ID] = g
		}
	}

	out := make([]Entry, len(recs))
	for i, r := range recs {
		items := make([]model.Garment, 0, len(r.ItemIDs))
		for _, id := range r.ItemIDs {
			if g, ok := byID[id]; ok {
				items = append(items, g)
			}
		}
		out[i] = Entry{OutfitRecord: r, Items: items}
	}
	return out, nil
}
