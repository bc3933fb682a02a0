package inventory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kasuganosora/magicwardrobe/ai"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a garment does not exist for the owner.
var ErrNotFound = errors.New("inventory: garment not found")

// Service is the garment store of all wardrobes. Every operation is scoped
// by the owning account id.
type Service struct {
	db       *gorm.DB
	embedder ai.Embedder
	logger   *zap.Logger
}

// NewService creates a new inventory Service.
func NewService(db *gorm.DB, embedder ai.Embedder, logger *zap.Logger) *Service {
	return &Service{db: db, embedder: embedder, logger: logger}
}

// WithTx returns a Service whose queries run inside tx.
func (svc *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, embedder: svc.embedder, logger: svc.logger}
}

// DB exposes the underlying handle so callers can open transactions.
func (svc *Service) DB() *gorm.DB { return svc.db }

// Add catalogues a new garment. The analysis is validated, the embedding
// document is embedded, and the garment starts clean with zero wears.
func (svc *Service) Add(ctx context.Context, owner int64, imageURI string, a catalog.Analysis) (*model.Garment, error) {
	a, err := a.Normalize()
	if err != nil {
		return nil, err
	}
	vec, err := svc.embedder.Embed(ctx, a.SearchText())
	if err != nil {
		return nil, fmt.Errorf("inventory: embed: %w", err)
	}

	g := &model.Garment{
		AccountID:    owner,
		ImageURI:     imageURI,
		Category:     a.Category,
		SubCategory:  a.SubCategory,
		PrimaryColor: a.PrimaryColor,
		Description:  a.Description,
		Tags:         a.Tags,
		Embedding:    vec,
		WearCount:    0,
		MaxWears:     catalog.DefaultMaxWears(a.Category, a.SubCategory),
		IsClean:      true,
	}
	if err := svc.db.WithContext(ctx).Create(g).Error; err != nil {
		return nil, fmt.Errorf("inventory: add: %w", err)
	}
	svc.logger.Info("garment added",
		zap.Int64("account_id", owner),
		zap.Int64("garment_id", g.ID),
		zap.String("category", string(g.Category)),
		zap.String("sub_category", g.SubCategory))
	return g, nil
}

// Update rewrites a garment's metadata and re-embeds it. The wear limit is
// recomputed only when the category or sub-category changes.
func (svc *Service) Update(ctx context.Context, owner, id int64, a catalog.Analysis) (*model.Garment, error) {
	a, err := a.Normalize()
	if err != nil {
		return nil, err
	}
	g, err := svc.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	vec, err := svc.embedder.Embed(ctx, a.SearchText())
	if err != nil {
		return nil, fmt.Errorf("inventory: embed: %w", err)
	}

	if g.Category != a.Category || g.SubCategory != a.SubCategory {
		g.MaxWears = catalog.DefaultMaxWears(a.Category, a.SubCategory)
	}
	g.Category = a.Category
	g.SubCategory = a.SubCategory
	g.PrimaryColor = a.PrimaryColor
	g.Description = a.Description
	g.Tags = a.Tags
	g.Embedding = vec

	err = svc.db.WithContext(ctx).Model(g).
		Select("category", "sub_category", "primary_color", "description", "tags", "embedding", "max_wears", "updated_at").
		Updates(g).Error
	if err != nil {
		return nil, fmt.Errorf("inventory: update %d: %w", id, err)
	}
	return g, nil
}

// Delete removes a garment. History records keep its id; hydration skips it.
func (svc *Service) Delete(ctx context.Context, owner, id int64) error {
	res := svc.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, owner).
		Delete(&model.Garment{})
	if res.Error != nil {
		return fmt.Errorf("inventory: delete %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one garment.
func (svc *Service) Get(ctx context.Context, owner, id int64) (*model.Garment, error) {
	var g model.Garment
	err := svc.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, owner).
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: get %d: %w", id, err)
	}
	return &g, nil
}

func (svc *Service) newestFirst(ctx context.Context, owner int64) *gorm.DB {
	return svc.db.WithContext(ctx).
		Where("account_id = ?", owner).
		Order("created_at DESC").Order("id DESC")
}

// ListAll returns every garment of the owner, newest first.
func (svc *Service) ListAll(ctx context.Context, owner int64) ([]model.Garment, error) {
	var out []model.Garment
	if err := svc.newestFirst(ctx, owner).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	return out, nil
}

// ListByCategory returns the owner's garments of one category, newest first.
func (svc *Service) ListByCategory(ctx context.Context, owner int64, cat catalog.Category) ([]model.Garment, error) {
	var out []model.Garment
	if err := svc.newestFirst(ctx, owner).Where("category = ?", cat).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("inventory: list %s: %w", cat, err)
	}
	return out, nil
}

// ListLaundry returns the owner's garments that are not clean.
func (svc *Service) ListLaundry(ctx context.Context, owner int64) ([]model.Garment, error) {
	var out []model.Garment
	if err := svc.newestFirst(ctx, owner).Where("is_clean = ?", false).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("inventory: list laundry: %w", err)
	}
	return out, nil
}

type scored struct {
	g     model.Garment
	score float64
}

// Search ranks the owner's garments of one category by cosine similarity to
// vec and returns at most topK of them. Garments without a comparable
// embedding are skipped; equal scores keep the newest garment first.
func (svc *Service) Search(ctx context.Context, owner int64, vec []float32, cat catalog.Category, topK int) ([]model.Garment, error) {
	if topK <= 0 {
		return nil, nil
	}
	pool, err := svc.ListByCategory(ctx, owner, cat)
	if err != nil {
		return nil, err
	}

	ranked := make([]scored, 0, len(pool))
	for _, g := range pool {
		s, ok := cosine(vec, g.Embedding)
		if !ok {
			continue
		}
		ranked = append(ranked, scored{g: g, score: s})
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]model.Garment, len(ranked))
	for i, r := range ranked {
		out[i] = r.g
	}
	return out, nil
}

func (svc *Service) update(ctx context.Context, op string, owner, id int64, set map[string]any) error {
	set["updated_at"] = time.Now()
	res := svc.db.WithContext(ctx).Model(&model.Garment{}).
		Where("id = ? AND account_id = ?", id, owner).
		Updates(set)
	if res.Error != nil {
		return fmt.Errorf("inventory: %s %d: %w", op, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkWorn increments the wear count in a single statement and flips the
// garment to dirty once the wear limit is reached. A garment that is
// already dirty stays dirty.
//
// gorm orders map assignments by column name, so is_clean is assigned
// before wear_count and sees the pre-increment value on every dialect.
func (svc *Service) MarkWorn(ctx context.Context, owner, id int64) error {
	return svc.update(ctx, "mark worn", owner, id, map[string]any{
		"wear_count": gorm.Expr("wear_count + 1"),
		"is_clean": gorm.Expr(
			"CASE WHEN max_wears IS NOT NULL AND wear_count + 1 >= max_wears THEN ? ELSE is_clean END", false),
		"last_worn": time.Now(),
	})
}

// DecrementWear undoes one wear, never going below zero. Dropping below the
// wear limit marks the garment clean, even if it had been marked dirty by
// hand; the store does not record why a garment is dirty.
func (svc *Service) DecrementWear(ctx context.Context, owner, id int64) error {
	const dec = "CASE WHEN wear_count > 0 THEN wear_count - 1 ELSE 0 END"
	return svc.update(ctx, "decrement wear", owner, id, map[string]any{
		"wear_count": gorm.Expr(dec),
		"is_clean": gorm.Expr(
			"CASE WHEN max_wears IS NOT NULL AND "+dec+" < max_wears THEN ? ELSE is_clean END", true),
	})
}

// MarkClean resets the wear count and marks the garment clean.
func (svc *Service) MarkClean(ctx context.Context, owner, id int64) error {
	return svc.update(ctx, "mark clean", owner, id, map[string]any{
		"wear_count": 0,
		"is_clean":   true,
	})
}

// MarkDirty marks the garment dirty without touching the wear count.
func (svc *Service) MarkDirty(ctx context.Context, owner, id int64) error {
	return svc.update(ctx, "mark dirty", owner, id, map[string]any{
		"is_clean": false,
	})
}
