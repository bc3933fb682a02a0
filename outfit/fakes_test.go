package outfit

import (
	"context"
	"errors"
	"sync"

	"github.com/kasuganosora/magicwardrobe/ai"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/model"
	"go.uber.org/zap"
)

func nop() *zap.Logger { return zap.NewNop() }

// fakeStore keeps garments in memory, newest first, and applies the same
// wear rule as the real inventory.
type fakeStore struct {
	mu        sync.Mutex
	garments  []model.Garment
	results   map[catalog.Category][]model.Garment
	listErr   error
	searchErr error
	wornErr   map[int64]error
	appendErr error

	listCalls int
	searches  []catalog.Category
	worn      []int64
	records   [][]int64
	labels    []string
}

func (f *fakeStore) ListAll(context.Context) ([]model.Garment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Garment(nil), f.garments...), nil
}

func (f *fakeStore) Search(_ context.Context, _ []float32, cat catalog.Category, topK int) ([]model.Garment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, cat)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	res := f.results[cat]
	if len(res) > topK {
		res = res[:topK]
	}
	return append([]model.Garment(nil), res...), nil
}

func (f *fakeStore) MarkWorn(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.wornErr[id]; err != nil {
		return err
	}
	for i := range f.garments {
		g := &f.garments[i]
		if g.ID != id {
			continue
		}
		g.WearCount++
		if g.MaxWears != nil && g.WearCount >= *g.MaxWears {
			g.IsClean = false
		}
		f.worn = append(f.worn, id)
		return nil
	}
	return errors.New("not found")
}

func (f *fakeStore) Append(_ context.Context, ids []int64, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, append([]int64(nil), ids...))
	f.labels = append(f.labels, label)
	return nil
}

func (f *fakeStore) garment(id int64) model.Garment {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.garments {
		if g.ID == id {
			return g
		}
	}
	return model.Garment{}
}

// txStore wraps fakeStore with an all-or-nothing RunInTx.
type txStore struct {
	*fakeStore
	txCalls int
}

func (t *txStore) RunInTx(ctx context.Context, fn func(Store) error) error {
	t.txCalls++
	t.mu.Lock()
	saved := append([]model.Garment(nil), t.garments...)
	savedRecords := len(t.records)
	t.mu.Unlock()
	if err := fn(t.fakeStore); err != nil {
		t.mu.Lock()
		t.garments = saved
		t.records = t.records[:savedRecords]
		t.mu.Unlock()
		return err
	}
	return nil
}

type fakeStylist struct {
	mu       sync.Mutex
	out      map[catalog.Category]ai.Suggestion
	err      error
	calls    int
	contexts []ai.StyleContext
	weathers []string
}

func (f *fakeStylist) SuggestOutfit(_ context.Context, sc ai.StyleContext, weather string) (map[catalog.Category]ai.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.contexts = append(f.contexts, sc)
	f.weathers = append(f.weathers, weather)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

type fakeWeather struct {
	phrase string
	err    error
	calls  int
}

func (f *fakeWeather) Resolve(context.Context) (string, error) {
	f.calls++
	return f.phrase, f.err
}

func intp(n int) *int { return &n }

func g(id int64, cat catalog.Category) model.Garment {
	return model.Garment{ID: id, AccountID: 1, Category: cat, SubCategory: "X", PrimaryColor: "Black", IsClean: true}
}
