package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/magicwardrobe/ai"
	"github.com/kasuganosora/magicwardrobe/api/rest"
	"github.com/kasuganosora/magicwardrobe/audit"
	"github.com/kasuganosora/magicwardrobe/cache"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/history"
	"github.com/kasuganosora/magicwardrobe/inventory"
	mw "github.com/kasuganosora/magicwardrobe/middleware"
	"github.com/kasuganosora/magicwardrobe/model"
	"github.com/kasuganosora/magicwardrobe/outfit"
	"github.com/kasuganosora/magicwardrobe/testutil"
	"github.com/kasuganosora/magicwardrobe/wardrobe"
	"github.com/kasuganosora/magicwardrobe/weather"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type flatEmbedder struct{}

func (flatEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }

// sneakerStylist always asks for white sneakers.
type sneakerStylist struct{}

func (sneakerStylist) SuggestOutfit(context.Context, ai.StyleContext, string) (map[catalog.Category]ai.Suggestion, error) {
	return map[catalog.Category]ai.Suggestion{
		catalog.Footwear: {SubCategory: "Sneakers", PrimaryColor: "White"},
	}, nil
}

type fakeVision struct {
	analysis catalog.Analysis
	err      error
}

func (f fakeVision) AnalyzeImage(context.Context, []byte, string) (catalog.Analysis, error) {
	return f.analysis, f.err
}

var errVision = errors.New("vision down")

type auditRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *auditRecorder) Log(e audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *auditRecorder) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

type restEnv struct {
	db      *gorm.DB
	cache   cache.Cache
	inv     *inventory.Service
	hist    *history.Service
	mgr     *outfit.Manager
	locator *weather.SessionLocator
	audit   *auditRecorder
	vision  fakeVision
	owner   int64
}

func newRestEnv(t *testing.T) *restEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	e := &restEnv{
		db:      db,
		cache:   c,
		inv:     inventory.NewService(db, flatEmbedder{}, logger),
		hist:    history.NewService(db, logger),
		locator: weather.NewSessionLocator(c, time.Hour),
		audit:   &auditRecorder{},
		vision: fakeVision{analysis: catalog.Analysis{
			Category: catalog.Tops, SubCategory: "T-Shirt", PrimaryColor: "Black",
			Description: "plain tee", Tags: []string{"casual"},
		}},
	}
	e.mgr = outfit.NewManager(wardrobe.NewFactory(wardrobe.Deps{
		Inventory: e.inv,
		History:   e.hist,
		Cache:     c,
		Stylist:   sneakerStylist{},
		Embedder:  flatEmbedder{},
		Options: outfit.Options{
			Now:  func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) },
			Intn: func(int) int { return 0 },
		},
		LockTTL: time.Minute,
		Logger:  logger,
	}), logger)
	e.owner = testutil.CreateAccount(t, db, "alice")
	return e
}

func (e *restEnv) router() *gin.Engine {
	logger := zap.NewNop()
	r := gin.New()
	r.Use(mw.TraceID())
	api := r.Group("/api", func(c *gin.Context) {
		c.Set(mw.AccountIDKey, e.owner)
		c.Next()
	})
	rest.Routes{
		Garments: rest.NewGarmentHandler(e.inv, e.vision, e.audit, 1<<20, logger),
		Outfit:   rest.NewOutfitHandler(e.mgr, e.inv, e.locator, e.audit, logger),
		History:  rest.NewHistoryHandler(e.hist, logger),
	}.Register(api)
	return r
}

func (e *restEnv) add(t *testing.T, cat catalog.Category, sub string) *model.Garment {
	t.Helper()
	g, err := e.inv.Add(context.Background(), e.owner, "file:///"+sub+".png", catalog.Analysis{
		Category: cat, SubCategory: sub, PrimaryColor: "Navy",
	})
	require.NoError(t, err)
	return g
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type garmentBody struct {
	Garment model.Garment `json:"garment"`
}

type garmentsBody struct {
	Garments []model.Garment `json:"garments"`
}

type slotBody struct {
	Item       *model.Garment `json:"item"`
	Locked     bool           `json:"locked"`
	Candidates int            `json:"candidates"`
	Index      int            `json:"index"`
	CanCycle   bool           `json:"can_cycle"`
}

type outfitBody struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error"`
	Outfit  struct {
		Order   []string            `json:"order"`
		Slots   map[string]slotBody `json:"slots"`
		Loading bool                `json:"loading"`
		Weather string              `json:"weather"`
	} `json:"outfit"`
}
