package wardrobe

import (
	"time"

	"github.com/kasuganosora/magicwardrobe/ai"
	"github.com/kasuganosora/magicwardrobe/cache"
	"github.com/kasuganosora/magicwardrobe/history"
	"github.com/kasuganosora/magicwardrobe/inventory"
	"github.com/kasuganosora/magicwardrobe/outfit"
	"go.uber.org/zap"
)

// Deps are the shared collaborators every account's engine is built from.
type Deps struct {
	Inventory *inventory.Service
	History   *history.Service
	Cache     cache.Cache
	Stylist   ai.Stylist
	Embedder  ai.Embedder
	// Weather returns the weather source for an account; nil means the
	// engine always uses its default phrase.
	Weather func(accountID int64) outfit.WeatherSource
	Options outfit.Options
	LockTTL time.Duration
	Logger  *zap.Logger
}

// NewFactory returns an outfit.Factory that builds engines backed by a
// per-account Backend.
func NewFactory(d Deps) outfit.Factory {
	return func(accountID int64) (*outfit.Engine, error) {
		backend := NewBackend(accountID, d.Inventory, d.History, d.Cache, d.LockTTL, d.Logger)
		var ws outfit.WeatherSource
		if d.Weather != nil {
			ws = d.Weather(accountID)
		}
		return outfit.NewEngine(accountID, backend, d.Stylist, d.Embedder, ws, d.Options, d.Logger), nil
	}
}
