package outfit

import (
	"context"

	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/model"
)

// Inventory is the engine's view of one wardrobe's garments.
type Inventory interface {
	// ListAll returns every garment, newest first.
	ListAll(ctx context.Context) ([]model.Garment, error)
	// Search returns at most topK garments of cat ranked by similarity to vec.
	Search(ctx context.Context, vec []float32, cat catalog.Category, topK int) ([]model.Garment, error)
	MarkWorn(ctx context.Context, id int64) error
}

// History records confirmed outfits.
type History interface {
	Append(ctx context.Context, ids []int64, label string) error
}

// Store is everything the engine reads from and writes to.
type Store interface {
	Inventory
	History
}

// TxRunner is implemented by stores that can apply a confirm atomically.
// When the engine's store implements it, the wear marks and the history
// record are written all-or-nothing.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(Store) error) error
}

// WeatherSource resolves the device's current weather to a short phrase.
type WeatherSource interface {
	Resolve(ctx context.Context) (string, error)
}
