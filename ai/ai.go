// Package ai holds the contracts and prompt logic for the model-backed
// collaborators: image analysis, outfit imagination and text embeddings.
package ai

import (
	"context"
	"errors"

	"github.com/kasuganosora/magicwardrobe/catalog"
)

// ErrEmptyResponse is returned when a model answers with no usable content.
var ErrEmptyResponse = errors.New("ai: empty model response")

// Embedder turns free text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Vision classifies a garment photo.
type Vision interface {
	AnalyzeImage(ctx context.Context, data []byte, mimeType string) (catalog.Analysis, error)
}

// Stylist imagines the missing pieces of an outfit.
type Stylist interface {
	SuggestOutfit(ctx context.Context, sc StyleContext, weather string) (map[catalog.Category]Suggestion, error)
}

// Suggestion is an imagined garment for one slot.
type Suggestion struct {
	SubCategory  string   `json:"subCategory"`
	PrimaryColor string   `json:"primaryColor"`
	Tags         []string `json:"tags"`
	Description  string   `json:"description"`
}

// SearchText is the embedding query for this suggestion in the given slot.
func (s Suggestion) SearchText(slot catalog.Category) string {
	return catalog.SearchText(s.PrimaryColor, s.SubCategory, slot, s.Tags)
}

// SlotItem is the minimal view of a displayed garment the stylist needs.
type SlotItem struct {
	Category     catalog.Category
	SubCategory  string
	PrimaryColor string
}

// StyleContext is the current outfit as seen by the stylist. Anchor is
// set when nothing is locked and the engine picked a base garment.
type StyleContext struct {
	Slots  map[catalog.Category]*SlotItem
	Locked map[catalog.Category]bool
	Anchor *SlotItem
}
