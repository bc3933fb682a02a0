package model

import (
	"time"

	"github.com/kasuganosora/magicwardrobe/catalog"
	"gorm.io/datatypes"
)

// Garment is one catalogued clothing item.
type Garment struct {
	ID           int64                        `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID    int64                        `gorm:"index:idx_garment_owner_cat,priority:1;not null" json:"account_id"`
	ImageURI     string                       `gorm:"size:512;not null" json:"image_uri"`
	Category     catalog.Category             `gorm:"index:idx_garment_owner_cat,priority:2;size:16;not null" json:"category"`
	SubCategory  string                       `gorm:"size:32;not null" json:"sub_category"`
	PrimaryColor string                       `gorm:"size:32" json:"primary_color"`
	Description  string                       `gorm:"type:text" json:"description"`
	Tags         datatypes.JSONSlice[string]  `json:"tags"`
	Embedding    datatypes.JSONSlice[float32] `json:"-"`
	WearCount    int                          `gorm:"not null" json:"wear_count"`
	MaxWears     *int                         `json:"max_wears"` // nil = unlimited
	IsClean      bool                         `gorm:"not null" json:"is_clean"`
	LastWorn     *time.Time                   `json:"last_worn"`
	CreatedAt    time.Time                    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                    `gorm:"autoUpdateTime" json:"updated_at"`
}

// NeedsLaundering reports whether the wear limit has been reached.
func (g *Garment) NeedsLaundering() bool {
	return g.MaxWears != nil && g.WearCount >= *g.MaxWears
}

// Analysis returns the descriptive metadata of the garment.
func (g *Garment) Analysis() catalog.Analysis {
	return catalog.Analysis{
		Category:     g.Category,
		SubCategory:  g.SubCategory,
		PrimaryColor: g.PrimaryColor,
		Description:  g.Description,
		Tags:         append([]string(nil), g.Tags...),
	}
}
