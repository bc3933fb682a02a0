package model

import (
	"time"

	"gorm.io/datatypes"
)

// OutfitRecord is an immutable history entry written when an outfit is confirmed.
type OutfitRecord struct {
	ID          int64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID   int64                      `gorm:"index:idx_outfit_owner_worn,priority:1;not null" json:"account_id"`
	ItemIDs     datatypes.JSONSlice[int64] `gorm:"not null" json:"item_ids"`
	Description string                     `gorm:"size:128" json:"description"`
	WornAt      time.Time                  `gorm:"index:idx_outfit_owner_worn,priority:2;not null" json:"worn_at"`
	CreatedAt   time.Time                  `gorm:"autoCreateTime" json:"created_at"`
}
