package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCategory    = errors.New("catalog: unknown category")
	ErrUnknownSubCategory = errors.New("catalog: unknown sub-category")
)

// Category is the closed set of garment categories.
type Category string

const (
	Headwear    Category = "Headwear"
	Outerwear   Category = "Outerwear"
	Tops        Category = "Tops"
	Bottoms     Category = "Bottoms"
	Footwear    Category = "Footwear"
	Accessories Category = "Accessories"
)

var categories = []Category{Headwear, Outerwear, Tops, Bottoms, Footwear, Accessories}

// slots are the outfit positions in display order. Accessories are
// catalogued but never placed into an outfit slot.
var slots = []Category{Headwear, Outerwear, Tops, Bottoms, Footwear}

// Categories returns every known category.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Slots returns the five outfit slot keys in canonical order.
func Slots() []Category {
	return append([]Category(nil), slots...)
}

// IsSlot reports whether c is one of the outfit slots.
func IsSlot(c Category) bool {
	for _, s := range slots {
		if s == c {
			return true
		}
	}
	return false
}

// ParseCategory matches s case-insensitively against the closed set.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// ParseSlot is ParseCategory restricted to outfit slots.
func ParseSlot(s string) (Category, error) {
	c, err := ParseCategory(s)
	if err != nil {
		return "", err
	}
	if !IsSlot(c) {
		return "", fmt.Errorf("%w: %q is not an outfit slot", ErrUnknownCategory, s)
	}
	return c, nil
}

// Valid reports whether c is exactly one of the known categories.
func (c Category) Valid() bool {
	for _, k := range categories {
		if k == c {
			return true
		}
	}
	return false
}
