package catalog

import (
	"fmt"
	"strings"
)

// DefaultWearLimit applies to sub-categories missing from the wear table.
const DefaultWearLimit = 5

var subCategories = map[Category][]string{
	Headwear: {"Cap", "Beanie", "Bucket Hat", "Fedora", "Sun Hat", "Visor", "Headband"},
	Outerwear: {
		"Bomber Jacket", "Blazer", "Cardigan", "Peacoat", "Denim Jacket",
		"Zip-Up Hoodie", "Varsity Jacket", "Leather Jacket", "Parka", "Raincoat", "Vest",
		"Windbreaker", "Puffer Jacket", "Trench Coat",
	},
	Tops: {
		"T-Shirt", "Button-Down", "Polo", "Tank Top", "Sweater",
		"Sweatshirt", "Hoodie", "Quarter Zip", "Jersey",
	},
	Bottoms: {
		"Jeans", "Trousers", "Chinos", "Shorts", "Sweatpants",
		"Cargo Pants", "Joggers", "Pajamas",
	},
	Footwear: {"Sneakers", "Boots", "Loafers", "Oxfords", "Sandals", "Slippers", "Slides"},
	Accessories: {
		"Belt", "Necklace", "Watch", "Ring", "Bracelet", "Scarf",
		"Gloves", "Bag", "Sunglasses", "Tie",
	},
}

// unlimited marks garments that are never laundered by wear count
// (shoes, jewellery, specialist-clean coats).
const unlimited = -1

var wearLimits = map[Category]map[string]int{
	Headwear: {
		"Cap": 14, "Beanie": 7, "Bucket Hat": 14, "Fedora": unlimited,
		"Sun Hat": unlimited, "Visor": 14, "Headband": 2,
	},
	Outerwear: {
		"Bomber Jacket": 10, "Blazer": 5, "Cardigan": 5, "Peacoat": unlimited,
		"Denim Jacket": 20, "Zip-Up Hoodie": 5, "Varsity Jacket": 10,
		"Leather Jacket": unlimited, "Parka": unlimited, "Raincoat": unlimited,
		"Vest": 10, "Windbreaker": 10, "Puffer Jacket": unlimited, "Trench Coat": unlimited,
	},
	Tops: {
		"T-Shirt": 1, "Button-Down": 2, "Polo": 2, "Tank Top": 1, "Sweater": 3,
		"Sweatshirt": 3, "Hoodie": 3, "Quarter Zip": 3, "Jersey": 1,
	},
	Bottoms: {
		"Jeans": 10, "Trousers": 3, "Chinos": 3, "Shorts": 2, "Sweatpants": 3,
		"Cargo Pants": 5, "Joggers": 2, "Pajamas": 3,
	},
	Footwear: {
		"Sneakers": unlimited, "Boots": unlimited, "Loafers": unlimited, "Oxfords": unlimited,
		"Sandals": unlimited, "Slippers": unlimited, "Slides": unlimited,
	},
	Accessories: {
		"Belt": unlimited, "Necklace": unlimited, "Watch": unlimited, "Ring": unlimited,
		"Bracelet": unlimited, "Scarf": 10, "Gloves": 10, "Bag": unlimited,
		"Sunglasses": unlimited, "Tie": unlimited,
	},
}

// TagGroup names one axis of the tag vocabulary.
type TagGroup string

const (
	TagStyles    TagGroup = "styles"
	TagOccasions TagGroup = "occasions"
	TagFit       TagGroup = "fit"
	TagMaterials TagGroup = "materials"
	TagPatterns  TagGroup = "patterns"
	TagSeason    TagGroup = "season"
)

var tagGroupOrder = []TagGroup{TagStyles, TagOccasions, TagFit, TagMaterials, TagPatterns, TagSeason}

var tagVocabulary = map[TagGroup][]string{
	TagStyles:    {"Casual", "Smart Casual", "Formal", "Streetwear", "Athleisure", "Minimalist", "Rugged"},
	TagOccasions: {"Everyday", "Home", "Work", "Date", "Party", "Gym", "Formal", "Beach", "Travel"},
	TagFit:       {"Slim", "Regular", "Oversized", "Cropped", "Baggy", "Tailored"},
	TagMaterials: {
		"Cotton", "Denim", "Leather", "Wool", "Linen", "Silk",
		"Polyester", "Spandex", "Nylon", "Velvet", "Fleece",
		"Suede", "Corduroy", "Rayon", "Satin",
	},
	TagPatterns: {
		"Solid", "Striped", "Plaid", "Floral", "Graphic",
		"Camouflage", "Polka Dot", "Animal Print", "Checkered",
		"Tie-Dye", "Geometric", "Paisley",
	},
	TagSeason: {"Summer", "Winter", "Spring", "Fall", "All-Season"},
}

// SubCategories returns the reference sub-categories for c.
func SubCategories(c Category) []string {
	return append([]string(nil), subCategories[c]...)
}

// TagGroups returns the tag groups in prompt order.
func TagGroups() []TagGroup {
	return append([]TagGroup(nil), tagGroupOrder...)
}

// Tags returns the standard tags of one group.
func Tags(g TagGroup) []string {
	return append([]string(nil), tagVocabulary[g]...)
}

// CanonicalSubCategory matches s case-insensitively against the reference
// list of c and returns the canonical spelling.
func CanonicalSubCategory(c Category, s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, sub := range subCategories[c] {
		if strings.EqualFold(sub, s) {
			return sub, nil
		}
	}
	return "", fmt.Errorf("%w: %q for %s", ErrUnknownSubCategory, s, c)
}

// DefaultMaxWears returns the number of wears before a garment of this kind
// needs laundering. nil means unlimited.
func DefaultMaxWears(c Category, sub string) *int {
	limit, ok := wearLimits[c][sub]
	if !ok {
		n := DefaultWearLimit
		return &n
	}
	if limit == unlimited {
		return nil
	}
	return &limit
}

// NormalizeTags trims, drops empties and removes case-insensitive duplicates,
// keeping the first spelling and the original order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SearchText builds the document that is embedded for a garment or a
// suggestion: color, sub-category, category and tags joined by spaces.
func SearchText(color, sub string, c Category, tags []string) string {
	parts := make([]string, 0, 3+len(tags))
	for _, p := range append([]string{color, sub, string(c)}, tags...) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
