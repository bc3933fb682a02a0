package catalog

import "strings"

// MaxColorLen bounds PrimaryColor, in characters.
const MaxColorLen = 32

// Analysis is the structured description of one garment, produced by the
// vision model or edited by the user.
type Analysis struct {
	Category     Category `json:"category"`
	SubCategory  string   `json:"subCategory"`
	PrimaryColor string   `json:"primaryColor" binding:"max=32"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
}

// Normalize validates the category and sub-category against the closed
// taxonomy and returns a copy with canonical spellings and clean tags.
// Colors longer than MaxColorLen are cut.
func (a Analysis) Normalize() (Analysis, error) {
	cat, err := ParseCategory(string(a.Category))
	if err != nil {
		return Analysis{}, err
	}
	sub, err := CanonicalSubCategory(cat, a.SubCategory)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{
		Category:     cat,
		SubCategory:  sub,
		PrimaryColor: truncate(strings.TrimSpace(a.PrimaryColor), MaxColorLen),
		Description:  strings.TrimSpace(a.Description),
		Tags:         NormalizeTags(a.Tags),
	}, nil
}

// SearchText returns the embedding document for this analysis.
func (a Analysis) SearchText() string {
	return SearchText(a.PrimaryColor, a.SubCategory, a.Category, a.Tags)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
