package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kasuganosora/magicwardrobe/catalog"
)

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	s = s[3:]
	if i := bytes.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = bytes.TrimSuffix(bytes.TrimSpace(s), []byte("```"))
	return bytes.TrimSpace(s)
}

// ParseAnalysis decodes a vision response and validates it against the
// catalog.
func ParseAnalysis(raw []byte) (catalog.Analysis, error) {
	raw = stripFences(raw)
	if len(raw) == 0 {
		return catalog.Analysis{}, ErrEmptyResponse
	}
	var a catalog.Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return catalog.Analysis{}, fmt.Errorf("ai: decode analysis: %w", err)
	}
	return a.Normalize()
}

// ParseSuggestions decodes a stylist response. Only the five slot keys are
// kept (matched case-insensitively); entries that are not objects are
// dropped. Sub-categories are canonicalised when they match the reference
// list and tags are normalised.
func ParseSuggestions(raw []byte) (map[catalog.Category]Suggestion, error) {
	raw = stripFences(raw)
	if len(raw) == 0 {
		return nil, ErrEmptyResponse
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("ai: decode suggestions: %w", err)
	}

	out := make(map[catalog.Category]Suggestion, len(obj))
	for key, val := range obj {
		slot, err := catalog.ParseSlot(key)
		if err != nil {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(val), []byte("null")) {
			continue
		}
		var s Suggestion
		if err := json.Unmarshal(val, &s); err != nil {
			continue
		}
		s.SubCategory = strings.TrimSpace(s.SubCategory)
		if canon, err := catalog.CanonicalSubCategory(slot, s.SubCategory); err == nil {
			s.SubCategory = canon
		}
		s.PrimaryColor = strings.TrimSpace(s.PrimaryColor)
		s.Description = strings.TrimSpace(s.Description)
		s.Tags = catalog.NormalizeTags(s.Tags)
		if s.SubCategory == "" && s.PrimaryColor == "" && s.Description == "" && len(s.Tags) == 0 {
			continue
		}
		out[slot] = s
	}
	return out, nil
}
