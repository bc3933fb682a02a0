package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kasuganosora/magicwardrobe/catalog"
)

const randomBase = "a randomly selected base item"

var (
	taxonomyOnce sync.Once
	subCatJSON   string
	tagsJSON     string
)

func taxonomy() (string, string) {
	taxonomyOnce.Do(func() {
		subs := make(map[string][]string)
		for _, c := range catalog.Categories() {
			subs[string(c)] = catalog.SubCategories(c)
		}
		tags := make(map[string][]string)
		for _, g := range catalog.TagGroups() {
			tags[string(g)] = catalog.Tags(g)
		}
		b, _ := json.Marshal(subs)
		subCatJSON = string(b)
		b, _ = json.Marshal(tags)
		tagsJSON = string(b)
	})
	return subCatJSON, tagsJSON
}

// AnalysisPrompt is the system instruction for classifying a garment photo.
func AnalysisPrompt() string {
	subs, tags := taxonomy()
	return `You are an expert fashion stylist. Analyze the clothing item in the image.

Return ONLY a valid JSON object matching this strict schema:
{
  "category": "Headwear" | "Outerwear" | "Tops" | "Bottoms" | "Footwear" | "Accessories",
  "subCategory": string (most appropriate entry from the standard list below),
  "primaryColor": string (dominant color name),
  "description": string (visual description for search),
  "tags": string[] (relevant tags from the standard list below: style, material, pattern, occasion, fit, season)
}

STANDARD CATEGORIES & SUBCATEGORIES:
` + subs + `

STANDARD TAGS (grouped by type):
` + tags + `

Do not include brand or season as separate fields; season goes into tags.
Return minified JSON with no markdown formatting.`
}

// StylistSystemPrompt is the system instruction for outfit imagination.
const StylistSystemPrompt = "You are a helpful fashion assistant returning JSON."

// Describe renders a garment the way the stylist prompt lists it.
func (s SlotItem) Describe() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s (%s)", s.PrimaryColor, s.SubCategory, s.Category))
}

// Wearing summarises what the outfit is built around: every locked item,
// else the anchor, else a placeholder.
func (sc StyleContext) Wearing() string {
	var parts []string
	for _, slot := range catalog.Slots() {
		if it := sc.Slots[slot]; it != nil && sc.Locked[slot] {
			parts = append(parts, it.Describe())
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if sc.Anchor != nil {
		return sc.Anchor.Describe()
	}
	return randomBase
}

// StylistPrompt asks for the missing pieces of the outfit given the
// current items and weather.
func StylistPrompt(sc StyleContext, weather string) string {
	subs, tags := taxonomy()
	var b strings.Builder
	fmt.Fprintf(&b, "You are a personal stylist.\nThe user is currently wearing these locked items: %s.\n", sc.Wearing())
	fmt.Fprintf(&b, "The weather is: %s.\n\n", weather)
	b.WriteString(`Suggest the MISSING parts of the outfit to create a cohesive, stylish look that matches the locked items.

For each suggested item you must use the defined subcategories and tags exactly so they match the wardrobe.

Available subcategories:
` + subs + `

Available tags:
` + tags + `

Return ONLY a JSON object whose keys are slots (Headwear, Outerwear, Tops, Bottoms, Footwear) and whose values are objects with:
- subCategory: exact match from the list.
- primaryColor: dominant color.
- tags: array of tags from the list (material, style, occasion).
- description: natural language description, e.g. "White linen shirt".

Fill only the slots that are needed:
- Headwear: optional.
- Outerwear: optional, based on the weather.
- Tops: essential if the base item is Bottoms.
- Bottoms: essential if the base item is Tops.
- Footwear: essential.

Example output:
{"Tops":{"subCategory":"Hoodie","primaryColor":"Beige","tags":["Oversized","Cotton","Streetwear"],"description":"Beige oversized cotton hoodie"},"Footwear":{"subCategory":"Sneakers","primaryColor":"White","tags":["Leather","Casual","Minimalist"],"description":"White minimalist leather sneakers"}}`)
	return b.String()
}
