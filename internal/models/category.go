package models

import "fmt"

// Category is the activity tag attached to a time slot
type Category string

// Category constants
const (
	CategoryUnknown Category = "unknown"
	CategoryCommute Category = "commute"
	CategoryWork    Category = "work"
	CategoryLeisure Category = "leisure"
	CategoryFriends Category = "friends"
	CategoryFood    Category = "food"
)

// CategoryInfo holds display metadata for a category
type CategoryInfo struct {
	Category Category `json:"category"`
	Color    string   `json:"color"` // Hex RGB
	Icon     string   `json:"icon"`
}

var categoryCatalog = map[Category]CategoryInfo{
	CategoryUnknown: {Category: CategoryUnknown, Color: "#CECDCD", Icon: "icQuestion"},
	CategoryCommute: {Category: CategoryCommute, Color: "#63D5EE", Icon: "icCommute"},
	CategoryWork:    {Category: CategoryWork, Color: "#FFC31B", Icon: "icWork"},
	CategoryLeisure: {Category: CategoryLeisure, Color: "#B554F7", Icon: "icLeisure"},
	CategoryFriends: {Category: CategoryFriends, Color: "#28C980", Icon: "icFriends"},
	CategoryFood:    {Category: CategoryFood, Color: "#FF6453", Icon: "icFood"},
}

// summaryOrder is the fixed priority used when listing per-category totals
var summaryOrder = []Category{
	CategoryCommute,
	CategoryFood,
	CategoryFriends,
	CategoryWork,
	CategoryLeisure,
}

// AllCategories returns every category, unknown first
func AllCategories() []Category {
	return []Category{
		CategoryUnknown,
		CategoryCommute,
		CategoryWork,
		CategoryLeisure,
		CategoryFriends,
		CategoryFood,
	}
}

// ActiveCategories returns the categories counted in summaries, in priority order
func ActiveCategories() []Category {
	out := make([]Category, len(summaryOrder))
	copy(out, summaryOrder)
	return out
}

// Info returns the color and icon of the category.
// Unrecognized values fall back to the unknown entry.
func (c Category) Info() CategoryInfo {
	if info, ok := categoryCatalog[c]; ok {
		return info
	}
	return categoryCatalog[CategoryUnknown]
}

// IsValid reports whether c is one of the known categories
func (c Category) IsValid() bool {
	_, ok := categoryCatalog[c]
	return ok
}

// IsActive reports whether c counts towards summaries and smart guesses
func (c Category) IsActive() bool {
	return c.IsValid() && c != CategoryUnknown
}

// ParseCategory converts a string into a Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return CategoryUnknown, fmt.Errorf("invalid category %q", s)
	}
	return c, nil
}

// CategorySummary is the total duration spent in one category
type CategorySummary struct {
	Category        Category `json:"category"`
	DurationSeconds int64    `json:"duration_seconds"`
	Color           string   `json:"color"`
}
