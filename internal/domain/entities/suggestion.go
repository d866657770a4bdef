package entities

// StoreSummary is the owning store attached to a food suggestion.
type StoreSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Suggestion is one ranked autocomplete result.
type Suggestion struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Domain     Domain            `json:"domain"`
	Score      int               `json:"score"`
	Primary    bool              `json:"primary"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Store      *StoreSummary     `json:"store,omitempty"`
	Category   *string           `json:"category,omitempty"`
}

// Store is the system-of-record view of a store used for enrichment.
type Store struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Category is an optional food category.
type Category struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
