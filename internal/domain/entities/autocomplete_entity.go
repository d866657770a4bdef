package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// Domain names a family of searchable records with its own cache keys and index.
type Domain string

const (
	DomainFood  Domain = "food"
	DomainStore Domain = "store"
	DomainGroup Domain = "group"
)

// Domains lists every domain in warm order.
var Domains = []Domain{DomainFood, DomainStore, DomainGroup}

// ParseDomain maps a configured name onto a Domain
func ParseDomain(name string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Domains {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown domain %q", name)
}

// Well-known AutocompleteEntity attribute keys.
const (
	AttrStoreID    = "store_id"
	AttrCategoryID = "category_id"
	AttrPrimary    = "primary"
)

// MaxPopularity bounds the popularity contribution to relevance.
const MaxPopularity = 1000.0

// AutocompleteEntity is the cached projection of a searchable record.
// Attributes carry cross references (owning store, category) so that
// enrichment does not need a join.
type AutocompleteEntity struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Popularity float64           `json:"popularity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attr returns the attribute value or "".
func (e *AutocompleteEntity) Attr(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}

// IsPrimary reports whether the record is flagged as featured
// (e.g. a store's representative menu item).
func (e *AutocompleteEntity) IsPrimary() bool {
	v, err := strconv.ParseBool(e.Attr(AttrPrimary))
	return err == nil && v
}

// Searchable projects the entity onto the chosung index unit.
func (e *AutocompleteEntity) Searchable() SearchableEntity {
	return SearchableEntity{ID: e.ID, Name: e.Name}
}

// SearchableEntity is the unit indexed by the chosung index.
type SearchableEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
