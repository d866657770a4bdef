package index

import (
	"context"
	"sort"
	"sync"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/providers"
	"github.com/ddeok-labs/search-backend/pkg/hangul"
	"github.com/rs/zerolog/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Match classes, best first.
const (
	matchExact = iota
	matchPrefix
	matchInner
)

// posting locates one suffix of an entity's chosung string.
type posting struct {
	ord    int // insertion order of the entity
	offset int // byte offset of the suffix inside the chosung string
}

type domainIndex struct {
	trie    *patricia.Trie
	ids     []string
	chosung []string
}

// TrieChosungIndex indexes every suffix of every entity's chosung string in a
// patricia trie, so a subtree visit answers both prefix and inner matches.
// Each rebuild produces a fresh trie that replaces the old one atomically.
type TrieChosungIndex struct {
	mu      sync.RWMutex
	domains map[entities.Domain]*domainIndex
}

var _ providers.ChosungIndex = (*TrieChosungIndex)(nil)

// NewTrieChosungIndex creates an empty index
func NewTrieChosungIndex() *TrieChosungIndex {
	return &TrieChosungIndex{domains: make(map[entities.Domain]*domainIndex)}
}

// Rebuild replaces the index of domain. Entities without Hangul syllables
// have no chosung and are not indexed. A repeated id keeps its first name.
func (x *TrieChosungIndex) Rebuild(ctx context.Context, domain entities.Domain, items []entities.SearchableEntity) error {
	idx := &domainIndex{trie: patricia.NewTrie()}
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}

		cs := hangul.ExtractChosung(item.Name)
		if cs == "" {
			continue
		}

		ord := len(idx.ids)
		idx.ids = append(idx.ids, item.ID)
		idx.chosung = append(idx.chosung, cs)

		for offset := range cs {
			key := patricia.Prefix(cs[offset:])
			p := posting{ord: ord, offset: offset}
			if existing := idx.trie.Get(key); existing != nil {
				idx.trie.Set(key, append(existing.([]posting), p))
			} else {
				idx.trie.Insert(key, []posting{p})
			}
		}
	}

	x.mu.Lock()
	x.domains[domain] = idx
	x.mu.Unlock()

	log.Info().
		Str("domain", string(domain)).
		Int("indexed", len(idx.ids)).
		Int("skipped", len(items)-len(idx.ids)).
		Msg("Rebuilt chosung index")
	return nil
}

// Find returns ids whose chosung contains query: exact matches first, then
// prefix matches, then inner matches, each in insertion order.
func (x *TrieChosungIndex) Find(ctx context.Context, domain entities.Domain, query string) ([]string, error) {
	if query == "" {
		return []string{}, nil
	}

	x.mu.RLock()
	idx := x.domains[domain]
	x.mu.RUnlock()
	if idx == nil {
		return []string{}, nil
	}

	best := make(map[int]int)
	err := idx.trie.VisitSubtree(patricia.Prefix(query), func(_ patricia.Prefix, item patricia.Item) error {
		for _, p := range item.([]posting) {
			class := matchInner
			if p.offset == 0 {
				class = matchPrefix
				if len(idx.chosung[p.ord]) == len(query) {
					class = matchExact
				}
			}
			if current, ok := best[p.ord]; !ok || class < current {
				best[p.ord] = class
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ords := make([]int, 0, len(best))
	for ord := range best {
		ords = append(ords, ord)
	}
	sort.Slice(ords, func(i, j int) bool {
		ci, cj := best[ords[i]], best[ords[j]]
		if ci != cj {
			return ci < cj
		}
		return ords[i] < ords[j]
	})

	ids := make([]string, len(ords))
	for i, ord := range ords {
		ids[i] = idx.ids[ord]
	}
	return ids, nil
}

// Size returns the number of indexed entities of domain
func (x *TrieChosungIndex) Size(domain entities.Domain) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if idx := x.domains[domain]; idx != nil {
		return len(idx.ids)
	}
	return 0
}
