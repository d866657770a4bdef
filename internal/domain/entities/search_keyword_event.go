package entities

import (
	"time"
)

// SearchKeywordEvent is one append-only search or click-through record.
type SearchKeywordEvent struct {
	ID                string    `json:"id" db:"id"`
	Domain            Domain    `json:"domain" db:"domain"`
	RawKeyword        string    `json:"raw_keyword" db:"raw_keyword"`
	NormalizedKeyword string    `json:"normalized_keyword" db:"normalized_keyword"`
	MemberID          *string   `json:"member_id,omitempty" db:"member_id"`
	ClickedEntityID   *string   `json:"clicked_entity_id,omitempty" db:"clicked_entity_id"`
	Latitude          *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude         *float64  `json:"longitude,omitempty" db:"longitude"`
	OccurredAt        time.Time `json:"occurred_at" db:"occurred_at"`
}

// IsClick reports whether the event records a click-through.
func (e *SearchKeywordEvent) IsClick() bool {
	return e.ClickedEntityID != nil && *e.ClickedEntityID != ""
}

// SearchKeywordAggregate is a window-scoped rollup of events grouped by a
// fixed-length prefix of the normalized keyword.
type SearchKeywordAggregate struct {
	Domain      Domain `json:"domain" db:"domain"`
	Prefix      string `json:"prefix" db:"prefix"`
	Keyword     string `json:"keyword" db:"keyword"`
	SearchCount int64  `json:"search_count" db:"search_count"`
	ClickCount  int64  `json:"click_count" db:"click_count"`
}

// RankingEntry is a scored member of a ranking cache bucket.
type RankingEntry struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// TrendingKeyword is a keyword read back from a ranking bucket.
type TrendingKeyword struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
}
