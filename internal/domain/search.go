package domain

import "time"

// Cadence selects which roll-up timer a search subscribes to.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// Search is a named, user-owned subscription filter. Empty criterion sets
// leave that criterion unconstrained. LastNotifiedAt is the watermark: the
// creation time of the newest result already rolled into a notification.
// It only ever moves forward.
type Search struct {
	ID             int64
	Name           string
	UserID         int64
	UserEmail      string
	EVNetworks     []string
	PlugTypes      []string
	DCFast         bool
	OnlyNew        bool
	AreaIDs        []int64
	DailyEmail     bool
	WeeklyEmail    bool
	IsPublic       bool
	LastNotifiedAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SearchResult records that an update satisfied a search's criteria at
// publish time. (SearchID, UpdateID, IdempotencyKey) is unique, which is
// what makes republishing under the same key safe.
type SearchResult struct {
	ID             int64
	SearchID       int64
	UpdateID       int64
	IdempotencyKey string
	CreatedAt      time.Time
}

// RollupItem pairs an unread result with the update it points at.
type RollupItem struct {
	Result SearchResult
	Update Update
}
