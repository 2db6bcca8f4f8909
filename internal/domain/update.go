package domain

import "time"

// Update is one immutable reconciliation outcome for one station. Previous
// is nil exactly when IsCreation is true.
type Update struct {
	ID         int64
	StationID  int64
	CreatedAt  time.Time
	IsCreation bool
	Current    Snapshot
	Previous   *Snapshot
}

// FeedFilter narrows the update feed read by the presentation layer. Zero
// values leave a criterion unconstrained. When StationID is zero the feed
// covers canonical stations only.
type FeedFilter struct {
	StationID        int64
	EVNetworks       []string
	EVConnectorTypes []string
	AreaIDs          []int64
	Limit            int
}
