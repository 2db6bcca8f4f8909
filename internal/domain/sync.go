package domain

import "time"

// ImportStats holds counts for one import run. Skipped covers records that
// were unchanged or changed only in no-history fields.
type ImportStats struct {
	Fetched  int
	Created  int
	Updated  int
	Skipped  int
	Linked   int
	Duration time.Duration
}
