package domain

import "errors"

var (
	// ErrDuplicateResult reports an idempotency-key collision when creating
	// a search result: the (search, update, key) triple already exists.
	ErrDuplicateResult = errors.New("search result already exists")

	// ErrNothingToDo reports a roll-up that found no unread results. It is
	// not a failure; the job simply has no work.
	ErrNothingToDo = errors.New("no unread results")

	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("not found")
)
