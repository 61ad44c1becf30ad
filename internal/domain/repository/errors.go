package repository

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateRecord is returned when an insert hits a unique
	// constraint. For the ledger this is the idempotency signal: the
	// notification was already scheduled by an earlier (or concurrent)
	// scan, which callers treat as success.
	ErrDuplicateRecord = errors.New("record already exists")

	// ErrStaleStatus is returned by compare-and-set updates when the
	// row was not in any of the expected source states, i.e. another
	// writer transitioned it first.
	ErrStaleStatus = errors.New("record status changed concurrently")
)
