package model

import "errors"

var (
	// ErrSourceUnavailable is returned when the upstream quote fetch fails.
	ErrSourceUnavailable = errors.New("price source unavailable")
	// ErrBusUnavailable is returned when connecting, publishing or subscribing fails.
	ErrBusUnavailable = errors.New("message bus unavailable")
	// ErrNotFound is returned when the required coin parameter is missing.
	ErrNotFound = errors.New("coin parameter is required")
	// ErrNoData is returned when a valid coin has no stored records.
	ErrNoData = errors.New("no data found for the specified coin")
	// ErrPersistence is returned when a single write fails.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidStat is returned when a record fails validation at write time.
	ErrInvalidStat = errors.New("invalid price stat")
)
