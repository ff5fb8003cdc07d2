package checkout

import "errors"

var (
	// ErrConfigurationMissing is returned when a required context field was neither supplied nor defaulted.
	ErrConfigurationMissing = errors.New("checkout configuration missing")
	// ErrNotFound is returned by a Directory when an id does not resolve.
	ErrNotFound = errors.New("checkout entity not found")
	// ErrInvalidConfiguration is returned when resolved entities cannot form a context.
	ErrInvalidConfiguration = errors.New("invalid checkout configuration")
)
