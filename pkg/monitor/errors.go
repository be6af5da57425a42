package monitor

import "errors"

var (
	ErrCycleInFlight = errors.New("previous cycle still running")

	errConfigRequired     = errors.New("engine configuration is required")
	errRepositoryRequired = errors.New("repository is required")
	errProberRequired     = errors.New("probe dispatcher is required")
	errResolverRequired   = errors.New("identity resolver is required")
	errIntervalTooShort   = errors.New("poll interval below minimum")
)
