package usecase

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidInput marks caller mistakes (empty sport list, nil sinks).
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransport marks live-fetch failures; they trigger the snapshot
	// fallback rather than aborting the run.
	ErrTransport = errors.New("odds provider unavailable")
	// ErrPersistence marks sink failures, so callers can tell a bad
	// destination apart from bad data.
	ErrPersistence = errors.New("warehouse persistence failed")
)
