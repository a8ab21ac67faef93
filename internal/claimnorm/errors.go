package claimnorm

import "errors"

var (
	// ErrUnknownSource is returned for a source-type indicator that names no known source.
	ErrUnknownSource = errors.New("unknown source type")
	// ErrNoSources is returned when a run is started without any input.
	ErrNoSources = errors.New("no input sources")
)
