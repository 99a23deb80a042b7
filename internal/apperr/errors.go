// Package apperr defines the sentinel errors shared across specmon.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidParams = errors.New("invalid params")
)

// ErrNotAvailable is the umbrella for every reason a frame could not be read.
// Each reason below wraps it, so errors.Is(err, ErrNotAvailable) holds for all.
var ErrNotAvailable = errors.New("frame not available")

var (
	ErrMissingArtifact     = fmt.Errorf("%w: missing artifact", ErrNotAvailable)
	ErrMalformedDescriptor = fmt.Errorf("%w: malformed descriptor", ErrNotAvailable)
	ErrSizeMismatch        = fmt.Errorf("%w: size mismatch", ErrNotAvailable)
)

// ErrDegenerateFrame marks a frame whose percentile spread is not positive.
// It never escapes normalization; it only labels diagnostics.
var ErrDegenerateFrame = errors.New("degenerate frame")
