package episode

import "errors"

// ErrInvalidState is returned when step or render is called before any
// reset, or when step is called after termination without an intervening
// reset. Always recoverable by the caller issuing a reset.
var ErrInvalidState = errors.New("invalid episode state")
