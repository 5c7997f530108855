package proximity

import "errors"

// ErrInvalidInput marks malformed geometry or detection fields. It is always
// recovered locally: the offending detection or frame is skipped.
var ErrInvalidInput = errors.New("proximity: invalid input")

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("proximity: invalid config")
