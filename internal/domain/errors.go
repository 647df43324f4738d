package domain

import "errors"

// ErrInvalidConfig is the root of every startup configuration error.
// Nothing that wraps it is ever recovered from.
var ErrInvalidConfig = errors.New("invalid configuration")

var (
	ErrUnsupportedCurrency = wrapConfig("unsupported currency")
	ErrUnknownSymbol       = wrapConfig("position symbol has no quote metadata")
	ErrDuplicatePosition   = wrapConfig("duplicate position")
	ErrInvalidQuantity     = wrapConfig("invalid position quantity")
	ErrMissingRate         = wrapConfig("missing conversion rate")
	ErrInvalidRate         = wrapConfig("invalid conversion rate")
)

type configError struct{ msg string }

func (e *configError) Error() string { return e.msg }
func (e *configError) Unwrap() error { return ErrInvalidConfig }

func wrapConfig(msg string) error { return &configError{msg: msg} }
