package model

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration marks submissions or settings rejected at the
// boundary before they reach the optimizer. Callers can match it with
// errors.Is.
var ErrInvalidConfiguration = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
