package metrics

import (
	"errors"
)

// ErrRegister wraps collector registration failures from Register.
var (
	ErrRegister = errors.New("metrics register failed")
)
