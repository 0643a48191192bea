package config

import (
	"errors"
)

// ErrLoadConfig wraps failures reading the .env, YAML or environment layers;
// ErrInvalidConfig wraps every Validate failure.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
