package common

import "errors"

// Sentinels returned by outbound adapters and translated by services.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
