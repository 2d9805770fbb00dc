package domain

import (
	"errors"
	"time"
)

var ErrInvalidConfig = errors.New("invalid config")

// TimePtr returns a pointer to a copy of t, for optional query bounds.
func TimePtr(t time.Time) *time.Time {
	return &t
}
