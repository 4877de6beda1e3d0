package config

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConfig marks errors in the run inputs that make a run meaningless.
var ErrConfig = errors.New("configuration error")

// InputError points at an invalid entry of a list file. It never carries the entry itself,
// which may be key material.
type InputError struct {
	File   string
	Line   int // 1-based, 0 when the error concerns the whole file
	Reason string
}

func (e *InputError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.File, e.Reason)
	}

	return fmt.Sprintf("%s line %d: %s", e.File, e.Line, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrConfig
}
