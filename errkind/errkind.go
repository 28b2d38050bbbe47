// Package errkind classifies the errors that can cross the boundary of any
// graphalign component, per the propagation policy: a component either
// returns a well-formed value or a tagged error, and setup errors are fatal
// while per-item errors are recovered by the caller.
package errkind

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags an error with the reason a graphalign operation failed.
type Kind int

const (
	// BadFormat marks malformed GFA/FASTA/FASTQ input.
	BadFormat Kind = iota
	// UnsupportedVersion marks a GFA header below the minimum supported version.
	UnsupportedVersion
	// UnsupportedFeature marks a construct the aligner does not implement,
	// e.g. a non-zero link overlap or a skipped C/P line under strict mode.
	UnsupportedFeature
	// OutOfMemory marks an allocation failure in a long-lived arena.
	OutOfMemory
	// OutOfBand marks a DP traceback that failed to reach the seed column.
	OutOfBand
	// ScoreOverflow marks an alignment score that overflowed its integer range.
	ScoreOverflow
	// InvalidArgs marks a caller-supplied configuration that is out of range
	// or internally inconsistent.
	InvalidArgs
)

func (k Kind) String() string {
	switch k {
	case BadFormat:
		return "bad-format"
	case UnsupportedVersion:
		return "unsupported-version"
	case UnsupportedFeature:
		return "unsupported-feature"
	case OutOfMemory:
		return "out-of-memory"
	case OutOfBand:
		return "out-of-band"
	case ScoreOverflow:
		return "score-overflow"
	case InvalidArgs:
		return "invalid-args"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with a wrapped cause and the component that raised it.
type Error struct {
	Kind      Kind
	Component string
	cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a Kind-tagged error attributed to component.
func New(component string, kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Component: component, cause: errors.Errorf(format, args...)}
}

// Wrap attaches component and kind to an existing error, matching the
// teacher corpus's pkg/errors.Wrap idiom.
func Wrap(component string, kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Component: component, cause: errors.Wrap(err, message)}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ke, ok := err.(*Error); ok {
			e = ke
			break
		}
		switch w := err.(type) {
		case interface{ Unwrap() error }:
			err = w.Unwrap()
		case interface{ Cause() error }:
			err = w.Cause()
		default:
			err = nil
		}
	}
	return e != nil && e.Kind == kind
}
