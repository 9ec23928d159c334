package reconcile

import (
	"errors"
	"fmt"

	"github.com/meshnode/meshnode-go/pkg/node"
)

// ErrObservationUnavailable is returned when a section cannot be read.
var ErrObservationUnavailable = errors.New("observation unavailable")

// WriteFailed reports a rejected or failed section write.
type WriteFailed struct {
	Section node.Section
	Cause   error
}

func (e *WriteFailed) Error() string {
	return fmt.Sprintf("write %s failed: %v", e.Section, e.Cause)
}

func (e *WriteFailed) Unwrap() error { return e.Cause }

// Outcome classifies what happened to one section.
type Outcome uint8

const (
	// OutcomeApplied means one write was issued and acknowledged.
	OutcomeApplied Outcome = iota
	// OutcomeSkipped means the node already matched.
	OutcomeSkipped
	// OutcomeFailed means the write failed.
	OutcomeFailed
	// OutcomeInvalid means the desired value was rejected before any I/O.
	OutcomeInvalid
	// OutcomeUnavailable means the section could not be read.
	OutcomeUnavailable
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Result describes the handling of one section.
type Result struct {
	Section node.Section
	Outcome Outcome

	// Detail is a short human-readable description, e.g. "region EU868".
	Detail string

	// Err is set for the failed, invalid and unavailable outcomes.
	Err error
}

// Applied filters results down to the changes that were written.
func Applied(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Outcome == OutcomeApplied {
			out = append(out, r)
		}
	}
	return out
}

// Err joins the errors of failed and unavailable sections. Invalid desired
// values are warnings and are not included.
func Err(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Outcome == OutcomeFailed || r.Outcome == OutcomeUnavailable {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
