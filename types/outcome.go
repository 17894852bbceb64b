package types

import (
	"fmt"
	"time"
)

// Status represents the terminal state of a single executed case
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
	StatusIgnored   Status = "ignored"
)

// KnownStatuses lists every status an Outcome can carry, in display order.
func KnownStatuses() []Status {
	return []Status{StatusSuccess, StatusFailure, StatusCancelled, StatusIgnored}
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusCancelled, StatusIgnored:
		return true
	}
	return false
}

// Location identifies the source position a case was registered from
type Location struct {
	File string
	Line int
}

func (l *Location) String() string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Outcome captures the result of one executed case. Exactly one Outcome
// is emitted per case that entered the run; it is immutable once emitted.
type Outcome struct {
	Suite    string
	Name     string
	Index    int // registration position within the suite
	Status   Status
	Err      error         // failure cause, nil unless Status is StatusFailure
	Reason   string        // cancel/ignore reason, empty otherwise
	Duration time.Duration // wall time spent in the case body
	Timed    bool          // false when the case never ran, so Duration is meaningless
	Location *Location
	Output   string // captured case log output
}

// Failed reports whether the outcome counts against the run.
func (o *Outcome) Failed() bool {
	return o.Status == StatusFailure
}

// Describe returns a short human-readable form used in logs and summaries.
func (o *Outcome) Describe() string {
	switch o.Status {
	case StatusCancelled, StatusIgnored:
		if o.Reason != "" {
			return fmt.Sprintf("%s (%s: %s)", o.Name, o.Status, o.Reason)
		}
		return fmt.Sprintf("%s (%s)", o.Name, o.Status)
	case StatusFailure:
		if o.Err != nil {
			return fmt.Sprintf("%s (%s: %v)", o.Name, o.Status, o.Err)
		}
		return fmt.Sprintf("%s (%s)", o.Name, o.Status)
	default:
		return fmt.Sprintf("%s (%s)", o.Name, o.Status)
	}
}

// QualifiedName returns the suite-prefixed case name, e.g. "checkout/AddItem".
func (o *Outcome) QualifiedName() string {
	if o.Suite == "" {
		return o.Name
	}
	return o.Suite + "/" + o.Name
}
