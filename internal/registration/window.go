// Package registration decides whether a course accepts registrations at a given instant.
//
// Everything here is a pure function of its inputs. The result is advisory: the commit
// path in the application repository repeats the check under a row lock before it
// increments the participant count.
package registration

import (
	"errors"
	"time"
)

// State is the registration state of a course relative to a reference instant.
type State string

const (
	StateUpcoming State = "UPCOMING"
	StateOpen     State = "OPEN"
	StateClosed   State = "CLOSED"
)

// DenialReason explains why an admission was refused.
type DenialReason string

const (
	ReasonNotYetOpen DenialReason = "NOT_YET_OPEN"
	ReasonClosed     DenialReason = "CLOSED"
	ReasonFull       DenialReason = "FULL"
)

// ErrInvalidWindow is returned when a window starts after it ends.
var ErrInvalidWindow = errors.New("registration window starts after it ends")

// Window is the registration interval and capacity of a course. Both bounds are inclusive.
type Window struct {
	Start               time.Time
	End                 time.Time
	MaxParticipants     int
	CurrentParticipants int
}

// Validate reports ErrInvalidWindow when Start is after End.
func (w Window) Validate() error {
	if w.Start.After(w.End) {
		return ErrInvalidWindow
	}
	return nil
}

// RemainingSeats returns the free capacity, never negative.
func (w Window) RemainingSeats() int {
	if w.CurrentParticipants >= w.MaxParticipants {
		return 0
	}
	return w.MaxParticipants - w.CurrentParticipants
}

// Admission is the outcome of CanRegister.
type Admission struct {
	State    State
	Admitted bool
	Reason   DenialReason
}

// Classify places now relative to the window.
func Classify(w Window, now time.Time) State {
	switch {
	case now.Before(w.Start):
		return StateUpcoming
	case now.After(w.End):
		return StateClosed
	default:
		return StateOpen
	}
}

// CanRegister reports whether a registration attempt at now should be admitted.
// Capacity is only consulted while the window is open.
func CanRegister(w Window, now time.Time) (Admission, error) {
	if err := w.Validate(); err != nil {
		return Admission{}, err
	}
	state := Classify(w, now)
	switch state {
	case StateUpcoming:
		return Admission{State: state, Reason: ReasonNotYetOpen}, nil
	case StateClosed:
		return Admission{State: state, Reason: ReasonClosed}, nil
	}
	if w.CurrentParticipants >= w.MaxParticipants {
		return Admission{State: state, Reason: ReasonFull}, nil
	}
	return Admission{State: state, Admitted: true}, nil
}
