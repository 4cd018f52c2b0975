package appointment

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrReasonRequired    = errors.New("a reason is required for this status change")
)

// transitions is the single source of truth for which status changes are
// legal. completed is terminal. Changing the table here is the only way to
// open up a new transition.
var transitions = map[Status][]Status{
	StatusScheduled:   {StatusConfirmed, StatusCancelled, StatusRescheduled},
	StatusConfirmed:   {StatusCompleted, StatusNoShow, StatusCancelled},
	StatusCompleted:   {},
	StatusCancelled:   {StatusScheduled},
	StatusNoShow:      {StatusRescheduled, StatusCancelled},
	StatusRescheduled: {StatusScheduled},
}

// reasonRequired marks target statuses that must carry a non-blank reason.
var reasonRequired = map[Status]bool{
	StatusCancelled:   true,
	StatusNoShow:      true,
	StatusRescheduled: true,
}

// AllowedTransitions returns the statuses from may legally move to.
func AllowedTransitions(from Status) []Status {
	return transitions[from]
}

// CanTransition reports whether from → to is in the transition table.
// Self-transitions are never allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ReasonRequired reports whether moving into to mandates a reason.
func ReasonRequired(to Status) bool {
	return reasonRequired[to]
}

// CheckTransition runs the legality and reason guards for from → to
// without mutating anything. Transition legality is decided before any
// other concern, so an illegal from → to always surfaces as
// ErrInvalidTransition and a missing reason as ErrReasonRequired, even
// when the request carries other problems too.
func CheckTransition(from, to Status, reason string) error {
	if !to.Valid() || !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	if ReasonRequired(to) && strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	return nil
}

// Transition validates and applies a status change on the appointment,
// returning the history record it appended. The caller is responsible for
// any interval re-validation the target status needs (the service runs
// conflict checks before calling this for reschedules).
func (a *Appointment) Transition(to Status, reason, notes, changedBy string, at time.Time) (*StatusChange, error) {
	if err := CheckTransition(a.Status, to, reason); err != nil {
		return nil, err
	}

	rec := &StatusChange{
		AppointmentID: a.ID,
		From:          a.Status,
		To:            to,
		Reason:        reason,
		Notes:         notes,
		ChangedBy:     changedBy,
		ChangedAt:     at,
	}
	a.Status = to
	a.UpdatedAt = at
	return rec, nil
}
