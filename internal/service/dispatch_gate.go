package service

import "github.com/kursadbilgin/reservation-notifier/internal/domain"

// Skip reasons reported by the gate and the dispatcher re-check.
const (
	skipStatusMismatch  = "status_mismatch"
	skipAlreadySent     = "already_sent"
	skipStatusUnchanged = "status_unchanged"
	skipDeleted         = "deleted"
	skipLockHeld        = "lock_held"
	skipNoTransition    = "no_transition"
	skipAlreadyLatched  = "already_latched"
)

// Obligation is one notification owed for a reservation.
type Obligation struct {
	Kind        domain.OutcomeKind
	Reservation *domain.Reservation
}

// EvaluateTransition returns the notifications owed by a before/after pair,
// in domain.OutcomeKinds order. A nil before is a freshly created document.
// A nil after is a deletion and owes nothing.
func EvaluateTransition(before, after *domain.Reservation) []Obligation {
	if after == nil {
		return nil
	}

	var obligations []Obligation
	for _, kind := range domain.OutcomeKinds {
		if gateSkipReason(before, after, kind) != "" {
			continue
		}
		obligations = append(obligations, Obligation{Kind: kind, Reservation: after})
	}
	return obligations
}

func gateSkipReason(before, after *domain.Reservation, kind domain.OutcomeKind) string {
	trigger := kind.TriggerStatus()

	if after.Status != trigger {
		return skipStatusMismatch
	}
	if after.Dispatch(kind).Sent {
		return skipAlreadySent
	}
	if before != nil && before.Status == trigger {
		return skipStatusUnchanged
	}
	return ""
}
