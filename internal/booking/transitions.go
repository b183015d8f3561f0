package booking

import "glowbook/internal/models"

// Allowed appointment status transitions. The payment flow drives
// pending -> confirmed / abandoned; salon staff drive the rest.
var transitions = map[string][]string{
	models.StatusPending:   {models.StatusConfirmed, models.StatusAbandoned, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusCancelled, models.StatusCompleted},
	models.StatusAbandoned: {},
	models.StatusCancelled: {},
	models.StatusCompleted: {},
}

// CanTransition checks if a status transition is allowed. A transition to
// the current status is treated as an idempotent repeat and allowed, so a
// duplicate payment-success event never fails or double-books.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
