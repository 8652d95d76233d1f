package enums

import (
	"fmt"
	"strings"
)

type PurchaseStatus string

const (
	// PurchaseStatusPending is the legacy initial status. Rows created before
	// the explicit state machine carry it; new purchases start at
	// PurchaseStatusPendingInitiation.
	PurchaseStatusPending             PurchaseStatus = "pending"
	PurchaseStatusPendingInitiation   PurchaseStatus = "pending_initiation"
	PurchaseStatusAwaitingPayment     PurchaseStatus = "awaiting_payment"
	PurchaseStatusPendingVerification PurchaseStatus = "pending_verification"
	PurchaseStatusCompleted           PurchaseStatus = "completed"
	PurchaseStatusRejected            PurchaseStatus = "rejected"
)

// purchaseTransitions is the single source of truth for status moves.
// Rejection is reachable from any non-terminal status; everything else is
// forward-only.
var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseStatusPending:             {PurchaseStatusAwaitingPayment, PurchaseStatusRejected},
	PurchaseStatusPendingInitiation:   {PurchaseStatusAwaitingPayment, PurchaseStatusRejected},
	PurchaseStatusAwaitingPayment:     {PurchaseStatusPendingVerification, PurchaseStatusRejected},
	PurchaseStatusPendingVerification: {PurchaseStatusCompleted, PurchaseStatusRejected},
	PurchaseStatusCompleted:           nil,
	PurchaseStatusRejected:            nil,
}

func (s PurchaseStatus) Valid() bool {
	_, ok := purchaseTransitions[s]
	return ok
}

func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseStatusCompleted || s == PurchaseStatusRejected
}

func (s PurchaseStatus) CanTransitionTo(next PurchaseStatus) bool {
	for _, allowed := range purchaseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// BlockingPurchaseStatuses lists the statuses that prevent a new purchase for
// the same (user, item). Completed blocks re-purchase to avoid duplicate
// grants; rejected is the only status that unblocks creation.
func BlockingPurchaseStatuses() []PurchaseStatus {
	return []PurchaseStatus{
		PurchaseStatusPending,
		PurchaseStatusPendingInitiation,
		PurchaseStatusAwaitingPayment,
		PurchaseStatusPendingVerification,
		PurchaseStatusCompleted,
	}
}

func ParsePurchaseStatus(raw string) (PurchaseStatus, error) {
	status := PurchaseStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown purchase status %q", raw)
	}
	return status, nil
}
