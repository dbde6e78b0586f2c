package domain

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, nil
	}
	return "", NewValidationError("status", "must be one of pending, confirmed, cancelled")
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// ParsePaymentStatus accepts "completed" as an alias of paid.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch ps := PaymentStatus(strings.ToLower(strings.TrimSpace(s))); ps {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return ps, nil
	case "completed":
		return PaymentPaid, nil
	}
	return "", NewValidationError("payment_status", "must be one of pending, paid, failed, refunded")
}

// DeriveStatus maps a payment status onto the reservation status it implies.
func DeriveStatus(ps PaymentStatus) Status {
	switch ps {
	case PaymentPaid:
		return StatusConfirmed
	case PaymentRefunded:
		return StatusCancelled
	default:
		return StatusPending
	}
}

// CanTransition reports whether the payment flow may move a reservation from
// one status to another. Staying put is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled
	}
	return false
}

type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomePending  Outcome = "pending"
	OutcomeRejected Outcome = "rejected"
	OutcomeRefunded Outcome = "refunded"
)

// ParseOutcome normalizes provider vocabulary into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "succeeded", "paid", "completed":
		return OutcomeApproved, nil
	case "pending", "in_process", "in_mediation", "authorized":
		return OutcomePending, nil
	case "rejected", "cancelled", "canceled", "failed":
		return OutcomeRejected, nil
	case "refunded", "charged_back":
		return OutcomeRefunded, nil
	}
	return "", NewValidationError("status", "unknown payment outcome "+s)
}

// Target returns the payment and reservation status an outcome leads to.
func (o Outcome) Target() (PaymentStatus, Status) {
	switch o {
	case OutcomeApproved:
		return PaymentPaid, StatusConfirmed
	case OutcomeRejected:
		return PaymentFailed, StatusCancelled
	case OutcomeRefunded:
		return PaymentRefunded, StatusCancelled
	default:
		return PaymentPending, StatusPending
	}
}

// ApplyOutcome moves r to the outcome's target state. It returns false without
// touching r when r already holds that state.
func (r *Reservation) ApplyOutcome(o Outcome, now time.Time) (bool, error) {
	ps, st := o.Target()
	if r.PaymentStatus == ps && r.Status == st {
		return false, nil
	}
	if !CanTransition(r.Status, st) {
		return false, errors.Wrapf(ErrInvalidTransition, "%s reservation cannot take %s outcome", r.Status, o)
	}
	r.PaymentStatus = ps
	r.Status = st
	r.UpdatedAt = now
	return true, nil
}
