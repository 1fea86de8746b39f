package domain

import (
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
)

// LoanStatus is the canonical lifecycle state of a loan application.
type LoanStatus string

const (
	LoanStatusPending     LoanStatus = "pending"
	LoanStatusUnderReview LoanStatus = "under_review"
	LoanStatusApproved    LoanStatus = "approved"
	LoanStatusFeePending  LoanStatus = "fee_pending"
	LoanStatusFeePaid     LoanStatus = "fee_paid"
	LoanStatusDisbursed   LoanStatus = "disbursed"
	LoanStatusRejected    LoanStatus = "rejected"
	LoanStatusCancelled   LoanStatus = "cancelled"
)

// LoanStatuses lists every status in lifecycle order.
var LoanStatuses = []LoanStatus{
	LoanStatusPending,
	LoanStatusUnderReview,
	LoanStatusApproved,
	LoanStatusFeePending,
	LoanStatusFeePaid,
	LoanStatusDisbursed,
	LoanStatusRejected,
	LoanStatusCancelled,
}

// LoanEvent drives a status change.
type LoanEvent string

const (
	EventReview   LoanEvent = "review"
	EventApprove  LoanEvent = "approve"
	EventReject   LoanEvent = "reject"
	EventFeePaid  LoanEvent = "fee_paid"
	EventDisburse LoanEvent = "disburse"
	EventCancel   LoanEvent = "cancel"
)

// LoanEvents lists every event the state machine understands.
var LoanEvents = []LoanEvent{
	EventReview,
	EventApprove,
	EventReject,
	EventFeePaid,
	EventDisburse,
	EventCancel,
}

// approved is kept for loans written before approval moved straight to fee_pending;
// it accepts the same events as fee_pending.
var transitions = map[LoanStatus]map[LoanEvent]LoanStatus{
	LoanStatusPending: {
		EventReview:  LoanStatusUnderReview,
		EventApprove: LoanStatusFeePending,
		EventReject:  LoanStatusRejected,
		EventCancel:  LoanStatusCancelled,
	},
	LoanStatusUnderReview: {
		EventApprove: LoanStatusFeePending,
		EventReject:  LoanStatusRejected,
		EventCancel:  LoanStatusCancelled,
	},
	LoanStatusApproved: {
		EventFeePaid: LoanStatusFeePaid,
		EventCancel:  LoanStatusCancelled,
	},
	LoanStatusFeePending: {
		EventFeePaid: LoanStatusFeePaid,
		EventCancel:  LoanStatusCancelled,
	},
	LoanStatusFeePaid: {
		EventDisburse: LoanStatusDisbursed,
		EventCancel:   LoanStatusCancelled,
	},
}

// Transition returns the status reached by applying ev in from. It is total over
// every (status, event) pair: anything not in the table is INVALID_TRANSITION.
func Transition(from LoanStatus, ev LoanEvent) (LoanStatus, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, customError.WrapInvalidTransition(string(from), string(ev))
}

// Valid reports whether s is a known status.
func (s LoanStatus) Valid() bool {
	for _, known := range LoanStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further lifecycle transition is possible.
func (s LoanStatus) Terminal() bool {
	return s == LoanStatusDisbursed || s == LoanStatusRejected || s == LoanStatusCancelled
}

// AwaitingDecision covers the two equivalent entry states.
func (s LoanStatus) AwaitingDecision() bool {
	return s == LoanStatusPending || s == LoanStatusUnderReview
}

// AwaitingFee covers approved and fee_pending, which behave the same.
func (s LoanStatus) AwaitingFee() bool {
	return s == LoanStatusApproved || s == LoanStatusFeePending
}

// HasApprovedAmount reports whether approved_amount must be set in this status.
func (s LoanStatus) HasApprovedAmount() bool {
	switch s {
	case LoanStatusApproved, LoanStatusFeePending, LoanStatusFeePaid, LoanStatusDisbursed:
		return true
	}
	return false
}
