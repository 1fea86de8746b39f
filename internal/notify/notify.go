package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
)

// Event names double as AMQP routing keys.
const (
	EventLoanSubmitted    = "loan.submitted"
	EventLoanUnderReview  = "loan.under_review"
	EventLoanApproved     = "loan.approved"
	EventLoanRejected     = "loan.rejected"
	EventLoanCancelled    = "loan.cancelled"
	EventLoanFeePaid      = "loan.fee_paid"
	EventLoanDisbursed    = "loan.disbursed"
	EventPaymentVerified  = "loan.payment_verified"
	EventPaymentRejected  = "loan.payment_rejected"
	EventPaymentFailed    = "loan.payment_failed"
	EventPaymentRefunded  = "loan.payment_refunded"
	EventIdentityVerified = "loan.id_verified"
	EventIdentityRejected = "loan.id_rejected"
)

// Notifier delivers lifecycle events to the notification dispatcher.
// Delivery is best effort: callers turn errors into warnings.
type Notifier interface {
	Notify(ctx context.Context, event string, loan *domain.LoanApplication) error
}

// LoanEvent is the message body published for every event.
type LoanEvent struct {
	Event           string            `json:"event"`
	LoanID          int64             `json:"loan_id"`
	ReferenceNumber string            `json:"reference_number"`
	ApplicantID     string            `json:"applicant_id"`
	Email           string            `json:"email"`
	FullName        string            `json:"full_name"`
	Status          domain.LoanStatus `json:"status"`
	ApprovedAmount  *int64            `json:"approved_amount,omitempty"`
	ProcessingFee   *int64            `json:"processing_fee,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

func NewLoanEvent(event string, loan *domain.LoanApplication) LoanEvent {
	return LoanEvent{
		Event:           event,
		LoanID:          loan.ID,
		ReferenceNumber: loan.ReferenceNumber,
		ApplicantID:     loan.ApplicantID,
		Email:           loan.Email,
		FullName:        loan.FullName,
		Status:          loan.Status,
		ApprovedAmount:  loan.ApprovedAmount,
		ProcessingFee:   loan.ProcessingFeeAmount,
		RejectionReason: loan.RejectionReason,
		Timestamp:       time.Now().UTC(),
	}
}

// LogNotifier only logs events. It is used when no broker is configured or the
// broker is unreachable at startup.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event string, loan *domain.LoanApplication) error {
	n.logger.InfoContext(ctx, "notification publish skipped",
		"component", "notifier",
		"mode", "fallback",
		"event", event,
		"loan_reference", loan.ReferenceNumber,
	)
	return nil
}
