package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoanApplication represents a loan application and its lifecycle state
type LoanApplication struct {
	ID              int64  `json:"id" db:"id"`
	ReferenceNumber string `json:"reference_number" db:"reference_number"`
	ApplicantID     string `json:"applicant_id" db:"applicant_id"`

	FullName         string `json:"full_name" db:"full_name"`
	Email            string `json:"email" db:"email"`
	MonthlyIncome    int64  `json:"monthly_income" db:"monthly_income"`
	EmploymentStatus string `json:"employment_status" db:"employment_status"`
	LoanPurpose      string `json:"loan_purpose" db:"loan_purpose"`

	RequestedAmount     int64      `json:"requested_amount" db:"requested_amount"`
	ApprovedAmount      *int64     `json:"approved_amount,omitempty" db:"approved_amount"`
	Status              LoanStatus `json:"status" db:"status"`
	ProcessingFeeAmount *int64     `json:"processing_fee_amount,omitempty" db:"processing_fee_amount"`
	FeeConfigVersion    *int64     `json:"fee_config_version,omitempty" db:"fee_config_version"`
	ProcessingFeePaid   bool       `json:"processing_fee_paid" db:"processing_fee_paid"`

	PaymentVerification  VerificationStatus `json:"payment_verification" db:"payment_verification"`
	IDVerificationStatus VerificationStatus `json:"id_verification_status" db:"id_verification_status"`

	AdminNotes      string `json:"admin_notes,omitempty" db:"admin_notes"`
	RejectionReason string `json:"rejection_reason,omitempty" db:"rejection_reason"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	DisbursedAt *time.Time `json:"disbursed_at,omitempty" db:"disbursed_at"`
}

// VerificationStatus is shared by the identity check and the manual payment check.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// PaymentVerified reports whether an administrator confirmed the fee payment.
func (l *LoanApplication) PaymentVerified() bool {
	return l.PaymentVerification == VerificationVerified
}

// OwnedBy reports whether the principal submitted the application.
func (l *LoanApplication) OwnedBy(p Principal) bool {
	return l.ApplicantID != "" && l.ApplicantID == p.UserID
}

// FeeOwed returns the processing fee, or 0 before approval.
func (l *LoanApplication) FeeOwed() int64 {
	if l.ProcessingFeeAmount == nil {
		return 0
	}
	return *l.ProcessingFeeAmount
}

// TotalRepayment is the approved principal plus the processing fee.
func (l *LoanApplication) TotalRepayment() int64 {
	if l.ApprovedAmount == nil {
		return 0
	}
	return *l.ApprovedAmount + l.FeeOwed()
}

// AppendNote adds an administrator note, keeping earlier ones.
func (l *LoanApplication) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if l.AdminNotes == "" {
		l.AdminNotes = note
		return
	}
	l.AdminNotes += "\n" + note
}

// NewReferenceNumber issues a human readable loan reference such as LN-3F9A12BC.
func NewReferenceNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "LN-" + strings.ToUpper(id[:8])
}

// DTOs for requests and responses

type SubmitApplicationRequest struct {
	FullName         string `json:"full_name" validate:"required,max=200"`
	Email            string `json:"email" validate:"required,email"`
	MonthlyIncome    int64  `json:"monthly_income" validate:"gte=0"`
	EmploymentStatus string `json:"employment_status" validate:"omitempty,oneof=employed self_employed unemployed retired student"`
	LoanPurpose      string `json:"loan_purpose" validate:"max=500"`
	RequestedAmount  int64  `json:"requested_amount" validate:"required,gt=0"`
}

type ApproveRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Notes  string `json:"notes"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

// TransitionResult is returned by every successful lifecycle operation.
// Warning is set when a side effect such as a notification failed.
type TransitionResult struct {
	Loan    *LoanApplication `json:"loan"`
	Warning string           `json:"warning,omitempty"`
}

type FeeQuote struct {
	Amount         int64            `json:"amount"`
	Fee            int64            `json:"fee"`
	TotalRepayment int64            `json:"total_repayment"`
	Config         FeeConfiguration `json:"config"`
}
