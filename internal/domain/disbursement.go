package domain

import (
	"time"

	"github.com/google/uuid"
)

// BankDetails is where the approved principal is sent.
type BankDetails struct {
	AccountHolderName string `json:"account_holder_name" validate:"required,notblank"`
	AccountNumber     string `json:"account_number" validate:"required,notblank"`
	RoutingNumber     string `json:"routing_number" validate:"required,notblank"`
	BankName          string `json:"bank_name,omitempty"`
}

// DisbursementRecord is append-only: corrections are new records plus an admin note.
type DisbursementRecord struct {
	ID                uuid.UUID `json:"id" db:"id"`
	LoanID            int64     `json:"loan_id" db:"loan_id"`
	Amount            int64     `json:"amount" db:"amount"`
	AccountHolderName string    `json:"account_holder_name" db:"account_holder_name"`
	AccountNumber     string    `json:"account_number" db:"account_number"`
	RoutingNumber     string    `json:"routing_number" db:"routing_number"`
	BankName          string    `json:"bank_name,omitempty" db:"bank_name"`
	RailReference     string    `json:"rail_reference" db:"rail_reference"`
	InitiatedBy       string    `json:"initiated_by" db:"initiated_by"`
	DisbursedAt       time.Time `json:"disbursed_at" db:"disbursed_at"`
}

// MaskedAccountNumber keeps only the last four digits.
func (d *DisbursementRecord) MaskedAccountNumber() string {
	n := len(d.AccountNumber)
	if n <= 4 {
		return d.AccountNumber
	}
	masked := make([]byte, n)
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[n-4:], d.AccountNumber[n-4:])
	return string(masked)
}

type DisbursementResponse struct {
	Loan         *LoanApplication    `json:"loan"`
	Disbursement *DisbursementRecord `json:"disbursement"`
	Warning      string              `json:"warning,omitempty"`
}
