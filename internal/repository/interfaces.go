package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
)

// ErrDuplicateTxHash is returned when a blockchain transaction already settled another payment.
var ErrDuplicateTxHash = errors.New("transaction hash already settled another payment")

// ErrExpectedAmountInUse is returned when a pending crypto intent already expects the
// same amount at the same address.
var ErrExpectedAmountInUse = errors.New("another pending intent expects the same amount")

// ErrActivePaymentExists is returned when a loan already has a pending or succeeded payment.
var ErrActivePaymentExists = errors.New("loan already has an active payment")

// LoanFilter narrows List results. Zero values mean "any".
type LoanFilter struct {
	Status      domain.LoanStatus
	ApplicantID string
	Limit       int
	Offset      int
}

// LoanRepository defines the interface for loan application data operations
type LoanRepository interface {
	// Create inserts a new application and sets its ID
	Create(ctx context.Context, loan *domain.LoanApplication) error

	// GetByID retrieves an application by its numeric ID
	GetByID(ctx context.Context, id int64) (*domain.LoanApplication, error)

	// GetByIDForUpdate is GetByID holding a row lock until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.LoanApplication, error)

	// GetByReference retrieves an application by its reference number
	GetByReference(ctx context.Context, reference string) (*domain.LoanApplication, error)

	// List returns applications ordered by newest first
	List(ctx context.Context, filter LoanFilter) ([]*domain.LoanApplication, error)

	// Update persists every mutable column of the application
	Update(ctx context.Context, loan *domain.LoanApplication) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create inserts a new payment record
	Create(ctx context.Context, payment *domain.PaymentRecord) error

	// GetByID retrieves a payment by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error)

	// ListByLoanID retrieves every payment attempt of a loan, oldest first
	ListByLoanID(ctx context.Context, loanID int64) ([]*domain.PaymentRecord, error)

	// ExistsByTxHash reports whether any payment carries the blockchain transaction hash
	ExistsByTxHash(ctx context.Context, hash string) (bool, error)

	// ListPending retrieves pending payments of a method, oldest first
	ListPending(ctx context.Context, method domain.PaymentMethod, limit int) ([]*domain.PaymentRecord, error)

	// CompareAndSwapStatus writes the payment's status, settlement and failure columns
	// only if the stored status still equals expected. It reports whether the write happened.
	CompareAndSwapStatus(ctx context.Context, payment *domain.PaymentRecord, expected domain.PaymentStatus) (bool, error)
}

// DisbursementRepository defines the interface for disbursement data operations
type DisbursementRepository interface {
	// Create appends a disbursement record
	Create(ctx context.Context, record *domain.DisbursementRecord) error

	// ListByLoanID retrieves the disbursement records of a loan
	ListByLoanID(ctx context.Context, loanID int64) ([]*domain.DisbursementRecord, error)
}

// FeeConfigRepository defines the interface for the versioned fee configuration
type FeeConfigRepository interface {
	// GetActive retrieves the single active configuration
	GetActive(ctx context.Context) (*domain.FeeConfiguration, error)

	// Lock serializes writers of the configuration until the surrounding transaction ends
	Lock(ctx context.Context) error

	// Replace deactivates the current version and inserts cfg as the new active one.
	// It takes Lock itself. Callers run it inside a transaction.
	Replace(ctx context.Context, cfg *domain.FeeConfiguration) error

	// History lists every version, newest first
	History(ctx context.Context, limit int) ([]*domain.FeeConfiguration, error)
}

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Loans         LoanRepository
	Payments      PaymentRepository
	Disbursements DisbursementRepository
	FeeConfigs    FeeConfigRepository
}

// Store gives access to repositories outside and inside a transaction.
type Store interface {
	// Repos returns repositories that run each call on its own.
	Repos() Repos

	// WithinTx runs fn in a transaction; any error returned by fn discards every write.
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}
