package repository

import (
	"context"
	"time"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"

	"github.com/jmoiron/sqlx"
)

const loanColumns = `id, reference_number, applicant_id, full_name, email, monthly_income, employment_status,
	loan_purpose, requested_amount, approved_amount, status, processing_fee_amount, fee_config_version,
	processing_fee_paid, payment_verification, id_verification_status, admin_notes, rejection_reason,
	created_at, updated_at, approved_at, disbursed_at`

type loanRepository struct {
	db sqlx.ExtContext
}

func NewLoanRepository(db sqlx.ExtContext) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.LoanApplication) error {
	query := `
		INSERT INTO loan_applications (reference_number, applicant_id, full_name, email, monthly_income,
			employment_status, loan_purpose, requested_amount, status, payment_verification,
			id_verification_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	return r.db.QueryRowxContext(ctx, query,
		loan.ReferenceNumber,
		loan.ApplicantID,
		loan.FullName,
		loan.Email,
		loan.MonthlyIncome,
		loan.EmploymentStatus,
		loan.LoanPurpose,
		loan.RequestedAmount,
		loan.Status,
		loan.PaymentVerification,
		loan.IDVerificationStatus,
		loan.CreatedAt,
		loan.UpdatedAt,
	).Scan(&loan.ID)
}

func (r *loanRepository) GetByID(ctx context.Context, id int64) (*domain.LoanApplication, error) {
	query := `SELECT ` + loanColumns + ` FROM loan_applications WHERE id = $1`

	var loan domain.LoanApplication
	if err := sqlx.GetContext(ctx, r.db, &loan, query, id); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.LoanApplication, error) {
	query := `SELECT ` + loanColumns + ` FROM loan_applications WHERE id = $1 FOR UPDATE`

	var loan domain.LoanApplication
	if err := sqlx.GetContext(ctx, r.db, &loan, query, id); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) GetByReference(ctx context.Context, reference string) (*domain.LoanApplication, error) {
	query := `SELECT ` + loanColumns + ` FROM loan_applications WHERE reference_number = $1`

	var loan domain.LoanApplication
	if err := sqlx.GetContext(ctx, r.db, &loan, query, reference); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) List(ctx context.Context, filter LoanFilter) ([]*domain.LoanApplication, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loan_applications
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR applicant_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	loans := []*domain.LoanApplication{}
	err := sqlx.SelectContext(ctx, r.db, &loans, query, string(filter.Status), filter.ApplicantID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}

	return loans, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.LoanApplication) error {
	query := `
		UPDATE loan_applications
		SET approved_amount = $2, status = $3, processing_fee_amount = $4, fee_config_version = $5,
			processing_fee_paid = $6, payment_verification = $7, id_verification_status = $8,
			admin_notes = $9, rejection_reason = $10, approved_at = $11, disbursed_at = $12, updated_at = $13
		WHERE id = $1
	`

	loan.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.ApprovedAmount,
		loan.Status,
		loan.ProcessingFeeAmount,
		loan.FeeConfigVersion,
		loan.ProcessingFeePaid,
		loan.PaymentVerification,
		loan.IDVerificationStatus,
		loan.AdminNotes,
		loan.RejectionReason,
		loan.ApprovedAt,
		loan.DisbursedAt,
		loan.UpdatedAt,
	)

	return err
}
