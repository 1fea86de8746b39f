package repository

import (
	"context"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"

	"github.com/jmoiron/sqlx"
)

type disbursementRepository struct {
	db sqlx.ExtContext
}

func NewDisbursementRepository(db sqlx.ExtContext) DisbursementRepository {
	return &disbursementRepository{db: db}
}

func (r *disbursementRepository) Create(ctx context.Context, record *domain.DisbursementRecord) error {
	query := `
		INSERT INTO disbursements (id, loan_id, amount, account_holder_name, account_number, routing_number,
			bank_name, rail_reference, initiated_by, disbursed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.LoanID,
		record.Amount,
		record.AccountHolderName,
		record.AccountNumber,
		record.RoutingNumber,
		record.BankName,
		record.RailReference,
		record.InitiatedBy,
		record.DisbursedAt,
	)

	return err
}

func (r *disbursementRepository) ListByLoanID(ctx context.Context, loanID int64) ([]*domain.DisbursementRecord, error) {
	query := `
		SELECT id, loan_id, amount, account_holder_name, account_number, routing_number, bank_name,
			rail_reference, initiated_by, disbursed_at
		FROM disbursements
		WHERE loan_id = $1
		ORDER BY disbursed_at
	`

	records := []*domain.DisbursementRecord{}
	if err := sqlx.SelectContext(ctx, r.db, &records, query, loanID); err != nil {
		return nil, err
	}

	return records, nil
}
