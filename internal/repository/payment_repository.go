package repository

import (
	"context"
	"time"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const paymentColumns = `id, loan_id, payment_method, status, amount, transaction_id, processor_reference,
	card_brand, card_last4, currency, destination_address, expected_crypto_amount, exchange_rate, tx_hash,
	failure_reason, created_at, updated_at, succeeded_at`

type paymentRepository struct {
	db sqlx.ExtContext
}

func NewPaymentRepository(db sqlx.ExtContext) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.PaymentRecord) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.LoanID,
		payment.PaymentMethod,
		payment.Status,
		payment.Amount,
		payment.TransactionID,
		payment.ProcessorReference,
		payment.CardBrand,
		payment.CardLast4,
		payment.Currency,
		payment.DestinationAddress,
		payment.ExpectedCryptoAmount,
		payment.ExchangeRate,
		payment.TxHash,
		payment.FailureReason,
		payment.CreatedAt,
		payment.UpdatedAt,
		payment.SucceededAt,
	)
	if uniqueViolationOn(err, "payments_one_active_per_loan") {
		return ErrActivePaymentExists
	}
	if uniqueViolationOn(err, "payments_tx_hash_key") {
		return ErrDuplicateTxHash
	}
	if uniqueViolationOn(err, "payments_pending_crypto_amount") {
		return ErrExpectedAmountInUse
	}

	return err
}

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var payment domain.PaymentRecord
	if err := sqlx.GetContext(ctx, r.db, &payment, query, id); err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) ExistsByTxHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.db, &exists, `SELECT EXISTS (SELECT 1 FROM payments WHERE tx_hash = $1)`, hash)
	return exists, err
}

func (r *paymentRepository) ListByLoanID(ctx context.Context, loanID int64) ([]*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE loan_id = $1 ORDER BY created_at, id`

	payments := []*domain.PaymentRecord{}
	if err := sqlx.SelectContext(ctx, r.db, &payments, query, loanID); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) ListPending(ctx context.Context, method domain.PaymentMethod, limit int) ([]*domain.PaymentRecord, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'pending' AND payment_method = $1
		ORDER BY created_at
		LIMIT $2
	`

	if limit <= 0 {
		limit = 100
	}

	payments := []*domain.PaymentRecord{}
	if err := sqlx.SelectContext(ctx, r.db, &payments, query, method, limit); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) CompareAndSwapStatus(ctx context.Context, payment *domain.PaymentRecord, expected domain.PaymentStatus) (bool, error) {
	query := `
		UPDATE payments
		SET status = $3, processor_reference = $4, tx_hash = $5, failure_reason = $6, succeeded_at = $7, updated_at = $8
		WHERE id = $1 AND status = $2
	`

	payment.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		payment.ID,
		expected,
		payment.Status,
		payment.ProcessorReference,
		payment.TxHash,
		payment.FailureReason,
		payment.SucceededAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if uniqueViolationOn(err, "payments_tx_hash_key") {
			return false, ErrDuplicateTxHash
		}
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}
