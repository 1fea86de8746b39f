package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/payment"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/utils"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/validation"
)

// DisbursementCoordinator sends the approved principal over the banking rail.
// It does not persist anything; LoanService records the result with the status change.
type DisbursementCoordinator struct {
	rail      payment.BankingRail
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

func NewDisbursementCoordinator(rail payment.BankingRail, logger *slog.Logger) *DisbursementCoordinator {
	return &DisbursementCoordinator{
		rail:      rail,
		validator: validation.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// RailIdempotencyKey is stable per loan so a retried disbursement is never sent twice.
func RailIdempotencyKey(reference string) string {
	return "disb-" + reference
}

// ValidateBankDetails reports missing bank fields as VALIDATION_ERROR.
func (c *DisbursementCoordinator) ValidateBankDetails(bank domain.BankDetails) error {
	return c.validator.Struct(bank)
}

// Initiate transfers the approved amount of loan and returns the record to store.
func (c *DisbursementCoordinator) Initiate(ctx context.Context, loan *domain.LoanApplication, bank domain.BankDetails, initiatedBy string) (*domain.DisbursementRecord, error) {
	if loan.Status == domain.LoanStatusDisbursed {
		return nil, customError.WrapAlreadyDisbursed(loan.ReferenceNumber)
	}
	if _, err := domain.Transition(loan.Status, domain.EventDisburse); err != nil {
		return nil, err
	}
	if err := c.ValidateBankDetails(bank); err != nil {
		return nil, err
	}
	if loan.ApprovedAmount == nil || *loan.ApprovedAmount <= 0 {
		return nil, customError.WrapInvalidState("loan has no approved amount to disburse")
	}

	amount := *loan.ApprovedAmount
	ref, err := c.rail.Transfer(ctx, payment.TransferRequest{
		IdempotencyKey:    RailIdempotencyKey(loan.ReferenceNumber),
		AmountCents:       amount,
		AccountHolderName: strings.TrimSpace(bank.AccountHolderName),
		AccountNumber:     strings.TrimSpace(bank.AccountNumber),
		RoutingNumber:     strings.TrimSpace(bank.RoutingNumber),
		BankName:          strings.TrimSpace(bank.BankName),
		Memo:              "Loan " + loan.ReferenceNumber,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "disbursement transfer failed",
			"loan_reference", loan.ReferenceNumber,
			"amount", utils.FormatCents(amount),
			"error", err,
		)
		return nil, customError.WrapDisbursementFailed(loan.ReferenceNumber, err)
	}

	record := &domain.DisbursementRecord{
		ID:                uuid.New(),
		LoanID:            loan.ID,
		Amount:            amount,
		AccountHolderName: strings.TrimSpace(bank.AccountHolderName),
		AccountNumber:     strings.TrimSpace(bank.AccountNumber),
		RoutingNumber:     strings.TrimSpace(bank.RoutingNumber),
		BankName:          strings.TrimSpace(bank.BankName),
		RailReference:     ref,
		InitiatedBy:       initiatedBy,
		DisbursedAt:       c.now().UTC(),
	}

	c.logger.InfoContext(ctx, "disbursement sent",
		"loan_reference", loan.ReferenceNumber,
		"amount", utils.FormatCents(amount),
		"account", record.MaskedAccountNumber(),
		"rail_reference", ref,
	)
	return record, nil
}
