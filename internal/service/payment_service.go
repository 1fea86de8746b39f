package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/lock"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/notify"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/payment"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/repository"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
)

const (
	pollBatchSize = 100
	// intentAttempts is how many amount tags CreateCryptoIntent draws before giving up.
	intentAttempts = 5
)

// PaymentService takes processing fee payments and feeds confirmations into the
// loan lifecycle. A payment succeeding and its loan reaching fee_paid happen in the
// same transaction.
type PaymentService struct {
	unit       loanUnit
	card       *payment.CardAdapter
	crypto     *payment.CryptoAdapter
	dispatcher dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewPaymentService(
	store repository.Store,
	locker lock.Locker,
	card *payment.CardAdapter,
	crypto *payment.CryptoAdapter,
	notifier notify.Notifier,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		unit:       loanUnit{store: store, locker: locker},
		card:       card,
		crypto:     crypto,
		dispatcher: dispatcher{notifier: notifier, logger: logger},
		logger:     logger,
		now:        time.Now,
	}
}

// payableLoan loads a loan that is waiting for its fee and checks the caller may pay it.
func (s *PaymentService) payableLoan(ctx context.Context, r repository.Repos, principal domain.Principal, loanID int64) (*domain.LoanApplication, []*domain.PaymentRecord, error) {
	loan, err := loadLoan(ctx, r, loanID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireOwnerOrAdmin(principal, loan, "pay the fee of this loan"); err != nil {
		return nil, nil, err
	}
	if _, err := domain.Transition(loan.Status, domain.EventFeePaid); err != nil {
		return nil, nil, err
	}
	if loan.ProcessingFeePaid {
		return nil, nil, customError.WrapInvalidState("the processing fee is already paid")
	}

	payments, err := r.Payments.ListByLoanID(ctx, loanID)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}
	return loan, payments, nil
}

// PayFeeByCard charges the fee on a gateway token and settles the loan on success.
func (s *PaymentService) PayFeeByCard(ctx context.Context, principal domain.Principal, loanID int64, cardToken string) (*domain.PaymentResult, error) {
	unlock, err := s.unit.lock(ctx, loanID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	loan, payments, err := s.payableLoan(ctx, s.unit.store.Repos(), principal, loanID)
	if err != nil {
		return nil, err
	}

	attempt := 0
	for _, p := range payments {
		switch p.Status {
		case domain.PaymentStatusPending:
			return nil, customError.WrapInvalidState("a crypto payment is pending for this loan; mark it failed before paying by card")
		case domain.PaymentStatusSucceeded:
			return nil, customError.WrapInvalidState("the processing fee is already paid")
		case domain.PaymentStatusFailed:
			if p.PaymentMethod == domain.PaymentMethodCard {
				attempt++
			}
		}
	}

	record, chargeErr := s.card.Charge(ctx, loan, cardToken, attempt)
	if chargeErr != nil {
		if record != nil {
			s.recordFailedCharge(ctx, loan, record)
		}
		return nil, chargeErr
	}

	err = s.unit.tx(ctx, func(r repository.Repos) error {
		current, err := loadLoanForUpdate(ctx, r, loanID)
		if err != nil {
			return err
		}
		if err := createPayment(ctx, r, record); err != nil {
			return err
		}
		if err := applyFeePaid(current, record); err != nil {
			return err
		}
		if err := r.Loans.Update(ctx, current); err != nil {
			return customError.WrapDatabaseError(err)
		}
		loan = current
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "card charge captured but not recorded",
			"loan_reference", loan.ReferenceNumber,
			"processor_reference", record.ProcessorReference,
			"error", err,
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "card fee payment succeeded",
		"loan_reference", loan.ReferenceNumber,
		"payment_id", record.ID,
		"processor_reference", record.ProcessorReference,
	)
	return &domain.PaymentResult{
		Payment: record,
		Loan:    loan,
		Warning: s.dispatcher.send(ctx, notify.EventLoanFeePaid, loan),
	}, nil
}

func (s *PaymentService) recordFailedCharge(ctx context.Context, loan *domain.LoanApplication, record *domain.PaymentRecord) {
	err := s.unit.tx(ctx, func(r repository.Repos) error {
		return createPayment(ctx, r, record)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record declined card payment",
			"loan_reference", loan.ReferenceNumber, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "card fee payment declined",
		"loan_reference", loan.ReferenceNumber,
		"payment_id", record.ID,
		"reason", record.FailureReason,
	)
	s.dispatcher.send(ctx, notify.EventPaymentFailed, loan)
}

func createPayment(ctx context.Context, r repository.Repos, p *domain.PaymentRecord) error {
	err := r.Payments.Create(ctx, p)
	switch {
	case errors.Is(err, repository.ErrActivePaymentExists):
		return customError.WrapInvalidState("this loan already has an active fee payment")
	case errors.Is(err, repository.ErrDuplicateTxHash):
		return customError.WrapInvalidState("this transaction already settled another payment")
	case err != nil:
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func intentOf(p *domain.PaymentRecord) *domain.PaymentIntent {
	return &domain.PaymentIntent{
		PaymentID:      p.ID,
		Address:        p.DestinationAddress,
		ExpectedAmount: p.ExpectedCryptoAmount,
		Currency:       p.Currency,
		FeeAmount:      p.Amount,
	}
}

// CreateCryptoIntent returns where and how much to send. Asking again for the same
// currency returns the pending intent unchanged.
func (s *PaymentService) CreateCryptoIntent(ctx context.Context, principal domain.Principal, loanID int64, currency domain.CryptoCurrency) (*domain.PaymentIntent, error) {
	currency = domain.CryptoCurrency(strings.ToUpper(strings.TrimSpace(string(currency))))
	if !currency.Supported() {
		return nil, customError.WrapFieldError("currency", "must be one of: BTC ETH USDT USDC")
	}

	unlock, err := s.unit.lock(ctx, loanID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	loan, payments, err := s.payableLoan(ctx, s.unit.store.Repos(), principal, loanID)
	if err != nil {
		return nil, err
	}

	for _, p := range payments {
		switch p.Status {
		case domain.PaymentStatusPending:
			if p.PaymentMethod == domain.PaymentMethodCrypto && p.Currency == currency {
				return intentOf(p), nil
			}
			return nil, customError.WrapInvalidState("another payment is pending for this loan; mark it failed first")
		case domain.PaymentStatusSucceeded:
			return nil, customError.WrapInvalidState("the processing fee is already paid")
		}
	}

	var record *domain.PaymentRecord
	for attempt := 1; ; attempt++ {
		record, err = s.crypto.CreatePaymentIntent(loan, currency)
		if err != nil {
			return nil, err
		}

		amountTaken := false
		err = s.unit.tx(ctx, func(r repository.Repos) error {
			err := createPayment(ctx, r, record)
			amountTaken = errors.Is(err, repository.ErrExpectedAmountInUse)
			return err
		})
		if !amountTaken {
			break
		}
		if attempt == intentAttempts {
			return nil, customError.NewBusinessError(customError.ErrCodeLockUnavailable,
				"too many pending "+string(currency)+" intents for this fee; try again later", err)
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "crypto payment intent created",
		"loan_reference", loan.ReferenceNumber,
		"payment_id", record.ID,
		"currency", record.Currency,
		"expected_amount", record.ExpectedCryptoAmount.String(),
	)
	return intentOf(record), nil
}

// VerifyCryptoPayment checks the chain for the payment. The first caller to see the
// transfer settles the payment and moves the loan to fee_paid; later callers get the
// succeeded payment with Transitioned false.
func (s *PaymentService) VerifyCryptoPayment(ctx context.Context, principal domain.Principal, paymentID uuid.UUID) (*domain.VerifyResult, error) {
	repos := s.unit.store.Repos()
	p, err := loadPayment(ctx, repos, paymentID)
	if err != nil {
		return nil, err
	}
	loan, err := loadLoan(ctx, repos, p.LoanID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(principal, loan, "verify this payment"); err != nil {
		return nil, err
	}
	if p.PaymentMethod != domain.PaymentMethodCrypto {
		return nil, customError.WrapInvalidState("only crypto payments are verified on chain")
	}

	switch p.Status {
	case domain.PaymentStatusSucceeded:
		return &domain.VerifyResult{Verified: true, Payment: p}, nil
	case domain.PaymentStatusFailed, domain.PaymentStatusRefunded:
		return nil, customError.WrapInvalidState("payment is " + string(p.Status))
	}

	tx, err := s.crypto.Verify(ctx, p, repos.Payments.ExistsByTxHash)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return &domain.VerifyResult{Verified: false, Payment: p}, nil
	}

	unlock, err := s.unit.lock(ctx, p.LoanID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		settled      *domain.PaymentRecord
		transitioned bool
		warning      string
	)
	err = s.unit.tx(ctx, func(r repository.Repos) error {
		current, err := loadLoanForUpdate(ctx, r, p.LoanID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		hash := tx.Hash
		update := *p
		update.Status = domain.PaymentStatusSucceeded
		update.TxHash = &hash
		update.ProcessorReference = hash
		update.SucceededAt = &now

		swapped, err := r.Payments.CompareAndSwapStatus(ctx, &update, domain.PaymentStatusPending)
		if err != nil {
			return err
		}
		if !swapped {
			latest, err := loadPayment(ctx, r, p.ID)
			if err != nil {
				return err
			}
			if latest.Status != domain.PaymentStatusSucceeded {
				return customError.WrapInvalidState("payment is " + string(latest.Status))
			}
			settled = latest
			return nil
		}

		settled = &update
		if !current.Status.AwaitingFee() {
			// funds arrived after the loan left the fee stage; the payment is kept for a refund
			warning = "loan is " + string(current.Status) + "; payment recorded for refund"
			return nil
		}
		if err := applyFeePaid(current, settled); err != nil {
			return err
		}
		if err := r.Loans.Update(ctx, current); err != nil {
			return customError.WrapDatabaseError(err)
		}
		loan = current
		transitioned = true
		return nil
	})
	if errors.Is(err, repository.ErrDuplicateTxHash) {
		s.logger.WarnContext(ctx, "transaction already settled another payment",
			"payment_id", p.ID, "tx_hash", tx.Hash)
		return &domain.VerifyResult{Verified: false, Payment: p, Warning: "matching transaction already settled another payment"}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &domain.VerifyResult{Verified: true, Payment: settled, Transitioned: transitioned, Warning: warning}
	if transitioned {
		s.logger.InfoContext(ctx, "crypto fee payment verified",
			"loan_reference", loan.ReferenceNumber,
			"payment_id", settled.ID,
			"tx_hash", tx.Hash,
		)
		if w := s.dispatcher.send(ctx, notify.EventLoanFeePaid, loan); w != "" {
			result.Warning = w
		}
	}
	return result, nil
}

// transitionPayment moves a payment from one status to another under the loan lock.
func (s *PaymentService) transitionPayment(
	ctx context.Context,
	paymentID uuid.UUID,
	from domain.PaymentStatus,
	to domain.PaymentStatus,
	guard func(loan *domain.LoanApplication) error,
	reason string,
) (*domain.PaymentRecord, *domain.LoanApplication, error) {
	p, err := loadPayment(ctx, s.unit.store.Repos(), paymentID)
	if err != nil {
		return nil, nil, err
	}

	unlock, err := s.unit.lock(ctx, p.LoanID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var loan *domain.LoanApplication
	err = s.unit.tx(ctx, func(r repository.Repos) error {
		current, err := loadLoanForUpdate(ctx, r, p.LoanID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(current); err != nil {
				return err
			}
		}

		latest, err := loadPayment(ctx, r, paymentID)
		if err != nil {
			return err
		}
		if latest.Status != from {
			return customError.WrapInvalidState("payment is " + string(latest.Status) + ", expected " + string(from))
		}

		latest.Status = to
		latest.FailureReason = reason
		swapped, err := r.Payments.CompareAndSwapStatus(ctx, latest, from)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
		if !swapped {
			return customError.WrapInvalidState("payment changed concurrently")
		}

		current.AppendNote("payment " + latest.TransactionID + " " + string(to) + ": " + reason)
		if err := r.Loans.Update(ctx, current); err != nil {
			return customError.WrapDatabaseError(err)
		}
		p = latest
		loan = current
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return p, loan, nil
}

// MarkPaymentFailed abandons a pending payment, e.g. a crypto intent that was never paid.
func (s *PaymentService) MarkPaymentFailed(ctx context.Context, admin domain.Principal, paymentID uuid.UUID, reason string) (*domain.PaymentResult, error) {
	if err := requireAdmin(admin, "fail payments"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, customError.WrapFieldError("reason", "is required")
	}

	p, loan, err := s.transitionPayment(ctx, paymentID, domain.PaymentStatusPending, domain.PaymentStatusFailed, nil, reason)
	if err != nil {
		return nil, err
	}

	return &domain.PaymentResult{
		Payment: p,
		Loan:    loan,
		Warning: s.dispatcher.send(ctx, notify.EventPaymentFailed, loan),
	}, nil
}

// RefundPayment returns a settled fee on a cancelled loan.
func (s *PaymentService) RefundPayment(ctx context.Context, admin domain.Principal, paymentID uuid.UUID, reason string) (*domain.PaymentResult, error) {
	if err := requireAdmin(admin, "refund payments"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, customError.WrapFieldError("reason", "is required")
	}

	onlyCancelled := func(loan *domain.LoanApplication) error {
		if loan.Status != domain.LoanStatusCancelled {
			return customError.WrapInvalidState("only fees of cancelled loans can be refunded")
		}
		return nil
	}

	p, loan, err := s.transitionPayment(ctx, paymentID, domain.PaymentStatusSucceeded, domain.PaymentStatusRefunded, onlyCancelled, reason)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "fee payment refunded",
		"loan_reference", loan.ReferenceNumber, "payment_id", p.ID, "refunded_by", admin.UserID)
	return &domain.PaymentResult{
		Payment: p,
		Loan:    loan,
		Warning: s.dispatcher.send(ctx, notify.EventPaymentRefunded, loan),
	}, nil
}

// ListPayments returns every payment attempt of a loan.
func (s *PaymentService) ListPayments(ctx context.Context, principal domain.Principal, loanID int64) ([]*domain.PaymentRecord, error) {
	repos := s.unit.store.Repos()
	loan, err := loadLoan(ctx, repos, loanID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(principal, loan, "view payments of this loan"); err != nil {
		return nil, err
	}
	payments, err := repos.Payments.ListByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return payments, nil
}

// PollPendingCrypto verifies every pending crypto payment once. Errors are logged and
// the payment is retried on the next pass.
func (s *PaymentService) PollPendingCrypto(ctx context.Context) (*domain.PollSummary, error) {
	pending, err := s.unit.store.Repos().Payments.ListPending(ctx, domain.PaymentMethodCrypto, pollBatchSize)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	poller := domain.SystemPrincipal("crypto-poller")
	summary := &domain.PollSummary{}
	for _, p := range pending {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Checked++

		res, err := s.VerifyCryptoPayment(ctx, poller, p.ID)
		if err != nil {
			summary.Errors++
			s.logger.WarnContext(ctx, "crypto verification failed",
				"payment_id", p.ID,
				"loan_id", p.LoanID,
				"code", customError.CodeOf(err),
				"error", err,
			)
			continue
		}
		if res.Verified {
			summary.Verified++
		}
	}

	s.logger.InfoContext(ctx, "crypto poll finished",
		"checked", summary.Checked,
		"verified", summary.Verified,
		"errors", summary.Errors,
	)
	return summary, nil
}
