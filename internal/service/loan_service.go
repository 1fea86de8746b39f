package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/lock"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/notify"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/repository"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/utils"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/validation"
)

// LoanService is the only component that changes a loan's status.
// Every operation takes the per-loan lock, checks its guard before writing and
// commits in one transaction. Notifications go out after commit.
type LoanService struct {
	unit       loanUnit
	disburser  *DisbursementCoordinator
	dispatcher dispatcher
	validator  *validation.Validator
	logger     *slog.Logger
	now        func() time.Time
}

func NewLoanService(
	store repository.Store,
	locker lock.Locker,
	disburser *DisbursementCoordinator,
	notifier notify.Notifier,
	logger *slog.Logger,
) *LoanService {
	return &LoanService{
		unit:       loanUnit{store: store, locker: locker},
		disburser:  disburser,
		dispatcher: dispatcher{notifier: notifier, logger: logger},
		validator:  validation.New(),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *LoanService) result(ctx context.Context, event string, loan *domain.LoanApplication) *domain.TransitionResult {
	s.logger.InfoContext(ctx, "loan transition",
		"event", event,
		"loan_id", loan.ID,
		"loan_reference", loan.ReferenceNumber,
		"status", loan.Status,
	)
	return &domain.TransitionResult{
		Loan:    loan,
		Warning: s.dispatcher.send(ctx, event, loan),
	}
}

// Submit creates a pending application for the calling applicant.
func (s *LoanService) Submit(ctx context.Context, applicant domain.Principal, req domain.SubmitApplicationRequest) (*domain.TransitionResult, error) {
	if applicant.UserID == "" {
		return nil, customError.WrapForbidden("submit an application")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	loan := &domain.LoanApplication{
		ReferenceNumber:      domain.NewReferenceNumber(),
		ApplicantID:          applicant.UserID,
		FullName:             strings.TrimSpace(req.FullName),
		Email:                strings.TrimSpace(req.Email),
		MonthlyIncome:        req.MonthlyIncome,
		EmploymentStatus:     req.EmploymentStatus,
		LoanPurpose:          strings.TrimSpace(req.LoanPurpose),
		RequestedAmount:      req.RequestedAmount,
		Status:               domain.LoanStatusPending,
		PaymentVerification:  domain.VerificationPending,
		IDVerificationStatus: domain.VerificationPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := s.unit.tx(ctx, func(r repository.Repos) error {
		return r.Loans.Create(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	return s.result(ctx, notify.EventLoanSubmitted, loan), nil
}

// MarkUnderReview records that an administrator picked up the application.
func (s *LoanService) MarkUnderReview(ctx context.Context, admin domain.Principal, loanID int64, notes string) (*domain.TransitionResult, error) {
	if err := requireAdmin(admin, "review applications"); err != nil {
		return nil, err
	}

	loan, err := s.unit.mutate(ctx, loanID, func(r repository.Repos, loan *domain.LoanApplication) error {
		to, err := domain.Transition(loan.Status, domain.EventReview)
		if err != nil {
			return err
		}
		loan.Status = to
		loan.AppendNote(notes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.result(ctx, notify.EventLoanUnderReview, loan), nil
}

// Approve fixes the approved amount and the processing fee, then waits for the fee.
// The fee is computed once from the configuration active at this moment.
func (s *LoanService) Approve(ctx context.Context, admin domain.Principal, loanID int64, req domain.ApproveRequest) (*domain.TransitionResult, error) {
	if err := requireAdmin(admin, "approve applications"); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, customError.WrapFieldError("amount", "must be greater than 0")
	}

	loan, err := s.unit.mutate(ctx, loanID, func(r repository.Repos, loan *domain.LoanApplication) error {
		to, err := domain.Transition(loan.Status, domain.EventApprove)
		if err != nil {
			return err
		}

		cfg, err := r.FeeConfigs.GetActive(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return customError.NewBusinessError(customError.ErrCodeDatabaseError, "no active fee configuration", err)
		}
		if err != nil {
			return customError.WrapDatabaseError(err)
		}

		amount := req.Amount
		fee := ComputeFee(amount, *cfg)
		if fee <= 0 {
			// no fee could ever be paid, so the loan would never reach fee_paid
			return customError.WrapFieldError("amount", "is too small to carry a processing fee")
		}
		version := cfg.Version
		approvedAt := s.now().UTC()

		loan.Status = to
		loan.ApprovedAmount = &amount
		loan.ProcessingFeeAmount = &fee
		loan.FeeConfigVersion = &version
		loan.ApprovedAt = &approvedAt
		loan.AppendNote(req.Notes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan approved",
		"loan_reference", loan.ReferenceNumber,
		"approved_amount", utils.FormatCents(*loan.ApprovedAmount),
		"processing_fee", utils.FormatCents(loan.FeeOwed()),
		"fee_config_version", *loan.FeeConfigVersion,
		"approved_by", admin.UserID,
	)
	return s.result(ctx, notify.EventLoanApproved, loan), nil
}

// Reject closes the application with a reason shown to the applicant.
func (s *LoanService) Reject(ctx context.Context, admin domain.Principal, loanID int64, reason string) (*domain.TransitionResult, error) {
	if err := requireAdmin(admin, "reject applications"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, customError.WrapFieldError("reason", "is required")
	}

	loan, err := s.unit.mutate(ctx, loanID, func(r repository.Repos, loan *domain.LoanApplication) error {
		to, err := domain.Transition(loan.Status, domain.EventReject)
		if err != nil {
			return err
		}
		loan.Status = to
		loan.RejectionReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.result(ctx, notify.EventLoanRejected, loan), nil
}

// Cancel withdraws a loan. Applicants may cancel their own application until it is
// approved; administrators may cancel any loan that is not terminal.
// The approved amount is cleared; the processing fee is kept for refunds.
func (s *LoanService) Cancel(ctx context.Context, principal domain.Principal, loanID int64, reason string) (*domain.TransitionResult, error) {
	loan, err := s.unit.mutate(ctx, loanID, func(r repository.Repos, loan *domain.LoanApplication) error {
		if err := requireOwnerOrAdmin(principal, loan, "cancel this loan"); err != nil {
			return err
		}
		to, err := domain.Transition(loan.Status, domain.EventCancel)
		if err != nil {
			return err
		}
		if !principal.IsAdmin() && !loan.Status.AwaitingDecision() {
			return customError.WrapForbidden("cancel a loan after approval")
		}

		loan.Status = to
		loan.ApprovedAmount = nil
		if reason = strings.TrimSpace(reason); reason != "" {
			loan.AppendNote("cancelled: " + reason)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.result(ctx, notify.EventLoanCancelled, loan), nil
}

// applyFeePaid moves loan to fee_paid for a succeeded payment. It runs inside the
// transaction that settled the payment.
func applyFeePaid(loan *domain.LoanApplication, p *domain.PaymentRecord) error {
	if p.LoanID != loan.ID {
		return customError.WrapInvalidState("payment belongs to another loan")
	}
	if p.Status != domain.PaymentStatusSucceeded {
		return customError.WrapInvalidState("payment has not succeeded")
	}
	to, err := domain.Transition(loan.Status, domain.EventFeePaid)
	if err != nil {
		return err
	}
	loan.Status = to
	loan.ProcessingFeePaid = true
	return nil
}

// RecordFeePaymentSucceeded moves the loan of a succeeded payment to fee_paid.
// PaymentService settles payments and the loan in one transaction; this entry point
// reconciles a payment that was settled without the transition.
func (s *LoanService) RecordFeePaymentSucceeded(ctx context.Context, paymentID uuid.UUID) (*domain.TransitionResult, error) {
	p, err := loadPayment(ctx, s.unit.store.Repos(), paymentID)
	if err != nil {
		return nil, err
	}

	loan, err := s.unit.mutate(ctx, p.LoanID, func(r repository.Repos, loan *domain.LoanApplication) error {
		current, err := loadPayment(ctx, r, paymentID)
		if err != nil {
			return err
		}
		return applyFeePaid(loan, current)
	})
	if err != nil {
		return nil, err
	}

	return s.result(ctx, notify.EventLoanFeePaid, loan), nil
}

func paymentCheckPending(loan *domain.LoanApplication) error {
	if loan.Status != domain.LoanStatusFeePaid || !loan.ProcessingFeePaid {
		return customError.WrapInvalidState("the processing fee of this loan has not been paid")
	}
	if loan.PaymentVerification != domain.VerificationPending {
		return customError.WrapInvalidState("payment verification was already " + string(loan.PaymentVerification))
	}
	return nil
}

// AdminVerifyPayment confirms the fee payment after a manual check.
func (s *LoanService) AdminVerifyPayment(ctx context.Context, admin domain.Principal, loanID int64, notes string) (*domain.TransitionResult, error) {
	if err := requireAdmin(admin, "verify payments"); err != nil {
		return nil, err
	}

	loan, err := s.unit.mutate(ctx, loanID, func(r repository.Repos, loan *domain.LoanApplication) error {
		if err := paymentCheckPending(loan); err != nil {
			return err
		}
		loan.PaymentVerification = domain.VerificationVerified
		loan.AppendNote(notes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.result(ctx, notify.EventPaymentVerified, loan), nil
}

// AdminRejectPaymentVerification flags the fee payment as not acceptable.
// processing_fee_paid stays set; the flag blocks disbursement until resolved by hand.
func (s *LoanService) AdminRejectPaymentVerification(ctx context.Context, admin domain.Principal, loanID int64, reason string) (*domain.TransitionResult, error) {
	if err := requireAdmin(admin, "reject payments"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, customError.WrapFieldError("reason", "is required")
	}

	loan, err := s.unit.mutate(ctx, loanID, func(r repository.Repos, loan *domain.LoanApplication) error {
		if err := paymentCheckPending(loan); err != nil {
			return err
		}
		loan.PaymentVerification = domain.VerificationRejected
		loan.AppendNote("payment verification rejected: " + reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.result(ctx, notify.EventPaymentRejected, loan), nil
}

// settledFee returns the succeeded fee payment of a loan, if any.
func settledFee(ctx context.Context, r repository.Repos, loanID int64) (*domain.PaymentRecord, error) {
	payments, err := r.Payments.ListByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	for _, p := range payments {
		if p.Status == domain.PaymentStatusSucceeded {
			return p, nil
		}
	}
	return nil, nil
}

func (s *LoanService) checkDisbursable(ctx context.Context, r repository.Repos, loan *domain.LoanApplication) error {
	if loan.Status == domain.LoanStatusDisbursed {
		return customError.WrapAlreadyDisbursed(loan.ReferenceNumber)
	}
	if _, err := domain.Transition(loan.Status, domain.EventDisburse); err != nil {
		return err
	}
	if loan.PaymentVerification == domain.VerificationRejected {
		return customError.WrapInvalidState("payment verification was rejected; resolve it before disbursing")
	}

	fee, err := settledFee(ctx, r, loan.ID)
	if err != nil {
		return err
	}
	if fee == nil {
		return customError.WrapInvalidState("no settled processing fee payment for this loan")
	}
	if fee.PaymentMethod == domain.PaymentMethodCrypto && !loan.PaymentVerified() {
		return customError.WrapInvalidState("crypto fee payments must be verified by an administrator before disbursement")
	}
	return nil
}

// InitiateDisbursement sends the approved amount and marks the loan disbursed.
// The rail call happens under the loan lock but outside the transaction; a retry after a
// failed commit reuses the rail idempotency key.
func (s *LoanService) InitiateDisbursement(ctx context.Context, admin domain.Principal, loanID int64, bank domain.BankDetails) (*domain.DisbursementResponse, error) {
	if err := requireAdmin(admin, "disburse loans"); err != nil {
		return nil, err
	}
	if err := s.disburser.ValidateBankDetails(bank); err != nil {
		return nil, err
	}

	unlock, err := s.unit.lock(ctx, loanID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	repos := s.unit.store.Repos()
	loan, err := loadLoan(ctx, repos, loanID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDisbursable(ctx, repos, loan); err != nil {
		return nil, err
	}

	record, err := s.disburser.Initiate(ctx, loan, bank, admin.UserID)
	if err != nil {
		return nil, err
	}

	err = s.unit.tx(ctx, func(r repository.Repos) error {
		current, err := loadLoanForUpdate(ctx, r, loanID)
		if err != nil {
			return err
		}
		if err := s.checkDisbursable(ctx, r, current); err != nil {
			return err
		}
		to, err := domain.Transition(current.Status, domain.EventDisburse)
		if err != nil {
			return err
		}
		if err := r.Disbursements.Create(ctx, record); err != nil {
			return customError.WrapDatabaseError(err)
		}

		disbursedAt := record.DisbursedAt
		current.Status = to
		current.DisbursedAt = &disbursedAt
		if err := r.Loans.Update(ctx, current); err != nil {
			return customError.WrapDatabaseError(err)
		}
		loan = current
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "disbursement sent but not recorded",
			"loan_reference", loan.ReferenceNumber,
			"rail_reference", record.RailReference,
			"error", err,
		)
		return nil, err
	}

	res := s.result(ctx, notify.EventLoanDisbursed, loan)
	return &domain.DisbursementResponse{
		Loan:         res.Loan,
		Disbursement: record,
		Warning:      res.Warning,
	}, nil
}

func idCheckPending(loan *domain.LoanApplication) error {
	if loan.Status.Terminal() {
		return customError.WrapInvalidState("identity cannot be reviewed on a " + string(loan.Status) + " loan")
	}
	if loan.IDVerificationStatus != domain.VerificationPending {
		return customError.WrapInvalidState("identity verification was already " + string(loan.IDVerificationStatus))
	}
	return nil
}

// ApproveIDVerification marks the applicant's identity documents as checked.
func (s *LoanService) ApproveIDVerification(ctx context.Context, admin domain.Principal, loanID int64, notes string) (*domain.TransitionResult, error) {
	if err := requireAdmin(admin, "verify identities"); err != nil {
		return nil, err
	}

	loan, err := s.unit.mutate(ctx, loanID, func(r repository.Repos, loan *domain.LoanApplication) error {
		if err := idCheckPending(loan); err != nil {
			return err
		}
		loan.IDVerificationStatus = domain.VerificationVerified
		loan.AppendNote(notes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.result(ctx, notify.EventIdentityVerified, loan), nil
}

func (s *LoanService) RejectIDVerification(ctx context.Context, admin domain.Principal, loanID int64, reason string) (*domain.TransitionResult, error) {
	if err := requireAdmin(admin, "reject identities"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, customError.WrapFieldError("reason", "is required")
	}

	loan, err := s.unit.mutate(ctx, loanID, func(r repository.Repos, loan *domain.LoanApplication) error {
		if err := idCheckPending(loan); err != nil {
			return err
		}
		loan.IDVerificationStatus = domain.VerificationRejected
		loan.AppendNote("identity verification rejected: " + reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.result(ctx, notify.EventIdentityRejected, loan), nil
}

// Get returns a loan to its applicant or to an administrator.
func (s *LoanService) Get(ctx context.Context, principal domain.Principal, loanID int64) (*domain.LoanApplication, error) {
	loan, err := loadLoan(ctx, s.unit.store.Repos(), loanID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(principal, loan, "view this loan"); err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *LoanService) GetByReference(ctx context.Context, principal domain.Principal, reference string) (*domain.LoanApplication, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	loan, err := s.unit.store.Repos().Loans.GetByReference(ctx, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanReferenceNotFound(reference)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if err := requireOwnerOrAdmin(principal, loan, "view this loan"); err != nil {
		return nil, err
	}
	return loan, nil
}

// List returns every loan to administrators and only their own loans to applicants.
func (s *LoanService) List(ctx context.Context, principal domain.Principal, filter repository.LoanFilter) ([]*domain.LoanApplication, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, customError.WrapFieldError("status", "unknown loan status")
	}
	if !principal.IsAdmin() {
		if principal.UserID == "" {
			return nil, customError.WrapForbidden("list loans")
		}
		filter.ApplicantID = principal.UserID
	}

	loans, err := s.unit.store.Repos().Loans.List(ctx, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loans, nil
}

// Disbursements lists the disbursement records of a loan.
func (s *LoanService) Disbursements(ctx context.Context, principal domain.Principal, loanID int64) ([]*domain.DisbursementRecord, error) {
	if _, err := s.Get(ctx, principal, loanID); err != nil {
		return nil, err
	}
	records, err := s.unit.store.Repos().Disbursements.ListByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return records, nil
}

func loadPayment(ctx context.Context, r repository.Repos, paymentID uuid.UUID) (*domain.PaymentRecord, error) {
	p, err := r.Payments.GetByID(ctx, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapPaymentNotFound(paymentID.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return p, nil
}
