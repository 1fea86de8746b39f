package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/lock"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/notify"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/repository"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
)

// loanUnit serializes work on one loan and runs its writes in a single transaction.
// Every component that changes a loan goes through it.
type loanUnit struct {
	store  repository.Store
	locker lock.Locker
}

func loanLockKey(loanID int64) string {
	return fmt.Sprintf("loan:%d", loanID)
}

// lock takes the per-loan lock. The returned func releases it.
func (u loanUnit) lock(ctx context.Context, loanID int64) (func(), error) {
	key := loanLockKey(loanID)
	unlock, err := u.locker.Lock(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, customError.WrapLockUnavailable(key, err)
	}
	return unlock, nil
}

// tx runs fn in one transaction. Errors that are not business errors become DATABASE_ERROR.
func (u loanUnit) tx(ctx context.Context, fn func(r repository.Repos) error) error {
	return translate(u.store.WithinTx(ctx, fn))
}

// mutate loads the loan under lock, lets fn change it and persists it atomically.
// fn must return before any write when a guard fails.
func (u loanUnit) mutate(ctx context.Context, loanID int64, fn func(r repository.Repos, loan *domain.LoanApplication) error) (*domain.LoanApplication, error) {
	unlock, err := u.lock(ctx, loanID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *domain.LoanApplication
	err = u.tx(ctx, func(r repository.Repos) error {
		loan, err := loadLoanForUpdate(ctx, r, loanID)
		if err != nil {
			return err
		}
		if err := fn(r, loan); err != nil {
			return err
		}
		if err := r.Loans.Update(ctx, loan); err != nil {
			return customError.WrapDatabaseError(err)
		}
		out = loan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadLoan(ctx context.Context, r repository.Repos, loanID int64) (*domain.LoanApplication, error) {
	loan, err := r.Loans.GetByID(ctx, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(loanID)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

func loadLoanForUpdate(ctx context.Context, r repository.Repos, loanID int64) (*domain.LoanApplication, error) {
	loan, err := r.Loans.GetByIDForUpdate(ctx, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(loanID)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := customError.As(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return customError.WrapDatabaseError(err)
}

func requireAdmin(p domain.Principal, action string) error {
	if !p.IsAdmin() {
		return customError.WrapForbidden(action)
	}
	return nil
}

// requireOwnerOrAdmin runs after the loan is loaded, so a missing loan reports LOAN_NOT_FOUND.
func requireOwnerOrAdmin(p domain.Principal, loan *domain.LoanApplication, action string) error {
	if p.IsAdmin() || loan.OwnedBy(p) {
		return nil
	}
	return customError.WrapForbidden(action)
}

// dispatcher sends notifications after commit. Failures are logged and returned
// as a warning for the caller; they never undo a transition.
type dispatcher struct {
	notifier notify.Notifier
	logger   *slog.Logger
	timeout  time.Duration
}

func (d dispatcher) send(ctx context.Context, event string, loan *domain.LoanApplication) string {
	if d.notifier == nil {
		return ""
	}

	timeout := d.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, event, loan); err != nil {
		d.logger.WarnContext(ctx, "notification failed",
			"event", event,
			"loan_reference", loan.ReferenceNumber,
			"error", err,
		)
		return fmt.Sprintf("notification %s could not be delivered", event)
	}
	return ""
}
