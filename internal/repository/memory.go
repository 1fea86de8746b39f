package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
)

// MemoryStore keeps everything in process memory. It is used by tests and by
// STORAGE_DRIVER=memory for local development. Transactions run against a copy of
// the state that replaces the committed state only when fn succeeds.
// Calling Repos() from inside WithinTx deadlocks; use the Repos passed to fn.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryState struct {
	loans          map[int64]domain.LoanApplication
	payments       map[uuid.UUID]domain.PaymentRecord
	disbursements  []domain.DisbursementRecord
	feeConfigs     []domain.FeeConfiguration
	nextLoanID     int64
	nextFeeVersion int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		loans:    map[int64]domain.LoanApplication{},
		payments: map[uuid.UUID]domain.PaymentRecord{},
	}}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		loans:          make(map[int64]domain.LoanApplication, len(s.loans)),
		payments:       make(map[uuid.UUID]domain.PaymentRecord, len(s.payments)),
		disbursements:  append([]domain.DisbursementRecord(nil), s.disbursements...),
		feeConfigs:     append([]domain.FeeConfiguration(nil), s.feeConfigs...),
		nextLoanID:     s.nextLoanID,
		nextFeeVersion: s.nextFeeVersion,
	}
	for id, l := range s.loans {
		c.loans[id] = l
	}
	for id, p := range s.payments {
		c.payments[id] = p
	}
	return c
}

// access runs fn against the state a repository is bound to.
type access func(fn func(s *memoryState) error) error

func (m *MemoryStore) Repos() Repos {
	return memoryRepos(func(fn func(s *memoryState) error) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		return fn(m.state)
	})
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	draft := m.state.clone()
	err := fn(memoryRepos(func(f func(s *memoryState) error) error {
		return f(draft)
	}))
	if err != nil {
		return err
	}

	m.state = draft
	return nil
}

func memoryRepos(a access) Repos {
	return Repos{
		Loans:         &memoryLoanRepository{access: a},
		Payments:      &memoryPaymentRepository{access: a},
		Disbursements: &memoryDisbursementRepository{access: a},
		FeeConfigs:    &memoryFeeConfigRepository{access: a},
	}
}

type memoryLoanRepository struct {
	access access
}

func (r *memoryLoanRepository) Create(ctx context.Context, loan *domain.LoanApplication) error {
	return r.access(func(s *memoryState) error {
		s.nextLoanID++
		loan.ID = s.nextLoanID
		s.loans[loan.ID] = *loan
		return nil
	})
}

func (r *memoryLoanRepository) GetByID(ctx context.Context, id int64) (*domain.LoanApplication, error) {
	var out *domain.LoanApplication
	err := r.access(func(s *memoryState) error {
		l, ok := s.loans[id]
		if !ok {
			return sql.ErrNoRows
		}
		out = &l
		return nil
	})
	return out, err
}

func (r *memoryLoanRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.LoanApplication, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryLoanRepository) GetByReference(ctx context.Context, reference string) (*domain.LoanApplication, error) {
	var out *domain.LoanApplication
	err := r.access(func(s *memoryState) error {
		for _, l := range s.loans {
			if l.ReferenceNumber == reference {
				found := l
				out = &found
				return nil
			}
		}
		return sql.ErrNoRows
	})
	return out, err
}

func (r *memoryLoanRepository) List(ctx context.Context, filter LoanFilter) ([]*domain.LoanApplication, error) {
	loans := []*domain.LoanApplication{}
	err := r.access(func(s *memoryState) error {
		for _, l := range s.loans {
			if filter.Status != "" && l.Status != filter.Status {
				continue
			}
			if filter.ApplicantID != "" && l.ApplicantID != filter.ApplicantID {
				continue
			}
			found := l
			loans = append(loans, &found)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(loans, func(i, j int) bool { return loans[i].ID > loans[j].ID })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(loans) {
		return []*domain.LoanApplication{}, nil
	}
	loans = loans[filter.Offset:]
	if len(loans) > limit {
		loans = loans[:limit]
	}
	return loans, nil
}

func (r *memoryLoanRepository) Update(ctx context.Context, loan *domain.LoanApplication) error {
	return r.access(func(s *memoryState) error {
		if _, ok := s.loans[loan.ID]; !ok {
			return sql.ErrNoRows
		}
		loan.UpdatedAt = time.Now().UTC()
		s.loans[loan.ID] = *loan
		return nil
	})
}

type memoryPaymentRepository struct {
	access access
}

func (r *memoryPaymentRepository) Create(ctx context.Context, payment *domain.PaymentRecord) error {
	return r.access(func(s *memoryState) error {
		for _, p := range s.payments {
			if p.LoanID == payment.LoanID && isActive(p.Status) && isActive(payment.Status) {
				return ErrActivePaymentExists
			}
			if payment.TxHash != nil && p.TxHash != nil && *p.TxHash == *payment.TxHash {
				return ErrDuplicateTxHash
			}
			if pendingCrypto(p) && pendingCrypto(*payment) &&
				p.Currency == payment.Currency &&
				p.DestinationAddress == payment.DestinationAddress &&
				p.ExpectedCryptoAmount.Equal(payment.ExpectedCryptoAmount) {
				return ErrExpectedAmountInUse
			}
		}
		s.payments[payment.ID] = *payment
		return nil
	})
}

func isActive(status domain.PaymentStatus) bool {
	return status == domain.PaymentStatusPending || status == domain.PaymentStatusSucceeded
}

func pendingCrypto(p domain.PaymentRecord) bool {
	return p.Status == domain.PaymentStatusPending && p.PaymentMethod == domain.PaymentMethodCrypto
}

func (r *memoryPaymentRepository) ExistsByTxHash(ctx context.Context, hash string) (bool, error) {
	exists := false
	err := r.access(func(s *memoryState) error {
		for _, p := range s.payments {
			if p.TxHash != nil && *p.TxHash == hash {
				exists = true
				return nil
			}
		}
		return nil
	})
	return exists, err
}

func (r *memoryPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error) {
	var out *domain.PaymentRecord
	err := r.access(func(s *memoryState) error {
		p, ok := s.payments[id]
		if !ok {
			return sql.ErrNoRows
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *memoryPaymentRepository) ListByLoanID(ctx context.Context, loanID int64) ([]*domain.PaymentRecord, error) {
	return r.list(func(p domain.PaymentRecord) bool { return p.LoanID == loanID }, 0)
}

func (r *memoryPaymentRepository) ListPending(ctx context.Context, method domain.PaymentMethod, limit int) ([]*domain.PaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(func(p domain.PaymentRecord) bool {
		return p.Status == domain.PaymentStatusPending && p.PaymentMethod == method
	}, limit)
}

func (r *memoryPaymentRepository) list(match func(domain.PaymentRecord) bool, limit int) ([]*domain.PaymentRecord, error) {
	payments := []*domain.PaymentRecord{}
	err := r.access(func(s *memoryState) error {
		for _, p := range s.payments {
			if match(p) {
				found := p
				payments = append(payments, &found)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.Before(payments[j].CreatedAt) })
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

func (r *memoryPaymentRepository) CompareAndSwapStatus(ctx context.Context, payment *domain.PaymentRecord, expected domain.PaymentStatus) (bool, error) {
	swapped := false
	err := r.access(func(s *memoryState) error {
		current, ok := s.payments[payment.ID]
		if !ok || current.Status != expected {
			return nil
		}
		if payment.TxHash != nil {
			for id, p := range s.payments {
				if id != payment.ID && p.TxHash != nil && *p.TxHash == *payment.TxHash {
					return ErrDuplicateTxHash
				}
			}
		}

		payment.UpdatedAt = time.Now().UTC()
		current.Status = payment.Status
		current.ProcessorReference = payment.ProcessorReference
		current.TxHash = payment.TxHash
		current.FailureReason = payment.FailureReason
		current.SucceededAt = payment.SucceededAt
		current.UpdatedAt = payment.UpdatedAt
		s.payments[payment.ID] = current
		swapped = true
		return nil
	})
	return swapped, err
}

type memoryDisbursementRepository struct {
	access access
}

func (r *memoryDisbursementRepository) Create(ctx context.Context, record *domain.DisbursementRecord) error {
	return r.access(func(s *memoryState) error {
		s.disbursements = append(s.disbursements, *record)
		return nil
	})
}

func (r *memoryDisbursementRepository) ListByLoanID(ctx context.Context, loanID int64) ([]*domain.DisbursementRecord, error) {
	records := []*domain.DisbursementRecord{}
	err := r.access(func(s *memoryState) error {
		for _, d := range s.disbursements {
			if d.LoanID == loanID {
				found := d
				records = append(records, &found)
			}
		}
		return nil
	})
	return records, err
}

type memoryFeeConfigRepository struct {
	access access
}

func (r *memoryFeeConfigRepository) GetActive(ctx context.Context) (*domain.FeeConfiguration, error) {
	var out *domain.FeeConfiguration
	err := r.access(func(s *memoryState) error {
		for _, c := range s.feeConfigs {
			if c.Active {
				found := c
				out = &found
				return nil
			}
		}
		return sql.ErrNoRows
	})
	return out, err
}

// Lock is a no-op; WithinTx already holds the store mutex.
func (r *memoryFeeConfigRepository) Lock(ctx context.Context) error {
	return nil
}

func (r *memoryFeeConfigRepository) Replace(ctx context.Context, cfg *domain.FeeConfiguration) error {
	return r.access(func(s *memoryState) error {
		for i := range s.feeConfigs {
			s.feeConfigs[i].Active = false
		}
		s.nextFeeVersion++
		cfg.Version = s.nextFeeVersion
		cfg.Active = true
		s.feeConfigs = append(s.feeConfigs, *cfg)
		return nil
	})
}

func (r *memoryFeeConfigRepository) History(ctx context.Context, limit int) ([]*domain.FeeConfiguration, error) {
	if limit <= 0 {
		limit = 20
	}
	configs := []*domain.FeeConfiguration{}
	err := r.access(func(s *memoryState) error {
		for i := len(s.feeConfigs) - 1; i >= 0 && len(configs) < limit; i-- {
			found := s.feeConfigs[i]
			configs = append(configs, &found)
		}
		return nil
	})
	return configs, err
}
