package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/lock"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/mocks"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/payment"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/repository"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/logger"
)

var (
	admin     = domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
	applicant = domain.Principal{UserID: "user-1", Role: domain.RoleUser}
	stranger  = domain.Principal{UserID: "user-2", Role: domain.RoleUser}
)

type harness struct {
	store    *repository.MemoryStore
	notifier *mocks.MockNotifier
	observer *payment.StaticObserver
	rail     payment.BankingRail
	gateway  payment.CardGateway
	fees     *FeeConfigService
	loans    *LoanService
	payments *PaymentService
}

func cryptoRates() map[domain.CryptoCurrency]decimal.Decimal {
	return map[domain.CryptoCurrency]decimal.Decimal{
		domain.CurrencyBTC:  decimal.NewFromInt(60000),
		domain.CurrencyETH:  decimal.NewFromInt(3000),
		domain.CurrencyUSDT: decimal.NewFromInt(1),
		domain.CurrencyUSDC: decimal.NewFromInt(1),
	}
}

func cryptoAddresses() map[domain.CryptoCurrency]string {
	return map[domain.CryptoCurrency]string{
		domain.CurrencyBTC:  "bc1qfee",
		domain.CurrencyETH:  "0xethfee",
		domain.CurrencyUSDT: "0xusdtfee",
		domain.CurrencyUSDC: "0xusdcfee",
	}
}

type harnessOption func(h *harness)

func withRail(rail payment.BankingRail) harnessOption {
	return func(h *harness) { h.rail = rail }
}

func withGateway(gw payment.CardGateway) harnessOption {
	return func(h *harness) { h.gateway = gw }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		store:    repository.NewMemoryStore(),
		notifier: &mocks.MockNotifier{},
		observer: payment.NewStaticObserver(),
		rail:     payment.NewSandboxRail(),
		gateway:  payment.NewSandboxGateway(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	log := logger.Discard()
	locker := lock.NewKeyedMutex()

	h.fees = NewFeeConfigService(h.store, log)
	h.loans = NewLoanService(h.store, locker, NewDisbursementCoordinator(h.rail, log), h.notifier, log)
	h.payments = NewPaymentService(
		h.store,
		locker,
		payment.NewCardAdapter(h.gateway),
		payment.NewCryptoAdapter(h.observer, cryptoRates(), cryptoAddresses()),
		h.notifier,
		log,
	)

	_, err := h.fees.Bootstrap(context.Background(), domain.FeeConfiguration{
		CalculationMode: domain.FeeModePercentage,
		PercentageRate:  200,
		FixedFeeAmount:  200,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) submit(t *testing.T) *domain.LoanApplication {
	t.Helper()
	res, err := h.loans.Submit(context.Background(), applicant, domain.SubmitApplicationRequest{
		FullName:         "Jane Doe",
		Email:            "jane@example.com",
		MonthlyIncome:    650000,
		EmploymentStatus: "employed",
		LoanPurpose:      "car repair",
		RequestedAmount:  500000,
	})
	require.NoError(t, err)
	return res.Loan
}

func (h *harness) approved(t *testing.T, amount int64) *domain.LoanApplication {
	t.Helper()
	loan := h.submit(t)
	res, err := h.loans.Approve(context.Background(), admin, loan.ID, domain.ApproveRequest{Amount: amount})
	require.NoError(t, err)
	return res.Loan
}

func (h *harness) feePaidByCard(t *testing.T) *domain.LoanApplication {
	t.Helper()
	loan := h.approved(t, 500000)
	res, err := h.payments.PayFeeByCard(context.Background(), applicant, loan.ID, "tok_visa")
	require.NoError(t, err)
	return res.Loan
}

// useAmountTags makes crypto intents draw the given tags in order, repeating the last.
func (h *harness) useAmountTags(tags ...int64) {
	var mu sync.Mutex
	next := 0
	h.payments.crypto = payment.NewCryptoAdapter(h.observer, cryptoRates(), cryptoAddresses()).
		WithAmountTags(func() int64 {
			mu.Lock()
			defer mu.Unlock()
			tag := tags[next]
			if next < len(tags)-1 {
				next++
			}
			return tag
		})
}

// sendCrypto puts a matching transfer for the intent on the static chain.
func (h *harness) sendCrypto(intent *domain.PaymentIntent, hash string) {
	h.observer.Record(intent.Currency, intent.Address, payment.ObservedTx{
		Hash:          hash,
		Amount:        intent.ExpectedAmount,
		Confirmations: 3,
		ObservedAt:    time.Now().Add(time.Minute),
	})
}

func (h *harness) loan(t *testing.T, id int64) *domain.LoanApplication {
	t.Helper()
	loan, err := h.loans.Get(context.Background(), admin, id)
	require.NoError(t, err)
	return loan
}
