package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/utils"
)

// maxAmountTag bounds the sub-unit tag added to an intent's expected amount.
// At 8 places that is under 0.00001 BTC.
const maxAmountTag = 999

// TxQuery asks for incoming transfers of exactly Amount to Address seen after Since.
type TxQuery struct {
	Currency domain.CryptoCurrency
	Address  string
	Amount   decimal.Decimal
	Since    time.Time
}

type ObservedTx struct {
	Hash          string          `json:"hash"`
	Amount        decimal.Decimal `json:"amount"`
	Confirmations int             `json:"confirmations"`
	ObservedAt    time.Time       `json:"observed_at"`
}

// BlockchainObserver looks up on-chain transfers. It returns every confirmed match,
// oldest first, and an empty slice when nothing matches yet.
type BlockchainObserver interface {
	LookupTransactions(ctx context.Context, q TxQuery) ([]ObservedTx, error)
}

// SettledFunc reports whether a transaction hash already settled a payment.
type SettledFunc func(ctx context.Context, hash string) (bool, error)

// CryptoAdapter creates payment intents and checks them against a BlockchainObserver.
// Exchange rates are USD per unit and are fixed on the intent when it is created.
type CryptoAdapter struct {
	observer  BlockchainObserver
	rates     map[domain.CryptoCurrency]decimal.Decimal
	addresses map[domain.CryptoCurrency]string
	now       func() time.Time
	tag       func() int64
}

func NewCryptoAdapter(observer BlockchainObserver, rates map[domain.CryptoCurrency]decimal.Decimal, addresses map[domain.CryptoCurrency]string) *CryptoAdapter {
	return &CryptoAdapter{
		observer:  observer,
		rates:     rates,
		addresses: addresses,
		now:       time.Now,
		tag:       func() int64 { return rand.Int63n(maxAmountTag) + 1 },
	}
}

// WithAmountTags replaces the random tag source, for tests that need fixed amounts.
func (a *CryptoAdapter) WithAmountTags(next func() int64) *CryptoAdapter {
	a.tag = next
	return a
}

// CreatePaymentIntent builds a pending crypto payment for the fee owed on loan.
// The expected amount is the fee rounded up at the currency's precision plus a
// random tag of 1 to 999 units in the last place. Addresses are shared per currency,
// so the tag is what tells two intents for the same fee apart; the store refuses
// two pending intents with the same amount and callers draw again.
func (a *CryptoAdapter) CreatePaymentIntent(loan *domain.LoanApplication, currency domain.CryptoCurrency) (*domain.PaymentRecord, error) {
	if !currency.Supported() {
		return nil, customError.WrapFieldError("currency", "must be one of: BTC ETH USDT USDC")
	}

	address, ok := a.addresses[currency]
	if !ok || address == "" {
		return nil, customError.WrapFieldError("currency", fmt.Sprintf("%s payments are not configured", currency))
	}
	rate, ok := a.rates[currency]
	if !ok || !rate.IsPositive() {
		return nil, customError.WrapFieldError("currency", fmt.Sprintf("no exchange rate for %s", currency))
	}

	fee := loan.FeeOwed()
	if fee <= 0 {
		return nil, customError.WrapInvalidState(fmt.Sprintf("loan %s has no processing fee to pay", loan.ReferenceNumber))
	}

	now := a.now().UTC()
	return &domain.PaymentRecord{
		ID:                   uuid.New(),
		LoanID:               loan.ID,
		PaymentMethod:        domain.PaymentMethodCrypto,
		Status:               domain.PaymentStatusPending,
		Amount:               fee,
		TransactionID:        domain.NewTransactionID(),
		Currency:             currency,
		DestinationAddress:   address,
		ExpectedCryptoAmount: a.expectedAmount(fee, rate, currency.Precision()),
		ExchangeRate:         rate,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func (a *CryptoAdapter) expectedAmount(cents int64, rate decimal.Decimal, places int32) decimal.Decimal {
	tag := decimal.New(a.tag(), -places)
	return utils.ConvertCentsToCrypto(cents, rate, places).Add(tag)
}

// Verify looks for the first transfer of exactly the expected amount that no other
// payment has used. It never mutates payment; a nil result means nothing was found yet.
func (a *CryptoAdapter) Verify(ctx context.Context, payment *domain.PaymentRecord, settled SettledFunc) (*ObservedTx, error) {
	if payment.PaymentMethod != domain.PaymentMethodCrypto {
		return nil, customError.WrapInvalidState("only crypto payments can be verified on chain")
	}

	txs, err := a.observer.LookupTransactions(ctx, TxQuery{
		Currency: payment.Currency,
		Address:  payment.DestinationAddress,
		Amount:   payment.ExpectedCryptoAmount,
		Since:    payment.CreatedAt,
	})
	if err != nil {
		if _, ok := customError.As(err); ok {
			return nil, err
		}
		return nil, customError.WrapProviderError(customError.ProviderTransient, "blockchain observer unavailable", err)
	}

	for _, tx := range txs {
		if tx.Hash == "" || !tx.Amount.Equal(payment.ExpectedCryptoAmount) || tx.ObservedAt.Before(payment.CreatedAt) {
			continue
		}
		if settled != nil {
			used, err := settled(ctx, tx.Hash)
			if err != nil {
				return nil, customError.WrapDatabaseError(err)
			}
			if used {
				continue
			}
		}
		found := tx
		return &found, nil
	}
	return nil, nil
}

// StaticObserver serves transfers registered with Record. It backs development
// setups and tests.
type StaticObserver struct {
	mu  sync.Mutex
	txs map[string][]ObservedTx
}

func NewStaticObserver() *StaticObserver {
	return &StaticObserver{txs: map[string][]ObservedTx{}}
}

func staticKey(currency domain.CryptoCurrency, address string) string {
	return string(currency) + ":" + address
}

// Record registers a transfer to address.
func (o *StaticObserver) Record(currency domain.CryptoCurrency, address string, tx ObservedTx) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := staticKey(currency, address)
	o.txs[key] = append(o.txs[key], tx)
}

func (o *StaticObserver) LookupTransactions(ctx context.Context, q TxQuery) ([]ObservedTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var matches []ObservedTx
	for _, tx := range o.txs[staticKey(q.Currency, q.Address)] {
		if tx.ObservedAt.Before(q.Since) || !tx.Amount.Equal(q.Amount) {
			continue
		}
		matches = append(matches, tx)
	}
	return matches, nil
}
