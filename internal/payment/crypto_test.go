package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
)

type failingObserver struct{ err error }

func (o failingObserver) LookupTransactions(ctx context.Context, q TxQuery) ([]ObservedTx, error) {
	return nil, o.err
}

func fixedTag(tag int64) func() int64 {
	return func() int64 { return tag }
}

func noneSettled(ctx context.Context, hash string) (bool, error) {
	return false, nil
}

func testRates() map[domain.CryptoCurrency]decimal.Decimal {
	return map[domain.CryptoCurrency]decimal.Decimal{
		domain.CurrencyBTC:  decimal.NewFromInt(60000),
		domain.CurrencyETH:  decimal.NewFromInt(3000),
		domain.CurrencyUSDT: decimal.NewFromInt(1),
		domain.CurrencyUSDC: decimal.NewFromInt(1),
	}
}

func testAddresses() map[domain.CryptoCurrency]string {
	return map[domain.CryptoCurrency]string{
		domain.CurrencyBTC:  "bc1qfeeaddress",
		domain.CurrencyETH:  "0xfeeaddress",
		domain.CurrencyUSDT: "0xusdtaddress",
	}
}

func TestCryptoAdapter_CreatePaymentIntent(t *testing.T) {
	adapter := NewCryptoAdapter(NewStaticObserver(), testRates(), testAddresses()).WithAmountTags(fixedTag(7))
	loan := feePendingLoan()

	tests := []struct {
		currency domain.CryptoCurrency
		expected string
	}{
		// $100.00 / 60000 = 0.0016666666... rounded up at 8 places, plus 7 units of tag
		{domain.CurrencyBTC, "0.00166674"},
		{domain.CurrencyETH, "0.03333341"},
		{domain.CurrencyUSDT, "100.000007"},
	}

	for _, tt := range tests {
		t.Run(string(tt.currency), func(t *testing.T) {
			record, err := adapter.CreatePaymentIntent(loan, tt.currency)
			require.NoError(t, err)
			assert.Equal(t, domain.PaymentStatusPending, record.Status)
			assert.Equal(t, domain.PaymentMethodCrypto, record.PaymentMethod)
			assert.Equal(t, int64(10000), record.Amount)
			assert.Equal(t, testAddresses()[tt.currency], record.DestinationAddress)
			assert.True(t, record.ExpectedCryptoAmount.Equal(decimal.RequireFromString(tt.expected)),
				"got %s", record.ExpectedCryptoAmount)
			assert.Nil(t, record.TxHash)
		})
	}
}

func TestCryptoAdapter_CreatePaymentIntentTagsAmounts(t *testing.T) {
	adapter := NewCryptoAdapter(NewStaticObserver(), testRates(), testAddresses())
	base := decimal.RequireFromString("0.00166667")
	unit := decimal.New(1, -8)

	for i := 0; i < 50; i++ {
		record, err := adapter.CreatePaymentIntent(feePendingLoan(), domain.CurrencyBTC)
		require.NoError(t, err)
		tag := record.ExpectedCryptoAmount.Sub(base).Div(unit)
		assert.True(t, tag.IsInteger())
		assert.True(t, tag.GreaterThanOrEqual(decimal.NewFromInt(1)), "tag %s", tag)
		assert.True(t, tag.LessThanOrEqual(decimal.NewFromInt(maxAmountTag)), "tag %s", tag)
	}
}

func TestCryptoAdapter_CreatePaymentIntentRejectsUnconfigured(t *testing.T) {
	adapter := NewCryptoAdapter(NewStaticObserver(), testRates(), testAddresses())

	_, err := adapter.CreatePaymentIntent(feePendingLoan(), domain.CurrencyUSDC)
	assert.Equal(t, customError.ErrCodeValidation, customError.CodeOf(err))

	_, err = adapter.CreatePaymentIntent(feePendingLoan(), domain.CryptoCurrency("DOGE"))
	assert.Equal(t, customError.ErrCodeValidation, customError.CodeOf(err))
}

func TestCryptoAdapter_Verify(t *testing.T) {
	observer := NewStaticObserver()
	adapter := NewCryptoAdapter(observer, testRates(), testAddresses()).WithAmountTags(fixedTag(1))

	payment, err := adapter.CreatePaymentIntent(feePendingLoan(), domain.CurrencyBTC)
	require.NoError(t, err)
	require.Equal(t, "0.00166668", payment.ExpectedCryptoAmount.String())

	tx, err := adapter.Verify(context.Background(), payment, noneSettled)
	require.NoError(t, err)
	assert.Nil(t, tx)

	// only the exact amount after the intent counts
	later := time.Now().Add(time.Minute)
	observer.Record(domain.CurrencyBTC, "bc1qfeeaddress", ObservedTx{
		Hash: "under", Amount: decimal.RequireFromString("0.00166667"), ObservedAt: later,
	})
	observer.Record(domain.CurrencyBTC, "bc1qfeeaddress", ObservedTx{
		Hash: "other-intent", Amount: decimal.RequireFromString("0.00166669"), ObservedAt: later,
	})
	observer.Record(domain.CurrencyBTC, "bc1qfeeaddress", ObservedTx{
		Hash: "early", Amount: payment.ExpectedCryptoAmount, ObservedAt: payment.CreatedAt.Add(-time.Hour),
	})
	tx, err = adapter.Verify(context.Background(), payment, noneSettled)
	require.NoError(t, err)
	assert.Nil(t, tx)

	observer.Record(domain.CurrencyBTC, "bc1qfeeaddress", ObservedTx{
		Hash: "0xmatch", Amount: decimal.RequireFromString("0.00166668"), ObservedAt: later,
	})
	tx, err = adapter.Verify(context.Background(), payment, noneSettled)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, "0xmatch", tx.Hash)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
}

func TestCryptoAdapter_VerifySkipsSettledTransactions(t *testing.T) {
	observer := NewStaticObserver()
	adapter := NewCryptoAdapter(observer, testRates(), testAddresses()).WithAmountTags(fixedTag(3))

	payment, err := adapter.CreatePaymentIntent(feePendingLoan(), domain.CurrencyETH)
	require.NoError(t, err)

	later := time.Now().Add(time.Minute)
	observer.Record(domain.CurrencyETH, "0xfeeaddress", ObservedTx{Hash: "0xused", Amount: payment.ExpectedCryptoAmount, ObservedAt: later})
	observer.Record(domain.CurrencyETH, "0xfeeaddress", ObservedTx{Hash: "0xfresh", Amount: payment.ExpectedCryptoAmount, ObservedAt: later})

	settled := func(ctx context.Context, hash string) (bool, error) {
		return hash == "0xused", nil
	}
	tx, err := adapter.Verify(context.Background(), payment, settled)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, "0xfresh", tx.Hash)

	broken := func(ctx context.Context, hash string) (bool, error) {
		return false, errors.New("connection reset")
	}
	_, err = adapter.Verify(context.Background(), payment, broken)
	assert.Equal(t, customError.ErrCodeDatabaseError, customError.CodeOf(err))
}

func TestCryptoAdapter_VerifyObserverFailure(t *testing.T) {
	adapter := NewCryptoAdapter(failingObserver{err: errors.New("dial tcp: timeout")}, testRates(), testAddresses())
	payment, err := adapter.CreatePaymentIntent(feePendingLoan(), domain.CurrencyETH)
	require.NoError(t, err)

	_, err = adapter.Verify(context.Background(), payment, noneSettled)
	be, ok := customError.As(err)
	require.True(t, ok)
	assert.Equal(t, customError.ProviderTransient, be.Kind)
}
