package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/mocks"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/payment"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
)

func TestPayFeeByCard_Succeeded(t *testing.T) {
	h := newHarness(t)
	loan := h.approved(t, 500000)

	res, err := h.payments.PayFeeByCard(context.Background(), applicant, loan.ID, "tok_visa")

	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusFeePaid, res.Loan.Status)
	assert.True(t, res.Loan.ProcessingFeePaid)
	assert.Equal(t, domain.PaymentStatusSucceeded, res.Payment.Status)
	assert.Equal(t, int64(10000), res.Payment.Amount)
	assert.Regexp(t, `^txn_`, res.Payment.TransactionID)

	_, err = h.payments.PayFeeByCard(context.Background(), applicant, loan.ID, "tok_visa")
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.CodeOf(err))
}

func TestPayFeeByCard_BeforeApproval(t *testing.T) {
	h := newHarness(t)
	loan := h.submit(t)

	_, err := h.payments.PayFeeByCard(context.Background(), applicant, loan.ID, "tok_visa")

	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.CodeOf(err))
}

func TestPayFeeByCard_Forbidden(t *testing.T) {
	h := newHarness(t)
	loan := h.approved(t, 500000)

	_, err := h.payments.PayFeeByCard(context.Background(), stranger, loan.ID, "tok_visa")

	assert.Equal(t, customError.ErrCodeForbidden, customError.CodeOf(err))
}

func TestPayFeeByCard_DeclineThenRetry(t *testing.T) {
	gw := &mocks.MockCardGateway{}
	h := newHarness(t, withGateway(gw))
	ctx := context.Background()
	loan := h.approved(t, 500000)

	gw.On("Charge", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
		return req.IdempotencyKey == loan.ReferenceNumber+":fee:attempt0"
	})).Return(nil, &payment.GatewayError{Kind: customError.ProviderDeclined, Message: "Do not honor"}).Once()
	gw.On("Charge", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
		return req.IdempotencyKey == loan.ReferenceNumber+":fee:attempt1" && req.AmountCents == 10000
	})).Return(&payment.ChargeResult{Reference: "ch_ok", Brand: "visa", Last4: "1111"}, nil).Once()

	_, err := h.payments.PayFeeByCard(ctx, applicant, loan.ID, "tok_visa")
	be, ok := customError.As(err)
	require.True(t, ok)
	assert.Equal(t, customError.ProviderDeclined, be.Kind)
	assert.Equal(t, "Do not honor", be.Message)

	payments, err := h.payments.ListPayments(ctx, applicant, loan.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusFailed, payments[0].Status)
	assert.Equal(t, "Do not honor", payments[0].FailureReason)
	assert.Equal(t, domain.LoanStatusFeePending, h.loan(t, loan.ID).Status)

	res, err := h.payments.PayFeeByCard(ctx, applicant, loan.ID, "tok_visa")
	require.NoError(t, err)
	assert.Equal(t, "ch_ok", res.Payment.ProcessorReference)
	gw.AssertExpectations(t)
}

func TestPayFeeByCard_TransientPersistsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loan := h.approved(t, 500000)

	_, err := h.payments.PayFeeByCard(ctx, applicant, loan.ID, payment.TokenTransient)
	be, ok := customError.As(err)
	require.True(t, ok)
	assert.True(t, be.Retriable())

	payments, err := h.payments.ListPayments(ctx, admin, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCreateCryptoIntent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loan := h.approved(t, 500000)
	h.useAmountTags(2)

	intent, err := h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, "btc")
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyBTC, intent.Currency)
	assert.Equal(t, "bc1qfee", intent.Address)
	assert.True(t, intent.ExpectedAmount.Equal(decimal.RequireFromString("0.00166669")))
	assert.Equal(t, int64(10000), intent.FeeAmount)

	again, err := h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, domain.CurrencyBTC)
	require.NoError(t, err)
	assert.Equal(t, intent.PaymentID, again.PaymentID)

	_, err = h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, domain.CurrencyETH)
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.CodeOf(err))

	_, err = h.payments.PayFeeByCard(ctx, applicant, loan.ID, "tok_visa")
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.CodeOf(err))

	_, err = h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, "DOGE")
	assert.Equal(t, customError.ErrCodeValidation, customError.CodeOf(err))
}

func TestVerifyCryptoPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loan := h.approved(t, 500000)

	intent, err := h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, domain.CurrencyUSDC)
	require.NoError(t, err)

	res, err := h.payments.VerifyCryptoPayment(ctx, applicant, intent.PaymentID)
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, domain.PaymentStatusPending, res.Payment.Status)
	assert.Equal(t, domain.LoanStatusFeePending, h.loan(t, loan.ID).Status)

	h.sendCrypto(intent, "0xsettle")

	res, err = h.payments.VerifyCryptoPayment(ctx, applicant, intent.PaymentID)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.True(t, res.Transitioned)
	require.NotNil(t, res.Payment.TxHash)
	assert.Equal(t, "0xsettle", *res.Payment.TxHash)

	after := h.loan(t, loan.ID)
	assert.Equal(t, domain.LoanStatusFeePaid, after.Status)
	assert.True(t, after.ProcessingFeePaid)
	assert.False(t, after.PaymentVerified())

	res, err = h.payments.VerifyCryptoPayment(ctx, applicant, intent.PaymentID)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.False(t, res.Transitioned)
}

func TestVerifyCryptoPayment_ConcurrentCallsTransitionOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loan := h.approved(t, 500000)

	intent, err := h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, domain.CurrencyETH)
	require.NoError(t, err)
	h.sendCrypto(intent, "0xrace")

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions, verified := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.payments.VerifyCryptoPayment(ctx, applicant, intent.PaymentID)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Verified {
				verified++
			}
			if res.Transitioned {
				transitions++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, verified)
	assert.Equal(t, 1, transitions)
	assert.Equal(t, domain.LoanStatusFeePaid, h.loan(t, loan.ID).Status)
}

func TestVerifyCryptoPayment_TxHashSettlesOnePayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.approved(t, 500000)
	second := h.approved(t, 500000)

	intentA, err := h.payments.CreateCryptoIntent(ctx, applicant, first.ID, domain.CurrencyUSDT)
	require.NoError(t, err)
	intentB, err := h.payments.CreateCryptoIntent(ctx, applicant, second.ID, domain.CurrencyUSDT)
	require.NoError(t, err)
	h.sendCrypto(intentA, "0xshared")

	resA, err := h.payments.VerifyCryptoPayment(ctx, applicant, intentA.PaymentID)
	require.NoError(t, err)
	assert.True(t, resA.Transitioned)

	resB, err := h.payments.VerifyCryptoPayment(ctx, applicant, intentB.PaymentID)
	require.NoError(t, err)
	assert.False(t, resB.Verified)
	assert.Equal(t, domain.LoanStatusFeePending, h.loan(t, second.ID).Status)
}

func TestVerifyCryptoPayment_SameFeeIntentsOnlyMatchTheirOwnTransfer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loanA := h.approved(t, 500000)
	loanB := h.approved(t, 500000)

	intentA, err := h.payments.CreateCryptoIntent(ctx, applicant, loanA.ID, domain.CurrencyBTC)
	require.NoError(t, err)
	intentB, err := h.payments.CreateCryptoIntent(ctx, applicant, loanB.ID, domain.CurrencyBTC)
	require.NoError(t, err)

	// same fee, same shared address, different amounts
	require.Equal(t, intentA.Address, intentB.Address)
	require.Equal(t, intentA.FeeAmount, intentB.FeeAmount)
	assert.False(t, intentA.ExpectedAmount.Equal(intentB.ExpectedAmount))

	h.sendCrypto(intentB, "0xB-paid")

	resA, err := h.payments.VerifyCryptoPayment(ctx, applicant, intentA.PaymentID)
	require.NoError(t, err)
	assert.False(t, resA.Verified)
	assert.Equal(t, domain.LoanStatusFeePending, h.loan(t, loanA.ID).Status)

	resB, err := h.payments.VerifyCryptoPayment(ctx, applicant, intentB.PaymentID)
	require.NoError(t, err)
	assert.True(t, resB.Verified)
	assert.True(t, resB.Transitioned)
	require.NotNil(t, resB.Payment.TxHash)
	assert.Equal(t, "0xB-paid", *resB.Payment.TxHash)
	assert.Equal(t, domain.LoanStatusFeePaid, h.loan(t, loanB.ID).Status)
}

func TestVerifyCryptoPayment_SkipsTransactionSettledEarlier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.useAmountTags(5)
	loanA := h.approved(t, 500000)
	loanB := h.approved(t, 500000)

	intentA, err := h.payments.CreateCryptoIntent(ctx, applicant, loanA.ID, domain.CurrencyBTC)
	require.NoError(t, err)
	h.sendCrypto(intentA, "0xA")
	resA, err := h.payments.VerifyCryptoPayment(ctx, applicant, intentA.PaymentID)
	require.NoError(t, err)
	require.True(t, resA.Transitioned)

	// A settled, so its amount is free again and B draws it
	intentB, err := h.payments.CreateCryptoIntent(ctx, applicant, loanB.ID, domain.CurrencyBTC)
	require.NoError(t, err)
	require.True(t, intentA.ExpectedAmount.Equal(intentB.ExpectedAmount))

	resB, err := h.payments.VerifyCryptoPayment(ctx, applicant, intentB.PaymentID)
	require.NoError(t, err)
	assert.False(t, resB.Verified)

	h.sendCrypto(intentB, "0xB")
	resB, err = h.payments.VerifyCryptoPayment(ctx, applicant, intentB.PaymentID)
	require.NoError(t, err)
	assert.True(t, resB.Transitioned)
	require.NotNil(t, resB.Payment.TxHash)
	assert.Equal(t, "0xB", *resB.Payment.TxHash)
}

func TestCreateCryptoIntent_RedrawsTakenAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loanA := h.approved(t, 500000)
	loanB := h.approved(t, 500000)

	h.useAmountTags(4, 4, 9)
	intentA, err := h.payments.CreateCryptoIntent(ctx, applicant, loanA.ID, domain.CurrencyBTC)
	require.NoError(t, err)
	intentB, err := h.payments.CreateCryptoIntent(ctx, applicant, loanB.ID, domain.CurrencyBTC)
	require.NoError(t, err)

	unit := decimal.New(1, -8)
	assert.True(t, intentB.ExpectedAmount.Sub(intentA.ExpectedAmount).Equal(unit.Mul(decimal.NewFromInt(5))),
		"A=%s B=%s", intentA.ExpectedAmount, intentB.ExpectedAmount)
}

func TestCreateCryptoIntent_GivesUpWhenEveryTagIsTaken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loanA := h.approved(t, 500000)
	loanB := h.approved(t, 500000)

	h.useAmountTags(4)
	_, err := h.payments.CreateCryptoIntent(ctx, applicant, loanA.ID, domain.CurrencyBTC)
	require.NoError(t, err)

	_, err = h.payments.CreateCryptoIntent(ctx, applicant, loanB.ID, domain.CurrencyBTC)
	be, ok := customError.As(err)
	require.True(t, ok)
	assert.Equal(t, customError.ErrCodeLockUnavailable, be.Code)
	assert.True(t, be.Retriable())

	payments, err := h.payments.ListPayments(ctx, admin, loanB.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestVerifyCryptoPayment_ObserverError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loan := h.approved(t, 500000)

	observer := &mocks.MockBlockchainObserver{}
	observer.On("LookupTransactions", mock.Anything, mock.Anything).
		Return(nil, customError.WrapProviderError(customError.ProviderTransient, "explorer down", errors.New("502")))
	h.payments.crypto = payment.NewCryptoAdapter(observer,
		map[domain.CryptoCurrency]decimal.Decimal{domain.CurrencyBTC: decimal.NewFromInt(60000)},
		map[domain.CryptoCurrency]string{domain.CurrencyBTC: "bc1qfee"},
	)

	intent, err := h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, domain.CurrencyBTC)
	require.NoError(t, err)

	_, err = h.payments.VerifyCryptoPayment(ctx, applicant, intent.PaymentID)
	be, ok := customError.As(err)
	require.True(t, ok)
	assert.Equal(t, customError.ErrCodeProviderError, be.Code)
	assert.True(t, be.Retriable())
}

func TestCryptoFeeNeedsAdminVerificationBeforeDisbursement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loan := h.approved(t, 500000)

	intent, err := h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, domain.CurrencyBTC)
	require.NoError(t, err)
	h.sendCrypto(intent, "0xbtc")
	_, err = h.payments.VerifyCryptoPayment(ctx, applicant, intent.PaymentID)
	require.NoError(t, err)

	_, err = h.loans.InitiateDisbursement(ctx, admin, loan.ID, bank)
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.CodeOf(err))

	_, err = h.loans.AdminVerifyPayment(ctx, admin, loan.ID, "confirmed on explorer")
	require.NoError(t, err)

	res, err := h.loans.InitiateDisbursement(ctx, admin, loan.ID, bank)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusDisbursed, res.Loan.Status)
}

func TestMarkPaymentFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loan := h.approved(t, 500000)

	intent, err := h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, domain.CurrencyBTC)
	require.NoError(t, err)

	_, err = h.payments.MarkPaymentFailed(ctx, applicant, intent.PaymentID, "abandoned")
	assert.Equal(t, customError.ErrCodeForbidden, customError.CodeOf(err))

	res, err := h.payments.MarkPaymentFailed(ctx, admin, intent.PaymentID, "abandoned")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, res.Payment.Status)

	_, err = h.payments.MarkPaymentFailed(ctx, admin, intent.PaymentID, "again")
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.CodeOf(err))

	other, err := h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, domain.CurrencyETH)
	require.NoError(t, err)
	assert.NotEqual(t, intent.PaymentID, other.PaymentID)
}

func TestRefundPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	loan := h.approved(t, 500000)

	intent, err := h.payments.CreateCryptoIntent(ctx, applicant, loan.ID, domain.CurrencyUSDT)
	require.NoError(t, err)

	_, err = h.loans.Cancel(ctx, admin, loan.ID, "applicant withdrew")
	require.NoError(t, err)

	// the transfer lands after cancellation
	h.sendCrypto(intent, "0xlate")
	res, err := h.payments.VerifyCryptoPayment(ctx, admin, intent.PaymentID)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.False(t, res.Transitioned)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, domain.LoanStatusCancelled, h.loan(t, loan.ID).Status)

	_, err = h.payments.RefundPayment(ctx, admin, intent.PaymentID, "")
	assert.Equal(t, customError.ErrCodeValidation, customError.CodeOf(err))

	refund, err := h.payments.RefundPayment(ctx, admin, intent.PaymentID, "loan cancelled")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, refund.Payment.Status)
}

func TestRefundPayment_OnlyCancelledLoans(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.feePaidByCard(t)

	payments, err := h.payments.ListPayments(ctx, admin, 1)
	require.NoError(t, err)
	require.Len(t, payments, 1)

	_, err = h.payments.RefundPayment(ctx, admin, payments[0].ID, "goodwill")
	assert.Equal(t, customError.ErrCodeInvalidTransition, customError.CodeOf(err))
}

func TestPollPendingCrypto(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	paid := h.approved(t, 500000)
	unpaid := h.approved(t, 300000)

	paidIntent, err := h.payments.CreateCryptoIntent(ctx, applicant, paid.ID, domain.CurrencyBTC)
	require.NoError(t, err)
	_, err = h.payments.CreateCryptoIntent(ctx, applicant, unpaid.ID, domain.CurrencyETH)
	require.NoError(t, err)
	h.sendCrypto(paidIntent, "0xpoll")

	summary, err := h.payments.PollPendingCrypto(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Verified)
	assert.Equal(t, 0, summary.Errors)
	assert.Equal(t, domain.LoanStatusFeePaid, h.loan(t, paid.ID).Status)
	assert.Equal(t, domain.LoanStatusFeePending, h.loan(t, unpaid.ID).Status)
}
