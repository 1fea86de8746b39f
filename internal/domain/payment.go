package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCrypto PaymentMethod = "crypto"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type CryptoCurrency string

const (
	CurrencyBTC  CryptoCurrency = "BTC"
	CurrencyETH  CryptoCurrency = "ETH"
	CurrencyUSDT CryptoCurrency = "USDT"
	CurrencyUSDC CryptoCurrency = "USDC"
)

// SupportedCurrencies lists the crypto rails accepted for the processing fee.
var SupportedCurrencies = []CryptoCurrency{CurrencyBTC, CurrencyETH, CurrencyUSDT, CurrencyUSDC}

// Precision is the number of decimal places quoted for the currency.
func (c CryptoCurrency) Precision() int32 {
	switch c {
	case CurrencyUSDT, CurrencyUSDC:
		return 6
	default:
		return 8
	}
}

func (c CryptoCurrency) Supported() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// PaymentRecord is the processing fee payment of one loan application.
type PaymentRecord struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	LoanID        int64         `json:"loan_id" db:"loan_id"`
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	Status        PaymentStatus `json:"status" db:"status"`
	Amount        int64         `json:"amount" db:"amount"`
	TransactionID string        `json:"transaction_id" db:"transaction_id"`

	// card
	ProcessorReference string `json:"processor_reference,omitempty" db:"processor_reference"`
	CardBrand          string `json:"card_brand,omitempty" db:"card_brand"`
	CardLast4          string `json:"card_last4,omitempty" db:"card_last4"`

	// crypto
	Currency             CryptoCurrency  `json:"currency,omitempty" db:"currency"`
	DestinationAddress   string          `json:"destination_address,omitempty" db:"destination_address"`
	ExpectedCryptoAmount decimal.Decimal `json:"expected_crypto_amount" db:"expected_crypto_amount"`
	ExchangeRate         decimal.Decimal `json:"exchange_rate" db:"exchange_rate"`
	TxHash               *string         `json:"tx_hash,omitempty" db:"tx_hash"`

	FailureReason string     `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	SucceededAt   *time.Time `json:"succeeded_at,omitempty" db:"succeeded_at"`
}

// NewTransactionID returns the internal transaction identifier of a payment attempt.
func NewTransactionID() string {
	return "txn_" + uuid.NewString()
}

type CardPaymentRequest struct {
	CardToken string `json:"card_token" validate:"required"`
}

type CryptoIntentRequest struct {
	Currency CryptoCurrency `json:"currency" validate:"required,oneof=BTC ETH USDT USDC"`
}

// PaymentIntent is what the applicant needs to send a crypto payment.
type PaymentIntent struct {
	PaymentID      uuid.UUID       `json:"payment_id"`
	Address        string          `json:"address"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	Currency       CryptoCurrency  `json:"currency"`
	FeeAmount      int64           `json:"fee_amount"`
}

type VerifyResult struct {
	Verified bool           `json:"verified"`
	Payment  *PaymentRecord `json:"payment"`
	// Transitioned is true only for the call that moved the loan to fee_paid.
	Transitioned bool   `json:"transitioned"`
	Warning      string `json:"warning,omitempty"`
}

// PaymentResult is returned by a synchronous card payment.
type PaymentResult struct {
	Payment *PaymentRecord   `json:"payment"`
	Loan    *LoanApplication `json:"loan"`
	Warning string           `json:"warning,omitempty"`
}

// PollSummary reports one pass of the pending crypto poller.
type PollSummary struct {
	Checked  int `json:"checked"`
	Verified int `json:"verified"`
	Errors   int `json:"errors"`
}
