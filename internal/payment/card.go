package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
)

// ChargeRequest is sent to the card gateway. AmountCents is in USD minor units.
type ChargeRequest struct {
	Token          string
	AmountCents    int64
	IdempotencyKey string
	Description    string
}

type ChargeResult struct {
	Reference string
	Brand     string
	Last4     string
}

// CardGateway is the card processor. Charges with the same IdempotencyKey must not
// be captured twice.
type CardGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// GatewayError is returned by gateways for failures they can classify.
// Anything else is treated as transient.
type GatewayError struct {
	Kind    customError.ProviderErrorKind
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s", e.Kind, e.Message)
}

// CardAdapter charges the processing fee on a tokenized card.
type CardAdapter struct {
	gateway CardGateway
	now     func() time.Time
}

func NewCardAdapter(gateway CardGateway) *CardAdapter {
	return &CardAdapter{gateway: gateway, now: time.Now}
}

// IdempotencyKey identifies one charge attempt. Retrying after a transient failure
// reuses the key; a new attempt after a decline gets a new one.
func IdempotencyKey(reference string, attempt int) string {
	return fmt.Sprintf("%s:fee:attempt%d", reference, attempt)
}

// Charge runs one synchronous charge for the fee owed on loan.
// On a decline the failed record is returned together with the PROVIDER_ERROR so the
// caller can persist it. Transient failures return no record.
func (a *CardAdapter) Charge(ctx context.Context, loan *domain.LoanApplication, token string, attempt int) (*domain.PaymentRecord, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, customError.WrapFieldError("card_token", "is required")
	}
	if looksLikeCardNumber(token) {
		return nil, customError.WrapFieldError("card_token", "raw card numbers are not accepted, send a gateway token")
	}

	fee := loan.FeeOwed()
	if fee <= 0 {
		return nil, customError.WrapInvalidState(fmt.Sprintf("loan %s has no processing fee to pay", loan.ReferenceNumber))
	}

	now := a.now().UTC()
	record := &domain.PaymentRecord{
		ID:            uuid.New(),
		LoanID:        loan.ID,
		PaymentMethod: domain.PaymentMethodCard,
		Amount:        fee,
		TransactionID: domain.NewTransactionID(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result, err := a.gateway.Charge(ctx, ChargeRequest{
		Token:          token,
		AmountCents:    fee,
		IdempotencyKey: IdempotencyKey(loan.ReferenceNumber, attempt),
		Description:    "Processing fee " + loan.ReferenceNumber,
	})
	if err != nil {
		var gerr *GatewayError
		if errors.As(err, &gerr) && gerr.Kind == customError.ProviderDeclined {
			record.Status = domain.PaymentStatusFailed
			record.FailureReason = gerr.Message
			return record, customError.WrapProviderError(customError.ProviderDeclined, gerr.Message, err)
		}
		if gerr != nil {
			return nil, customError.WrapProviderError(gerr.Kind, gerr.Message, err)
		}
		return nil, customError.WrapProviderError(customError.ProviderTransient, "card processor unavailable, please retry", err)
	}

	record.Status = domain.PaymentStatusSucceeded
	record.ProcessorReference = result.Reference
	record.CardBrand = result.Brand
	record.CardLast4 = result.Last4
	record.SucceededAt = &now
	return record, nil
}

// looksLikeCardNumber catches a PAN pasted where a token belongs.
func looksLikeCardNumber(token string) bool {
	digits := make([]int, 0, len(token))
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == ' ' || r == '-':
		default:
			return false
		}
	}
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}
	return luhnValid(digits)
}

func luhnValid(digits []int) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Sandbox tokens understood by SandboxGateway.
const (
	TokenDeclined          = "tok_chargeDeclined"
	TokenInsufficientFunds = "tok_chargeDeclinedInsufficientFunds"
	TokenTransient         = "tok_transientError"
)

// SandboxGateway approves every token except the sandbox failure tokens.
// Results are remembered per idempotency key.
type SandboxGateway struct {
	mu      sync.Mutex
	charges map[string]*ChargeResult
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{charges: map[string]*ChargeResult{}}
}

func (g *SandboxGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch req.Token {
	case TokenDeclined:
		return nil, &GatewayError{Kind: customError.ProviderDeclined, Message: "Your card was declined."}
	case TokenInsufficientFunds:
		return nil, &GatewayError{Kind: customError.ProviderDeclined, Message: "Your card has insufficient funds."}
	case TokenTransient:
		return nil, &GatewayError{Kind: customError.ProviderTransient, Message: "card processor timed out"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if prior, ok := g.charges[req.IdempotencyKey]; ok {
		return prior, nil
	}

	brand := "visa"
	if strings.Contains(req.Token, "mastercard") {
		brand = "mastercard"
	} else if strings.Contains(req.Token, "amex") {
		brand = "amex"
	}

	result := &ChargeResult{
		Reference: "ch_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
		Brand:     brand,
		Last4:     "4242",
	}
	g.charges[req.IdempotencyKey] = result
	return result, nil
}
