package payment

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// TransferRequest moves AmountCents to the applicant's bank account.
type TransferRequest struct {
	IdempotencyKey    string
	AmountCents       int64
	AccountHolderName string
	AccountNumber     string
	RoutingNumber     string
	BankName          string
	Memo              string
}

// BankingRail sends disbursements. Transfers with the same IdempotencyKey are sent once
// and return the original rail reference.
type BankingRail interface {
	Transfer(ctx context.Context, req TransferRequest) (string, error)
}

// SandboxRoutingUnavailable makes SandboxRail fail as if the rail were down.
const SandboxRoutingUnavailable = "000000000"

var ErrRailUnavailable = errors.New("banking rail unavailable")

// SandboxRail accepts every transfer except those to SandboxRoutingUnavailable.
type SandboxRail struct {
	mu        sync.Mutex
	transfers map[string]string
}

func NewSandboxRail() *SandboxRail {
	return &SandboxRail{transfers: map[string]string{}}
}

func (r *SandboxRail) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.RoutingNumber == SandboxRoutingUnavailable {
		return "", ErrRailUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ref, ok := r.transfers[req.IdempotencyKey]; ok {
		return ref, nil
	}
	ref := "ach_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	r.transfers[req.IdempotencyKey] = ref
	return ref, nil
}

// Transfers reports how many distinct transfers were sent.
func (r *SandboxRail) Transfers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transfers)
}
