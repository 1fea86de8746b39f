package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
)

// CryptoPoller verifies pending crypto payments.
type CryptoPoller interface {
	PollPendingCrypto(ctx context.Context) (*domain.PollSummary, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	poller  CryptoPoller
	logger  *slog.Logger
	timeout time.Duration
}

func NewJobs(poller CryptoPoller, logger *slog.Logger, timeout time.Duration) *Jobs {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Jobs{poller: poller, logger: logger, timeout: timeout}
}

// PollCryptoPayments checks every pending crypto payment against the chain.
func (j *Jobs) PollCryptoPayments() {
	j.logger.Info("starting crypto payment poll job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	summary, err := j.poller.PollPendingCrypto(ctx)
	if err != nil {
		j.logger.Error("crypto payment poll failed", "error", err)
		return
	}

	j.logger.Info("crypto payment poll job finished",
		"checked", summary.Checked,
		"verified", summary.Verified,
		"errors", summary.Errors,
	)
}
