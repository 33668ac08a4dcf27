package txn

import (
	"context"
	"time"

	"github.com/flowmint/flowpay/logger"
	"github.com/flowmint/flowpay/metrics"
	"github.com/flowmint/flowpay/types"
)

// StatusAPI is the slice of the access client the poller needs.
type StatusAPI interface {
	GetTransaction(ctx context.Context, id string) (*types.TransactionResult, error)
}

const (
	// DefaultPollInterval is the fixed wait between status polls.
	DefaultPollInterval = 2 * time.Second
	// DefaultPollAttempts bounds the poll loop; with the default interval
	// this gives roughly a one minute ceiling.
	DefaultPollAttempts = 30
)

// Poller waits for a submitted transaction to reach a terminal status.
// Transient errors while polling are not terminal: an attempt is consumed
// and the loop continues, so only an explicit expired status, a sealed
// result, or budget exhaustion ends the wait.
type Poller struct {
	api      StatusAPI
	interval time.Duration
	attempts int
	log      logger.Logger
	rec      metrics.Recorder
}

func NewPoller(api StatusAPI, interval time.Duration, attempts int, log logger.Logger, rec metrics.Recorder) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Poller{api: api, interval: interval, attempts: attempts, log: log, rec: rec}
}

// WaitForSeal polls the transaction until it seals, expires, or the attempt
// budget runs out. The caller's context cancels the wait between polls, so
// an abandoned purchase does not leak a timer.
func (p *Poller) WaitForSeal(ctx context.Context, id string) (*types.TransactionResult, error) {
	start := time.Now()

	for attempt := 1; attempt <= p.attempts; attempt++ {
		result, err := p.api.GetTransaction(ctx, id)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Transient: a flaky endpoint or a not-yet-indexed
			// transaction must not be conflated with expiry.
			p.log.Warn("status poll failed", map[string]any{
				"txId":    types.ShortID(id),
				"attempt": attempt,
				"error":   err.Error(),
			})

		case result.Status == types.StatusExpired:
			p.rec.IncCounter(metrics.EventPollExpired, nil)
			return nil, types.NewError(types.ErrTransactionExpired, "transaction expired before sealing")

		case result.Status >= types.StatusSealed:
			if result.StatusCode != 0 {
				p.rec.IncCounter(metrics.EventPollSealed, map[string]string{"outcome": "failed"})
				return nil, &types.FlowPayError{
					Code:    types.ErrExecutionFailed,
					Message: result.ErrorMessage,
				}
			}
			p.rec.IncCounter(metrics.EventPollSealed, map[string]string{"outcome": "ok"})
			p.rec.ObserveLatency("confirmation", time.Since(start), map[string]string{"outcome": "ok"})
			p.log.Info("transaction sealed", map[string]any{
				"txId":     types.ShortID(id),
				"attempts": attempt,
			})
			return result, nil

		default:
			p.log.Debug("transaction not yet sealed", map[string]any{
				"txId":    types.ShortID(id),
				"status":  result.Status.String(),
				"attempt": attempt,
			})
		}

		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.interval):
		}
	}

	p.rec.IncCounter(metrics.EventPollTimeout, nil)
	return nil, types.NewError(types.ErrConfirmationTimeout, "transaction confirmation timed out")
}
