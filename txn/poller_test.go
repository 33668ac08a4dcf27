package txn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flowmint/flowpay/access"
	"github.com/flowmint/flowpay/types"
)

type submitAPIFunc func() (string, error)

func (f submitAPIFunc) SendTransaction(context.Context, *access.SubmitTransaction) (string, error) {
	return f()
}

type pollStep struct {
	res *types.TransactionResult
	err error
}

type scriptedStatusAPI struct {
	steps []pollStep
	calls int
}

func (s *scriptedStatusAPI) GetTransaction(context.Context, string) (*types.TransactionResult, error) {
	step := s.steps[len(s.steps)-1]
	if s.calls < len(s.steps) {
		step = s.steps[s.calls]
	}
	s.calls++
	return step.res, step.err
}

func status(st types.TransactionStatus, code int) pollStep {
	return pollStep{res: &types.TransactionResult{Status: st, StatusCode: code}}
}

const testTxID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestPollerSucceedsAfterProgression(t *testing.T) {
	api := &scriptedStatusAPI{steps: []pollStep{
		status(types.StatusPending, 0),
		status(types.StatusPending, 0),
		status(types.StatusSealed, 0),
	}}

	interval := 10 * time.Millisecond
	start := time.Now()
	result, err := NewPoller(api, interval, 30, nil, nil).WaitForSeal(t.Context(), testTxID)
	if err != nil {
		t.Fatalf("wait for seal: %v", err)
	}
	if api.calls != 3 {
		t.Fatalf("polled %d times, want exactly 3", api.calls)
	}
	if result.Status != types.StatusSealed {
		t.Fatalf("result status %v, want sealed", result.Status)
	}
	// Two sleeps between three polls.
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Fatalf("returned after %v, want at least %v", elapsed, 2*interval)
	}
}

func TestPollerExpiredIsTerminal(t *testing.T) {
	api := &scriptedStatusAPI{steps: []pollStep{
		status(types.StatusPending, 0),
		status(types.StatusExpired, 0),
	}}

	_, err := NewPoller(api, time.Millisecond, 30, nil, nil).WaitForSeal(t.Context(), testTxID)
	if !types.IsCode(err, types.ErrTransactionExpired) {
		t.Fatalf("got %v, want TX_EXPIRED", err)
	}
	if api.calls != 2 {
		t.Fatalf("polled %d times after terminal expiry, want 2", api.calls)
	}
}

func TestPollerSurfacesExecutionFailure(t *testing.T) {
	failed := &types.TransactionResult{
		Status:       types.StatusSealed,
		StatusCode:   1,
		ErrorMessage: "execution error: insufficient vault balance",
	}
	api := &scriptedStatusAPI{steps: []pollStep{{res: failed}}}

	_, err := NewPoller(api, time.Millisecond, 30, nil, nil).WaitForSeal(t.Context(), testTxID)
	if !types.IsCode(err, types.ErrExecutionFailed) {
		t.Fatalf("got %v, want EXECUTION_FAILED", err)
	}
	var fpErr *types.FlowPayError
	if !errors.As(err, &fpErr) || fpErr.Message != failed.ErrorMessage {
		t.Fatalf("chain error message not surfaced verbatim: %v", err)
	}
}

func TestPollerTransientErrorsConsumeBudget(t *testing.T) {
	api := &scriptedStatusAPI{steps: []pollStep{
		{err: types.NewError(types.ErrNetworkError, "connection refused")},
	}}

	attempts := 5
	start := time.Now()
	_, err := NewPoller(api, time.Millisecond, attempts, nil, nil).WaitForSeal(t.Context(), testTxID)
	if !types.IsCode(err, types.ErrConfirmationTimeout) {
		t.Fatalf("got %v, want CONFIRMATION_TIMEOUT", err)
	}
	if api.calls != attempts {
		t.Fatalf("polled %d times, want the full budget of %d", api.calls, attempts)
	}
	// Hard ceiling: attempts x interval plus scheduling slack.
	if elapsed := time.Since(start); elapsed > time.Duration(attempts)*time.Millisecond+time.Second {
		t.Fatalf("poller exceeded its wall-clock ceiling: %v", elapsed)
	}
}

func TestPollerNotFoundIsTransientNotTerminal(t *testing.T) {
	// A transaction can be submitted but not yet indexed; 404 from the
	// access layer must not be conflated with expiry.
	api := &scriptedStatusAPI{steps: []pollStep{
		{err: types.NewError(types.ErrTransactionNotFound, "not found")},
		status(types.StatusSealed, 0),
	}}

	result, err := NewPoller(api, time.Millisecond, 30, nil, nil).WaitForSeal(t.Context(), testTxID)
	if err != nil {
		t.Fatalf("wait for seal: %v", err)
	}
	if result.Status != types.StatusSealed {
		t.Fatalf("result status %v, want sealed", result.Status)
	}
}

func TestPollerHonorsCancellation(t *testing.T) {
	api := &scriptedStatusAPI{steps: []pollStep{status(types.StatusPending, 0)}}

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewPoller(api, time.Hour, 30, nil, nil).WaitForSeal(ctx, testTxID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
