package txn

import (
	"context"
	"time"

	"github.com/flowmint/flowpay/access"
	"github.com/flowmint/flowpay/logger"
	"github.com/flowmint/flowpay/types"
)

// SubmitAPI is the slice of the access client the submitter needs.
type SubmitAPI interface {
	SendTransaction(ctx context.Context, tx *access.SubmitTransaction) (string, error)
}

// Submitter sends signed envelopes to the access layer. It keeps no local
// state; the returned handle is the only artifact of a submission.
type Submitter struct {
	api SubmitAPI
	log logger.Logger
	now func() time.Time
}

func NewSubmitter(api SubmitAPI, log logger.Logger) *Submitter {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Submitter{api: api, log: log, now: time.Now}
}

// Submit sends the signed transaction and returns its chain-assigned
// identifier. A rejection (bad sequence number, insufficient balance,
// malformed script) surfaces as SUBMISSION_REJECTED.
func (s *Submitter) Submit(ctx context.Context, tx *Transaction) (*types.TransactionHandle, error) {
	if len(tx.EnvelopeSignatures) == 0 {
		return nil, types.NewError(types.ErrSubmissionRejected, "transaction envelope is unsigned")
	}

	id, err := s.api.SendTransaction(ctx, tx.WireForm())
	if err != nil {
		return nil, err
	}

	return &types.TransactionHandle{ID: id, SubmittedAt: s.now()}, nil
}
