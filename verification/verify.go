// Package verification implements the server side of the settlement
// pipeline: given a transaction identifier, it independently re-derives from
// chain state that the merchant was actually paid before a sale is recorded.
// The client's claim that payment succeeded is never trusted.
package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/flowmint/flowpay/access"
	"github.com/flowmint/flowpay/ledger"
	"github.com/flowmint/flowpay/logger"
	"github.com/flowmint/flowpay/metrics"
	"github.com/flowmint/flowpay/types"
)

// ImageGenerator produces the optional generated-asset reference for a
// recorded sale. Failures are isolated: they never fail or roll back the
// sale itself.
type ImageGenerator interface {
	Generate(ctx context.Context, productName string) (string, error)
}

// Config carries the verifier's collaborators.
type Config struct {
	Selector        *access.Selector
	Store           *ledger.Store
	Images          ImageGenerator // optional
	MerchantAddress string
	RequestTimeout  time.Duration
	Logger          logger.Logger
	Metrics         metrics.Recorder
}

// Verifier checks settlement against the chain and writes the ledger.
type Verifier struct {
	selector *access.Selector
	store    *ledger.Store
	images   ImageGenerator
	merchant string
	timeout  time.Duration
	log      logger.Logger
	rec      metrics.Recorder
	now      func() time.Time
}

func New(cfg Config) (*Verifier, error) {
	if !types.IsValidAddress(cfg.MerchantAddress) {
		return nil, types.NewError(types.ErrConfig, fmt.Sprintf("merchant address %q is malformed", cfg.MerchantAddress))
	}
	if cfg.Selector == nil || cfg.Store == nil {
		return nil, types.NewError(types.ErrConfig, "verifier requires an endpoint selector and a ledger store")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}

	return &Verifier{
		selector: cfg.Selector,
		store:    cfg.Store,
		images:   cfg.Images,
		merchant: types.WithPrefix(cfg.MerchantAddress),
		timeout:  cfg.RequestTimeout,
		log:      cfg.Logger,
		rec:      cfg.Metrics,
		now:      time.Now,
	}, nil
}

// Outcome reports what VerifyAndRecord did.
type Outcome struct {
	Record         types.SaleRecord
	Inserted       bool
	ImageGenerated bool
}

// VerifyAndRecord fetches the transaction's emitted events and asserts that
// at least one names the merchant address as recipient. Only then is a sale
// recorded, idempotently keyed by the transaction identifier. The product
// claim supplies display metadata only; the monetary proof comes from chain
// state alone.
func (v *Verifier) VerifyAndRecord(ctx context.Context, transactionID string, claim types.ProductClaim) (*Outcome, error) {
	if !types.IsValidTransactionID(transactionID) {
		return nil, types.NewError(types.ErrInvalidTransactionID, "transaction id must be 64 hexadecimal characters")
	}
	if claim.Name == "" {
		return nil, types.NewError(types.ErrInvalidProduct, "product name is required")
	}
	if claim.Price.Sign() < 0 {
		return nil, types.NewError(types.ErrInvalidProduct, "product price cannot be negative")
	}

	result, err := v.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if result.Status == types.StatusExpired || (result.Status >= types.StatusSealed && result.StatusCode != 0) {
		v.rec.IncCounter(metrics.EventVerificationFailed, map[string]string{"outcome": "execution_failed"})
		return nil, &types.FlowPayError{
			Code:    types.ErrMerchantNotPaid,
			Message: fmt.Sprintf("transaction did not execute successfully: %s", result.ErrorMessage),
		}
	}

	paid := false
	buyer := "Unknown"
	for i, event := range result.Events {
		if i == 0 && event.Data.From != "" {
			buyer = event.Data.From
		}
		if event.Data.To != "" && types.WithPrefix(event.Data.To) == v.merchant {
			paid = true
		}
	}
	if !paid {
		v.rec.IncCounter(metrics.EventVerificationFailed, map[string]string{"outcome": "merchant_not_paid"})
		v.log.Warn("transaction does not pay the merchant", map[string]any{
			"txId":     types.ShortID(transactionID),
			"merchant": v.merchant,
			"events":   len(result.Events),
		})
		return nil, types.NewError(types.ErrMerchantNotPaid, "no event pays the merchant address")
	}

	record := types.SaleRecord{
		Buyer:         buyer,
		Product:       claim.Name,
		Amount:        claim.Price,
		TransactionID: transactionID,
		Timestamp:     v.now(),
	}

	inserted, err := v.store.InsertIfAbsent(ctx, record)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Record: record, Inserted: inserted}
	if inserted {
		v.rec.IncCounter(metrics.EventSaleRecorded, nil)
		outcome.ImageGenerated = v.generateImage(ctx, &outcome.Record)
	} else {
		v.rec.IncCounter(metrics.EventDuplicateSale, nil)
	}

	v.rec.IncCounter(metrics.EventVerificationOK, nil)
	return outcome, nil
}

// GetTransaction reads a transaction through a working endpoint, failing
// over once when the cached endpoint turns out to be dead. Also serves as
// the ledger's live read path for receipt lookups.
func (v *Verifier) GetTransaction(ctx context.Context, id string) (*types.TransactionResult, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		endpoint, err := v.selector.WorkingEndpoint(ctx)
		if err != nil {
			return nil, err
		}

		client := access.NewClient(endpoint, v.timeout, v.log)
		result, err := client.GetTransaction(ctx, id)
		if err == nil {
			return result, nil
		}
		if types.IsCode(err, types.ErrTransactionNotFound) {
			return nil, err
		}

		// The endpoint answered the probe but failed the real call;
		// drop it from the cache before asking the selector again.
		v.selector.Invalidate(endpoint)
		v.rec.IncCounter(metrics.EventEndpointFailover, nil)
		lastErr = err
	}
	return nil, lastErr
}

// generateImage runs the best-effort side channel. Any failure is logged
// and the sale persists with an empty asset reference.
func (v *Verifier) generateImage(ctx context.Context, record *types.SaleRecord) bool {
	if v.images == nil {
		return false
	}

	url, err := v.images.Generate(ctx, record.Product)
	if err != nil {
		v.rec.IncCounter(metrics.EventImageFailed, nil)
		v.log.Error("image generation failed", map[string]any{
			"product": record.Product,
			"error":   err.Error(),
		})
		return false
	}

	if err := v.store.AttachImage(ctx, record.TransactionID, url); err != nil {
		v.log.Error("attaching image reference failed", map[string]any{
			"txId":  types.ShortID(record.TransactionID),
			"error": err.Error(),
		})
		return false
	}

	record.ImageURL = url
	v.rec.IncCounter(metrics.EventImageGenerated, nil)
	return true
}
