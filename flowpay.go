// Package flowpay implements a custodial-free payment pipeline on Flow: a
// raw private key delivered by a social-login provider signs a native token
// transfer locally, the signed transaction is submitted and polled to
// finality, and settlement is independently verified server-side before a
// sale is recorded.
package flowpay

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowmint/flowpay/access"
	"github.com/flowmint/flowpay/logger"
	"github.com/flowmint/flowpay/metrics"
	"github.com/flowmint/flowpay/signer"
	"github.com/flowmint/flowpay/txn"
	"github.com/flowmint/flowpay/types"
)

// Client is the buyer-side pipeline: build, sign, submit, confirm. It holds
// the signing identity in memory for its lifetime and nothing else; no
// transaction state survives a call.
type Client struct {
	auth     *signer.KeySigner
	selector *access.Selector

	endpoints []string
	interval  time.Duration
	attempts  int
	timeout   time.Duration
	log       logger.Logger
	rec       metrics.Recorder
}

// New builds a client around the login-provided private key. The key is an
// opaque secret: it is parsed, held in process memory, and never surfaced
// through logs or errors.
func New(privateKeyHex string, endpoints []string, opts ...Option) (*Client, error) {
	auth, err := signer.NewKeySigner(privateKeyHex, 0)
	if err != nil {
		return nil, err
	}

	c := &Client{
		auth:      auth,
		endpoints: endpoints,
		interval:  txn.DefaultPollInterval,
		attempts:  txn.DefaultPollAttempts,
		log:       logger.NoopLogger{},
		rec:       metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.selector = access.NewSelector(endpoints, c.timeout, c.log)
	return c, nil
}

// Address returns the account address derived from the signing key.
func (c *Client) Address() string {
	return c.auth.Address()
}

// Balance fetches the account's current balance through a working endpoint.
func (c *Client) Balance(ctx context.Context) (string, error) {
	client, err := c.selector.Client(ctx)
	if err != nil {
		return "", err
	}
	account, err := client.GetAccount(ctx, c.auth.Address())
	if err != nil {
		return "", err
	}
	return account.Balance, nil
}

// Pay transfers amount to recipient and waits for the transaction to seal.
// The handle is returned even when confirmation fails, so the caller can
// hand the identifier to the server for later verification; the transaction
// is never re-signed or resubmitted.
func (c *Client) Pay(ctx context.Context, recipient string, amount decimal.Decimal) (*types.TransactionHandle, *types.TransactionResult, error) {
	intent, err := txn.BuildTransferIntent(c.auth.Address(), recipient, amount)
	if err != nil {
		return nil, nil, err
	}

	client, err := c.selector.Client(ctx)
	if err != nil {
		return nil, nil, err
	}

	header, err := client.LatestSealedBlock(ctx)
	if err != nil {
		c.selector.Invalidate(client.Endpoint())
		return nil, nil, err
	}
	account, err := client.GetAccount(ctx, intent.Sender)
	if err != nil {
		c.selector.Invalidate(client.Endpoint())
		return nil, nil, err
	}
	sequence, err := account.SequenceNumber(c.auth.KeyIndex())
	if err != nil {
		return nil, nil, err
	}

	intent.ReferenceBlockID = header.ID
	intent.KeyIndex = c.auth.KeyIndex()
	intent.SequenceNumber = sequence

	tx, err := txn.NewTransferTransaction(intent)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.SignEnvelope(c.auth); err != nil {
		return nil, nil, err
	}

	handle, err := txn.NewSubmitter(client, c.log).Submit(ctx, tx)
	if err != nil {
		return nil, nil, err
	}

	result, err := txn.NewPoller(client, c.interval, c.attempts, c.log, c.rec).WaitForSeal(ctx, handle.ID)
	if err != nil {
		return handle, nil, err
	}
	return handle, result, nil
}
