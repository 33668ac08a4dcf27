// Package access talks to the Flow access layer over its REST API and keeps
// track of which configured endpoint is currently healthy.
package access

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/flowmint/flowpay/logger"
	"github.com/flowmint/flowpay/types"
)

// defaultRequestTimeout bounds every outbound call independently of the
// caller's poll budget, so a hung upstream cannot wedge a request handler.
const defaultRequestTimeout = 10 * time.Second

// Client is a thin REST client bound to a single access-node endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

// NewClient builds a client for the given endpoint. A non-positive timeout
// falls back to the default per-call timeout.
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Endpoint returns the endpoint this client is bound to.
func (c *Client) Endpoint() string {
	return c.baseURL
}

// BlockHeader is the subset of a sealed block header the pipeline needs: the
// reference block id for new transactions and the height for liveness probes.
type BlockHeader struct {
	ID     string
	Height uint64
}

// LatestSealedBlock fetches the latest sealed block header. It doubles as
// the endpoint liveness probe.
func (c *Client) LatestSealedBlock(ctx context.Context) (*BlockHeader, error) {
	body, err := c.get(ctx, "/v1/blocks?height=sealed")
	if err != nil {
		return nil, err
	}

	type header struct {
		ID     string `json:"id"`
		Height string `json:"height"`
	}
	type block struct {
		Header header `json:"header"`
	}

	// Access nodes answer with a one-element block array; some gateways
	// flatten it to a bare header object.
	var blocks []block
	if err := json.Unmarshal(body, &blocks); err != nil || len(blocks) == 0 {
		var flat header
		if err := json.Unmarshal(body, &flat); err != nil || flat.Height == "" {
			return nil, types.NewError(types.ErrNetworkError, "malformed sealed block response")
		}
		return parseHeader(flat.ID, flat.Height)
	}
	return parseHeader(blocks[0].Header.ID, blocks[0].Header.Height)
}

func parseHeader(id, height string) (*BlockHeader, error) {
	h, err := strconv.ParseUint(height, 10, 64)
	if err != nil {
		return nil, types.NewError(types.ErrNetworkError, fmt.Sprintf("malformed block height %q", height))
	}
	return &BlockHeader{ID: id, Height: h}, nil
}

// GetTransaction fetches a transaction's recorded status and events.
// Returns a TX_NOT_FOUND error when the access layer answers 404.
func (c *Client) GetTransaction(ctx context.Context, id string) (*types.TransactionResult, error) {
	body, err := c.get(ctx, "/v1/transactions/"+id)
	if err != nil {
		return nil, err
	}

	var result types.TransactionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, types.NewError(types.ErrNetworkError, fmt.Sprintf("malformed transaction response: %v", err))
	}
	return &result, nil
}

// Account is the subset of an on-chain account the pipeline needs.
type Account struct {
	Address string       `json:"address"`
	Balance string       `json:"balance"`
	Keys    []AccountKey `json:"keys"`
}

// AccountKey carries a key's index and current sequence number. The REST API
// serializes both as strings.
type AccountKey struct {
	Index          string `json:"index"`
	SequenceNumber string `json:"sequence_number"`
}

// SequenceNumber returns the current sequence number of the key at keyIndex.
func (a *Account) SequenceNumber(keyIndex int) (uint64, error) {
	want := strconv.Itoa(keyIndex)
	for _, k := range a.Keys {
		if k.Index == want {
			return strconv.ParseUint(k.SequenceNumber, 10, 64)
		}
	}
	return 0, fmt.Errorf("account %s has no key with index %d", a.Address, keyIndex)
}

// GetAccount fetches an account with its keys expanded.
func (c *Client) GetAccount(ctx context.Context, address string) (*Account, error) {
	body, err := c.get(ctx, "/v1/accounts/"+types.SansPrefix(address)+"?expand=keys")
	if err != nil {
		return nil, err
	}

	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, types.NewError(types.ErrNetworkError, fmt.Sprintf("malformed account response: %v", err))
	}
	return &account, nil
}

// ProposalKey names the proposer account, key index, and sequence number of
// a submitted transaction.
type ProposalKey struct {
	Address        string `json:"address"`
	KeyIndex       string `json:"key_index"`
	SequenceNumber string `json:"sequence_number"`
}

// TransactionSignature is the wire form of one role signature.
type TransactionSignature struct {
	Address   string `json:"address"`
	KeyIndex  string `json:"key_index"`
	Signature string `json:"signature"` // base64
}

// SubmitTransaction is the wire form of a signed transaction envelope.
// Script and arguments are base64; numeric fields travel as strings.
type SubmitTransaction struct {
	Script             string                 `json:"script"`
	Arguments          []string               `json:"arguments"`
	ReferenceBlockID   string                 `json:"reference_block_id"`
	GasLimit           string                 `json:"gas_limit"`
	Payer              string                 `json:"payer"`
	ProposalKey        ProposalKey            `json:"proposal_key"`
	Authorizers        []string               `json:"authorizers"`
	PayloadSignatures  []TransactionSignature `json:"payload_signatures"`
	EnvelopeSignatures []TransactionSignature `json:"envelope_signatures"`
}

// SendTransaction submits a signed envelope and returns the transaction
// identifier assigned by the access layer. Rejections surface as
// SUBMISSION_REJECTED with the access layer's reason.
func (c *Client) SendTransaction(ctx context.Context, tx *SubmitTransaction) (string, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("encoding transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", types.NewError(types.ErrNetworkError, fmt.Sprintf("submit to %s failed: %v", c.baseURL, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewError(types.ErrNetworkError, fmt.Sprintf("reading submit response: %v", err))
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		var reason struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &reason)
		if reason.Message == "" {
			reason.Message = http.StatusText(resp.StatusCode)
		}
		return "", types.NewError(types.ErrSubmissionRejected, reason.Message)
	}
	if resp.StatusCode >= 500 {
		return "", types.NewError(types.ErrNetworkError, fmt.Sprintf("access layer error: %s", resp.Status))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.ID == "" {
		return "", types.NewError(types.ErrNetworkError, "submit response missing transaction id")
	}

	c.log.Info("transaction submitted", map[string]any{
		"txId":     types.ShortID(result.ID),
		"endpoint": c.baseURL,
	})
	return result.ID, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrNetworkError, fmt.Sprintf("request to %s failed: %v", c.baseURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, types.NewError(types.ErrTransactionNotFound, "not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewError(types.ErrNetworkError, fmt.Sprintf("access layer error: %s", resp.Status))
	}

	return io.ReadAll(resp.Body)
}
