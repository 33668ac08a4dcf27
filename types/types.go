// Package types contains the shared domain types of the flowpay payment
// pipeline: transfer intents, transaction handles and statuses, sale records,
// and the error taxonomy used across the client and server halves.
package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus mirrors the Flow access API status codes.
// Sealed and Expired are terminal; a status never regresses past them.
type TransactionStatus int

const (
	StatusUnknown   TransactionStatus = 0
	StatusPending   TransactionStatus = 1
	StatusFinalized TransactionStatus = 2
	StatusExecuted  TransactionStatus = 3
	StatusSealed    TransactionStatus = 4
	StatusExpired   TransactionStatus = 5
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFinalized:
		return "finalized"
	case StatusExecuted:
		return "executed"
	case StatusSealed:
		return "sealed"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can no longer change.
func (s TransactionStatus) Terminal() bool {
	return s == StatusSealed || s == StatusExpired
}

// UnmarshalJSON accepts both the numeric status used by decoded access-node
// responses and the capitalized string names some gateways return.
func (s *TransactionStatus) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = TransactionStatus(n)
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("invalid transaction status: %s", string(data))
	}

	switch strings.ToLower(name) {
	case "pending":
		*s = StatusPending
	case "finalized":
		*s = StatusFinalized
	case "executed":
		*s = StatusExecuted
	case "sealed":
		*s = StatusSealed
	case "expired":
		*s = StatusExpired
	default:
		*s = StatusUnknown
	}
	return nil
}

func (s TransactionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(s))
}

// TransferIntent describes a single purchase attempt: who pays whom, how
// much, and the sequencing metadata needed to build the signable payload.
// Immutable once signed.
type TransferIntent struct {
	Sender           string
	Recipient        string
	Amount           decimal.Decimal
	ReferenceBlockID string
	GasLimit         uint64
	KeyIndex         int
	SequenceNumber   uint64
}

// RoleSignature is the output of signing one role slot: the signer address,
// its key index on the account, and the raw signature bytes.
type RoleSignature struct {
	Address   string
	KeyIndex  int
	Signature []byte
}

// TransactionHandle identifies a submitted transaction. The identifier is
// assigned by the access layer and is the only handle for later lookups.
type TransactionHandle struct {
	ID          string
	SubmittedAt time.Time
}

// EventData is the decoded payload of a token transfer event.
type EventData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Event is a single event emitted by a sealed transaction.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// TransactionResult is the access layer's view of a transaction: lifecycle
// status, execution outcome, and the events it emitted.
type TransactionResult struct {
	Status           TransactionStatus `json:"status"`
	StatusCode       int               `json:"statusCode"`
	ErrorMessage     string            `json:"errorMessage,omitempty"`
	Events           []Event           `json:"events"`
	Proposer         string            `json:"proposer,omitempty"`
	ReferenceBlockID string            `json:"reference_block_id,omitempty"`
}

// Executed reports whether the transaction sealed with a successful outcome.
func (r *TransactionResult) Executed() bool {
	return r.Status == StatusSealed && r.StatusCode == 0
}

// ProductClaim is the client-declared catalog metadata attached to a
// verification request. It is trusted for display only, never for the
// monetary proof.
type ProductClaim struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// SaleRecord is a verified sale. At most one record exists per transaction
// identifier; it is never mutated after creation except to attach the
// optional generated-asset reference.
type SaleRecord struct {
	Buyer         string          `json:"buyer"`
	Product       string          `json:"product"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transactionId"`
	Timestamp     time.Time       `json:"timestamp"`
	ImageURL      string          `json:"imageUrl,omitempty"`
}

var (
	txIDPattern    = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
	addressPattern = regexp.MustCompile(`^(0x)?[a-fA-F0-9]{16}$`)
)

// IsValidTransactionID reports whether id is a 64-character hex digest.
func IsValidTransactionID(id string) bool {
	return txIDPattern.MatchString(id)
}

// IsValidAddress reports whether addr is a Flow account address
// (8 bytes of hex, optionally 0x-prefixed).
func IsValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// ShortID truncates a transaction identifier for log output. Full
// identifiers never need to appear in logs.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "..."
}

// SansPrefix strips the 0x prefix from an address or identifier.
func SansPrefix(addr string) string {
	return strings.TrimPrefix(addr, "0x")
}

// WithPrefix ensures an address carries the 0x prefix.
func WithPrefix(addr string) string {
	if strings.HasPrefix(addr, "0x") {
		return addr
	}
	return "0x" + addr
}
