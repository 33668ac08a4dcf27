package types

import "errors"

// FlowPayError is the library's typed error. Code is machine readable and
// stable; Message is human readable; Data carries optional diagnostics.
type FlowPayError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *FlowPayError) Error() string {
	return e.Message
}

// Error codes, grouped by the failure taxonomy.
const (
	// Input validation: rejected before anything reaches the chain layer.
	ErrInvalidAddress       = "INVALID_ADDRESS"
	ErrInvalidAmount        = "INVALID_AMOUNT"
	ErrInvalidTransactionID = "INVALID_TRANSACTION_ID"
	ErrInvalidKey           = "INVALID_KEY"
	ErrInvalidMessage       = "INVALID_MESSAGE"
	ErrInvalidProduct       = "INVALID_PRODUCT"

	// Transient infrastructure: retried with endpoint failover and a
	// bounded attempt budget before escalating.
	ErrNoEndpoint          = "NO_ENDPOINT"
	ErrNetworkError        = "NETWORK_ERROR"
	ErrConfirmationTimeout = "CONFIRMATION_TIMEOUT"

	// Chain-reported terminal failures: never retried.
	ErrSubmissionRejected = "SUBMISSION_REJECTED"
	ErrTransactionExpired = "TX_EXPIRED"
	ErrExecutionFailed    = "EXECUTION_FAILED"

	// Proof-of-payment failures.
	ErrMerchantNotPaid     = "MERCHANT_NOT_PAID"
	ErrTransactionNotFound = "TX_NOT_FOUND"

	ErrConfig = "CONFIG_ERROR"
)

// NewError builds a FlowPayError with the given code and message.
func NewError(code, message string) *FlowPayError {
	return &FlowPayError{Code: code, Message: message}
}

// ErrorCode extracts the flowpay error code from err, unwrapping as needed.
// Returns the empty string when err carries no code.
func ErrorCode(err error) string {
	var fpErr *FlowPayError
	if errors.As(err, &fpErr) {
		return fpErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given flowpay error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}
