package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowmint/flowpay/types"
)

// confirmRequest is the body of the settlement verification endpoint.
type confirmRequest struct {
	TransactionID string             `json:"transactionId"`
	Product       types.ProductClaim `json:"product"`
}

// ConfirmPayment independently verifies that the transaction paid the
// merchant and records the sale. The response never confirms a sale the
// chain does not prove.
func (s *Server) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	start := s.now()

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body", err)
		return
	}
	if req.TransactionID == "" || req.Product.Name == "" {
		s.writeError(w, http.StatusBadRequest, "missing transactionId or product", nil)
		return
	}

	s.log.Info("verification request received", map[string]any{
		"txId":    types.ShortID(req.TransactionID),
		"product": req.Product.Name,
	})

	outcome, err := s.verifier.VerifyAndRecord(r.Context(), req.TransactionID, req.Product)
	if err != nil {
		switch types.ErrorCode(err) {
		case types.ErrInvalidTransactionID, types.ErrInvalidProduct,
			types.ErrMerchantNotPaid, types.ErrTransactionNotFound:
			s.writeError(w, http.StatusBadRequest, err.Error(), err)
		case types.ErrNoEndpoint, types.ErrNetworkError:
			s.writeError(w, http.StatusServiceUnavailable, "chain access layer unavailable", err)
		default:
			s.writeError(w, http.StatusInternalServerError, "unexpected verification error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"details": map[string]any{
			"processingTimeMs": s.now().Sub(start).Milliseconds(),
			"imageGenerated":   outcome.ImageGenerated,
		},
	})
}

// GetReceipt resolves a transaction identifier to a sale record, checking
// the local ledger first and falling back to a live chain query.
func (s *Server) GetReceipt(w http.ResponseWriter, r *http.Request) {
	start := s.now()

	transactionID := strings.TrimSpace(chi.URLParam(r, "transactionID"))
	if !types.IsValidTransactionID(transactionID) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":         "Invalid transaction ID format",
			"details":       "Transaction ID must be a 64-character hexadecimal string",
			"transactionId": types.ShortID(transactionID),
			"length":        len(transactionID),
		})
		return
	}

	record, live, err := s.store.FindOrFetchLive(r.Context(), transactionID, s.verifier)
	if err != nil {
		switch types.ErrorCode(err) {
		case types.ErrTransactionNotFound:
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":             "Transaction not found",
				"details":           "Transaction was not found in the local ledger or on the chain",
				"transactionId":     types.ShortID(transactionID),
				"searchedLocations": []string{"local_database", "flow_blockchain"},
				"processingTimeMs":  s.now().Sub(start).Milliseconds(),
			})
		case types.ErrNoEndpoint, types.ErrNetworkError:
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":         "Failed to connect to the chain access layer",
				"details":       "The chain access layer is currently unavailable",
				"transactionId": types.ShortID(transactionID),
			})
		default:
			s.writeError(w, http.StatusInternalServerError, "unexpected receipt lookup error", err)
		}
		return
	}

	elapsed := s.now().Sub(start).Milliseconds()

	if record != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"buyer":            record.Buyer,
			"product":          record.Product,
			"amount":           record.Amount,
			"transactionId":    record.TransactionID,
			"timestamp":        record.Timestamp.UnixMilli(),
			"imageUrl":         record.ImageURL,
			"source":           "local_database",
			"processingTimeMs": elapsed,
		})
		return
	}

	// Best-effort display record: the sale was never recorded by this
	// process, but the chain knows the transaction.
	writeJSON(w, http.StatusOK, map[string]any{
		"transactionId":    live.TransactionID,
		"buyer":            live.Buyer,
		"product":          "Purchased Product",
		"amount":           0,
		"status":           live.Status.String(),
		"blockId":          live.ReferenceBlockID,
		"source":           "flow_blockchain",
		"processingTimeMs": elapsed,
	})
}

// GetTotals reports the running sale aggregates.
func (s *Server) GetTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.store.Totals(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "reading sale totals failed", err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError emits a structured error body. Diagnostic detail is only
// included outside production configurations.
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]any{
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if code := types.ErrorCode(err); code != "" {
		body["code"] = code
	}
	if s.development && err != nil {
		body["details"] = err.Error()
	}

	if status >= 500 {
		fields := map[string]any{"status": status, "message": message}
		if err != nil {
			fields["error"] = err.Error()
		}
		s.log.Error("request failed", fields)
	}

	writeJSON(w, status, body)
}
