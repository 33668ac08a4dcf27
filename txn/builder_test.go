package txn

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flowmint/flowpay/types"
)

const (
	testSender    = "0x1234567890abcdef"
	testRecipient = "0x3fe32988f9457b01"
)

func TestBuildTransferIntentValidInputs(t *testing.T) {
	amount := decimal.RequireFromString("0.5")
	intent, err := BuildTransferIntent(testSender, testRecipient, amount)
	if err != nil {
		t.Fatalf("build intent: %v", err)
	}
	if intent.Sender != testSender || intent.Recipient != testRecipient {
		t.Fatalf("intent addresses mangled: %+v", intent)
	}
	if intent.GasLimit != DefaultGasLimit {
		t.Fatalf("gas limit %d, want %d", intent.GasLimit, DefaultGasLimit)
	}

	// Unprefixed addresses are normalized.
	intent, err = BuildTransferIntent("1234567890abcdef", "3fe32988f9457b01", amount)
	if err != nil {
		t.Fatalf("build intent without prefixes: %v", err)
	}
	if intent.Sender != testSender || intent.Recipient != testRecipient {
		t.Fatalf("addresses not normalized: %+v", intent)
	}
}

func TestBuildTransferIntentRejectsBadInputs(t *testing.T) {
	cases := []struct {
		name      string
		sender    string
		recipient string
		amount    string
		wantCode  string
	}{
		{"bad sender", "nope", testRecipient, "1", types.ErrInvalidAddress},
		{"bad recipient", testSender, "0x123", "1", types.ErrInvalidAddress},
		{"eth-style recipient", testSender, "0x9a0766d93b6608b79a0766d93b6608b7f9457b01", "1", types.ErrInvalidAddress},
		{"zero amount", testSender, testRecipient, "0", types.ErrInvalidAmount},
		{"negative amount", testSender, testRecipient, "-0.5", types.ErrInvalidAmount},
		{"too precise", testSender, testRecipient, "0.123456789", types.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildTransferIntent(tc.sender, tc.recipient, decimal.RequireFromString(tc.amount))
			if err == nil {
				t.Fatal("expected error")
			}
			if !types.IsCode(err, tc.wantCode) {
				t.Fatalf("got %v, want code %s", err, tc.wantCode)
			}
		})
	}
}

func TestValidateAmountBoundaries(t *testing.T) {
	if err := ValidateAmount(decimal.RequireFromString("0.00000001")); err != nil {
		t.Fatalf("smallest representable amount rejected: %v", err)
	}
	if err := ValidateAmount(decimal.RequireFromString("0.000000001")); err == nil {
		t.Fatal("9 fractional digits accepted")
	}
}

func TestCadenceArgumentsEncoding(t *testing.T) {
	intent, err := BuildTransferIntent(testSender, testRecipient, decimal.RequireFromString("0.5"))
	if err != nil {
		t.Fatalf("build intent: %v", err)
	}

	args, err := cadenceArguments(intent)
	if err != nil {
		t.Fatalf("cadence arguments: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("argument count %d, want 2", len(args))
	}

	var addr map[string]string
	if err := json.Unmarshal(args[0], &addr); err != nil {
		t.Fatalf("address argument is not JSON: %v", err)
	}
	if addr["type"] != "Address" || addr["value"] != testRecipient {
		t.Fatalf("unexpected address argument: %v", addr)
	}

	var amount map[string]string
	if err := json.Unmarshal(args[1], &amount); err != nil {
		t.Fatalf("amount argument is not JSON: %v", err)
	}
	// UFix64 arguments always carry the full 8-digit fixed-point form.
	if amount["type"] != "UFix64" || amount["value"] != "0.50000000" {
		t.Fatalf("unexpected amount argument: %v", amount)
	}
}
