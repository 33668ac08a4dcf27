package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestTransactionStatusDecoding(t *testing.T) {
	cases := []struct {
		in   string
		want TransactionStatus
	}{
		{`4`, StatusSealed},
		{`5`, StatusExpired},
		{`"Sealed"`, StatusSealed},
		{`"PENDING"`, StatusPending},
		{`"something-else"`, StatusUnknown},
	}
	for _, tc := range cases {
		var got TransactionStatus
		if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("decoded %s to %v, want %v", tc.in, got, tc.want)
		}
	}

	var got TransactionStatus
	if err := json.Unmarshal([]byte(`{"status":4}`), &got); err == nil {
		t.Fatal("expected error for non-scalar status")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for st := StatusUnknown; st <= StatusExpired; st++ {
		terminal := st == StatusSealed || st == StatusExpired
		if st.Terminal() != terminal {
			t.Fatalf("Terminal() for %v: got %v, want %v", st, st.Terminal(), terminal)
		}
	}
}

func TestExecuted(t *testing.T) {
	ok := TransactionResult{Status: StatusSealed, StatusCode: 0}
	if !ok.Executed() {
		t.Fatal("sealed transaction with status code 0 must count as executed")
	}
	failed := TransactionResult{Status: StatusSealed, StatusCode: 1}
	if failed.Executed() {
		t.Fatal("non-zero status code must not count as executed")
	}
	pending := TransactionResult{Status: StatusPending, StatusCode: 0}
	if pending.Executed() {
		t.Fatal("unsealed transaction must not count as executed")
	}
}

func TestIdentifierValidation(t *testing.T) {
	valid64 := "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
	if !IsValidTransactionID(valid64) {
		t.Fatal("64-hex identifier rejected")
	}
	for _, id := range []string{"", valid64[:63], valid64 + "a", "zz" + valid64[2:]} {
		if IsValidTransactionID(id) {
			t.Fatalf("malformed identifier accepted: %q", id)
		}
	}

	for _, addr := range []string{"0x3fe32988f9457b01", "3fe32988f9457b01"} {
		if !IsValidAddress(addr) {
			t.Fatalf("valid address rejected: %q", addr)
		}
	}
	for _, addr := range []string{"", "0x", "0x3fe32988f9457b0", "0x3fe32988f9457b011", "0xzfe32988f9457b01"} {
		if IsValidAddress(addr) {
			t.Fatalf("malformed address accepted: %q", addr)
		}
	}
}

func TestAddressPrefixHelpers(t *testing.T) {
	if WithPrefix("3fe32988f9457b01") != "0x3fe32988f9457b01" {
		t.Fatal("WithPrefix did not add the prefix")
	}
	if WithPrefix("0x3fe32988f9457b01") != "0x3fe32988f9457b01" {
		t.Fatal("WithPrefix double-prefixed")
	}
	if SansPrefix("0x3fe32988f9457b01") != "3fe32988f9457b01" {
		t.Fatal("SansPrefix did not strip the prefix")
	}
}

func TestShortIDNeverExpandsInput(t *testing.T) {
	if got := ShortID("abc"); got != "abc" {
		t.Fatalf("short input mangled: %q", got)
	}
	long := "abcdef0123456789abcdef0123456789"
	if got := ShortID(long); got != "abcdef012345..." {
		t.Fatalf("long input not truncated: %q", got)
	}
}

func TestErrorCodeExtraction(t *testing.T) {
	base := NewError(ErrMerchantNotPaid, "no event pays the merchant address")
	wrapped := fmt.Errorf("verifying: %w", base)

	if ErrorCode(wrapped) != ErrMerchantNotPaid {
		t.Fatalf("code %q, want %q through wrapping", ErrorCode(wrapped), ErrMerchantNotPaid)
	}
	if !IsCode(wrapped, ErrMerchantNotPaid) {
		t.Fatal("IsCode must see through error wrapping")
	}
	if IsCode(wrapped, ErrNoEndpoint) {
		t.Fatal("IsCode matched the wrong code")
	}
	if ErrorCode(errors.New("plain")) != "" {
		t.Fatal("plain errors must yield an empty code")
	}
	if ErrorCode(nil) != "" {
		t.Fatal("nil error must yield an empty code")
	}
}
