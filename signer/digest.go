package signer

import (
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Domain tags separate signature contexts: a signature produced over a
// transaction envelope can never be replayed as a user message and vice
// versa. Tags are right-padded with zero bytes to a fixed width before being
// prefixed to the message.
const (
	TransactionDomainTag = "FLOW-V0.0-transaction"
	UserDomainTag        = "FLOW-V0.0-user"

	domainTagLen = 32
)

// TaggedMessage prefixes the zero-padded domain tag to message. The result
// is the exact byte sequence to hand to an Authorizer.
func TaggedMessage(tag string, message []byte) ([]byte, error) {
	padded, err := paddedDomainTag(tag)
	if err != nil {
		return nil, err
	}
	return append(padded, message...), nil
}

// Digest computes the 256-bit pre-signing digest: SHA3-256 over the padded
// domain tag followed by the transaction body. Deterministic for identical
// inputs.
func Digest(tag string, message []byte) ([]byte, error) {
	tagged, err := TaggedMessage(tag, message)
	if err != nil {
		return nil, err
	}
	sum := sha3.Sum256(tagged)
	return sum[:], nil
}

func paddedDomainTag(tag string) ([]byte, error) {
	if len(tag) > domainTagLen {
		return nil, fmt.Errorf("domain tag %q exceeds %d bytes", tag, domainTagLen)
	}
	padded := make([]byte, domainTagLen)
	copy(padded, tag)
	return padded, nil
}
