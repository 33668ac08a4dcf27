// Package signer implements the key handling half of the payment pipeline:
// ECDSA P-256 signatures in Flow's raw r||s encoding over SHA3-256 digests,
// plus derivation of the account address shown to the user.
//
// The private key is an opaque secret handed over after the social-login
// ceremony. It lives in process memory only and is never logged or persisted.
package signer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/flowmint/flowpay/types"
)

// signatureLen is the fixed width of a Flow signature: two 32-byte scalars
// concatenated, not DER. The access layer rejects anything else.
const signatureLen = 64

// Authorizer fills a transaction role slot. The same Authorizer is composed
// by reference into the proposer, payer, and authorizer slots; this system
// has exactly one controlling key.
type Authorizer interface {
	Address() string
	KeyIndex() int
	Sign(message []byte) (types.RoleSignature, error)
}

// KeySigner is an Authorizer backed by a raw in-memory private key.
type KeySigner struct {
	key      *ecdsa.PrivateKey
	address  string
	keyIndex int
}

var _ Authorizer = (*KeySigner)(nil)

// NewKeySigner parses a hex-encoded P-256 scalar and derives the account
// address from it. The optional 0x prefix is tolerated.
func NewKeySigner(privateKeyHex string, keyIndex int) (*KeySigner, error) {
	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	return &KeySigner{
		key:      key,
		address:  deriveAddress(&key.PublicKey),
		keyIndex: keyIndex,
	}, nil
}

// Address returns the derived account address, 0x-prefixed.
func (s *KeySigner) Address() string {
	return s.address
}

// KeyIndex returns the index of the key on the account.
func (s *KeySigner) KeyIndex() int {
	return s.keyIndex
}

// Sign hashes message with SHA3-256 and signs the digest, returning the
// fixed-width r||s signature wrapped with the signer's address and key index.
// The message must be the exact byte sequence the verifying chain will hash
// identically, domain tag included.
func (s *KeySigner) Sign(message []byte) (types.RoleSignature, error) {
	if len(message) == 0 {
		return types.RoleSignature{}, types.NewError(types.ErrInvalidMessage, "cannot sign an empty message")
	}

	digest := sha3.Sum256(message)

	r, sv, err := ecdsa.Sign(rand.Reader, s.key, digest[:])
	if err != nil {
		return types.RoleSignature{}, fmt.Errorf("ecdsa signing failed: %w", err)
	}

	sig := make([]byte, signatureLen)
	r.FillBytes(sig[:signatureLen/2])
	sv.FillBytes(sig[signatureLen/2:])

	return types.RoleSignature{
		Address:   types.SansPrefix(s.address),
		KeyIndex:  s.keyIndex,
		Signature: sig,
	}, nil
}

// Verify checks a raw r||s signature over message against the signer's
// public key. Used by tests and never required on the hot path; the chain
// performs the authoritative verification.
func (s *KeySigner) Verify(message, sig []byte) bool {
	return VerifySignature(&s.key.PublicKey, message, sig)
}

// VerifySignature checks a raw r||s P-256 signature over the SHA3-256 digest
// of message.
func VerifySignature(pub *ecdsa.PublicKey, message, sig []byte) bool {
	if len(sig) != signatureLen {
		return false
	}
	digest := sha3.Sum256(message)
	r := new(big.Int).SetBytes(sig[:signatureLen/2])
	sv := new(big.Int).SetBytes(sig[signatureLen/2:])
	return ecdsa.Verify(pub, digest[:], r, sv)
}

func parsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")

	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidKey, "private key is not valid hex")
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() <= 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, types.NewError(types.ErrInvalidKey, "private key scalar outside curve order")
	}

	key := &ecdsa.PrivateKey{D: d}
	key.PublicKey.Curve = curve
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	return key, nil
}

// deriveAddress hashes the uncompressed public key (04 prefix stripped) with
// SHA3-256 and keeps the trailing 8 bytes, matching Flow's address width.
func deriveAddress(pub *ecdsa.PublicKey) string {
	uncompressed := elliptic.Marshal(pub.Curve, pub.X, pub.Y)
	hash := sha3.Sum256(uncompressed[1:])
	return "0x" + hex.EncodeToString(hash[len(hash)-8:])
}
