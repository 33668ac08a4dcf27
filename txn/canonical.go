package txn

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/flowmint/flowpay/types"
)

// Flow's canonical transaction forms are RLP lists. The envelope form wraps
// the payload form together with any payload signatures; signing happens
// over the domain-tagged RLP bytes. Field order is part of the wire
// contract and must not change.

type payloadCanonical struct {
	Script                 []byte
	Arguments              [][]byte
	ReferenceBlockID       []byte
	GasLimit               uint64
	ProposalKeyAddress     []byte
	ProposalKeyIndex       uint64
	ProposalSequenceNumber uint64
	Payer                  []byte
	Authorizers            [][]byte
}

type signatureCanonical struct {
	SignerIndex uint64
	KeyIndex    uint64
	Signature   []byte
}

type envelopeCanonical struct {
	Payload           payloadCanonical
	PayloadSignatures []signatureCanonical
}

func (t *Transaction) payloadCanonical() (*payloadCanonical, error) {
	refBlock, err := hex.DecodeString(types.SansPrefix(t.ReferenceBlockID))
	if err != nil {
		return nil, fmt.Errorf("malformed reference block id: %w", err)
	}

	proposer, err := addressBytes(t.ProposerAddress)
	if err != nil {
		return nil, err
	}
	payer, err := addressBytes(t.Payer)
	if err != nil {
		return nil, err
	}

	authorizers := make([][]byte, 0, len(t.Authorizers))
	for _, a := range t.Authorizers {
		b, err := addressBytes(a)
		if err != nil {
			return nil, err
		}
		authorizers = append(authorizers, b)
	}

	return &payloadCanonical{
		Script:                 t.Script,
		Arguments:              t.Arguments,
		ReferenceBlockID:       refBlock,
		GasLimit:               t.GasLimit,
		ProposalKeyAddress:     proposer,
		ProposalKeyIndex:       uint64(t.ProposalKeyIndex),
		ProposalSequenceNumber: t.SequenceNumber,
		Payer:                  payer,
		Authorizers:            authorizers,
	}, nil
}

// EnvelopeMessage returns the RLP-encoded envelope canonical form, the byte
// sequence that (domain-tagged) every envelope signer signs. With one key
// filling every role there are no separate payload signatures.
func (t *Transaction) EnvelopeMessage() ([]byte, error) {
	payload, err := t.payloadCanonical()
	if err != nil {
		return nil, err
	}

	envelope := envelopeCanonical{
		Payload:           *payload,
		PayloadSignatures: []signatureCanonical{},
	}

	encoded, err := rlp.EncodeToBytes(&envelope)
	if err != nil {
		return nil, fmt.Errorf("rlp encoding envelope: %w", err)
	}
	return encoded, nil
}

func addressBytes(addr string) ([]byte, error) {
	b, err := hex.DecodeString(types.SansPrefix(addr))
	if err != nil || len(b) != 8 {
		return nil, types.NewError(types.ErrInvalidAddress, fmt.Sprintf("address %q is not 8 bytes of hex", addr))
	}
	return b, nil
}
