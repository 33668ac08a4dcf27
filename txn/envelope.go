package txn

import (
	"encoding/base64"
	"strconv"

	"github.com/flowmint/flowpay/access"
	"github.com/flowmint/flowpay/signer"
	"github.com/flowmint/flowpay/types"
)

// Transaction is a fully specified transfer awaiting signatures. The
// proposer, payer, and sole authorizer are always the same account: the one
// controlling key produced by the login ceremony fills every role slot.
type Transaction struct {
	Script           []byte
	Arguments        [][]byte
	ReferenceBlockID string
	GasLimit         uint64

	ProposerAddress  string
	ProposalKeyIndex int
	SequenceNumber   uint64
	Payer            string
	Authorizers      []string

	EnvelopeSignatures []types.RoleSignature
}

// NewTransferTransaction renders a validated intent into a transaction.
// The intent must already carry its sequencing metadata.
func NewTransferTransaction(intent *types.TransferIntent) (*Transaction, error) {
	args, err := cadenceArguments(intent)
	if err != nil {
		return nil, err
	}

	return &Transaction{
		Script:           []byte(TransferScript),
		Arguments:        args,
		ReferenceBlockID: intent.ReferenceBlockID,
		GasLimit:         intent.GasLimit,
		ProposerAddress:  intent.Sender,
		ProposalKeyIndex: intent.KeyIndex,
		SequenceNumber:   intent.SequenceNumber,
		Payer:            intent.Sender,
		Authorizers:      []string{intent.Sender},
	}, nil
}

// SignEnvelope signs the domain-tagged envelope canonical form with the
// given authorizer and attaches the signature. Exactly one envelope
// signature is required when one key fills every role.
func (t *Transaction) SignEnvelope(auth signer.Authorizer) error {
	message, err := t.EnvelopeMessage()
	if err != nil {
		return err
	}

	tagged, err := signer.TaggedMessage(signer.TransactionDomainTag, message)
	if err != nil {
		return err
	}

	sig, err := auth.Sign(tagged)
	if err != nil {
		return err
	}

	t.EnvelopeSignatures = append(t.EnvelopeSignatures, sig)
	return nil
}

// WireForm renders the signed transaction into the access API submission
// shape: base64 payloads, stringified numerics.
func (t *Transaction) WireForm() *access.SubmitTransaction {
	args := make([]string, 0, len(t.Arguments))
	for _, a := range t.Arguments {
		args = append(args, base64.StdEncoding.EncodeToString(a))
	}

	sigs := make([]access.TransactionSignature, 0, len(t.EnvelopeSignatures))
	for _, s := range t.EnvelopeSignatures {
		sigs = append(sigs, access.TransactionSignature{
			Address:   types.SansPrefix(s.Address),
			KeyIndex:  strconv.Itoa(s.KeyIndex),
			Signature: base64.StdEncoding.EncodeToString(s.Signature),
		})
	}

	return &access.SubmitTransaction{
		Script:           base64.StdEncoding.EncodeToString(t.Script),
		Arguments:        args,
		ReferenceBlockID: types.SansPrefix(t.ReferenceBlockID),
		GasLimit:         strconv.FormatUint(t.GasLimit, 10),
		Payer:            types.SansPrefix(t.Payer),
		ProposalKey: access.ProposalKey{
			Address:        types.SansPrefix(t.ProposerAddress),
			KeyIndex:       strconv.Itoa(t.ProposalKeyIndex),
			SequenceNumber: strconv.FormatUint(t.SequenceNumber, 10),
		},
		Authorizers:        sansPrefixAll(t.Authorizers),
		PayloadSignatures:  []access.TransactionSignature{},
		EnvelopeSignatures: sigs,
	}
}

func sansPrefixAll(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, types.SansPrefix(a))
	}
	return out
}
