// Package txn builds, signs, submits, and confirms Flow transactions. It
// covers the client half of the settlement pipeline: a transfer intent is
// validated, rendered into the canonical signable payload, signed with the
// single controlling key, submitted, and polled to a terminal status.
package txn

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/flowmint/flowpay/types"
)

// TransferScript moves the requested amount of the native token from the
// signer's vault to the recipient's receiver capability.
const TransferScript = `
import FungibleToken from 0x9a0766d93b6608b7
import FlowToken from 0x7e60df042a9c0868

transaction(recipient: Address, amount: UFix64) {

  let sentVault: @{FungibleToken.Vault}

  prepare(signer: auth(BorrowValue) &Account) {
    let vaultRef = signer.storage.borrow<auth(FungibleToken.Withdraw) &FlowToken.Vault>(from: /storage/flowTokenVault)
      ?? panic("Could not borrow reference to the owner's Vault!")

    self.sentVault <- vaultRef.withdraw(amount: amount)
  }

  execute {
    let receiverRef = getAccount(recipient)
      .capabilities.borrow<&{FungibleToken.Receiver}>(/public/flowTokenReceiver)
      ?? panic("Could not borrow receiver reference to the recipient's Vault")

    receiverRef.deposit(from: <-self.sentVault)
  }
}
`

// DefaultGasLimit is the compute limit attached to transfer transactions.
const DefaultGasLimit uint64 = 999

// amountPrecision is the fixed-point precision of the native token (UFix64).
const amountPrecision = 8

// BuildTransferIntent validates the purchase parameters and assembles an
// intent. Sequencing metadata (reference block, sequence number) is filled
// in at submission time from live chain state.
func BuildTransferIntent(sender, recipient string, amount decimal.Decimal) (*types.TransferIntent, error) {
	if !types.IsValidAddress(sender) {
		return nil, types.NewError(types.ErrInvalidAddress, fmt.Sprintf("sender %q is not a valid account address", sender))
	}
	if !types.IsValidAddress(recipient) {
		return nil, types.NewError(types.ErrInvalidAddress, fmt.Sprintf("recipient %q is not a valid account address", recipient))
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	return &types.TransferIntent{
		Sender:    types.WithPrefix(sender),
		Recipient: types.WithPrefix(recipient),
		Amount:    amount,
		GasLimit:  DefaultGasLimit,
	}, nil
}

// ValidateAmount enforces the asset's fixed-point constraints: strictly
// positive, at most 8 fractional digits.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return types.NewError(types.ErrInvalidAmount, "amount must be positive")
	}
	if amount.Exponent() < -amountPrecision {
		return types.NewError(types.ErrInvalidAmount,
			fmt.Sprintf("amount %s exceeds %d fractional digits", amount.String(), amountPrecision))
	}
	return nil
}

// cadenceArguments renders the intent's script arguments in JSON-Cadence
// encoding, in script parameter order.
func cadenceArguments(intent *types.TransferIntent) ([][]byte, error) {
	addressArg, err := json.Marshal(map[string]string{
		"type":  "Address",
		"value": types.WithPrefix(intent.Recipient),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding address argument: %w", err)
	}

	amountArg, err := json.Marshal(map[string]string{
		"type":  "UFix64",
		"value": intent.Amount.StringFixed(amountPrecision),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding amount argument: %w", err)
	}

	return [][]byte{addressArg, amountArg}, nil
}
