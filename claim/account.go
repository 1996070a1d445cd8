// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package claim

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/forkclaim/device"
	"github.com/btcsuite/forkclaim/utxoset"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ClaimResult records the transaction that claimed an account's funds.
type ClaimResult struct {
	TxID        string
	ExplorerURL string
}

// Account is an origin chain account and the part of it a claim can spend.
type Account struct {
	ID    uint32
	Label string

	// Balance is the queried balance less unconfirmed value seen at
	// discovery and less everything claimed since.
	Balance btcutil.Amount

	// Available is the sum of SpendableOutputs values.
	Available btcutil.Amount

	LastBlockHeight int32

	// UnspentOutputs is the full discovered set less claimed outputs.
	UnspentOutputs []utxoset.Output

	// SpendableOutputs is the filtered subset spent by the next claim.
	SpendableOutputs []utxoset.Output

	// InputCapExceeded is set when some outputs did not fit in one
	// claim transaction.
	InputCapExceeded bool

	// Segwit reports whether the account uses segwit addresses.
	Segwit bool

	// ClaimResult is set once a claim on the account settled.
	ClaimResult fn.Option[ClaimResult]
}

// EmptyReason explains why an account has nothing to claim.
type EmptyReason uint8

const (
	// NotEmpty means the account has spendable funds.
	NotEmpty EmptyReason = iota

	// AlreadyClaimed means a claim on the account has settled.
	AlreadyClaimed

	// NoFunds means the account holds nothing.
	NoFunds

	// ReceivedAfterSplit means the account holds only value that cannot
	// be spent on the origin chain.
	ReceivedAfterSplit
)

// String returns the user facing explanation.
func (r EmptyReason) String() string {
	switch r {
	case NotEmpty:
		return "funds available"
	case AlreadyClaimed:
		return "You have already claimed."
	case NoFunds:
		return "You don't have enough funds in this account."
	case ReceivedAfterSplit:
		return "Your BTC was received after the chain-split."
	default:
		return fmt.Sprintf("unknown reason %d", uint8(r))
	}
}

// newAccount normalizes a discovered account snapshot.
func newAccount(info *device.AccountInfo, inputLimit int) Account {
	outputs := utxoset.Clone(info.UTXOs)
	res := utxoset.Filter(outputs, info.LastBlockHeight, inputLimit)

	acct := Account{
		ID:               info.ID,
		Label:            fmt.Sprintf("Account #%d", info.ID+1),
		Balance:          info.Balance - res.ExcludedValue,
		Available:        res.Available,
		LastBlockHeight:  info.LastBlockHeight,
		UnspentOutputs:   outputs,
		SpendableOutputs: res.Spendable,
		InputCapExceeded: res.CapExceeded,
		Segwit:           info.Segwit,
		ClaimResult:      fn.None[ClaimResult](),
	}

	if res.CapExceeded {
		log.Infof("%s holds %d unspent outputs, only %d fit in one "+
			"claim", acct.Label, len(outputs), len(res.Spendable))
	}

	return acct
}

// EmptyReason returns why the account has nothing to claim, or NotEmpty.
func (a *Account) EmptyReason() EmptyReason {
	switch {
	case a.Available != 0:
		return NotEmpty
	case a.ClaimResult.IsSome():
		return AlreadyClaimed
	case a.Balance == 0:
		return NoFunds
	default:
		return ReceivedAfterSplit
	}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() Account {
	c := *a
	c.UnspentOutputs = utxoset.Clone(a.UnspentOutputs)
	c.SpendableOutputs = utxoset.Clone(a.SpendableOutputs)
	return c
}

// settle returns the account after outputs were spent by txid.  The spent
// outputs are removed and the remainder filtered again with the same tip
// height, so a capped account exposes its next batch of outputs.
func (a *Account) settle(spent []utxoset.Output, result ClaimResult,
	inputLimit int) Account {

	next := a.Clone()
	next.Balance -= utxoset.Sum(spent)
	next.UnspentOutputs = utxoset.Remove(next.UnspentOutputs, spent)

	res := utxoset.Filter(
		next.UnspentOutputs, next.LastBlockHeight, inputLimit,
	)
	next.SpendableOutputs = res.Spendable
	next.Available = res.Available
	next.InputCapExceeded = res.CapExceeded
	next.ClaimResult = fn.Some(result)

	return next
}
