// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package claim

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/forkclaim/addrpool"
	"github.com/btcsuite/forkclaim/device"
	"github.com/btcsuite/forkclaim/txfee"
	"github.com/btcsuite/forkclaim/utxoset"
)

// ReconcileConfig controls how a discovery response is normalized.
type ReconcileConfig struct {
	// UseDerivedAccounts enables destination address records.
	UseDerivedAccounts bool

	// InputLimit caps the inputs of one claim.  Zero means
	// utxoset.InputLimit.
	InputLimit int
}

// Reconcile turns a discovery response into a fresh State.  The first account
// with spendable funds becomes active, or the first account when none has
// any.
func Reconcile(disc *device.Discovery, cfg ReconcileConfig) (*State, error) {
	if disc == nil {
		return nil, fmt.Errorf("%w: empty response", ErrDiscoveryFailure)
	}

	limit := cfg.InputLimit
	if limit <= 0 {
		limit = utxoset.InputLimit
	}

	state := &State{
		Accounts:      make([]Account, 0, len(disc.OriginAccounts)),
		FeeTiers:      txfee.NewMenu(disc.Fees),
		ActiveAccount: -1,
	}

	var total btcutil.Amount
	for i := range disc.OriginAccounts {
		acct := newAccount(&disc.OriginAccounts[i], limit)
		if acct.Available > 0 && state.ActiveAccount < 0 {
			state.ActiveAccount = i
		}
		total += acct.Available
		state.Accounts = append(state.Accounts, acct)
	}
	if state.ActiveAccount < 0 {
		state.ActiveAccount = 0
	}

	if cfg.UseDerivedAccounts {
		for _, info := range disc.DestinationAccounts {
			record, err := addrpool.NewRecord(
				info.ID, info.BasePath, info.UnusedAddresses,
				uint32(len(info.UsedAddresses)),
			)
			if err != nil {
				log.Warnf("Skipping destination account %d: %v",
					info.ID, err)
				continue
			}
			state.Records = append(state.Records, record)
		}
	}

	log.Infof("Discovered %d %s with %v available, %d destination %s",
		len(state.Accounts), pickNoun(len(state.Accounts), "account",
			"accounts"), total, len(state.Records),
		pickNoun(len(state.Records), "account", "accounts"))

	return state, nil
}
