// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package claim

import "github.com/btcsuite/btcd/btcutil"

// Notifier is told about discovery and claim outcomes.  Implementations must
// not block.
type Notifier interface {
	// AccountsDiscovered is called after a successful discovery.
	AccountsDiscovered(accounts int, available btcutil.Amount)

	// DiscoveryFailed is called when discovery fails.
	DiscoveryFailed(err error)

	// ClaimSettled is called once a claim transaction was accepted.
	// available is the spendable value left across all accounts after
	// settlement.
	ClaimSettled(accountID uint32, claimed, fee, available btcutil.Amount)

	// ClaimFailed is called when a claim fails in the given state.
	ClaimFailed(stage ClaimState, err error)
}

// nopNotifier discards all notifications.
type nopNotifier struct{}

func (nopNotifier) AccountsDiscovered(int, btcutil.Amount) {}
func (nopNotifier) DiscoveryFailed(error)                  {}
func (nopNotifier) ClaimFailed(ClaimState, error)          {}

func (nopNotifier) ClaimSettled(uint32, btcutil.Amount, btcutil.Amount,
	btcutil.Amount) {
}
