// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package claim

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/forkclaim/addrpool"
	"github.com/btcsuite/forkclaim/txfee"
)

// State is everything known about the discovered accounts.  It is created by
// Reconcile and replaced, never modified, by a settled claim.
type State struct {
	// Accounts are the origin accounts in discovery order.
	Accounts []Account

	// Records are the destination account address pools.  It is empty
	// when derived accounts are not used.
	Records []addrpool.Record

	// FeeTiers is the fee menu in display order.
	FeeTiers txfee.Menu

	// ActiveAccount is the index of the selected account.
	ActiveAccount int

	// NeedsDiscovery is set once an address pool ran out.  No claim may
	// be made until the accounts are discovered again.
	NeedsDiscovery bool
}

// Clone returns a deep copy of the state.
func (s *State) Clone() State {
	c := *s

	c.Accounts = make([]Account, len(s.Accounts))
	for i := range s.Accounts {
		c.Accounts[i] = s.Accounts[i].Clone()
	}

	c.Records = make([]addrpool.Record, len(s.Records))
	for i := range s.Records {
		c.Records[i] = s.Records[i].Clone()
	}

	c.FeeTiers = append(txfee.Menu(nil), s.FeeTiers...)

	return c
}

// Available returns the spendable value across all accounts.
func (s *State) Available() btcutil.Amount {
	var total btcutil.Amount
	for i := range s.Accounts {
		total += s.Accounts[i].Available
	}
	return total
}

// Account returns the account at index i.
func (s *State) Account(i int) (*Account, error) {
	if i < 0 || i >= len(s.Accounts) {
		return nil, fmt.Errorf("%w: %d of %d", ErrAccountIndex, i,
			len(s.Accounts))
	}
	return &s.Accounts[i], nil
}

// DefaultTarget returns the address a claim on the account at index i pays
// to when the user picks none: the current address of the destination
// account with the same id, or of the first destination account.
func (s *State) DefaultTarget(i int) (string, bool) {
	if len(s.Records) == 0 {
		return "", false
	}

	record := s.Records[0]
	if acct, err := s.Account(i); err == nil {
		for _, r := range s.Records {
			if r.AccountID == acct.ID {
				record = r
				break
			}
		}
	}

	addr, err := record.CurrentAddress()
	if err != nil {
		return "", false
	}
	return addr, true
}
