// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrpool tracks, per destination account, a pool of unused receive
// addresses and which of them is handed out next.
//
// A Record is a value.  Advance returns a new Record rather than modifying the
// receiver so that snapshots handed to readers never change under them.
package addrpool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

var (
	// ErrEmptyPool is returned when a record is created without any unused
	// addresses.
	ErrEmptyPool = errors.New("address pool is empty")

	// ErrAddressPoolExhausted is returned when the pointer cannot move past
	// the last unused address.  A fresh discovery is needed to refill the
	// pool.
	ErrAddressPoolExhausted = errors.New("address pool exhausted")
)

// ExternalBranch is the BIP44 branch for receive addresses.
const ExternalBranch = 0

// Record is the address state of one destination account.
type Record struct {
	// AccountID correlates the record with the origin account of the same
	// index.
	AccountID uint32

	// BasePath is the account-level derivation path.
	BasePath []uint32

	// UnusedAddresses are fresh receive addresses in derivation order.
	UnusedAddresses []string

	// AddressIndex points into UnusedAddresses.
	AddressIndex int

	// UsedCount is the number of receive addresses already used on the
	// account.  It is the final component of the current derivation path.
	UsedCount uint32

	// Exhausted is set once the current address was used and no further
	// address was left to move to.
	Exhausted bool
}

// NewRecord creates a record pointing at the first unused address.
func NewRecord(accountID uint32, basePath []uint32, unused []string,
	usedCount uint32) (Record, error) {

	if len(unused) == 0 {
		return Record{}, fmt.Errorf("account %d: %w", accountID,
			ErrEmptyPool)
	}

	return Record{
		AccountID:       accountID,
		BasePath:        append([]uint32(nil), basePath...),
		UnusedAddresses: append([]string(nil), unused...),
		UsedCount:       usedCount,
	}, nil
}

// Label returns the display name of the record's account.
func (r Record) Label() string {
	return fmt.Sprintf("Account #%d", r.AccountID+1)
}

// CurrentAddress returns the address to hand out next.
func (r Record) CurrentAddress() (string, error) {
	if r.Exhausted {
		return "", fmt.Errorf("account %d: %w", r.AccountID,
			ErrAddressPoolExhausted)
	}
	if r.AddressIndex < 0 || r.AddressIndex >= len(r.UnusedAddresses) {
		return "", fmt.Errorf("account %d: %w", r.AccountID,
			ErrEmptyPool)
	}
	return r.UnusedAddresses[r.AddressIndex], nil
}

// Holds reports whether address is the record's current address.
func (r Record) Holds(address string) bool {
	current, err := r.CurrentAddress()
	return err == nil && current == address
}

// DerivationPath returns BasePath + [0, UsedCount].
func (r Record) DerivationPath() []uint32 {
	path := make([]uint32, 0, len(r.BasePath)+2)
	path = append(path, r.BasePath...)
	return append(path, ExternalBranch, r.UsedCount)
}

// Advance moves to the next unused address.  At the last address the record
// is returned unchanged together with ErrAddressPoolExhausted.
func (r Record) Advance() (Record, error) {
	if r.AddressIndex+1 >= len(r.UnusedAddresses) {
		return r, fmt.Errorf("account %d: %w", r.AccountID,
			ErrAddressPoolExhausted)
	}

	next := r.Clone()
	next.AddressIndex++
	next.UsedCount++
	return next, nil
}

// MarkExhausted returns a copy of the record that no longer hands out its
// current address.
func (r Record) MarkExhausted() Record {
	next := r.Clone()
	next.Exhausted = true
	return next
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	r.BasePath = append([]uint32(nil), r.BasePath...)
	r.UnusedAddresses = append([]string(nil), r.UnusedAddresses...)
	return r
}

// FormatPath renders a derivation path in the usual m/44'/0'/0'/0/5 form.
func FormatPath(path []uint32) string {
	var b strings.Builder
	b.WriteString("m")
	for _, index := range path {
		if index >= hdkeychain.HardenedKeyStart {
			fmt.Fprintf(&b, "/%d'", index-hdkeychain.HardenedKeyStart)
			continue
		}
		fmt.Fprintf(&b, "/%d", index)
	}
	return b.String()
}

// Find returns the position of the record currently holding address, or -1.
func Find(records []Record, address string) int {
	for i := range records {
		if records[i].Holds(address) {
			return i
		}
	}
	return -1
}

// Owns reports whether address is any unused address of any record, and the
// label of the account it belongs to.
func Owns(records []Record, address string) (string, bool) {
	for i := range records {
		for _, unused := range records[i].UnusedAddresses {
			if unused == address {
				return records[i].Label(), true
			}
		}
	}
	return "", false
}
