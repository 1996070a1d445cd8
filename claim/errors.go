// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package claim

import (
	"errors"

	"github.com/btcsuite/forkclaim/addrpool"
)

var (
	// ErrDiscoveryFailure is returned when the device fails to discover
	// accounts.  No state is committed.
	ErrDiscoveryFailure = errors.New("account discovery failed")

	// ErrSigningFailure is returned when the device declines or fails to
	// sign a claim transaction.  Account state is unchanged.
	ErrSigningFailure = errors.New("failed to sign transaction")

	// ErrBroadcastFailure is returned when a signed claim transaction is
	// not accepted by the network.  Account state is unchanged and the
	// signed transaction is discarded.
	ErrBroadcastFailure = errors.New("failed to send transaction")

	// ErrVerifyFailure is returned when the device fails to display or
	// confirm an address.
	ErrVerifyFailure = errors.New("address verification failed")

	// ErrInvalidAddress is returned when the target address cannot be
	// paid to on the origin chain.
	ErrInvalidAddress = errors.New("not a valid address")

	// ErrAmountTooLow is returned when the fee leaves nothing, or only
	// dust, to claim.
	ErrAmountTooLow = errors.New("amount is too low")

	// ErrAddressPoolExhausted is returned when a derived account has no
	// unused address left.  A fresh discovery is required.
	ErrAddressPoolExhausted = addrpool.ErrAddressPoolExhausted

	// ErrNothingToClaim is returned when the account has no spendable
	// outputs.
	ErrNothingToClaim = errors.New("no funds to claim in this account")

	// ErrNotDiscovered is returned when an action needs discovered
	// accounts and discovery has not succeeded yet.
	ErrNotDiscovered = errors.New("accounts not discovered")

	// ErrAccountIndex is returned for an account index outside the
	// discovered list.
	ErrAccountIndex = errors.New("account index out of range")

	// ErrClaimInFlight is returned when a request is made while a claim
	// is waiting on the device or the network.
	ErrClaimInFlight = errors.New("a claim is already in progress")

	// ErrStaleRequest is returned when a claim request no longer matches
	// the account it was built from.
	ErrStaleRequest = errors.New("claim request does not match account " +
		"state")

	// ErrAddressNotDerived is returned when an address to verify is not
	// the current address of any derived account.
	ErrAddressNotDerived = errors.New("address is not a derived account " +
		"address")
)
