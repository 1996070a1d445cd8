// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package claim

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/forkclaim/device"
	"github.com/btcsuite/forkclaim/utxoset"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestSession returns a session whose channel discovers disc.
func newTestSession(t *testing.T, disc *device.Discovery) (*Session,
	*mockChannel) {

	t.Helper()

	channel := &mockChannel{}
	channel.On("DiscoverAccounts", mock.Anything, mock.MatchedBy(
		func(req device.DiscoverRequest) bool {
			return req.AccountLimit == device.DiscoveryLimit &&
				req.Origin == testOrigin &&
				req.Destination == testDestination &&
				req.DerivedAccounts
		},
	)).Return(disc, nil).Once()

	s := NewSession(Config{
		Channel:            channel,
		Origin:             testOrigin,
		Destination:        testDestination,
		UseDerivedAccounts: true,
	})
	require.NoError(t, s.Discover(context.Background()))

	return s, channel
}

// TestSessionDiscover checks discovery and its failure handling.
func TestSessionDiscover(t *testing.T) {
	t.Parallel()

	disc := testDiscovery(t, []utxoset.Output{
		testOutput(0, 100000, 499000),
	})

	channel := &mockChannel{}
	remote := &device.RemoteError{Message: "Device disconnected"}
	channel.On("DiscoverAccounts", mock.Anything, mock.Anything).
		Return(nil, remote).Once()
	channel.On("DiscoverAccounts", mock.Anything, mock.Anything).
		Return(disc, nil).Once()

	notifier := &mockNotifier{}
	notifier.On("DiscoveryFailed", mock.Anything).Once()
	notifier.On("AccountsDiscovered", 2, btcutil.Amount(100000)).Once()

	s := NewSession(Config{
		Channel:     channel,
		Origin:      testOrigin,
		Destination: testDestination,
		Notifier:    notifier,
	})

	snap := s.Snapshot()
	require.False(t, snap.Discovered)
	require.Equal(t, StateIdle, snap.ClaimState)

	_, err := s.Quote("", -1)
	require.ErrorIs(t, err, ErrNotDiscovered)

	err = s.Discover(context.Background())
	require.ErrorIs(t, err, ErrDiscoveryFailure)
	require.ErrorIs(t, err, remote)

	snap = s.Snapshot()
	require.False(t, snap.Discovered)
	require.True(t, snap.LastError.IsSome())

	require.NoError(t, s.Discover(context.Background()))

	snap = s.Snapshot()
	require.True(t, snap.Discovered)
	require.False(t, snap.LastError.IsSome())
	require.Len(t, snap.Accounts, 2)

	// Derived accounts are off, so no records are kept.
	require.Empty(t, snap.Records)

	channel.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

// TestSessionFailedRediscoveryKeepsState checks that a failed discovery does
// not drop what was discovered before.
func TestSessionFailedRediscoveryKeepsState(t *testing.T) {
	t.Parallel()

	s, channel := newTestSession(t, testDiscovery(t, []utxoset.Output{
		testOutput(0, 100000, 499000),
	}))
	before := s.Snapshot()

	channel.On("DiscoverAccounts", mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout")).Once()
	require.ErrorIs(t, s.Discover(context.Background()),
		ErrDiscoveryFailure)

	after := s.Snapshot()
	require.Equal(t, before.Accounts, after.Accounts)
	require.Equal(t, before.Records, after.Records)
	require.True(t, after.LastError.IsSome())

	s.DismissError()
	require.False(t, s.Snapshot().LastError.IsSome())
}

// TestSessionQuote checks the defaults chosen for a claim preview.
func TestSessionQuote(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t, testDiscovery(t, []utxoset.Output{
		testOutput(0, 100000, 499000),
	}))

	q, err := s.Quote("", -1)
	require.NoError(t, err)
	require.Equal(t, 1, q.TierIndex)
	require.Equal(t, "Economy", q.Tier.Name)
	require.Equal(t, btcutil.Amount(3860), q.Fee)
	require.Equal(t, btcutil.Amount(96140), q.Amount)
	require.Equal(t, testAddress(t, 1), q.Address)
	require.True(t, q.AddressValid)
	require.True(t, q.AddressOwned)
	require.Equal(t, "Account #1", q.AddressLabel)
	require.True(t, q.CanSubmit())

	q, err = s.Quote(testAddress(t, 250), 3)
	require.NoError(t, err)
	require.Equal(t, "High", q.Tier.Name)
	require.Equal(t, btcutil.Amount(19300), q.Fee)
	require.False(t, q.AddressOwned)
	require.True(t, q.CanSubmit())

	q, err = s.Quote("bogus", -1)
	require.NoError(t, err)
	require.False(t, q.AddressValid)
	require.ErrorIs(t, q.Blocker, ErrInvalidAddress)
	require.False(t, q.CanSubmit())

	_, err = s.Quote("", 9)
	require.Error(t, err)

	// The second account holds nothing.
	require.NoError(t, s.SelectAccount(1))
	q, err = s.Quote("", -1)
	require.NoError(t, err)
	require.ErrorIs(t, q.Blocker, ErrNothingToClaim)

	require.ErrorIs(t, s.SelectAccount(2), ErrAccountIndex)
}

// TestSessionQuoteFallbackTier checks that the cheapest tier is picked when
// the default one would consume everything.
func TestSessionQuoteFallbackTier(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t, testDiscovery(t, []utxoset.Output{
		testOutput(0, 3000, 499000),
	}))

	q, err := s.Quote("", -1)
	require.NoError(t, err)
	require.Equal(t, 0, q.TierIndex)
	require.Equal(t, "Low", q.Tier.Name)
	require.Equal(t, btcutil.Amount(1930), q.Fee)
	require.Equal(t, btcutil.Amount(1070), q.Amount)
	require.True(t, q.CanSubmit())
}

// TestSessionSubmitClaim checks a claim through the session.
func TestSessionSubmitClaim(t *testing.T) {
	t.Parallel()

	s, channel := newTestSession(t, testDiscovery(t, []utxoset.Output{
		testOutput(0, 100000, 499000),
	}))

	channel.On("Sign", mock.Anything, mock.Anything).
		Return([]byte{0x02}, nil).Once()
	channel.On("Broadcast", mock.Anything, []byte{0x02}).
		Return("dd", nil).Once()

	settlement, err := s.SubmitClaim(context.Background(), "", -1)
	require.NoError(t, err)
	require.Equal(t, "dd", settlement.TxID)
	require.Equal(t, btcutil.Amount(96140), settlement.Claimed)

	snap := s.Snapshot()
	require.Equal(t, StateSettled, snap.ClaimState)
	require.False(t, snap.LastError.IsSome())
	require.True(t, snap.LastSettlement.IsSome())
	require.Equal(t, AlreadyClaimed, snap.Accounts[0].EmptyReason())
	require.Equal(t, 1, snap.Records[0].AddressIndex)

	// The next default target is the following unused address.
	q, err := s.Quote("", -1)
	require.NoError(t, err)
	require.Equal(t, testAddress(t, 2), q.Address)
	require.ErrorIs(t, q.Blocker, ErrNothingToClaim)

	channel.AssertExpectations(t)
}

// TestSessionSubmitLocalFailure checks that validation failures make no
// remote call and are not recorded.
func TestSessionSubmitLocalFailure(t *testing.T) {
	t.Parallel()

	s, channel := newTestSession(t, testDiscovery(t, []utxoset.Output{
		testOutput(0, 100000, 499000),
	}))

	_, err := s.SubmitClaim(context.Background(), "bogus", -1)
	require.ErrorIs(t, err, ErrInvalidAddress)
	require.True(t, IsLocalError(err))

	snap := s.Snapshot()
	require.False(t, snap.LastError.IsSome())
	require.Equal(t, StateIdle, snap.ClaimState)
	channel.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
}

// TestSessionSubmitRemoteFailure checks that remote failures are recorded
// and leave the accounts untouched.
func TestSessionSubmitRemoteFailure(t *testing.T) {
	t.Parallel()

	s, channel := newTestSession(t, testDiscovery(t, []utxoset.Output{
		testOutput(0, 100000, 499000),
	}))
	before := s.Snapshot()

	remote := &device.RemoteError{Code: "-25", Message: "Missing inputs"}
	channel.On("Sign", mock.Anything, mock.Anything).
		Return([]byte{0x02}, nil).Once()
	channel.On("Broadcast", mock.Anything, mock.Anything).
		Return("", remote).Once()

	_, err := s.SubmitClaim(context.Background(), "", -1)
	require.ErrorIs(t, err, ErrBroadcastFailure)
	require.False(t, IsLocalError(err))

	snap := s.Snapshot()
	require.Equal(t, before.Accounts, snap.Accounts)
	require.Equal(t, before.Records, snap.Records)
	require.Equal(t, StateIdle, snap.ClaimState)

	lastErr := snap.LastError.UnwrapOr(nil)
	require.ErrorIs(t, lastErr, remote)
	require.Contains(t, lastErr.Error(), "-25: Missing inputs")

	require.NoError(t, s.SelectAccount(0))
	require.False(t, s.Snapshot().LastError.IsSome())
}

// TestSessionSubmitPoolExhausted checks that running out of addresses is
// reported and blocks further claims.
func TestSessionSubmitPoolExhausted(t *testing.T) {
	t.Parallel()

	disc := testDiscovery(t, testOutputs(400, 10000, 499000))
	disc.DestinationAccounts[0].UnusedAddresses =
		disc.DestinationAccounts[0].UnusedAddresses[:1]

	s, channel := newTestSession(t, disc)
	channel.On("Sign", mock.Anything, mock.Anything).
		Return([]byte{0x03}, nil).Once()
	channel.On("Broadcast", mock.Anything, mock.Anything).
		Return("ee", nil).Once()

	settlement, err := s.SubmitClaim(context.Background(), "", -1)
	require.NoError(t, err)
	require.True(t, settlement.PoolExhausted)

	snap := s.Snapshot()
	require.True(t, snap.NeedsDiscovery)
	require.ErrorIs(t, snap.LastError.UnwrapOr(nil),
		ErrAddressPoolExhausted)

	// Fifty outputs remain but cannot be claimed before rediscovery.
	require.Equal(t, btcutil.Amount(500000), snap.Accounts[0].Available)
	_, err = s.SubmitClaim(context.Background(), testAddress(t, 250), -1)
	require.ErrorIs(t, err, ErrAddressPoolExhausted)

	channel.AssertExpectations(t)
}

// TestSessionVerifyAddress checks the request sent to display an address.
func TestSessionVerifyAddress(t *testing.T) {
	t.Parallel()

	s, channel := newTestSession(t, testDiscovery(t, []utxoset.Output{
		testOutput(0, 100000, 499000),
	}))

	address := testAddress(t, 100)
	channel.On("VerifyAddress", mock.Anything, device.VerifyRequest{
		Path: []uint32{
			hardened + 44, hardened + 0, hardened + 1, 0, 0,
		},
		Address: address,
		TxType:  "Bcash",
		Segwit:  false,
	}).Return(nil).Once()

	require.NoError(t, s.VerifyAddress(context.Background(), address))

	err := s.VerifyAddress(context.Background(), testAddress(t, 250))
	require.ErrorIs(t, err, ErrAddressNotDerived)

	channel.AssertExpectations(t)
}

// TestSessionVerifyAddressFailure checks that a device failure during
// verification is recorded until dismissed.
func TestSessionVerifyAddressFailure(t *testing.T) {
	t.Parallel()

	s, channel := newTestSession(t, testDiscovery(t, []utxoset.Output{
		testOutput(0, 100000, 499000),
	}))

	address := testAddress(t, 100)
	channel.On("VerifyAddress", mock.Anything, mock.Anything).Return(
		&device.RemoteError{Message: "Cancelled by user"},
	).Once()

	err := s.VerifyAddress(context.Background(), address)
	require.ErrorIs(t, err, ErrVerifyFailure)

	var remote *device.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, "Cancelled by user", remote.Message)
	require.False(t, IsLocalError(err))

	snap := s.Snapshot()
	require.True(t, snap.LastError.IsSome())
	lastErr := snap.LastError.UnwrapOr(nil)
	require.ErrorIs(t, lastErr, ErrVerifyFailure)

	s.DismissError()
	require.True(t, s.Snapshot().LastError.IsNone())

	channel.AssertExpectations(t)
}

// TestSessionSnapshotIsolation checks that snapshots do not share memory
// with the session.
func TestSessionSnapshotIsolation(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t, testDiscovery(t, []utxoset.Output{
		testOutput(0, 100000, 499000),
	}))

	snap := s.Snapshot()
	snap.Accounts[0].SpendableOutputs[0].Value = 1
	snap.Records[0].UnusedAddresses[0] = "changed"

	again := s.Snapshot()
	require.Equal(t, btcutil.Amount(100000),
		again.Accounts[0].SpendableOutputs[0].Value)
	require.Equal(t, testAddress(t, 1),
		again.Records[0].UnusedAddresses[0])
}
