// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// This file contains a mock implementation of the device.Channel interface
// and the fixtures shared by the claim tests.

package claim

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/forkclaim/device"
	"github.com/btcsuite/forkclaim/netparams"
	"github.com/btcsuite/forkclaim/txfee"
	"github.com/btcsuite/forkclaim/utxoset"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockChannel is a mock implementation of the device.Channel interface.
type mockChannel struct {
	mock.Mock
}

// A compile-time assertion to ensure that mockChannel implements the Channel
// interface.
var _ device.Channel = (*mockChannel)(nil)

// DiscoverAccounts implements the device.Channel interface.
func (m *mockChannel) DiscoverAccounts(ctx context.Context,
	req device.DiscoverRequest) (*device.Discovery, error) {

	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*device.Discovery), args.Error(1)
}

// VerifyAddress implements the device.Channel interface.
func (m *mockChannel) VerifyAddress(ctx context.Context,
	req device.VerifyRequest) error {

	args := m.Called(ctx, req)
	return args.Error(0)
}

// Sign implements the device.Channel interface.
func (m *mockChannel) Sign(ctx context.Context,
	req device.SignRequest) ([]byte, error) {

	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

// Broadcast implements the device.Channel interface.
func (m *mockChannel) Broadcast(ctx context.Context,
	serializedTx []byte) (string, error) {

	args := m.Called(ctx, serializedTx)
	return args.String(0), args.Error(1)
}

// mockNotifier records notifications.
type mockNotifier struct {
	mock.Mock
}

var _ Notifier = (*mockNotifier)(nil)

func (m *mockNotifier) AccountsDiscovered(accounts int,
	available btcutil.Amount) {

	m.Called(accounts, available)
}

func (m *mockNotifier) DiscoveryFailed(err error) {
	m.Called(err)
}

func (m *mockNotifier) ClaimSettled(accountID uint32, claimed, fee,
	available btcutil.Amount) {

	m.Called(accountID, claimed, fee, available)
}

func (m *mockNotifier) ClaimFailed(stage ClaimState, err error) {
	m.Called(stage, err)
}

// hardened is the offset of hardened derivation indices.
const hardened uint32 = hdkeychain.HardenedKeyStart

// testOrigin is the chain claimed on in tests.
var testOrigin = &netparams.ForkMainNetParams

// testDestination is the chain addresses are derived for in tests.
var testDestination = &netparams.MainNetParams

// testAddress returns a main network P2PKH address derived from seed.
func testAddress(t *testing.T, seed byte) string {
	t.Helper()

	hash := make([]byte, 20)
	for i := range hash {
		hash[i] = seed
	}
	addr, err := btcutil.NewAddressPubKeyHash(
		hash, &chaincfg.MainNetParams,
	)
	require.NoError(t, err)

	return addr.EncodeAddress()
}

// testAddresses returns n distinct addresses starting at seed.
func testAddresses(t *testing.T, seed byte, n int) []string {
	t.Helper()

	addrs := make([]string, n)
	for i := range addrs {
		addrs[i] = testAddress(t, seed+byte(i))
	}
	return addrs
}

// testOutput returns an output of value at height whose outpoint is derived
// from n.
func testOutput(n int, value btcutil.Amount, height int32) utxoset.Output {
	var hash chainhash.Hash
	hash[0] = byte(n)
	hash[1] = byte(n >> 8)
	hash[31] = 0xcc

	return utxoset.Output{
		OutPoint: wire.OutPoint{Hash: hash, Index: uint32(n % 3)},
		Value:    value,
		Height:   height,
	}
}

// testOutputs returns n confirmed outputs of value each.
func testOutputs(n int, value btcutil.Amount, height int32) []utxoset.Output {
	outputs := make([]utxoset.Output, n)
	for i := range outputs {
		outputs[i] = testOutput(i, value, height)
	}
	return outputs
}

// testFees are discovery fee tiers, highest priority first.
var testFees = []txfee.FeeTier{
	{Name: "High", MaxFeeRate: 100},
	{Name: "Normal", MaxFeeRate: 50},
	{Name: "Economy", MaxFeeRate: 20},
	{Name: "Low", MaxFeeRate: 10},
}

// testDiscovery returns a discovery with a funded account 0 holding outputs,
// an empty account 1 and destination accounts 0 and 1.
func testDiscovery(t *testing.T,
	outputs []utxoset.Output) *device.Discovery {

	t.Helper()

	return &device.Discovery{
		OriginAccounts: []device.AccountInfo{
			{
				ID:              0,
				Balance:         utxoset.Sum(outputs),
				LastBlockHeight: 500000,
				UTXOs:           outputs,
			},
			{
				ID:              1,
				LastBlockHeight: 500000,
			},
		},
		DestinationAccounts: []device.AddressInfo{
			{
				ID:              0,
				BasePath:        testDestination.BasePath(0),
				UsedAddresses:   testAddresses(t, 200, 12),
				UnusedAddresses: testAddresses(t, 1, 20),
			},
			{
				ID:              1,
				BasePath:        testDestination.BasePath(1),
				UnusedAddresses: testAddresses(t, 100, 20),
			},
		},
		Fees: testFees,
	}
}
