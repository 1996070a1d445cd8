// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package device defines the channel to the signing device that discovers
// accounts, displays addresses, signs claim transactions and publishes them.
//
// Every call blocks until the remote side resolves or ctx is done.  The
// channel owns timeouts and cancellation.  Failures reported by the remote
// side are returned as *RemoteError so their payload reaches the user
// verbatim.
package device

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/forkclaim/netparams"
	"github.com/btcsuite/forkclaim/txfee"
	"github.com/btcsuite/forkclaim/utxoset"
)

const (
	// FirmwareHint is the minimum firmware version able to sign claim
	// transactions.
	FirmwareHint = "1.5.1"

	// DiscoveryLimit is the maximum number of accounts discovery
	// reports.
	DiscoveryLimit = 30
)

// Channel is the narrow interface to the signing device.
type Channel interface {
	// DiscoverAccounts scans the origin chain for accounts holding
	// unspent outputs and the destination chain for receive addresses.
	DiscoverAccounts(ctx context.Context, req DiscoverRequest) (*Discovery,
		error)

	// VerifyAddress asks the device to show the address at a derivation
	// path.  The response carries no state.
	VerifyAddress(ctx context.Context, req VerifyRequest) error

	// Sign returns the serialized signed transaction.
	Sign(ctx context.Context, req SignRequest) ([]byte, error)

	// Broadcast publishes a signed transaction and returns its id.
	Broadcast(ctx context.Context, serializedTx []byte) (string, error)
}

// DiscoverRequest names the two chains to scan.
type DiscoverRequest struct {
	Origin      *netparams.Params
	Destination *netparams.Params

	// AccountLimit is the maximum number of accounts reported.  Zero
	// means no limit.
	AccountLimit int

	// DerivedAccounts asks for destination account address pools.  When
	// unset no destination addresses are queried or generated.
	DerivedAccounts bool
}

// Discovery is a successful discovery response.
type Discovery struct {
	// OriginAccounts are the origin chain accounts in discovery order.
	OriginAccounts []AccountInfo

	// DestinationAccounts are the destination chain accounts.
	DestinationAccounts []AddressInfo

	// Fees are the fee tiers from highest to lowest priority.
	Fees []txfee.FeeTier
}

// AccountInfo is the balance snapshot of one origin account.
type AccountInfo struct {
	ID              uint32
	Balance         btcutil.Amount
	LastBlockHeight int32
	UTXOs           []utxoset.Output
	Segwit          bool
}

// AddressInfo is the address snapshot of one destination account.
type AddressInfo struct {
	ID              uint32
	BasePath        []uint32
	UsedAddresses   []string
	UnusedAddresses []string
}

// VerifyRequest asks the device to display an address.
type VerifyRequest struct {
	Path    []uint32
	Address string
	TxType  string
	Segwit  bool
}

// TxOutput is a claim transaction output.
type TxOutput struct {
	Address string
	Value   btcutil.Amount
}

// SignRequest asks the device to sign a claim transaction.
type SignRequest struct {
	AccountID    uint32
	Inputs       []utxoset.Output
	Outputs      []TxOutput
	FirmwareHint string
	TxType       string
}

// RemoteError is a failure reported by the remote side.
type RemoteError struct {
	// Code is the remote error code, if any.
	Code string

	// Message is the remote error message.
	Message string
}

// Error returns the remote message, prefixed by the code when present.
func (e *RemoteError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
