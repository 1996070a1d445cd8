// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package claim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/forkclaim/addrpool"
	"github.com/btcsuite/forkclaim/device"
	"github.com/btcsuite/forkclaim/netparams"
	"github.com/btcsuite/forkclaim/txfee"
	"github.com/btcsuite/forkclaim/utxoset"
	"github.com/davecgh/go-spew/spew"
)

// ClaimState is the position of the orchestrator in the claim flow.
type ClaimState uint8

const (
	// StateIdle means no claim is in progress.
	StateIdle ClaimState = iota

	// StateAwaitingSignature means the device is asked to sign.
	StateAwaitingSignature

	// StateAwaitingBroadcast means the signed transaction is being
	// published.
	StateAwaitingBroadcast

	// StateSettled means the last claim was accepted and applied.
	StateSettled
)

// String returns a human readable name of the state.
func (s ClaimState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSignature:
		return "awaiting signature"
	case StateAwaitingBroadcast:
		return "awaiting broadcast"
	case StateSettled:
		return "settled"
	default:
		return fmt.Sprintf("unknown state %d", uint8(s))
	}
}

// inFlight reports whether the state waits on a remote call.
func (s ClaimState) inFlight() bool {
	return s == StateAwaitingSignature || s == StateAwaitingBroadcast
}

// ClaimRequest describes one claim transaction: every spendable output of an
// account paid to a single output.
type ClaimRequest struct {
	AccountIndex int
	AccountID    uint32

	// Target is the address receiving the claimed funds.
	Target string

	Tier   txfee.FeeTier
	Fee    btcutil.Amount
	Amount btcutil.Amount

	// Inputs are the account's spendable outputs.
	Inputs []utxoset.Output

	// Output is the single claim output.
	Output device.TxOutput
}

// NewClaimRequest validates a claim of the account at accountIndex to target
// at the given fee tier.  Only local checks are made; it fails with
// ErrInvalidAddress, ErrNothingToClaim or ErrAmountTooLow.
func NewClaimRequest(state *State, accountIndex int, target string,
	tier txfee.FeeTier, origin *netparams.Params) (*ClaimRequest, error) {

	if state.NeedsDiscovery {
		return nil, ErrAddressPoolExhausted
	}

	acct, err := state.Account(accountIndex)
	if err != nil {
		return nil, err
	}

	script, err := OutputScript(target, origin.Params)
	if err != nil {
		return nil, err
	}

	if len(acct.SpendableOutputs) == 0 || acct.Available <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToClaim,
			acct.EmptyReason())
	}

	fee := tier.Fee(len(acct.SpendableOutputs), 1)
	amount := acct.Available - fee
	if amount <= 0 {
		return nil, fmt.Errorf("%w: fee %v exceeds available %v",
			ErrAmountTooLow, fee, acct.Available)
	}
	out := wire.NewTxOut(int64(amount), script)
	if txrules.IsDustOutput(out, txrules.DefaultRelayFeePerKb) {
		return nil, fmt.Errorf("%w: output of %v is dust",
			ErrAmountTooLow, amount)
	}

	return &ClaimRequest{
		AccountIndex: accountIndex,
		AccountID:    acct.ID,
		Target:       target,
		Tier:         tier,
		Fee:          fee,
		Amount:       amount,
		Inputs:       utxoset.Clone(acct.SpendableOutputs),
		Output: device.TxOutput{
			Address: target,
			Value:   amount,
		},
	}, nil
}

// Settlement describes a claim that was accepted by the network.
type Settlement struct {
	AccountID   uint32
	TxID        string
	ExplorerURL string
	Spent       btcutil.Amount
	Claimed     btcutil.Amount
	Fee         btcutil.Amount
	Inputs      int

	// PoolExhausted is set when the target's address pool ran out.  The
	// session must be discovered again before another claim.
	PoolExhausted bool
}

// Orchestrator drives a claim through signing and broadcast and applies the
// result to the account state.
type Orchestrator struct {
	channel    device.Channel
	origin     *netparams.Params
	inputLimit int
	notifier   Notifier

	mtx   sync.Mutex
	state ClaimState
}

// NewOrchestrator creates an orchestrator claiming on the origin chain
// through channel.  A nil notifier discards notifications.
func NewOrchestrator(channel device.Channel, origin *netparams.Params,
	inputLimit int, notifier Notifier) *Orchestrator {

	if inputLimit <= 0 {
		inputLimit = utxoset.InputLimit
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	return &Orchestrator{
		channel:    channel,
		origin:     origin,
		inputLimit: inputLimit,
		notifier:   notifier,
	}
}

// State returns the current claim state.
func (o *Orchestrator) State() ClaimState {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	return o.state
}

// transition moves to next, failing if a claim is already in flight and next
// starts a new one.
func (o *Orchestrator) transition(next ClaimState) error {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	if next == StateAwaitingSignature && o.state.inFlight() {
		return ErrClaimInFlight
	}

	log.Debugf("Claim state %v -> %v", o.state, next)
	o.state = next
	return nil
}

// Submit signs and broadcasts req and returns the state after settlement.
// On any failure the returned error wraps ErrSigningFailure or
// ErrBroadcastFailure together with the remote error, and state is returned
// untouched.
func (o *Orchestrator) Submit(ctx context.Context, state State,
	req *ClaimRequest) (State, *Settlement, error) {

	if err := checkRequest(&state, req); err != nil {
		return state, nil, err
	}

	if err := o.transition(StateAwaitingSignature); err != nil {
		return state, nil, err
	}

	signReq := device.SignRequest{
		AccountID:    req.AccountID,
		Inputs:       utxoset.Clone(req.Inputs),
		Outputs:      []device.TxOutput{req.Output},
		FirmwareHint: device.FirmwareHint,
		TxType:       o.origin.TxType,
	}
	log.Infof("Requesting signature for claim of %v from account %d "+
		"(%d %s, fee %v)", req.Amount, req.AccountID, len(req.Inputs),
		pickNoun(len(req.Inputs), "input", "inputs"), req.Fee)
	log.Tracef("Sign request: %v", newLogClosure(func() string {
		return spew.Sdump(signReq)
	}))

	signed, err := o.channel.Sign(ctx, signReq)
	if err != nil {
		return state, nil, o.fail(StateAwaitingSignature,
			fmt.Errorf("%w: %w", ErrSigningFailure, err))
	}

	_ = o.transition(StateAwaitingBroadcast)

	txid, err := o.channel.Broadcast(ctx, signed)
	if err != nil {
		return state, nil, o.fail(StateAwaitingBroadcast,
			fmt.Errorf("%w: %w", ErrBroadcastFailure, err))
	}

	next, settlement := o.settle(&state, req, txid)

	_ = o.transition(StateSettled)
	o.notifier.ClaimSettled(
		req.AccountID, req.Amount, req.Fee, next.Available(),
	)

	log.Infof("Claimed %v from account %d in transaction %v",
		req.Amount, req.AccountID, txid)

	return next, settlement, nil
}

// fail returns the orchestrator to idle and reports err.
func (o *Orchestrator) fail(stage ClaimState, err error) error {
	log.Errorf("Claim failed while %v: %v", stage, err)

	_ = o.transition(StateIdle)
	o.notifier.ClaimFailed(stage, err)

	return err
}

// settle applies a broadcast claim to a copy of state.
func (o *Orchestrator) settle(state *State, req *ClaimRequest,
	txid string) (State, *Settlement) {

	next := state.Clone()
	result := ClaimResult{
		TxID:        txid,
		ExplorerURL: o.origin.TxURL(txid),
	}

	acct := &next.Accounts[req.AccountIndex]
	*acct = acct.settle(req.Inputs, result, o.inputLimit)

	settlement := &Settlement{
		AccountID:   req.AccountID,
		TxID:        txid,
		ExplorerURL: result.ExplorerURL,
		Spent:       utxoset.Sum(req.Inputs),
		Claimed:     req.Amount,
		Fee:         req.Fee,
		Inputs:      len(req.Inputs),
	}

	i := addrpool.Find(next.Records, req.Target)
	if i < 0 {
		log.Debugf("Target %s is not a derived address", req.Target)
		return next, settlement
	}

	advanced, err := next.Records[i].Advance()
	switch {
	case errors.Is(err, addrpool.ErrAddressPoolExhausted):
		log.Warnf("No unused address left for %s, discover again "+
			"before the next claim", next.Records[i].Label())
		next.Records[i] = advanced.MarkExhausted()
		next.NeedsDiscovery = true
		settlement.PoolExhausted = true

	default:
		next.Records[i] = advanced
	}

	return next, settlement
}

// checkRequest makes sure req was built from the account as it is in state.
func checkRequest(state *State, req *ClaimRequest) error {
	if state.NeedsDiscovery {
		return ErrAddressPoolExhausted
	}

	acct, err := state.Account(req.AccountIndex)
	if err != nil {
		return err
	}
	if acct.ID != req.AccountID ||
		len(acct.SpendableOutputs) != len(req.Inputs) {

		return ErrStaleRequest
	}
	for i := range req.Inputs {
		if acct.SpendableOutputs[i].OutPoint != req.Inputs[i].OutPoint {
			return ErrStaleRequest
		}
	}

	return nil
}
