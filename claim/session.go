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
	"github.com/btcsuite/forkclaim/addrpool"
	"github.com/btcsuite/forkclaim/device"
	"github.com/btcsuite/forkclaim/netparams"
	"github.com/btcsuite/forkclaim/txfee"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Config configures a Session.
type Config struct {
	// Channel is the signing device.
	Channel device.Channel

	// Origin is the chain holding the outputs being claimed.
	Origin *netparams.Params

	// Destination is the chain receive addresses are derived for.
	Destination *netparams.Params

	// UseDerivedAccounts offers destination account addresses as claim
	// targets.
	UseDerivedAccounts bool

	// InputLimit caps the inputs of one claim.  Zero means
	// utxoset.InputLimit.
	InputLimit int

	// Notifier is optional.
	Notifier Notifier
}

// Snapshot is a read-only copy of the session for display.
type Snapshot struct {
	// Discovered is false until the first successful discovery.
	Discovered bool

	Accounts      []Account
	ActiveAccount int
	Records       []addrpool.Record
	FeeTiers      txfee.Menu

	// ClaimState is the orchestrator state.
	ClaimState ClaimState

	// NeedsDiscovery is set when accounts must be discovered again.
	NeedsDiscovery bool

	// LastError is the last dismissible error.
	LastError fn.Option[error]

	// LastSettlement is the most recent accepted claim.
	LastSettlement fn.Option[Settlement]
}

// Quote is the preview of a claim shown before submission.
type Quote struct {
	AccountIndex int
	TierIndex    int
	Tier         txfee.FeeTier
	Fee          btcutil.Amount
	Amount       btcutil.Amount

	Address      string
	AddressValid bool

	// AddressOwned reports whether Address belongs to a derived
	// destination account, and AddressLabel names that account.
	AddressOwned bool
	AddressLabel string

	// Blocker is the reason submission is disabled, nil when it is not.
	Blocker error
}

// CanSubmit reports whether the quoted claim may be submitted.
func (q *Quote) CanSubmit() bool {
	return q.Blocker == nil
}

// Session owns the discovered state for the lifetime of the process and
// exposes the actions a user can take.
type Session struct {
	cfg          Config
	orchestrator *Orchestrator
	notifier     Notifier

	mtx            sync.Mutex
	state          *State
	busy           bool
	lastErr        fn.Option[error]
	lastSettlement fn.Option[Settlement]
}

// NewSession creates a session with nothing discovered.
func NewSession(cfg Config) *Session {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	return &Session{
		cfg: cfg,
		orchestrator: NewOrchestrator(
			cfg.Channel, cfg.Origin, cfg.InputLimit, notifier,
		),
		notifier:       notifier,
		lastErr:        fn.None[error](),
		lastSettlement: fn.None[Settlement](),
	}
}

// acquire marks the session busy for a remote call.
func (s *Session) acquire() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.busy {
		return ErrClaimInFlight
	}
	s.busy = true
	return nil
}

// Discover asks the device for accounts and replaces the session state.  On
// failure the previous state is kept and the error is recorded.
func (s *Session) Discover(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}

	disc, err := s.cfg.Channel.DiscoverAccounts(ctx, device.DiscoverRequest{
		Origin:          s.cfg.Origin,
		Destination:     s.cfg.Destination,
		AccountLimit:    device.DiscoveryLimit,
		DerivedAccounts: s.cfg.UseDerivedAccounts,
	})

	var state *State
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDiscoveryFailure, err)
	} else {
		state, err = Reconcile(disc, ReconcileConfig{
			UseDerivedAccounts: s.cfg.UseDerivedAccounts,
			InputLimit:         s.cfg.InputLimit,
		})
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.busy = false

	if err != nil {
		log.Errorf("Discovery failed: %v", err)
		s.lastErr = fn.Some(err)
		s.notifier.DiscoveryFailed(err)
		return err
	}

	s.state = state
	s.lastErr = fn.None[error]()

	s.notifier.AccountsDiscovered(len(state.Accounts), state.Available())

	return nil
}

// VerifyAddress asks the device to display address, which must be the
// current address of a derived account.  A device failure is recorded as the
// last error.
func (s *Session) VerifyAddress(ctx context.Context, address string) error {
	s.mtx.Lock()
	if s.state == nil {
		s.mtx.Unlock()
		return ErrNotDiscovered
	}

	i := addrpool.Find(s.state.Records, address)
	if i < 0 {
		s.mtx.Unlock()
		return fmt.Errorf("%w: %s", ErrAddressNotDerived, address)
	}

	record := s.state.Records[i]
	segwit := s.cfg.Origin.RequiresSegwit ||
		s.cfg.Destination.RequiresSegwit
	if acct, err := s.state.Account(s.state.ActiveAccount); err == nil {
		segwit = segwit || acct.Segwit
	}
	s.mtx.Unlock()

	path := record.DerivationPath()
	log.Debugf("Showing %s (%s) on device", address,
		addrpool.FormatPath(path))

	// The response carries nothing this session needs.
	err := s.cfg.Channel.VerifyAddress(ctx, device.VerifyRequest{
		Path:    path,
		Address: address,
		TxType:  s.cfg.Origin.TxType,
		Segwit:  segwit,
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrVerifyFailure, err)
		log.Warnf("Verification of %s failed: %v", address, err)

		s.mtx.Lock()
		s.lastErr = fn.Some(err)
		s.mtx.Unlock()
		return err
	}

	return nil
}

// SelectAccount makes the account at index active and clears the error.
func (s *Session) SelectAccount(index int) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == nil {
		return ErrNotDiscovered
	}
	if _, err := s.state.Account(index); err != nil {
		return err
	}

	s.state.ActiveAccount = index
	s.lastErr = fn.None[error]()
	return nil
}

// DismissError clears the last error.
func (s *Session) DismissError() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.lastErr = fn.None[error]()
}

// Quote previews a claim of the active account.  An empty address selects the
// default derived address and a negative tier index selects the tier
// automatically.  Local validation failures are reported in Quote.Blocker;
// the returned error is only set when no quote can be made at all.
func (s *Session) Quote(address string, tierIndex int) (*Quote, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == nil {
		return nil, ErrNotDiscovered
	}
	return s.quote(s.state, address, tierIndex)
}

// quote builds a quote against state.  The caller must hold mtx.
func (s *Session) quote(state *State, address string,
	tierIndex int) (*Quote, error) {

	acct, err := state.Account(state.ActiveAccount)
	if err != nil {
		return nil, err
	}

	if tierIndex < 0 {
		tierIndex, err = state.FeeTiers.Choose(
			acct.Available, len(acct.SpendableOutputs),
		)
		if err != nil {
			return nil, err
		}
	}
	tier, err := state.FeeTiers.Tier(tierIndex)
	if err != nil {
		return nil, err
	}

	if address == "" {
		address, _ = state.DefaultTarget(state.ActiveAccount)
	}

	fee := tier.Fee(len(acct.SpendableOutputs), 1)
	q := &Quote{
		AccountIndex: state.ActiveAccount,
		TierIndex:    tierIndex,
		Tier:         tier,
		Fee:          fee,
		Amount:       acct.Available - fee,
		Address:      address,
		AddressValid: ValidAddress(address, s.cfg.Origin.Params),
	}
	q.AddressLabel, q.AddressOwned = addrpool.Owns(state.Records, address)

	_, q.Blocker = NewClaimRequest(
		state, state.ActiveAccount, address, tier, s.cfg.Origin,
	)

	return q, nil
}

// SubmitClaim claims the active account's spendable funds to address at the
// fee tier with index tierIndex, with the same defaults as Quote.  Local
// validation failures are returned without being recorded.  Remote failures
// are recorded as the dismissible error and leave the state untouched.
func (s *Session) SubmitClaim(ctx context.Context, address string,
	tierIndex int) (*Settlement, error) {

	s.mtx.Lock()
	if s.state == nil {
		s.mtx.Unlock()
		return nil, ErrNotDiscovered
	}
	if s.busy {
		s.mtx.Unlock()
		return nil, ErrClaimInFlight
	}

	q, err := s.quote(s.state, address, tierIndex)
	if err != nil {
		s.mtx.Unlock()
		return nil, err
	}
	if q.Blocker != nil {
		s.mtx.Unlock()
		return nil, q.Blocker
	}

	req, err := NewClaimRequest(
		s.state, q.AccountIndex, q.Address, q.Tier, s.cfg.Origin,
	)
	if err != nil {
		s.mtx.Unlock()
		return nil, err
	}

	s.busy = true
	base := s.state.Clone()
	s.mtx.Unlock()

	next, settlement, err := s.orchestrator.Submit(ctx, base, req)

	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.busy = false

	if err != nil {
		s.lastErr = fn.Some(err)
		return nil, err
	}

	// The user may have switched accounts while the claim was in flight.
	next.ActiveAccount = s.state.ActiveAccount
	s.state = &next
	s.lastErr = fn.None[error]()
	s.lastSettlement = fn.Some(*settlement)

	if settlement.PoolExhausted {
		s.lastErr = fn.Some[error](fmt.Errorf("claim %s settled: %w",
			settlement.TxID, ErrAddressPoolExhausted))
	}

	return settlement, nil
}

// Snapshot returns a deep copy of the session for display.
func (s *Session) Snapshot() Snapshot {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	snap := Snapshot{
		ClaimState:     s.orchestrator.State(),
		LastError:      s.lastErr,
		LastSettlement: s.lastSettlement,
	}
	if s.state == nil {
		return snap
	}

	state := s.state.Clone()
	snap.Discovered = true
	snap.Accounts = state.Accounts
	snap.ActiveAccount = state.ActiveAccount
	snap.Records = state.Records
	snap.FeeTiers = state.FeeTiers
	snap.NeedsDiscovery = state.NeedsDiscovery

	return snap
}

// IsLocalError reports whether err is a validation failure that blocks
// submission rather than a failure to be shown and dismissed.
func IsLocalError(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrAmountTooLow) ||
		errors.Is(err, ErrNothingToClaim)
}
