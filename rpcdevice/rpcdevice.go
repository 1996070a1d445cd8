// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rpcdevice implements device.Channel on top of two wallet JSON-RPC
// servers: one tracking the origin chain, which holds the keys and signs, and
// one tracking the destination chain, which hands out receive addresses.
package rpcdevice

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/forkclaim/addrpool"
	"github.com/btcsuite/forkclaim/device"
	"github.com/btcsuite/forkclaim/netparams"
	"github.com/btcsuite/forkclaim/txfee"
	"github.com/btcsuite/forkclaim/utxoset"
	"github.com/davecgh/go-spew/spew"
	"golang.org/x/sync/errgroup"
)

// DefaultAddressPoolSize is the number of unused addresses offered per
// destination account.
const DefaultAddressPoolSize = 20

var (
	// ErrNoAccounts is returned when no account names are configured.
	ErrNoAccounts = errors.New("no accounts configured")

	// ErrIncompleteSignature is returned when the wallet could not sign
	// every input.
	ErrIncompleteSignature = errors.New("failed to sign every input")
)

// OriginClient is the part of the origin wallet RPC API the channel uses.
// *rpcclient.Client satisfies it.
type OriginClient interface {
	ListUnspentMinMax(minConf, maxConf int) ([]btcjson.ListUnspentResult,
		error)
	GetBalanceMinConf(account string, minConfirms int) (btcutil.Amount,
		error)
	GetBlockCount() (int64, error)
	EstimateSmartFee(confTarget int64,
		mode *btcjson.EstimateSmartFeeMode) (
		*btcjson.EstimateSmartFeeResult, error)
	SignRawTransaction(tx *wire.MsgTx) (*wire.MsgTx, bool, error)
	SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (
		*chainhash.Hash, error)
}

// DestinationClient is the part of the destination wallet RPC API the
// channel uses.  *rpcclient.Client satisfies it.
type DestinationClient interface {
	GetAddressesByAccount(account string) ([]btcutil.Address, error)
	GetAddressInfo(address string) (*btcjson.GetAddressInfoResult, error)
	ListReceivedByAddressMinConf(minConfirms int) (
		[]btcjson.ListReceivedByAddressResult, error)
	GetNewAddress(account string) (btcutil.Address, error)
	ValidateAddress(address btcutil.Address) (
		*btcjson.ValidateAddressWalletResult, error)
}

// FeeTarget pairs a fee tier with the confirmation target used to estimate
// its rate.
type FeeTarget struct {
	Name string

	// ConfTarget is the number of blocks passed to estimatesmartfee.
	ConfTarget int64

	// FallbackRate is the rate in satoshis per byte used when the node
	// cannot estimate.
	FallbackRate int64
}

// DefaultFeeTargets are the fee tiers from highest to lowest priority.  The
// menu shows them reversed, which puts Normal at the default position.
var DefaultFeeTargets = []FeeTarget{
	{Name: "High", ConfTarget: 2, FallbackRate: 100},
	{Name: "Normal", ConfTarget: 6, FallbackRate: 50},
	{Name: "Low", ConfTarget: 24, FallbackRate: 10},
}

// Config configures a Channel.
type Config struct {
	Origin      OriginClient
	Destination DestinationClient

	// OriginParams is the origin chain, used to decode claim outputs.
	OriginParams *netparams.Params

	// DestinationParams is the destination chain, used to decode
	// addresses shown on the device.
	DestinationParams *netparams.Params

	// Accounts are the wallet account names.  The position of a name is
	// its account id on both chains.
	Accounts []string

	// AddressPoolSize is the number of unused addresses offered per
	// destination account.  Unused addresses the wallet already handed
	// out are offered first and new ones are only requested to fill the
	// pool.  Zero means DefaultAddressPoolSize.
	AddressPoolSize int

	// FeeTargets default to DefaultFeeTargets.
	FeeTargets []FeeTarget
}

// Channel is a device.Channel backed by wallet RPC servers.
type Channel struct {
	cfg Config

	// mtx serializes signing and broadcasting.
	mtx sync.Mutex

	// noAddressInfo is set once the destination wallet turned out not to
	// support getaddressinfo.
	noAddressInfo atomic.Bool
}

// A compile-time assertion to ensure that Channel implements the
// device.Channel interface.
var _ device.Channel = (*Channel)(nil)

// New creates a channel from cfg.
func New(cfg Config) (*Channel, error) {
	if len(cfg.Accounts) == 0 {
		return nil, ErrNoAccounts
	}
	if cfg.AddressPoolSize <= 0 {
		cfg.AddressPoolSize = DefaultAddressPoolSize
	}
	if len(cfg.FeeTargets) == 0 {
		cfg.FeeTargets = DefaultFeeTargets
	}

	return &Channel{cfg: cfg}, nil
}

// DiscoverAccounts implements device.Channel.  Origin accounts, destination
// accounts and fee tiers are queried concurrently.  Destination wallets are
// only queried when req asks for derived accounts.
func (c *Channel) DiscoverAccounts(ctx context.Context,
	req device.DiscoverRequest) (*device.Discovery, error) {

	accounts := c.cfg.Accounts
	if req.AccountLimit > 0 && len(accounts) > req.AccountLimit {
		accounts = accounts[:req.AccountLimit]
	}

	var (
		tip      int64
		unspent  []btcjson.ListUnspentResult
		balances = make([]btcutil.Amount, len(accounts))
		dests    []device.AddressInfo
		fees     []txfee.FeeTier
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tip, err = c.cfg.Origin.GetBlockCount()
		return remoteError(err)
	})
	g.Go(func() error {
		var err error
		unspent, err = c.cfg.Origin.ListUnspentMinMax(0, math.MaxInt32)
		return remoteError(err)
	})
	for i, name := range accounts {
		g.Go(func() error {
			balance, err := c.cfg.Origin.GetBalanceMinConf(name, 0)
			if err != nil {
				return remoteError(err)
			}
			balances[i] = balance
			return nil
		})
	}
	if req.DerivedAccounts {
		g.Go(func() error {
			var err error
			dests, err = c.destinationAccounts(
				gctx, accounts, req.Destination,
			)
			return err
		})
	}
	g.Go(func() error {
		fees = c.estimateFees(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if tip > math.MaxInt32 {
		return nil, fmt.Errorf("block count %d out of range", tip)
	}

	byAccount, err := groupUnspent(unspent, accounts, int32(tip))
	if err != nil {
		return nil, err
	}

	disc := &device.Discovery{
		OriginAccounts:      make([]device.AccountInfo, len(accounts)),
		DestinationAccounts: dests,
		Fees:                fees,
	}
	for i := range accounts {
		disc.OriginAccounts[i] = device.AccountInfo{
			ID:              uint32(i),
			Balance:         balances[i],
			LastBlockHeight: int32(tip),
			UTXOs:           byAccount[i],
		}
	}

	log.Debugf("Discovered %d accounts at height %d", len(accounts), tip)

	return disc, nil
}

// destinationAccounts returns the receive address pools of accounts.
func (c *Channel) destinationAccounts(ctx context.Context, accounts []string,
	params *netparams.Params) ([]device.AddressInfo, error) {

	received, err := c.receivedAddresses()
	if err != nil {
		return nil, err
	}

	infos := make([]device.AddressInfo, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range accounts {
		g.Go(func() error {
			info, err := c.destinationAccount(
				gctx, uint32(i), name, params, received,
			)
			if err != nil {
				return err
			}
			infos[i] = *info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return infos, nil
}

// receivedAddresses returns the destination wallet addresses that received
// funds, confirmed or not.
func (c *Channel) receivedAddresses() (map[string]struct{}, error) {
	results, err := c.cfg.Destination.ListReceivedByAddressMinConf(0)
	if err != nil {
		return nil, remoteError(err)
	}

	received := make(map[string]struct{}, len(results))
	for _, result := range results {
		if result.Amount > 0 || len(result.TxIDs) > 0 {
			received[result.Address] = struct{}{}
		}
	}

	return received, nil
}

// walletAddress is a receive address of a destination account.
type walletAddress struct {
	address string
	index   uint32
}

// destinationAccount splits the receive addresses of an account into used
// and unused ones and tops the unused ones up to the pool size.
//
// When the wallet reports key paths, change addresses are skipped and every
// receive address up to the last one that received funds counts as used, so
// the first unused address sits at index len(UsedAddresses).  Otherwise the
// addresses that received funds are used and the rest are unused.
func (c *Channel) destinationAccount(ctx context.Context, id uint32,
	name string, params *netparams.Params,
	received map[string]struct{}) (*device.AddressInfo, error) {

	addrs, err := c.cfg.Destination.GetAddressesByAccount(name)
	if err != nil {
		return nil, remoteError(err)
	}

	external := make([]walletAddress, 0, len(addrs))
	pathsKnown := true
	for _, addr := range addrs {
		encoded := addr.EncodeAddress()
		branch, index, ok, err := c.keyPath(encoded)
		if err != nil {
			return nil, err
		}
		if !ok {
			pathsKnown = false
		} else if branch != addrpool.ExternalBranch {
			log.Tracef("Skipping change address %s of account %q",
				encoded, name)
			continue
		}
		external = append(external, walletAddress{
			address: encoded,
			index:   index,
		})
	}

	info := &device.AddressInfo{
		ID:              id,
		UsedAddresses:   make([]string, 0, len(external)),
		UnusedAddresses: make([]string, 0, c.cfg.AddressPoolSize),
	}
	if params != nil {
		info.BasePath = params.BasePath(id)
	}

	if pathsKnown {
		sort.Slice(external, func(i, j int) bool {
			return external[i].index < external[j].index
		})

		lastUsed := -1
		for i := range external {
			if _, ok := received[external[i].address]; ok {
				lastUsed = i
			}
		}
		for i, addr := range external {
			if i <= lastUsed {
				info.UsedAddresses = append(
					info.UsedAddresses, addr.address,
				)
				continue
			}
			info.UnusedAddresses = append(
				info.UnusedAddresses, addr.address,
			)
		}
	} else {
		for _, addr := range external {
			if _, ok := received[addr.address]; ok {
				info.UsedAddresses = append(
					info.UsedAddresses, addr.address,
				)
				continue
			}
			info.UnusedAddresses = append(
				info.UnusedAddresses, addr.address,
			)
		}
	}

	if len(info.UnusedAddresses) > c.cfg.AddressPoolSize {
		info.UnusedAddresses = info.UnusedAddresses[:c.cfg.AddressPoolSize]
	}
	reused := len(info.UnusedAddresses)

	for len(info.UnusedAddresses) < c.cfg.AddressPoolSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		addr, err := c.cfg.Destination.GetNewAddress(name)
		if err != nil {
			return nil, remoteError(err)
		}
		info.UnusedAddresses = append(
			info.UnusedAddresses, addr.EncodeAddress(),
		)
	}

	log.Debugf("Destination account %q: %d used, %d unused (%d new)",
		name, len(info.UsedAddresses), len(info.UnusedAddresses),
		len(info.UnusedAddresses)-reused)

	return info, nil
}

// keyPath returns the branch and index of a destination wallet address.  ok
// is false when the wallet does not report the key path.
func (c *Channel) keyPath(address string) (uint32, uint32, bool, error) {
	if c.noAddressInfo.Load() {
		return 0, 0, false, nil
	}

	info, err := c.cfg.Destination.GetAddressInfo(address)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) &&
			rpcErr.Code == btcjson.ErrRPCMethodNotFound.Code {

			log.Debugf("Destination wallet does not report key " +
				"paths")
			c.noAddressInfo.Store(true)
			return 0, 0, false, nil
		}
		return 0, 0, false, remoteError(err)
	}
	if info.HDKeyPath == nil {
		return 0, 0, false, nil
	}

	branch, index, ok := parseKeyPath(*info.HDKeyPath)
	return branch, index, ok, nil
}

// parseKeyPath extracts the branch and index from a key path such as
// m/44'/0'/0'/1/7.  Both must be unhardened.
func parseKeyPath(path string) (uint32, uint32, bool) {
	parts := strings.Split(path, "/")
	if len(parts) < 3 || parts[0] != "m" {
		return 0, 0, false
	}

	branch, err := strconv.ParseUint(parts[len(parts)-2], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	index, err := strconv.ParseUint(parts[len(parts)-1], 10, 32)
	if err != nil {
		return 0, 0, false
	}

	return uint32(branch), uint32(index), true
}

// estimateFees returns the fee tiers from highest to lowest priority.  Tiers
// the node cannot estimate use their fallback rate.
func (c *Channel) estimateFees(ctx context.Context) []txfee.FeeTier {
	mode := btcjson.EstimateModeConservative
	tiers := make([]txfee.FeeTier, 0, len(c.cfg.FeeTargets))
	for _, target := range c.cfg.FeeTargets {
		rate := target.FallbackRate
		if ctx.Err() == nil {
			res, err := c.cfg.Origin.EstimateSmartFee(
				target.ConfTarget, &mode,
			)
			if estimated, ok := feeRate(res, err); ok {
				rate = estimated
			} else {
				log.Debugf("Using fallback rate %d sat/B for "+
					"%s fees", rate, target.Name)
			}
		}

		tiers = append(tiers, txfee.FeeTier{
			Name:       target.Name,
			MaxFeeRate: rate,
		})
	}

	return tiers
}

// feeRate converts an estimatesmartfee result in BTC/kB to satoshis per
// byte, rounded up.
func feeRate(res *btcjson.EstimateSmartFeeResult, err error) (int64, bool) {
	if err != nil || res == nil || res.FeeRate == nil ||
		len(res.Errors) != 0 || *res.FeeRate <= 0 {

		return 0, false
	}

	perKb, err := btcutil.NewAmount(*res.FeeRate)
	if err != nil {
		return 0, false
	}

	rate := (int64(perKb) + 999) / 1000
	if rate < 1 {
		rate = 1
	}
	return rate, true
}

// groupUnspent converts listunspent results to outputs per account, oldest
// first.  Heights are derived from confirmations so that an unconfirmed
// output sits at the tip.
func groupUnspent(unspent []btcjson.ListUnspentResult, accounts []string,
	tip int32) ([][]utxoset.Output, error) {

	index := make(map[string]int, len(accounts))
	for i, name := range accounts {
		index[name] = i
	}

	byAccount := make([][]utxoset.Output, len(accounts))
	for i := range unspent {
		result := &unspent[i]
		if !result.Spendable {
			continue
		}
		id, ok := index[result.Account]
		if !ok {
			continue
		}

		output, err := convertUnspent(result, tip)
		if err != nil {
			return nil, fmt.Errorf("invalid data in listunspent "+
				"result: %w", err)
		}
		byAccount[id] = append(byAccount[id], output)
	}

	for _, outputs := range byAccount {
		sort.Slice(outputs, func(i, j int) bool {
			a, b := &outputs[i], &outputs[j]
			if a.Height != b.Height {
				return a.Height < b.Height
			}
			if a.OutPoint.Hash != b.OutPoint.Hash {
				return bytes.Compare(a.OutPoint.Hash[:],
					b.OutPoint.Hash[:]) < 0
			}
			return a.OutPoint.Index < b.OutPoint.Index
		})
	}

	return byAccount, nil
}

// convertUnspent converts one listunspent result.
func convertUnspent(result *btcjson.ListUnspentResult,
	tip int32) (utxoset.Output, error) {

	hash, err := chainhash.NewHashFromStr(result.TxID)
	if err != nil {
		return utxoset.Output{}, err
	}

	amount, err := btcutil.NewAmount(result.Amount)
	if err != nil {
		return utxoset.Output{}, err
	}
	if amount < 0 || amount > btcutil.MaxSatoshi {
		return utxoset.Output{}, fmt.Errorf("impossible output "+
			"amount `%v`", amount)
	}

	script, err := hex.DecodeString(result.ScriptPubKey)
	if err != nil {
		return utxoset.Output{}, err
	}

	confs := result.Confirmations
	if confs < 0 {
		confs = 0
	}
	if confs > int64(tip) {
		confs = int64(tip)
	}

	return utxoset.Output{
		OutPoint: wire.OutPoint{Hash: *hash, Index: result.Vout},
		PkScript: script,
		Address:  result.Address,
		Value:    amount,
		Height:   tip - int32(confs),
	}, nil
}

// VerifyAddress implements device.Channel.  The destination wallet is asked
// whether it owns the address.
func (c *Channel) VerifyAddress(ctx context.Context,
	req device.VerifyRequest) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	addr, err := btcutil.DecodeAddress(
		req.Address, c.cfg.DestinationParams.Params,
	)
	if err != nil {
		return err
	}

	res, err := c.cfg.Destination.ValidateAddress(addr)
	if err != nil {
		return remoteError(err)
	}
	if !res.IsValid || !res.IsMine {
		return &device.RemoteError{
			Message: fmt.Sprintf("address %s is not owned by "+
				"the wallet", req.Address),
		}
	}

	log.Infof("Address %s verified (type %s, segwit %v)", req.Address,
		req.TxType, req.Segwit)
	return nil
}

// Sign implements device.Channel.  The claim transaction is built from the
// request and signed by the origin wallet.
func (c *Channel) Sign(ctx context.Context,
	req device.SignRequest) ([]byte, error) {

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := buildTx(&req, c.cfg.OriginParams)
	if err != nil {
		return nil, err
	}

	log.Tracef("Unsigned claim transaction: %v", newLogClosure(
		func() string {
			return spew.Sdump(tx)
		},
	))

	signed, complete, err := c.cfg.Origin.SignRawTransaction(tx)
	if err != nil {
		return nil, remoteError(err)
	}
	if !complete {
		return nil, ErrIncompleteSignature
	}

	var buf bytes.Buffer
	buf.Grow(signed.SerializeSize())
	if err := signed.Serialize(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Broadcast implements device.Channel.
func (c *Channel) Broadcast(ctx context.Context,
	serializedTx []byte) (string, error) {

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(serializedTx)); err != nil {
		return "", fmt.Errorf("unable to decode signed transaction: "+
			"%w", err)
	}

	hash, err := c.cfg.Origin.SendRawTransaction(&tx, false)
	if err != nil {
		return "", remoteError(err)
	}

	return hash.String(), nil
}

// buildTx creates the unsigned claim transaction for req.
func buildTx(req *device.SignRequest,
	params *netparams.Params) (*wire.MsgTx, error) {

	tx := wire.NewMsgTx(wire.TxVersion)
	for i := range req.Inputs {
		outPoint := req.Inputs[i].OutPoint
		tx.AddTxIn(wire.NewTxIn(&outPoint, nil, nil))
	}

	for _, output := range req.Outputs {
		addr, err := btcutil.DecodeAddress(output.Address, params.Params)
		if err != nil {
			return nil, fmt.Errorf("invalid output address %s: %w",
				output.Address, err)
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(output.Value), script))
	}

	return tx, nil
}

// remoteError converts JSON-RPC failures to device.RemoteError so the
// server's code and message reach the user.
func remoteError(err error) error {
	if err == nil {
		return nil
	}

	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		return &device.RemoteError{
			Code:    strconv.Itoa(int(rpcErr.Code)),
			Message: rpcErr.Message,
		}
	}
	return err
}
