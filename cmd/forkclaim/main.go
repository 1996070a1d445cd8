// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/forkclaim/claim"
	"github.com/btcsuite/forkclaim/internal/cfgutil"
	"github.com/btcsuite/forkclaim/internal/prompt"
	"github.com/btcsuite/forkclaim/metrics"
	"github.com/btcsuite/forkclaim/netparams"
	"github.com/btcsuite/forkclaim/rpcdevice"
	"github.com/btcsuite/forkclaim/txfee"
	"github.com/prometheus/client_golang/prometheus"
)

// discoveryTimeout bounds account discovery.
const discoveryTimeout = 5 * time.Minute

// errAborted is returned when the user declines the claim.
var errAborted = errors.New("claim aborted")

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	if logRotator != nil {
		logRotator.Close()
	}
	os.Exit(1)
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		cancel()
		fatalf("%v", err)
	}
}

// dial opens an HTTP POST mode RPC client to a wallet server.
func dial(opts *rpcOptions, what string) (*rpcclient.Client, error) {
	if opts.Password == "" {
		pass, err := prompt.Secret(fmt.Sprintf("%s wallet RPC "+
			"password", what))
		if err != nil {
			return nil, fmt.Errorf("failed to read RPC password: %w",
				err)
		}
		opts.Password = pass
	}

	cert, err := cfgutil.ReadCertificate(opts.CAFile)
	if err != nil {
		return nil, err
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         opts.RPCConnect.Value,
		User:         opts.Username,
		Pass:         opts.Password,
		Certificates: cert,
		DisableTLS:   opts.NoTLS,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s RPC client: %w",
			strings.ToLower(what), err)
	}
	return client, nil
}

func run(ctx context.Context, cfg *config) error {
	origin, dest := cfg.activeNets()

	originClient, err := dial(&cfg.Origin, "Origin")
	if err != nil {
		return err
	}
	defer originClient.Shutdown()

	destClient, err := dial(&cfg.Destination, "Destination")
	if err != nil {
		return err
	}
	defer destClient.Shutdown()

	channel, err := rpcdevice.New(rpcdevice.Config{
		Origin:            originClient,
		Destination:       destClient,
		OriginParams:      origin,
		DestinationParams: dest,
		Accounts:          cfg.Accounts,
		AddressPoolSize:   cfg.AddressPoolSize,
	})
	if err != nil {
		return err
	}

	var notifier claim.Notifier
	if cfg.MetricsListen != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.NewCollector(reg)
		if err != nil {
			return err
		}
		notifier = collector

		server := metrics.NewServer(cfg.MetricsListen, reg)
		errChan := server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(), 5*time.Second,
			)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
			if err := <-errChan; err != nil {
				log.Errorf("Metrics server: %v", err)
			}
		}()
		log.Infof("Serving metrics on %s", cfg.MetricsListen)
	}

	session := claim.NewSession(claim.Config{
		Channel:            channel,
		Origin:             origin,
		Destination:        dest,
		UseDerivedAccounts: !cfg.NoDestAccounts,
		InputLimit:         cfg.InputLimit,
		Notifier:           notifier,
	})

	discoverCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	err = session.Discover(discoverCtx)
	cancel()
	if err != nil {
		return err
	}

	snap := session.Snapshot()
	printAccounts(&snap, origin)

	p := prompt.Stdio()
	interactive := !cfg.Yes

	accountIndex := snap.ActiveAccount
	switch {
	case cfg.ClaimAccount > 0:
		accountIndex = cfg.ClaimAccount - 1
	case interactive && len(snap.Accounts) > 1:
		labels := make([]string, len(snap.Accounts))
		for i := range snap.Accounts {
			labels[i] = snap.Accounts[i].Label
		}
		accountIndex, err = p.Select("Account to claim", labels,
			snap.ActiveAccount)
		if err != nil {
			return err
		}
	}
	if err := session.SelectAccount(accountIndex); err != nil {
		return err
	}

	tierIndex := -1
	if cfg.FeeTier != "" {
		tierIndex, err = findTier(snap.FeeTiers, cfg.FeeTier)
		if err != nil {
			return err
		}
	}

	quote, err := session.Quote(cfg.Target, tierIndex)
	if err != nil {
		return err
	}

	if interactive {
		if cfg.FeeTier == "" {
			tierIndex, err = p.Select("Fee", tierLabels(
				snap.FeeTiers, quote.Amount+quote.Fee,
				len(snap.Accounts[accountIndex].SpendableOutputs),
			), quote.TierIndex)
			if err != nil {
				return err
			}
		}

		target := quote.Address
		if cfg.Target == "" {
			target, err = p.Line("Claim to address", quote.Address)
			if err != nil {
				return err
			}
		}

		quote, err = session.Quote(target, tierIndex)
		if err != nil {
			return err
		}
	}

	printQuote(quote, origin)
	if quote.Blocker != nil {
		return quote.Blocker
	}
	if quote.Fee > cfg.MaxFee.Amount {
		return fmt.Errorf("fee %s exceeds the maximum of %s",
			formatAmount(quote.Fee, origin),
			formatAmount(cfg.MaxFee.Amount, origin))
	}

	if cfg.Verify {
		if !quote.AddressOwned {
			return fmt.Errorf("cannot verify %s, it was not "+
				"derived from the destination wallet", quote.Address)
		}
		if err := session.VerifyAddress(ctx, quote.Address); err != nil {
			return err
		}
		fmt.Printf("Verified %s belongs to %s\n", quote.Address,
			quote.AddressLabel)
	}

	if interactive {
		ok, err := p.Confirm("Sign and broadcast the claim?", false)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	settlement, err := session.SubmitClaim(ctx, quote.Address,
		quote.TierIndex)
	if err != nil {
		return err
	}

	fmt.Printf("Claimed %s from %d %s in transaction %s\n",
		formatAmount(settlement.Claimed, origin), settlement.Inputs,
		pickNoun(settlement.Inputs, "output", "outputs"),
		settlement.TxID)
	if settlement.ExplorerURL != "" {
		fmt.Println(settlement.ExplorerURL)
	}

	snap = session.Snapshot()
	acct := &snap.Accounts[accountIndex]
	if acct.Available > 0 {
		fmt.Printf("%s still holds %s spendable, run again to claim "+
			"it\n", acct.Label, formatAmount(acct.Available, origin))
	}
	if settlement.PoolExhausted {
		fmt.Println("The destination account has no unused address " +
			"left, accounts are discovered again on the next run")
	}

	return nil
}

// findTier returns the display index of the tier called name.
func findTier(menu txfee.Menu, name string) (int, error) {
	for i, tier := range menu {
		if strings.EqualFold(tier.Name, name) {
			return i, nil
		}
	}

	names := make([]string, len(menu))
	for i, tier := range menu {
		names[i] = tier.Name
	}
	return 0, fmt.Errorf("unknown fee tier %q, choose one of %s", name,
		strings.Join(names, ", "))
}

// tierLabels describes each tier with the fee it would cost.
func tierLabels(menu txfee.Menu, available btcutil.Amount,
	inputCount int) []string {

	labels := make([]string, len(menu))
	for i, tier := range menu {
		fee := tier.Fee(inputCount, 1)
		labels[i] = fmt.Sprintf("%v, fee %d sat", tier, int64(fee))
		if available-fee <= 0 {
			labels[i] += " (exceeds available)"
		}
	}
	return labels
}

// formatAmount renders amount in the chain's unit.
func formatAmount(amount btcutil.Amount, params *netparams.Params) string {
	return strconv.FormatFloat(amount.ToBTC(), 'f', -1, 64) + " " +
		params.Unit
}

func printAccounts(snap *claim.Snapshot, origin *netparams.Params) {
	fmt.Printf("%s accounts:\n", origin.DisplayName)
	for i := range snap.Accounts {
		acct := &snap.Accounts[i]

		line := fmt.Sprintf("  %-12s balance %s, claimable %s",
			acct.Label, formatAmount(acct.Balance, origin),
			formatAmount(acct.Available, origin))
		if reason := acct.EmptyReason(); reason != claim.NotEmpty {
			line += " -- " + reason.String()
		}
		fmt.Println(line)

		if acct.InputCapExceeded {
			fmt.Printf("    %d of %d outputs fit in one claim, "+
				"claim again for the rest\n",
				len(acct.SpendableOutputs),
				len(acct.UnspentOutputs))
		}
	}
}

func printQuote(q *claim.Quote, origin *netparams.Params) {
	fmt.Printf("Claim %s to %s\n", formatAmount(q.Amount, origin),
		q.Address)
	fmt.Printf("Fee   %s (%v)\n", formatAmount(q.Fee, origin), q.Tier)

	switch {
	case !q.AddressValid:
		fmt.Printf("The address is not a valid %s address\n",
			origin.SimpleName)
	case q.AddressOwned:
		fmt.Printf("The address belongs to %s of your wallet\n",
			q.AddressLabel)
	default:
		fmt.Println("Warning: the address is not from your wallet, " +
			"make sure you control it")
	}
}
