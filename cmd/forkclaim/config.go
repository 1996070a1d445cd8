// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btclog"
	"github.com/btcsuite/forkclaim/build"
	"github.com/btcsuite/forkclaim/internal/cfgutil"
	"github.com/btcsuite/forkclaim/netparams"
	"github.com/btcsuite/forkclaim/rpcdevice"
	"github.com/btcsuite/forkclaim/utxoset"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "forkclaim.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "forkclaim.log"
	defaultAccount        = "default"
	defaultRPCHost        = "localhost"
)

var (
	forkclaimHomeDir  = btcutil.AppDataDir("forkclaim", false)
	btcwalletHomeDir  = btcutil.AppDataDir("btcwallet", false)
	defaultConfigFile = filepath.Join(forkclaimHomeDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(forkclaimHomeDir, defaultLogDirname)
	defaultCAFile     = filepath.Join(btcwalletHomeDir, "rpc.cert")
	defaultMaxFee     = btcutil.Amount(1e6)
)

// rpcOptions are the connection options of one wallet RPC server.
type rpcOptions struct {
	RPCConnect *cfgutil.ExplicitString `long:"rpcconnect" description:"Hostname[:port] of the wallet RPC server"`
	Username   string                  `long:"rpcuser" description:"Wallet RPC username"`
	Password   string                  `long:"rpcpass" default-mask:"-" description:"Wallet RPC password (prompted for when empty)"`
	CAFile     string                  `long:"cafile" description:"Wallet RPC TLS certificate"`
	NoTLS      bool                    `long:"notls" description:"Disable TLS for the RPC connection"`
}

type config struct {
	// General application behavior
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	TestNet3    bool   `long:"testnet" description:"Claim on the test networks"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogDir      string `long:"logdir" description:"Directory to log output"`

	// Wallet connections
	Origin      rpcOptions `group:"Origin wallet" namespace:"origin"`
	Destination rpcOptions `group:"Destination wallet" namespace:"dest"`

	// Discovery options
	Accounts        []string `long:"account" description:"Wallet account name, may be repeated, in account order"`
	NoDestAccounts  bool     `long:"nodestaccounts" description:"Do not offer destination wallet addresses as claim targets"`
	AddressPoolSize int      `long:"addresspool" description:"Unused addresses offered per destination account"`
	InputLimit      int      `long:"inputlimit" description:"Maximum number of inputs of one claim transaction"`

	// Claim options
	ClaimAccount  int                 `long:"claimaccount" description:"Position of the account to claim, starting at 1 (default: first funded account)"`
	Target        string              `long:"target" description:"Address receiving the claimed funds (default: next unused destination address)"`
	FeeTier       string              `long:"feetier" description:"Fee tier name (default: chosen by available funds)"`
	MaxFee        *cfgutil.AmountFlag `long:"maxfee" description:"Refuse claims paying a higher fee"`
	Verify        bool                `long:"verify" description:"Check that the destination wallet owns the target before signing"`
	Yes           bool                `short:"y" long:"yes" description:"Claim without asking for confirmation"`
	MetricsListen string              `long:"metricslisten" description:"Serve Prometheus metrics on this interface/port"`
}

// activeNets returns the origin and destination chain parameters.
func (c *config) activeNets() (*netparams.Params, *netparams.Params) {
	if c.TestNet3 {
		return &netparams.ForkTestNetParams, &netparams.TestNet3Params
	}
	return &netparams.ForkMainNetParams, &netparams.MainNetParams
}

// cleanAndExpandPath expands environement variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(forkclaimHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but they variables can still be expanded via POSIX-style
	// $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsytems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "the specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// defaultConfig returns the configuration used when nothing is specified.
func defaultConfig() config {
	return config{
		ConfigFile:      defaultConfigFile,
		DebugLevel:      defaultLogLevel,
		LogDir:          defaultLogDir,
		AddressPoolSize: rpcdevice.DefaultAddressPoolSize,
		InputLimit:      utxoset.InputLimit,
		MaxFee:          cfgutil.NewAmountFlag(defaultMaxFee),
		Origin: rpcOptions{
			RPCConnect: cfgutil.NewExplicitString(defaultRPCHost),
			CAFile:     defaultCAFile,
		},
		Destination: rpcOptions{
			RPCConnect: cfgutil.NewExplicitString(defaultRPCHost),
			CAFile:     defaultCAFile,
		},
	}
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in forkclaim functioning properly without any config
// settings while still allowing the user to override settings with config files
// and command line options.  Command line options always take precedence.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := defaultConfig()
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", build.Version())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, err
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	origin, _ := cfg.activeNets()

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, origin.Name)
	err = initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("loadConfig: %w", err)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	if err := validateConfig(&cfg); err != nil {
		err := fmt.Errorf("loadConfig: %w", err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintf(os.Stderr, "Use %s -h to show usage\n", appName)
		return nil, err
	}

	return &cfg, nil
}

// validateConfig checks option values and fills in the defaults that depend
// on other options.
func validateConfig(cfg *config) error {
	origin, dest := cfg.activeNets()

	if len(cfg.Accounts) == 0 {
		cfg.Accounts = []string{defaultAccount}
	}
	if cfg.AddressPoolSize <= 0 {
		return fmt.Errorf("address pool size must be positive, got %d",
			cfg.AddressPoolSize)
	}
	if cfg.InputLimit <= 0 || cfg.InputLimit > utxoset.InputLimit {
		return fmt.Errorf("input limit must be between 1 and %d, "+
			"got %d", utxoset.InputLimit, cfg.InputLimit)
	}
	if cfg.ClaimAccount < 0 || cfg.ClaimAccount > len(cfg.Accounts) {
		return fmt.Errorf("claim account %d out of range, %d %s "+
			"configured", cfg.ClaimAccount, len(cfg.Accounts),
			pickNoun(len(cfg.Accounts), "account", "accounts"))
	}
	if cfg.MaxFee.Amount <= 0 {
		return errors.New("maximum fee must be positive")
	}

	originConnect, err := cfgutil.NormalizeAddress(
		cfg.Origin.RPCConnect.Value, origin.RPCServerPort,
	)
	if err != nil {
		return fmt.Errorf("invalid origin RPC network address `%v`: %w",
			cfg.Origin.RPCConnect.Value, err)
	}
	cfg.Origin.RPCConnect.Value = originConnect

	// The destination wallet defaults to the origin host.
	if !cfg.Destination.RPCConnect.ExplicitlySet() {
		destConnect, err := cfgutil.ReplacePort(
			originConnect, dest.RPCServerPort,
		)
		if err != nil {
			return err
		}
		cfg.Destination.RPCConnect.SetDefault(destConnect)
	}
	destConnect, err := cfgutil.NormalizeAddress(
		cfg.Destination.RPCConnect.Value, dest.RPCServerPort,
	)
	if err != nil {
		return fmt.Errorf("invalid destination RPC network address "+
			"`%v`: %w", cfg.Destination.RPCConnect.Value, err)
	}
	cfg.Destination.RPCConnect.Value = destConnect

	if originConnect == destConnect {
		return errors.New("origin and destination wallets must be " +
			"different servers")
	}

	for _, opts := range []*rpcOptions{&cfg.Origin, &cfg.Destination} {
		if opts.Username == "" {
			return fmt.Errorf("RPC username is required for %s",
				opts.RPCConnect.Value)
		}
		if opts.NoTLS {
			opts.CAFile = ""
			continue
		}
		opts.CAFile = cleanAndExpandPath(opts.CAFile)
	}

	if cfg.MetricsListen != "" {
		listen, err := cfgutil.NormalizeAddress(cfg.MetricsListen, "9120")
		if err != nil {
			return fmt.Errorf("invalid metrics listen address `%v`: "+
				"%w", cfg.MetricsListen, err)
		}
		cfg.MetricsListen = listen
	}

	return nil
}
