// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// BIP44Purpose is the purpose field of BIP44 derivation paths.
const BIP44Purpose = 44

// Params is used to group parameters for the two chains involved in a claim:
// the origin chain holding the unspent outputs and the destination chain the
// receive addresses are derived for.
type Params struct {
	*chaincfg.Params

	// ID is the short identifier the signing device uses for the chain.
	ID string

	// DisplayName is the full human readable chain name.
	DisplayName string

	// SimpleName is the chain name used in address hints.
	SimpleName string

	// Unit is the ticker symbol.
	Unit string

	// TxType is the coin label passed to the signing device.
	TxType string

	// CoinType is the BIP44 coin type.
	CoinType uint32

	// RequiresSegwit forces segwit address display on the device.
	RequiresSegwit bool

	// ExplorerURLs are block explorer base URLs, each ending in a slash.
	ExplorerURLs []string

	RPCClientPort string
	RPCServerPort string
}

// BasePath returns the BIP44 account path m/44'/coin'/account'.
func (p *Params) BasePath(account uint32) []uint32 {
	return []uint32{
		hdkeychain.HardenedKeyStart + BIP44Purpose,
		hdkeychain.HardenedKeyStart + p.CoinType,
		hdkeychain.HardenedKeyStart + account,
	}
}

// TxURL returns the explorer link for txid, or an empty string when the
// chain has no explorer configured.
func (p *Params) TxURL(txid string) string {
	if len(p.ExplorerURLs) == 0 {
		return ""
	}

	base := p.ExplorerURLs[0]
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "tx/" + txid
}

// ForkMainNetParams contains parameters for claiming on the Bitcoin Cash main
// network.  Legacy addresses share the bitcoin main network encoding.
var ForkMainNetParams = Params{
	Params:        &chaincfg.MainNetParams,
	ID:            "bch1",
	DisplayName:   "bitcoin cash, 1-address",
	SimpleName:    "bitcoin cash",
	Unit:          "BCH",
	TxType:        "Bcash",
	CoinType:      145,
	ExplorerURLs:  []string{"https://bch-bitcore2.trezor.io/"},
	RPCClientPort: "8434",
	RPCServerPort: "8432",
}

// MainNetParams contains parameters for bitcoin legacy accounts on the main
// network (wire.MainNet).
var MainNetParams = Params{
	Params:      &chaincfg.MainNetParams,
	ID:          "btc1",
	DisplayName: "Legacy account",
	SimpleName:  "bitcoin legacy",
	Unit:        "BTC",
	TxType:      "Bitcoin",
	CoinType:    0,
	ExplorerURLs: []string{
		"https://btc-bitcore1.trezor.io/",
		"https://btc-bitcore3.trezor.io/",
	},
	RPCClientPort: "8334",
	RPCServerPort: "8332",
}

// ForkTestNetParams contains parameters for claiming on the Bitcoin Cash test
// network.
var ForkTestNetParams = Params{
	Params:        &chaincfg.TestNet3Params,
	ID:            "tbch1",
	DisplayName:   "bitcoin cash testnet, 1-address",
	SimpleName:    "bitcoin cash testnet",
	Unit:          "TBCH",
	TxType:        "Bcash Testnet",
	CoinType:      1,
	RPCClientPort: "18434",
	RPCServerPort: "18432",
}

// TestNet3Params contains parameters for bitcoin legacy accounts on the test
// network (version 3) (wire.TestNet3).
var TestNet3Params = Params{
	Params:        &chaincfg.TestNet3Params,
	ID:            "tbtc1",
	DisplayName:   "Legacy testnet account",
	SimpleName:    "bitcoin testnet",
	Unit:          "TBTC",
	TxType:        "Testnet",
	CoinType:      1,
	RPCClientPort: "18334",
	RPCServerPort: "18332",
}
