// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/require"
)

func TestBasePath(t *testing.T) {
	t.Parallel()

	path := ForkMainNetParams.BasePath(3)
	require.Equal(t, []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 145,
		hdkeychain.HardenedKeyStart + 3,
	}, path)

	require.Equal(
		t, uint32(hdkeychain.HardenedKeyStart),
		MainNetParams.BasePath(0)[1],
	)
}

func TestTxURL(t *testing.T) {
	t.Parallel()

	require.Equal(
		t, "https://bch-bitcore2.trezor.io/tx/abcd",
		ForkMainNetParams.TxURL("abcd"),
	)
	require.Empty(t, TestNet3Params.TxURL("abcd"))

	p := Params{ExplorerURLs: []string{"https://example.org"}}
	require.Equal(t, "https://example.org/tx/ff", p.TxURL("ff"))
}
