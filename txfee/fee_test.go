// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txfee

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/stretchr/testify/require"
)

func TestEstimateSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		inputs  int
		outputs int
		size    int
	}{
		{"empty", 0, 0, 10},
		{"one in one out", 1, 1, 193},
		{"two in one out", 2, 1, 342},
		{"one in two out", 1, 2, 227},
		{
			name:    "input cap",
			inputs:  350,
			outputs: 1,
			size: 8 + 3 + 1 + 350*txsizes.RedeemP2PKHInputSize +
				txsizes.P2PKHOutputSize,
		},
		{"negative counts", -1, -4, 10},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(
				t, test.size, EstimateSize(test.inputs, test.outputs),
			)
		})
	}
}

func TestComputeFee(t *testing.T) {
	t.Parallel()

	require.Equal(t, btcutil.Amount(193), ComputeFee(1, 1, 1))
	require.Equal(t, btcutil.Amount(193*20), ComputeFee(1, 1, 20))
	require.Equal(t, btcutil.Amount(342*7), ComputeFee(2, 1, 7))
	require.Zero(t, ComputeFee(5, 1, 0))
	require.Zero(t, ComputeFee(5, 1, -3))

	// More inputs must never get cheaper at the same rate.
	prev := btcutil.Amount(0)
	for inputs := 1; inputs <= 400; inputs++ {
		fee := ComputeFee(inputs, 1, 3)
		require.Greater(t, fee, prev)
		prev = fee
	}
}
