// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package utxoset

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// makeOutput returns an output with a unique outpoint derived from i.
func makeOutput(i int, value btcutil.Amount, height int32) Output {
	var op wire.OutPoint
	op.Hash[0] = byte(i)
	op.Hash[1] = byte(i >> 8)
	op.Index = uint32(i)

	return Output{
		OutPoint: op,
		PkScript: []byte{0x76, 0xa9, byte(i)},
		Value:    value,
		Height:   height,
	}
}

func TestFilterSingleConfirmedOutput(t *testing.T) {
	t.Parallel()

	outputs := []Output{makeOutput(0, 100000, 10)}
	res := Filter(outputs, 11, InputLimit)

	require.Equal(t, btcutil.Amount(100000), res.Available)
	require.False(t, res.CapExceeded)
	require.Len(t, res.Spendable, 1)
	require.Zero(t, res.ExcludedValue)
}

func TestFilterInputLimit(t *testing.T) {
	t.Parallel()

	outputs := make([]Output, 400)
	for i := range outputs {
		outputs[i] = makeOutput(i, 1000, 10)
	}

	res := Filter(outputs, 100, InputLimit)
	require.Len(t, res.Spendable, InputLimit)
	require.True(t, res.CapExceeded)
	require.Equal(t, btcutil.Amount(1000*InputLimit), res.Available)

	// Spendable keeps discovery order and is the visited prefix.
	for i := range res.Spendable {
		require.Equal(t, outputs[i].OutPoint, res.Spendable[i].OutPoint)
	}

	// A non-positive limit falls back to the input limit.
	require.Len(t, Filter(outputs, 100, 0).Spendable, InputLimit)
}

func TestFilterConfirmationBoundary(t *testing.T) {
	t.Parallel()

	outputs := []Output{
		makeOutput(0, 500, 99),
		makeOutput(1, 700, 100),
		makeOutput(2, 900, 101),
	}

	res := Filter(outputs, 100, InputLimit)
	require.Len(t, res.Spendable, 1)
	require.Equal(t, outputs[0].OutPoint, res.Spendable[0].OutPoint)
	require.Equal(t, btcutil.Amount(500), res.Available)
	require.Equal(t, btcutil.Amount(1600), res.ExcludedValue)
}

func TestFilterExcludedOnlyInsideVisitedPrefix(t *testing.T) {
	t.Parallel()

	outputs := []Output{
		makeOutput(0, 10, 5),
		makeOutput(1, 20, 50),
		makeOutput(2, 40, 50),
	}

	res := Filter(outputs, 50, 2)
	require.True(t, res.CapExceeded)
	require.Equal(t, btcutil.Amount(10), res.Available)
	require.Equal(t, btcutil.Amount(20), res.ExcludedValue)
}

// TestFilterProperties checks the filter invariants over random inputs.
func TestFilterProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(500)
		limit := 1 + rng.Intn(400)
		tip := int32(1000)

		outputs := make([]Output, n)
		for i := range outputs {
			outputs[i] = makeOutput(
				i, btcutil.Amount(1+rng.Intn(1e6)),
				tip-int32(rng.Intn(4)),
			)
		}

		res := Filter(outputs, tip, limit)
		require.LessOrEqual(t, len(res.Spendable), limit)
		require.Equal(t, n > limit, res.CapExceeded)
		require.Equal(t, Sum(res.Spendable), res.Available)

		visited := n
		if visited > limit {
			visited = limit
		}
		var unconfirmed btcutil.Amount
		for i := 0; i < visited; i++ {
			if outputs[i].Height >= tip {
				unconfirmed += outputs[i].Value
			}
		}
		require.Equal(t, unconfirmed, res.ExcludedValue)
		require.Equal(
			t, Sum(outputs[:visited]),
			res.Available+res.ExcludedValue,
		)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	outputs := []Output{
		makeOutput(0, 1, 1),
		makeOutput(1, 2, 1),
		makeOutput(2, 3, 1),
		makeOutput(3, 4, 1),
	}

	remaining := Remove(outputs, []Output{outputs[0], outputs[2]})
	require.Len(t, remaining, 2)
	require.Equal(t, outputs[1].OutPoint, remaining[0].OutPoint)
	require.Equal(t, outputs[3].OutPoint, remaining[1].OutPoint)

	// The source slice is untouched.
	require.Len(t, outputs, 4)
	require.Equal(t, btcutil.Amount(1), outputs[0].Value)

	require.Empty(t, Remove(nil, outputs))
	require.Len(t, Remove(outputs, nil), 4)
}

func TestClone(t *testing.T) {
	t.Parallel()

	outputs := []Output{makeOutput(9, 5, 1)}
	cloned := Clone(outputs)
	require.Equal(t, outputs, cloned)

	cloned[0].PkScript[0] = 0xff
	cloned[0].Value = 6
	require.Equal(t, byte(0x76), outputs[0].PkScript[0])
	require.Equal(t, btcutil.Amount(5), outputs[0].Value)

	require.Nil(t, Clone(nil))
}
