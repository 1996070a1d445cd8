// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package utxoset partitions an account's unspent outputs into the set that
// can be spent by a single claim transaction and the set that cannot.
package utxoset

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// InputLimit is the maximum number of inputs a claim transaction may spend.
// Larger transactions exceed the standard size limit.
const InputLimit = 350

// Output is an unspent transaction output as reported by discovery.
type Output struct {
	// OutPoint identifies the output on the origin chain.
	OutPoint wire.OutPoint

	// PkScript is the output script being spent.
	PkScript []byte

	// Address is the encoded address the output pays to.
	Address string

	// Value is the output amount.
	Value btcutil.Amount

	// Height is the height of the block that confirmed the output.  An
	// output still in the mempool reports the current tip height.
	Height int32
}

// Confirmations returns how many blocks deep the output is at tipHeight.
func (o *Output) Confirmations(tipHeight int32) int32 {
	return tipHeight - o.Height
}

// Confirmed reports whether the output may be spent at tipHeight.  The same
// predicate is used at discovery and when filtering again after a claim.
func (o *Output) Confirmed(tipHeight int32) bool {
	return o.Confirmations(tipHeight) > 0
}

// FilterResult is the outcome of Filter.
type FilterResult struct {
	// Spendable holds the confirmed outputs within the input limit, in
	// discovery order.
	Spendable []Output

	// Available is the sum of Spendable values.
	Available btcutil.Amount

	// ExcludedValue is the sum of unconfirmed output values within the
	// visited prefix.
	ExcludedValue btcutil.Amount

	// CapExceeded is set when outputs beyond the limit were not visited.
	CapExceeded bool
}

// Filter visits at most limit outputs in order and splits them into spendable
// and excluded value.  A non-positive limit means InputLimit.
func Filter(outputs []Output, tipHeight int32, limit int) FilterResult {
	if limit <= 0 {
		limit = InputLimit
	}

	var res FilterResult
	visit := len(outputs)
	if visit > limit {
		visit = limit
		res.CapExceeded = true
	}

	res.Spendable = make([]Output, 0, visit)
	for i := 0; i < visit; i++ {
		output := outputs[i]
		if !output.Confirmed(tipHeight) {
			log.Debugf("Excluding unconfirmed output %v (%v) at "+
				"height %d, tip %d", output.OutPoint,
				output.Value, output.Height, tipHeight)
			res.ExcludedValue += output.Value
			continue
		}

		res.Spendable = append(res.Spendable, output)
		res.Available += output.Value
	}

	return res
}

// Sum returns the total value of outputs.
func Sum(outputs []Output) btcutil.Amount {
	var total btcutil.Amount
	for i := range outputs {
		total += outputs[i].Value
	}
	return total
}

// Remove returns a new slice holding outputs that are not in spent, keeping
// their order.  Outputs are matched by outpoint.
func Remove(outputs, spent []Output) []Output {
	spentSet := make(map[wire.OutPoint]struct{}, len(spent))
	for i := range spent {
		spentSet[spent[i].OutPoint] = struct{}{}
	}

	remaining := make([]Output, 0, len(outputs))
	for _, output := range outputs {
		if _, ok := spentSet[output.OutPoint]; ok {
			continue
		}
		remaining = append(remaining, output)
	}

	return remaining
}

// Clone returns a deep copy of outputs.
func Clone(outputs []Output) []Output {
	if outputs == nil {
		return nil
	}

	cloned := make([]Output, len(outputs))
	for i, output := range outputs {
		if output.PkScript != nil {
			output.PkScript = append([]byte(nil), output.PkScript...)
		}
		cloned[i] = output
	}
	return cloned
}
