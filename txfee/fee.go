// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txfee models the size and fee of a claim transaction and the named
// fee-rate tiers a user picks from.
package txfee

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// p2pkhScript is a placeholder output script of the canonical P2PKH size.  It
// is only used for size estimation so its content does not matter.
var p2pkhScript = make([]byte, txsizes.P2PKHPkScriptSize)

// EstimateSize returns a worst case serialize size estimate for a signed
// transaction spending inputCount compressed P2PKH outputs and paying to
// outputCount P2PKH outputs.
func EstimateSize(inputCount, outputCount int) int {
	if inputCount < 0 {
		inputCount = 0
	}
	if outputCount < 0 {
		outputCount = 0
	}

	txOuts := make([]*wire.TxOut, outputCount)
	for i := range txOuts {
		txOuts[i] = &wire.TxOut{PkScript: p2pkhScript}
	}

	return txsizes.EstimateSerializeSize(inputCount, txOuts, false)
}

// ComputeFee returns the fee for a transaction of inputCount inputs and
// outputCount outputs at feeRatePerByte satoshis per byte.  The size estimate
// is worst case, so the fee is never below the requested rate.
func ComputeFee(inputCount, outputCount int, feeRatePerByte int64) btcutil.Amount {
	if feeRatePerByte <= 0 {
		return 0
	}

	size := EstimateSize(inputCount, outputCount)
	feePerKb := btcutil.Amount(feeRatePerByte * 1000)

	return txrules.FeeForSerializeSize(feePerKb, size)
}
