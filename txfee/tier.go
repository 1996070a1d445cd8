// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txfee

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// ErrNoFeeTiers is returned when a fee menu is empty.
var ErrNoFeeTiers = errors.New("no fee tiers available")

// ErrTierIndex is returned when a tier index falls outside the menu.
var ErrTierIndex = errors.New("fee tier index out of range")

// DefaultTierIndex is the display position selected when the user has not
// picked a tier.
const DefaultTierIndex = 1

// FeeTier is a named fee-rate option.  MaxFeeRate is in satoshis per byte.
type FeeTier struct {
	Name       string
	MaxFeeRate int64
}

// String returns the tier name and its rate.
func (t FeeTier) String() string {
	return fmt.Sprintf("%s (%d sat/B)", t.Name, t.MaxFeeRate)
}

// Fee returns the fee for inputCount inputs and outputCount outputs at this
// tier's rate.
func (t FeeTier) Fee(inputCount, outputCount int) btcutil.Amount {
	return ComputeFee(inputCount, outputCount, t.MaxFeeRate)
}

// Menu is the list of fee tiers in display order.
type Menu []FeeTier

// NewMenu builds the display menu from tiers in discovery order.  Discovery
// reports tiers from highest to lowest priority, so the display order is the
// reverse.
func NewMenu(discovered []FeeTier) Menu {
	menu := make(Menu, len(discovered))
	for i, tier := range discovered {
		menu[len(discovered)-1-i] = tier
	}
	return menu
}

// Tier returns the tier at display index i.
func (m Menu) Tier(i int) (FeeTier, error) {
	if len(m) == 0 {
		return FeeTier{}, ErrNoFeeTiers
	}
	if i < 0 || i >= len(m) {
		return FeeTier{}, fmt.Errorf("%w: %d of %d", ErrTierIndex, i,
			len(m))
	}
	return m[i], nil
}

// DefaultIndex returns the display index selected by default.
func (m Menu) DefaultIndex() int {
	if len(m) <= DefaultTierIndex {
		return 0
	}
	return DefaultTierIndex
}

// CheapestIndex returns the display index of the tier with the lowest rate.
// Ties resolve to the earliest position.  It returns -1 for an empty menu.
func (m Menu) CheapestIndex() int {
	cheapest := -1
	for i, tier := range m {
		if cheapest < 0 || tier.MaxFeeRate < m[cheapest].MaxFeeRate {
			cheapest = i
		}
	}
	return cheapest
}

// Choose picks the tier for spending available over inputCount inputs into
// a single output.  The default tier is used unless it would consume the
// whole amount, in which case the cheapest tier is chosen instead.
func (m Menu) Choose(available btcutil.Amount, inputCount int) (int, error) {
	if len(m) == 0 {
		return 0, ErrNoFeeTiers
	}

	idx := m.DefaultIndex()
	if available-m[idx].Fee(inputCount, 1) > 0 {
		return idx, nil
	}

	return m.CheapestIndex(), nil
}
