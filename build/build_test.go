// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/require"
)

// TestNewSubLogger checks that default builds use the supplied constructor.
func TestNewSubLogger(t *testing.T) {
	var got string
	gen := func(subsystem string) btclog.Logger {
		got = subsystem
		return btclog.Disabled
	}

	logger := NewSubLogger("CLAM", gen)
	require.NotNil(t, logger)
	if LoggingType == LogTypeDefault {
		require.Equal(t, "CLAM", got)
	}

	require.Equal(t, "default", LogTypeDefault.String())
	require.Equal(t, "unknown", LogType(9).String())
}

// TestNormalizeVerString checks that invalid characters are dropped.
func TestNormalizeVerString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "beta.1", normalizeVerString("beta.1"))
	require.Equal(t, "abc123", normalizeVerString("a_b c+123"))
	require.Contains(t, Version(), "0.3.0")
}
