// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestConfirm checks yes/no prompts.
func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", defaultYes: true, want: false},
		{input: "\n", defaultYes: true, want: true},
		{input: "\n", want: false},
		{input: "maybe\nyes\n", want: true},
	}

	for _, test := range tests {
		var out bytes.Buffer
		p := New(strings.NewReader(test.input), &out)

		got, err := p.Confirm("Broadcast claim?", test.defaultYes)
		require.NoError(t, err, test.input)
		require.Equal(t, test.want, got, test.input)
		require.Contains(t, out.String(), "Broadcast claim? (n/no/y/yes)")
	}

	p := New(strings.NewReader(""), io.Discard)
	_, err := p.Confirm("Broadcast claim?", false)
	require.ErrorIs(t, err, io.EOF)
}

// TestSelect checks numbered selections.
func TestSelect(t *testing.T) {
	t.Parallel()

	choices := []string{"Low", "Economy", "Normal"}

	var out bytes.Buffer
	p := New(strings.NewReader("\n0\nx\n3\n"), &out)

	i, err := p.Select("Fee", choices, 1)
	require.NoError(t, err)
	require.Equal(t, 1, i)

	i, err = p.Select("Fee", choices, 1)
	require.NoError(t, err)
	require.Equal(t, 2, i)
	require.Contains(t, out.String(), "  2) Economy")
	require.Contains(t, out.String(), "Enter a number between 1 and 3")

	_, err = p.Select("Fee", nil, 0)
	require.ErrorIs(t, err, ErrNoChoices)
}

// TestLine checks free text prompts.
func TestLine(t *testing.T) {
	t.Parallel()

	p := New(strings.NewReader("\n  1BoatSLRHtKNngkdXEeobR76b53LETtpyT \n"),
		io.Discard)

	got, err := p.Line("Address", "default")
	require.NoError(t, err)
	require.Equal(t, "default", got)

	got, err = p.Line("Address", "")
	require.NoError(t, err)
	require.Equal(t, "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", got)
}
