// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrNoChoices is returned when a selection has nothing to choose from.
var ErrNoChoices = errors.New("nothing to choose from")

// Prompter reads answers from a reader and writes questions to a writer.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

// New creates a prompter over r and w.
func New(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{
		reader: bufio.NewReader(r),
		out:    w,
	}
}

// Stdio creates a prompter over the process's standard input and output.
func Stdio() *Prompter {
	return New(os.Stdin, os.Stdout)
}

// readLine reads one trimmed line.
func (p *Prompter) readLine() (string, error) {
	reply, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || reply == "") {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// promptList prompts the user with the given prefix, list of valid responses,
// and default list entry to use.  The function will repeat the prompt to the
// user until they enter a valid response.
func (p *Prompter) promptList(prefix string, validResponses []string,
	defaultEntry string) (string, error) {

	// Setup the prompt according to the parameters.
	validStrings := strings.Join(validResponses, "/")
	var prompt string
	if defaultEntry != "" {
		prompt = fmt.Sprintf("%s (%s) [%s]: ", prefix, validStrings,
			defaultEntry)
	} else {
		prompt = fmt.Sprintf("%s (%s): ", prefix, validStrings)
	}

	// Prompt the user until one of the valid responses is given.
	for {
		fmt.Fprint(p.out, prompt)
		reply, err := p.readLine()
		if err != nil {
			return "", err
		}
		reply = strings.ToLower(reply)
		if reply == "" {
			reply = defaultEntry
		}

		for _, validResponse := range validResponses {
			if reply == validResponse {
				return reply, nil
			}
		}
	}
}

// Confirm prompts the user for a boolean (yes/no) with the given prefix.  The
// function will repeat the prompt to the user until they enter a valid
// response.
func (p *Prompter) Confirm(prefix string, defaultYes bool) (bool, error) {
	defaultEntry := "no"
	if defaultYes {
		defaultEntry = "yes"
	}

	valid := []string{"n", "no", "y", "yes"}
	response, err := p.promptList(prefix, valid, defaultEntry)
	if err != nil {
		return false, err
	}
	return response == "yes" || response == "y", nil
}

// Select lists choices numbered from 1 and returns the index of the one the
// user picked.  An empty reply picks defaultIndex.
func (p *Prompter) Select(prefix string, choices []string,
	defaultIndex int) (int, error) {

	if len(choices) == 0 {
		return 0, ErrNoChoices
	}
	if defaultIndex < 0 || defaultIndex >= len(choices) {
		defaultIndex = 0
	}

	for i, choice := range choices {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, choice)
	}

	for {
		fmt.Fprintf(p.out, "%s [%d]: ", prefix, defaultIndex+1)
		reply, err := p.readLine()
		if err != nil {
			return 0, err
		}
		if reply == "" {
			return defaultIndex, nil
		}

		n, err := strconv.Atoi(reply)
		if err == nil && n >= 1 && n <= len(choices) {
			return n - 1, nil
		}
		fmt.Fprintf(p.out, "Enter a number between 1 and %d\n",
			len(choices))
	}
}

// Line prompts for free text.  An empty reply yields defaultEntry.
func (p *Prompter) Line(prefix, defaultEntry string) (string, error) {
	if defaultEntry != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", prefix, defaultEntry)
	} else {
		fmt.Fprintf(p.out, "%s: ", prefix)
	}

	reply, err := p.readLine()
	if err != nil {
		return "", err
	}
	if reply == "" {
		return defaultEntry, nil
	}
	return reply, nil
}

// Secret prompts for a password on the terminal without echoing it.
func Secret(prefix string) (string, error) {
	fmt.Printf("%s: ", prefix)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(pass)), nil
}
