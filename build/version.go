// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"strings"
)

// semanticAlphabet is the set of characters allowed in the pre-release and
// build metadata of a semantic version.
const semanticAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

// These constants define the application version and follow the semantic
// versioning 2.0.0 rules (http://semver.org/).
const (
	AppMajor uint = 0
	AppMinor uint = 3
	AppPatch uint = 0

	// AppPreRelease MUST only contain characters from semanticAlphabet
	// per semantic versioning.
	AppPreRelease = "beta"
)

// Commit may be set with -ldflags "-X" at build time.
var Commit string

// Version returns the application version as a properly formed string per the
// semantic versioning 2.0.0 rules (http://semver.org/).
func Version() string {
	// Start with the major, minor, and patch versions.
	version := fmt.Sprintf("%d.%d.%d", AppMajor, AppMinor, AppPatch)

	// Append pre-release version if there is one.  The hyphen called for
	// by semantic versioning is automatically appended and should
	// not be contained in the pre-release string.  The pre-release version
	// is not appended if it contains invalid characters.
	preRelease := normalizeVerString(AppPreRelease)
	if preRelease != "" {
		version = fmt.Sprintf("%s-%s", version, preRelease)
	}

	// Append build metadata if there is any.
	commit := normalizeVerString(Commit)
	if commit != "" {
		version = fmt.Sprintf("%s+%s", version, commit)
	}

	return version
}

// normalizeVerString returns the passed string stripped of all characters
// which are not valid according to the semantic versioning guidelines for
// pre-release version and build metadata strings.
func normalizeVerString(str string) string {
	var result strings.Builder
	for _, r := range str {
		if strings.ContainsRune(semanticAlphabet, r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
