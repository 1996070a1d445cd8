// Copyright (c) 2015 The btcsuite developers
// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"fmt"
	"os"
)

// FileExists reports whether the named file or directory exists.
func FileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadCertificate reads a PEM encoded RPC certificate.  An empty path yields
// no certificate.
func ReadCertificate(certPath string) ([]byte, error) {
	if certPath == "" {
		return nil, nil
	}

	exists, err := FileExists(certPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("RPC certificate file `%s` not found",
			certPath)
	}

	return os.ReadFile(certPath)
}
