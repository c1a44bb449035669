package assets

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Ensure SHA256 available for checksum calculation.
	_ "crypto/sha256"
)

// DefaultChecksumFunction is used for update artifact hashes stored in manifests.
const DefaultChecksumFunction crypto.Hash = crypto.SHA256

var errHashUnavailable = errors.New("hash function unavailable")

// FileChecksum returns the hex encoded hash of a file.
func FileChecksum(path string, hash crypto.Hash) (string, error) {
	if !hash.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := hash.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("calculate checksum of %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
