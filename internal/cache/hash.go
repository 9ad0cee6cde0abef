package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// HashFiles returns a blake2b-256 fingerprint of the named files. Names are
// hashed in sorted order by base name so the result does not depend on the
// order of files.
func HashFiles(files []string) (string, error) {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	for _, file := range sorted {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", file, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00", filepath.Base(file), len(data))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashValue returns a blake2b-256 fingerprint of the JSON encoding of v
func HashValue(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to hash value: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
