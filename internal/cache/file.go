package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

type fileFormat struct {
	Version  int              `json:"version"`
	Packages map[string]Entry `json:"packages"`
}

// jsonBackend stores the cache as one indented JSON document
type jsonBackend struct {
	path string
}

func (b jsonBackend) load() (map[string]Entry, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache %s: %w", b.path, err)
	}

	var stored fileFormat
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse cache %s: %w", b.path, err)
	}
	if stored.Version != FormatVersion {
		return nil, fmt.Errorf("cache %s has version %d, expected %d", b.path, stored.Version, FormatVersion)
	}
	return stored.Packages, nil
}

// save writes to a temporary file first so readers never see a partial cache
func (b jsonBackend) save(packages map[string]Entry) error {
	data, err := json.MarshalIndent(fileFormat{Version: FormatVersion, Packages: packages}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write cache %s: %w", b.path, err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("failed to replace cache %s: %w", b.path, err)
	}
	return nil
}
