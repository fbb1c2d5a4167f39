package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// File is the shape of the optional json5 overlay file. Only the sections
// that tend to drift with the target site's markup are file-configurable.
type File struct {
	Site      SiteConfig     `json:"site"`
	Selectors SelectorConfig `json:"selectors"`
}

// ReadFile reads a json5 overlay. A sibling "<name>.local.<ext>" file, when
// present, overrides individual fields of the main file. Returns
// os.ErrNotExist if neither file exists.
func ReadFile(name string) (File, error) {
	var out File
	found := false

	main, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, fmt.Errorf("config: read %s: %w", name, err)
	}
	if len(main) > 0 {
		if err := json5.Unmarshal(main, &out); err != nil {
			return out, fmt.Errorf("config: parse %s: %w", name, err)
		}
		found = true
	}

	local := localName(name)
	localData, err := os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, fmt.Errorf("config: read %s: %w", local, err)
	}
	if len(localData) > 0 {
		var override File
		if err := json5.Unmarshal(localData, &override); err != nil {
			return out, fmt.Errorf("config: parse %s: %w", local, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("config: merge %s: %w", local, err)
		}
		slog.Info("merging config with local overrides", "local", local)
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ApplyFile merges the non-empty fields of the overlay file into c.
func (c *Config) ApplyFile(name string) error {
	f, err := ReadFile(name)
	if err != nil {
		return err
	}
	if err := mergo.Merge(&c.Site, f.Site, mergo.WithOverride); err != nil {
		return fmt.Errorf("config: merge site: %w", err)
	}
	if err := mergo.Merge(&c.Selectors, f.Selectors, mergo.WithOverride); err != nil {
		return fmt.Errorf("config: merge selectors: %w", err)
	}
	slog.Info("config file applied", "file", name)
	return nil
}

// localName turns "dir/tabscan.json5" into "dir/tabscan.local.json5".
func localName(name string) string {
	dir := filepath.Dir(name)
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+".local"+ext)
}
