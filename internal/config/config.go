// Copyright (c) 2024 The gosh Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads gosh's optional startup file, the ambient
// configuration layer SPEC_FULL.md §6 adds on top of spec.md: a
// YAML document unmarshalled with gopkg.in/yaml.v3, the same library
// the teacher's plan package uses for its layer documents.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the values a user may override from ~/.goshrc.yaml.
type Config struct {
	// Prompt is printed before reading each command line. Defaults to "# ".
	Prompt string `yaml:"prompt"`
	// Greeting is printed once at startup, before the first prompt. Empty
	// means no greeting is printed.
	Greeting string `yaml:"greeting"`
	// RedirectFileMode is the permission bits used to create files named
	// by a '>' redirection (internal/redir.FileMode). Defaults to 0644.
	RedirectFileMode os.FileMode `yaml:"redirectFileMode"`
}

// Default returns the configuration gosh runs with when no startup file
// is present, matching spec.md §4.1's 0644 default and the "# " prompt
// from spec.md §6 / original_source/shell.c.
func Default() Config {
	return Config{
		Prompt:           "# ",
		RedirectFileMode: 0644,
	}
}

// Path returns the default startup file location, ~/.goshrc.yaml.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, ".goshrc.yaml"), nil
}

// Load reads and parses the startup file at path, layering it over
// Default(). A missing file is not an error: it yields the defaults
// unchanged, matching spec.md's "run with no configuration" baseline
// behavior. A present-but-malformed file is a fatal startup error
// (SPEC_FULL.md §6), reported to the caller rather than swallowed.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	if cfg.RedirectFileMode == 0 {
		cfg.RedirectFileMode = 0644
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "# "
	}
	return cfg, nil
}
