// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package config

import (
	"os"
	"path/filepath"
)

// xdgDir resolves tally's directory under the XDG base directory named by
// env, or under home/rel when env is unset.
func xdgDir(env, rel string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, "tally"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, rel, "tally"), nil
}

// ConfigDir returns $XDG_CONFIG_HOME/tally or ~/.config/tally. The
// directory is not created.
func ConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// ConfigPath returns the user-level config.yaml inside ConfigDir.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDir returns $XDG_DATA_HOME/tally or ~/.local/share/tally, where the
// history database lives by default. Without a home directory it falls
// back to the system temp directory.
func DataDir() string {
	dir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	if err != nil {
		return filepath.Join(os.TempDir(), "tally")
	}
	return dir
}
