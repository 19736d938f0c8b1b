// Package hostconfig persists the one piece of state the daemon needs
// across restarts: which .kdbx file to operate on. It mirrors the
// original pfp-native-host's config.rs, with github.com/mitchellh/go-homedir
// standing in for the Rust app_dirs2 crate this pack doesn't carry.
package hostconfig

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

const (
	appDirName = "kdbx-native-host"
	configFile = "config.json"
	dirPerm    = 0o700
	filePerm   = 0o600
)

// Config is the single JSON document persisted under the user's config
// directory: the path to the one database this daemon instance manages.
type Config struct {
	Database string `json:"database"`
}

func configPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", kdbxerr.Wrap(kdbxerr.CodeIO, err)
	}
	return filepath.Join(home, ".config", appDirName, configFile), nil
}

// GetDatabasePath returns the currently configured database path, or ""
// if no configuration has been written yet (mirroring the original's
// Option<PathBuf>, collapsed to the zero value rather than a second
// return value since every caller already treats "" as "unconfigured").
func GetDatabasePath() string {
	path, err := configPath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ""
	}
	return cfg.Database
}

// SetDatabasePath writes path (resolved to an absolute path where
// possible) as the configured database, creating the config directory if
// it doesn't exist yet.
func SetDatabasePath(path string) error {
	resolved, err := filepath.Abs(path)
	if err != nil {
		resolved = path
	}
	cfgPath, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), dirPerm); err != nil {
		return kdbxerr.Wrap(kdbxerr.CodeIO, err)
	}
	data, err := json.MarshalIndent(Config{Database: resolved}, "", "  ")
	if err != nil {
		return kdbxerr.Wrap(kdbxerr.CodeEncoding, err)
	}
	if err := os.WriteFile(cfgPath, data, filePerm); err != nil {
		return kdbxerr.Wrap(kdbxerr.CodeIO, err)
	}
	return nil
}
