// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/meshcore/trustengine/internal/util"
)

// Config is the on-disk shape of a trustengine node's settings: where its
// Store lives, which address identifies it on the transport, and how
// verbosely it logs. Crypto key material is never stored here — it lives
// in the Crypto Provider's own keyring, addressed by fingerprint.
type Config struct {
	Identity Identity `json:"identity"`
	Store    Store    `json:"store"`
	Listen   Listen   `json:"listen"`
	Log      Log      `json:"log"`
}

type Identity struct {
	// UserID clusters every address this node answers to under one local
	// identity (§3).
	UserID string `json:"user_id"`
}

type Store struct {
	// Path is the directory store.Open creates the sqlite database file
	// (trustengine.db) in, or ":memory:" to run
	// against store.NewMemStore() instead (tests and ephemeral runs).
	Path string `json:"path"`
}

type Listen struct {
	// Address is the multiaddr the libp2p transport listens on.
	Address string `json:"address"`
}

type Log struct {
	Level string `json:"level"`
}

func Default() Config {
	return Config{
		Identity: Identity{UserID: ""},
		Store:    Store{Path: "data/trustengine.db"},
		Listen:   Listen{Address: "/ip4/0.0.0.0/tcp/0"},
		Log:      Log{Level: "info"},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Identity.UserID) == "" {
		return errors.New("identity.user_id is required")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path is required")
	}
	if strings.TrimSpace(c.Listen.Address) == "" {
		return errors.New("listen.address is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// Load reads and validates a config file, starting from Default() so
// fields the file omits stay initialized.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config
// file under a freshly generated user_id. Returns (cfg, createdNew, err).
func Ensure(path string, newUserID func() string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	cfg.Identity.UserID = newUserID()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}
