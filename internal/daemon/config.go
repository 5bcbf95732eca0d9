// Package daemon holds the service configuration, loaded from a TOML file
// with sane defaults for local development.
package daemon

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Billing BillingConfig `toml:"billing"`
	Digest  DigestConfig  `toml:"digest"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig configures the SQLite data directory.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// BillingConfig configures the webhook reconciler.
type BillingConfig struct {
	// SigningSecret is the shared secret of the HMAC-signed provider.
	SigningSecret string `toml:"signing_secret"`
	// RenewalCredits is granted on each subscription renewal.
	RenewalCredits int64 `toml:"renewal_credits"`
	// ProProduct is the permalink/variant of the pro subscription.
	ProProduct string `toml:"pro_product"`
	// Topups maps a product permalink or variant name to its credit grant.
	Topups map[string]int64 `toml:"topups"`
}

// DigestConfig configures the read-only digest endpoints.
type DigestConfig struct {
	// Secret is the bearer token the scheduled digest jobs present.
	Secret string `toml:"secret"`
}

// DefaultConfig returns the development defaults.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8093,
		},
		Storage: StorageConfig{
			Dir: filepath.Join(home, ".nexusd"),
		},
		Billing: BillingConfig{
			RenewalCredits: 100,
			ProProduct:     "nexus-pro",
			Topups: map[string]int64{
				"credits-100": 100,
				"credits-500": 500,
			},
		},
		Digest: DigestConfig{},
	}
}

// Load reads the config file over the defaults. A missing file is not an
// error; it simply yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
