// Package config loads daemon configuration from the environment,
// with an optional .env file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the daemon's full configuration.
type Config struct {
	// Storage.
	StorePath string `env:"FOCALIZE_STORE_PATH"`
	SyncDSN   string `env:"FOCALIZE_SYNC_DSN"`

	// Social graph API.
	APIBaseURL string `env:"FOCALIZE_API_URL" envDefault:"https://api.focalize.dev" validate:"url"`
	APIToken   string `env:"FOCALIZE_API_TOKEN"`

	// Messaging network.
	KeystoreDir   string `env:"FOCALIZE_KEYSTORE_DIR"`
	WalletAddress string `env:"FOCALIZE_WALLET_ADDRESS" validate:"required"`
	GatewayURL    string `env:"FOCALIZE_GATEWAY_URL" envDefault:"https://gateway.focalize.dev" validate:"url"`
	GatewayWSURL  string `env:"FOCALIZE_GATEWAY_WS_URL" envDefault:"wss://gateway.focalize.dev/stream"`

	// Content host the user browses on; notification clicks land here.
	ContentHost string `env:"FOCALIZE_CONTENT_HOST" envDefault:"https://hey.xyz" validate:"url"`

	// Command API for the UI process.
	IPCAddr   string `env:"FOCALIZE_IPC_ADDR" envDefault:"127.0.0.1:9357"`
	IPCSecret string `env:"FOCALIZE_IPC_SECRET" validate:"required,min=16"`

	// Polling.
	NotificationsInterval time.Duration `env:"FOCALIZE_NOTIFICATIONS_INTERVAL" envDefault:"1m"`
	MessagesInterval      time.Duration `env:"FOCALIZE_MESSAGES_INTERVAL" envDefault:"1m"`
	PageSize              int           `env:"FOCALIZE_PAGE_SIZE" envDefault:"50" validate:"min=1,max=100"`
	FilteredFeed          bool          `env:"FOCALIZE_FILTERED_FEED" envDefault:"true"`

	// Notification presentation.
	GroupNotifications bool `env:"FOCALIZE_GROUP_NOTIFICATIONS" envDefault:"true"`

	Debug bool `env:"FOCALIZE_DEBUG"`
}

// Load reads .env (when present), parses the environment, fills
// home-relative defaults, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.StorePath == "" || cfg.KeystoreDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		base := filepath.Join(home, ".config", "focalize")
		if cfg.StorePath == "" {
			cfg.StorePath = filepath.Join(base, "store.db")
		}
		if cfg.KeystoreDir == "" {
			cfg.KeystoreDir = filepath.Join(base, "keys")
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
