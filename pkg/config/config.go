// Package config provides configuration management for collect-beans.
// Settings come from environment variables (optionally loaded from a .env
// file), a YAML workspace file describing the importers, and a JSON or ejson
// secrets file holding importer access tokens.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/Shopify/ejson"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"gopkg.in/yaml.v3"
)

// Environment variables that are read before the struct is parsed.
const (
	EnvWorkspace       = "COLLECT_BEANS_WORKSPACE"
	EnvEjsonKey        = "EJSON_PRIVATE_KEY"
	EnvEjsonKeyFile    = "EJSON_PRIVATE_KEY_FILE"
	EnvEjsonKeyDir     = "EJSON_KEYDIR"
	defaultWorkspace   = "workspace.yml"
	defaultEjsonKeyDir = "/opt/ejson/keys"
)

// Config represents the application configuration.
type Config struct {
	Bookkeeper BookkeeperConfig      `yaml:"bookkeeper"`
	Data       DataConfig            `yaml:"data"`
	Sort       SortConfig            `yaml:"sort"`
	Collect    CollectConfig         `yaml:"collect"`
	Importers  []bookkeeper.Importer `yaml:"importers"`
	Debug      bool                  `yaml:"debug" env:"DEBUG"`
}

// BookkeeperConfig represents the bookkeeping backend connection.
type BookkeeperConfig struct {
	URL     string        `yaml:"url" env:"BOOKKEEPER_URL"`
	Timeout time.Duration `yaml:"timeout" env:"BOOKKEEPER_TIMEOUT"` // zero means no timeout
}

// DataConfig represents where local state is kept.
type DataConfig struct {
	Dir          string `yaml:"dir" env:"COLLECT_BEANS_DATA_DIR"`
	DatabasePath string `yaml:"db_path" env:"COLLECT_BEANS_DB_PATH"`
	SnapshotsDir string `yaml:"snapshots_dir" env:"COLLECT_BEANS_SNAPSHOTS_DIR"`
}

// SortConfig represents sorting session settings.
type SortConfig struct {
	BatchSize int `yaml:"batch_size" env:"SORT_BATCH_SIZE"`
}

// CollectConfig represents importer run settings.
type CollectConfig struct {
	OverlapDays  int    `yaml:"overlap_days" env:"COLLECT_OVERLAP_DAYS"`
	LookbackDays int    `yaml:"lookback_days" env:"COLLECT_LOOKBACK_DAYS"`
	Schedule     string `yaml:"schedule" env:"COLLECT_SCHEDULE"`
	SecretsFile  string `yaml:"secrets_file" env:"COLLECT_SECRETS_FILE"`
}

// Secrets is the layout of the secrets file. Keys starting with an
// underscore stay in plain text when the file is ejson-encrypted.
type Secrets struct {
	PublicKey string                     `json:"_public_key,omitempty"`
	Importers map[string]ImporterSecrets `json:"importers"`
}

// ImporterSecrets holds the credentials of one importer.
type ImporterSecrets struct {
	AccessToken string `json:"access_token"`
}

// Defaults returns the values used for anything left unset.
func Defaults() Config {
	dataDir := ".collect-beans"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".collect-beans")
	}

	return Config{
		Bookkeeper: BookkeeperConfig{URL: "http://localhost:5005"},
		Data:       DataConfig{Dir: dataDir},
		Sort:       SortConfig{BatchSize: 20},
		Collect:    CollectConfig{OverlapDays: 3, LookbackDays: 30},
	}
}

// Load loads configuration. Environment variables win over the workspace
// file, which wins over Defaults. It loads the .env file from the current
// directory if available; a custom .env path can be given instead.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	workspace, err := readWorkspace(getEnvOrDefault(EnvWorkspace, defaultWorkspace))
	if err != nil {
		return nil, err
	}
	if err := mergo.Merge(&cfg, workspace); err != nil {
		return nil, fmt.Errorf("failed to merge workspace: %w", err)
	}
	if err := mergo.Merge(&cfg, Defaults()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if cfg.Collect.SecretsFile != "" {
		secrets, err := ReadSecrets(cfg.Collect.SecretsFile)
		if err != nil {
			return nil, err
		}
		if err := cfg.applySecrets(secrets); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// readWorkspace parses the workspace YAML. A missing file is not an error.
func readWorkspace(path string) (Config, error) {
	var cfg Config

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read workspace %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse workspace %s: %w", path, err)
	}
	return cfg, nil
}

// ReadSecrets reads the secrets file. Files ending in .ejson are decrypted
// with the key from EJSON_PRIVATE_KEY or EJSON_PRIVATE_KEY_FILE, falling back
// to the keydir.
func ReadSecrets(path string) (*Secrets, error) {
	var raw []byte
	var err error

	if strings.HasSuffix(path, ".ejson") {
		key, keyErr := ejsonKey()
		if keyErr != nil {
			return nil, keyErr
		}
		raw, err = ejson.DecryptFile(path, getEnvOrDefault(EnvEjsonKeyDir, defaultEjsonKeyDir), key)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt secrets %s: %w", path, err)
		}
	} else {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read secrets %s: %w", path, err)
		}
	}

	var secrets Secrets
	if err := json.Unmarshal(raw, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets %s: %w", path, err)
	}
	return &secrets, nil
}

func ejsonKey() (string, error) {
	if key := os.Getenv(EnvEjsonKey); key != "" {
		return strings.TrimSpace(key), nil
	}
	if file := os.Getenv(EnvEjsonKeyFile); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read ejson key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return "", nil
}

// applySecrets fills in access tokens not already set on the importers.
func (c *Config) applySecrets(secrets *Secrets) error {
	for i := range c.Importers {
		s, ok := secrets.Importers[c.Importers[i].Name]
		if !ok {
			continue
		}
		if err := mergo.Merge(&c.Importers[i], bookkeeper.Importer{AccessToken: s.AccessToken}); err != nil {
			return fmt.Errorf("failed to merge secrets for %s: %w", c.Importers[i].Name, err)
		}
	}
	return nil
}

// Importer looks an importer up by name.
func (c *Config) Importer(name string) (bookkeeper.Importer, bool) {
	for _, imp := range c.Importers {
		if imp.Name == name {
			return imp, true
		}
	}
	return bookkeeper.Importer{}, false
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) == 0 {
			continue
		}

		var value string
		switch path[0] {
		case "bookkeeper":
			if len(path) < 2 {
				continue
			}
			switch path[1] {
			case "url":
				value = c.Bookkeeper.URL
			}
		case "data":
			if len(path) < 2 {
				continue
			}
			switch path[1] {
			case "dir":
				value = c.Data.Dir
			case "dbPath":
				value = c.Data.DatabasePath
			case "snapshotsDir":
				value = c.Data.SnapshotsDir
			}
		case "collect":
			if len(path) < 2 {
				continue
			}
			switch path[1] {
			case "schedule":
				value = c.Collect.Schedule
			case "secretsFile":
				value = c.Collect.SecretsFile
			}
		case "importers":
			if len(c.Importers) > 0 {
				value = "set"
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file, workspace file or environment variables", missing)
	}

	for _, imp := range c.Importers {
		if imp.Name == "" {
			return fmt.Errorf("importer without a name in workspace")
		}
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
