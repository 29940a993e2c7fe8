// Package config loads and hot-reloads loomtermd's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config is the on-disk shape of loomtermd's configuration file.
type Config struct {
	Width  int    `toml:"width" validate:"required,gt=0"`
	Height int    `toml:"height" validate:"required,gt=0"`

	Shell string `toml:"shell"`

	RXFifoDepth int `toml:"rx_fifo_depth" validate:"gt=0"`
	TXFifoDepth int `toml:"tx_fifo_depth" validate:"gt=0"`

	DiagAddr string `toml:"diag_addr"`
	LogLevel string `toml:"log_level" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// Default returns the configuration loomtermd starts with absent a config
// file: an 80x40 screen, the two FIFO depths the original UART wiring used
// (an 8-byte receive fifo, a 100x-deeper transmit fifo), and a warn-level
// log, matching the original's LOG_WARNING default.
func Default() *Config {
	return &Config{
		Width:       80,
		Height:      40,
		Shell:       os.Getenv("SHELL"),
		RXFifoDepth: 8,
		TXFifoDepth: 800,
		DiagAddr:    "127.0.0.1:7682",
		LogLevel:    "warn",
	}
}

// Path returns the default config file location, creating its parent
// directory if necessary.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".loomtermd.toml"
	}
	dir := filepath.Join(home, ".config", "loomtermd")
	os.MkdirAll(dir, 0o755)
	return filepath.Join(dir, "config.toml")
}

// Load reads path, falling back to Default when the file does not exist.
// The result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path in TOML form.
func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}

// Store holds the active configuration. It is replaced by Reload, which a
// Watcher calls when the file changes; Store has no change notification,
// so callers see a new configuration only on their next Get.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewStore loads path (or the default config if absent) into a Store.
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cfg: cfg}, nil
}

// Get returns the currently active configuration.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := *s.cfg
	return &cfg
}

// Reload re-reads the config file from disk and swaps it in atomically. A
// malformed file is rejected and the previously active configuration is
// kept in place rather than torn down.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}
