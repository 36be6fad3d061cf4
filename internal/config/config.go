// Package config manages the YAML configuration file. Unknown keys and
// invalid values are rejected at the edge so the rest of the program only
// ever sees a valid configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hotshot-tools/hotshot/internal/logger"
)

var (
	// ErrUnknownKey is returned by Set and Get for a key outside the schema.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned by Set when the value fails validation.
	ErrInvalidValue = errors.New("invalid config value")
)

// Config is the on-disk configuration.
type Config struct {
	StorageDir string         `yaml:"storage_dir"`
	Image      ImageConfig    `yaml:"image"`
	Storage    StorageConfig  `yaml:"storage"`
	Behavior   BehaviorConfig `yaml:"behavior"`
	Server     ServerConfig   `yaml:"server"`
	LogLevel   string         `yaml:"log_level"`
}

// ImageConfig controls how captures are encoded and named.
type ImageConfig struct {
	Format           string `yaml:"format"`
	Quality          int    `yaml:"quality"`
	FilenameTemplate string `yaml:"filename_template"`
}

// StorageConfig controls the library layout.
type StorageConfig struct {
	OrganizeBy string `yaml:"organize_by"` // "month" or "none"
}

// BehaviorConfig controls what happens after a capture succeeds.
type BehaviorConfig struct {
	CopyToClipboard bool `yaml:"copy_to_clipboard"`
	Notification    bool `yaml:"notification"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Manager loads, validates, and persists the configuration.
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager opens the config at configFile, or the default path when
// empty. A missing file is created with defaults; a malformed one is an
// error, not silently replaced.
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "hotshot")
	actualConfigPath := filepath.Join(configDir, "config.yaml")
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	m := &Manager{configPath: actualConfigPath}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = defaults(homeDir)
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Str("format", m.config.Image.Format).
		Msg("Config loaded")

	return m, nil
}

// defaults is the configuration a fresh install gets.
func defaults(homeDir string) *Config {
	return &Config{
		StorageDir: filepath.Join(homeDir, "Pictures", "Screenshots"),
		Image: ImageConfig{
			Format:           "png",
			Quality:          90,
			FilenameTemplate: "{timestamp}-{random}",
		},
		Storage: StorageConfig{OrganizeBy: "month"},
		Behavior: BehaviorConfig{
			CopyToClipboard: false,
			Notification:    false,
		},
		Server:   ServerConfig{Port: 8484},
		LogLevel: "info",
	}
}

// load reads the configuration from disk, filling absent fields with
// defaults so partial files keep working. Unrecognized YAML keys are
// ignored, not errors; invalid values for known keys are.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("get home directory: %w", err)
	}

	cfg := defaults(homeDir)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	for _, key := range Keys() {
		current, _ := getKey(cfg, key)
		if err := validate(key, current); err != nil {
			return fmt.Errorf("config key %s: %w", key, err)
		}
	}

	m.config = cfg
	return nil
}

// Save writes the configuration atomically: temp file, then rename.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := m.configPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, m.configPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit config: %w", err)
	}
	return nil
}

// Get returns a copy of the configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.configPath
}

// StorageDir returns the storage directory with a leading ~ expanded.
func (m *Manager) StorageDir() string {
	m.mu.RLock()
	dir := m.config.StorageDir
	m.mu.RUnlock()

	if strings.HasPrefix(dir, "~/") || dir == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(dir, "~"), "/"))
		}
	}
	return dir
}

// Keys lists every settable dotted key in schema order.
func Keys() []string {
	return []string{
		"storage_dir",
		"image.format",
		"image.quality",
		"image.filename_template",
		"storage.organize_by",
		"behavior.copy_to_clipboard",
		"behavior.notification",
		"server.port",
		"log_level",
	}
}

// GetKey returns the current value of a dotted key as a string.
func (m *Manager) GetKey(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return getKey(m.config, key)
}

func getKey(cfg *Config, key string) (string, error) {
	switch key {
	case "storage_dir":
		return cfg.StorageDir, nil
	case "image.format":
		return cfg.Image.Format, nil
	case "image.quality":
		return strconv.Itoa(cfg.Image.Quality), nil
	case "image.filename_template":
		return cfg.Image.FilenameTemplate, nil
	case "storage.organize_by":
		return cfg.Storage.OrganizeBy, nil
	case "behavior.copy_to_clipboard":
		return strconv.FormatBool(cfg.Behavior.CopyToClipboard), nil
	case "behavior.notification":
		return strconv.FormatBool(cfg.Behavior.Notification), nil
	case "server.port":
		return strconv.Itoa(cfg.Server.Port), nil
	case "log_level":
		return cfg.LogLevel, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set validates and applies a dotted key, then persists. The written file
// never holds a value that failed validation.
func (m *Manager) Set(key, value string) error {
	if err := m.apply(key, value); err != nil {
		return err
	}
	return m.Save()
}

// Override validates and applies a dotted key for this process only; the
// file on disk is left alone. Used for one-off CLI flags.
func (m *Manager) Override(key, value string) error {
	return m.apply(key, value)
}

func (m *Manager) apply(key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}

	m.mu.Lock()
	switch key {
	case "storage_dir":
		m.config.StorageDir = value
	case "image.format":
		m.config.Image.Format = strings.ToLower(value)
	case "image.quality":
		m.config.Image.Quality, _ = strconv.Atoi(value)
	case "image.filename_template":
		m.config.Image.FilenameTemplate = value
	case "storage.organize_by":
		m.config.Storage.OrganizeBy = value
	case "behavior.copy_to_clipboard":
		m.config.Behavior.CopyToClipboard, _ = strconv.ParseBool(value)
	case "behavior.notification":
		m.config.Behavior.Notification, _ = strconv.ParseBool(value)
	case "server.port":
		m.config.Server.Port, _ = strconv.Atoi(value)
	case "log_level":
		m.config.LogLevel = value
	}
	m.mu.Unlock()
	return nil
}

// validate checks a single key/value pair against the schema.
func validate(key, value string) error {
	switch key {
	case "storage_dir", "image.filename_template":
		if value == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidValue, key)
		}
	case "image.format":
		switch strings.ToLower(value) {
		case "png", "jpeg", "jpg", "webp":
		default:
			return fmt.Errorf("%w: format must be png, jpeg, or webp", ErrInvalidValue)
		}
	case "image.quality":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 100 {
			return fmt.Errorf("%w: quality must be an integer in [1, 100]", ErrInvalidValue)
		}
	case "storage.organize_by":
		if value != "month" && value != "none" {
			return fmt.Errorf("%w: organize_by must be month or none", ErrInvalidValue)
		}
	case "behavior.copy_to_clipboard", "behavior.notification":
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%w: %s must be true or false", ErrInvalidValue, key)
		}
	case "server.port":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("%w: server.port must be a valid port number", ErrInvalidValue)
		}
	case "log_level":
		switch value {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("%w: log_level must be debug, info, warn, or error", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}
