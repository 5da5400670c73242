// Package config loads and persists the engine's tunable knobs: cache
// sizing, prefetch window, worker pool sizes, and database retry/vacuum
// policy.
package config

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Config holds every engine-recognized option. Unknown keys in the
// config file are rejected rather than silently ignored, so a typo in
// a field name surfaces immediately instead of silently falling back
// to a default.
type Config struct {
	CacheCapEntries int `json:"cache_cap_entries"`
	CacheCapBytes   int `json:"cache_cap_bytes"`
	PrefetchBack    int `json:"prefetch_back"`
	PrefetchAhead   int `json:"prefetch_ahead"`
	ThumbBoxW       int `json:"thumb_box_w"`
	ThumbBoxH       int `json:"thumb_box_h"`
	WorkerPoolSize  int `json:"worker_pool_size"`
	IOPoolSize      int `json:"io_pool_size"`
	DBRetryMax      int `json:"db_retry_max"`
	DBRetryBaseMs   int `json:"db_retry_base_ms"`
	DBVacuumDays    int `json:"db_vacuum_days"`
}

// DefaultConfig returns the engine's built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		CacheCapEntries: 20,
		CacheCapBytes:   0, // 0 disables the byte budget, entry cap governs alone
		PrefetchBack:    3,
		PrefetchAhead:   5,
		ThumbBoxW:       256,
		ThumbBoxH:       256,
		WorkerPoolSize:  runtime.GOMAXPROCS(0),
		IOPoolSize:      4,
		DBRetryMax:      5,
		DBRetryBaseMs:   10,
		DBVacuumDays:    30,
	}
}

// Manager handles loading, saving, and accessing configuration.
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error
}

// NewManager creates a new configuration manager with built-in defaults.
func NewManager() *Manager {
	return &Manager{config: DefaultConfig()}
}

// ConfigPath returns the config file path: ~/.config/pixcore/config.json
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "pixcore", "config.json")
}

// Load reads the configuration from the config file. If the file
// doesn't exist, it creates it with defaults. If parsing fails, it
// stores the error and falls back to defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.path = ConfigPath()
	m.parseErr = nil

	configDir := filepath.Dir(m.path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		log.Printf("config: failed to create directory %s: %v", configDir, err)
		return err
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		log.Printf("config: creating default config at %s", m.path)
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			log.Printf("config: failed to save default config: %v", saveErr)
			return saveErr
		}
		return nil
	}
	if err != nil {
		log.Printf("config: failed to read %s: %v", m.path, err)
		return err
	}

	cfg := *DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		log.Printf("config: parse error: %v", err)
		m.parseErr = err
		m.config = DefaultConfig()
		return nil
	}

	log.Printf("config: loaded from %s", m.path)
	m.config = &cfg
	return nil
}

func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

// ParseError returns the parsing error if the config file failed to load.
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}
