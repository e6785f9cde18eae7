// Package config manages the global vectorify configuration
// (~/.config/vectorify/config.toml) and JSON layer-spec files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// GlobalConfig holds user-wide settings. Layer-spec files override the
// defaults recorded here.
type GlobalConfig struct {
	CacheDir string        `toml:"cache_dir"`
	Keys     KeysConfig    `toml:"keys"`
	Ollama   OllamaConfig  `toml:"ollama"`
	Process  ProcessConfig `toml:"process"`
}

// KeysConfig holds provider API keys. Environment variables take
// precedence over these.
type KeysConfig struct {
	OpenAI string `toml:"openai"`
	Gemini string `toml:"gemini"`
}

type OllamaConfig struct {
	Host       string `toml:"host"`
	EmbedModel string `toml:"embed_model"`
}

// ProcessConfig holds defaults for the process command.
type ProcessConfig struct {
	Workers       int    `toml:"workers"`
	FieldMain     string `toml:"field_main"`
	FieldSubtitle string `toml:"field_subtitle"`
}

// DefaultGlobal returns sensible defaults.
func DefaultGlobal() GlobalConfig {
	return GlobalConfig{
		CacheDir: defaultCacheDir(),
		Ollama: OllamaConfig{
			Host:       "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
		},
		Process: ProcessConfig{
			Workers:   4,
			FieldMain: "text",
		},
	}
}

// GlobalConfigPath returns the path of the global config file.
func GlobalConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "vectorify", "config.toml")
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "vectorify")
}

// CacheDBPath returns the SQLite database path inside a cache directory.
func CacheDBPath(cacheDir string) string {
	return filepath.Join(cacheDir, "vectorify.db")
}

// LoadGlobal reads the global config at path, falling back to defaults
// when the file does not exist.
func LoadGlobal(path string) (GlobalConfig, error) {
	cfg := DefaultGlobal()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultCacheDir()
	}
	return cfg, nil
}

// SaveGlobal writes the global config to path, creating its directory
// if needed.
func SaveGlobal(path string, cfg GlobalConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return nil
}
