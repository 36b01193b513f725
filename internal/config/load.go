package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithoutValidation(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithoutValidation reads a configuration file and applies defaults
// without validating it.
func LoadWithoutValidation(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	// Relative pe_conf paths are resolved against the config file.
	if cfg.PEConf != "" && !filepath.IsAbs(cfg.PEConf) {
		cfg.PEConf = filepath.Join(filepath.Dir(path), cfg.PEConf)
	}

	return cfg, nil
}

// LoadFromBytes parses, defaults and validates configuration data.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields and applies environment overrides.
func (c *Config) ApplyDefaults() {
	if c.DownloadMode == "" {
		c.DownloadMode = DownloadUpload
	}
	if c.ReleaseURL == "" {
		c.ReleaseURL = DefaultReleaseURL
	}
	c.ReleaseURL = strings.TrimRight(c.ReleaseURL, "/")
	if c.StagingDir == "" {
		c.StagingDir = DefaultStagingDir
	}
	if c.UploadDir == "" {
		c.UploadDir = DefaultUploadDir
	}
	if c.TokenFile == "" {
		c.TokenFile = DefaultTokenFile
	}

	if c.SSH.User == "" {
		c.SSH.User = DefaultSSHUser
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = DefaultSSHPort
	}
	c.SSH.PrivateKeyPath = expandHome(c.SSH.PrivateKeyPath)
	c.SSH.KnownHostsPath = expandHome(c.SSH.KnownHostsPath)

	if c.Mirror.Region == "" {
		c.Mirror.Region = DefaultMirrorRegion
	}
	if v := os.Getenv(EnvMirrorAccessKey); v != "" {
		c.Mirror.AccessKey = v
	}
	if v := os.Getenv(EnvMirrorSecretKey); v != "" {
		c.Mirror.SecretKey = v
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Save writes a configuration to a file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
