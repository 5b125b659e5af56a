// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the gatekeep daemon configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Paths  PathsConfig  `yaml:"paths"`
}

// ServerConfig holds network listener settings.
type ServerConfig struct {
	SSHPort     int    `yaml:"ssh_port"`
	HealthPort  int    `yaml:"health_port"`
	HostKeyPath string `yaml:"host_key_path"`
}

// AuthConfig holds authentication policy settings.
type AuthConfig struct {
	// Methods enables checkers: "password", "publickey".
	Methods []string `yaml:"methods"`

	// KeySources enables authorized-key sources, consulted together:
	// "unix" (~/.ssh/authorized_keys via the account database), "files"
	// (the key_files mapping), "store" (the SQLite key store).
	KeySources []string `yaml:"key_sources"`

	// KeyFiles maps usernames to authorized_keys paths for the "files"
	// source.
	KeyFiles map[string][]string `yaml:"key_files"`

	// PasswordSentinels are hash values meaning "consult the next account
	// source". The default matches platform convention.
	PasswordSentinels []string `yaml:"password_sentinels"`

	// RequireAllMethods demands one verified factor per enabled method.
	RequireAllMethods bool `yaml:"require_all_methods"`

	// PolicyScript, when set, points at a Lua script whose
	// satisfied(user, factors) function replaces the built-in policy.
	PolicyScript string `yaml:"policy_script"`

	// SuFallback delegates password hashes the daemon cannot derive
	// (yescrypt, classic DES) to su(1) on the host.
	SuFallback bool `yaml:"su_fallback"`
}

// PathsConfig holds filesystem paths.
type PathsConfig struct {
	Data       string `yaml:"data"`
	Database   string `yaml:"database"`
	PasswdFile string `yaml:"passwd_file"`
	ShadowFile string `yaml:"shadow_file"`
}

// Load reads and parses a YAML config file, applying defaults for anything
// left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			SSHPort:     2222,
			HealthPort:  2223,
			HostKeyPath: "./data/host_key",
		},
		Auth: AuthConfig{
			Methods:           []string{"password", "publickey"},
			KeySources:        []string{"unix"},
			PasswordSentinels: []string{"", "x", "*"},
		},
		Paths: PathsConfig{
			Data:       "./data",
			Database:   "./data/gatekeep.db",
			PasswdFile: "/etc/passwd",
			ShadowFile: "/etc/shadow",
		},
	}
}
