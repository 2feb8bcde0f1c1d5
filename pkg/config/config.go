// Package config loads the optional preserve configuration file: a YAML
// document holding tool defaults and connection aliases, so commands can say
// "prod" instead of a full mongodb URI. Values of the form ${VAR} are
// substituted from the environment before parsing.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/evhart/preserve/pkg/errors"
)

// EnvConfigPath overrides the default configuration file location.
const EnvConfigPath = "PRESERVE_CONFIG"

// EnvLogLevel overrides the configured log level.
const EnvLogLevel = "PRESERVE_LOG_LEVEL"

const defaultFileName = ".preserve.yaml"

// Config is the tool configuration. The zero value is usable; a missing
// configuration file is not an error.
type Config struct {
	// LogLevel is the default log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Aliases maps short names to connection strings.
	Aliases map[string]string `yaml:"aliases"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "warn",
		Aliases:  map[string]string{},
	}
}

// Load reads a configuration file, substituting ${VAR} references from the
// environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot read configuration file").
			WithDetail("path", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot parse configuration file").
			WithDetail("path", path)
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}

	return cfg, nil
}

// LoadDefault loads the configuration from the standard locations: a .env
// file in the working directory, then the file named by PRESERVE_CONFIG, or
// ~/.preserve.yaml. A missing file yields the defaults; environment
// overrides apply either way.
func LoadDefault() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, defaultFileName)
		}
	}

	cfg := Default()
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			loaded, err := Load(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// Resolve maps an alias to its connection string. Anything that is not a
// configured alias passes through unchanged, so commands accept both.
func (c *Config) Resolve(name string) string {
	if uri, ok := c.Aliases[name]; ok {
		return uri
	}
	return name
}

// substituteEnvVars replaces ${VAR} references with environment values.
// Unset variables become empty strings.
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		content = content[:start] + os.Getenv(content[start+2:end]) + content[end+1:]
	}
	return content
}
