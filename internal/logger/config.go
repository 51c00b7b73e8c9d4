package logger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level   string        `yaml:"level"`
	Console ConsoleConfig `yaml:"console"`
	File    FileConfig    `yaml:"file"`
}

// ConsoleConfig controls logging to stdout
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"` // text or json
}

// FileConfig controls the rotating log file
type FileConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	Format     string `yaml:"format"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig logs INFO and above as text to the console
func DefaultConfig() Config {
	return Config{
		Level: "INFO",
		Console: ConsoleConfig{
			Enabled: true,
			Format:  "text",
		},
		File: FileConfig{
			Enabled:    false,
			Path:       "logs/cliffbrush.log",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// LoadConfig reads the logging section of a YAML file over the defaults and
// applies environment variable overrides. A missing file is not an error.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return config, fmt.Errorf("logger: read %s: %w", configPath, err)
		default:
			// Keys absent from the file keep their default values
			wrapper := struct {
				Logging *Config `yaml:"logging"`
			}{Logging: &config}
			if err := yaml.Unmarshal(data, &wrapper); err != nil {
				return DefaultConfig(), fmt.Errorf("logger: parse %s: %w", configPath, err)
			}
		}
	}

	applyEnv(&config)
	return config, nil
}

func applyEnv(config *Config) {
	if level := os.Getenv("CLIFFBRUSH_LOG_LEVEL"); level != "" {
		config.Level = level
	}

	if format := os.Getenv("CLIFFBRUSH_LOG_FORMAT"); format != "" {
		config.Console.Format = format
	}

	if fileEnabled := os.Getenv("CLIFFBRUSH_LOG_FILE_ENABLED"); fileEnabled != "" {
		if enabled, err := strconv.ParseBool(fileEnabled); err == nil {
			config.File.Enabled = enabled
		}
	}

	if filePath := os.Getenv("CLIFFBRUSH_LOG_FILE_PATH"); filePath != "" {
		config.File.Path = filePath
	}
}
