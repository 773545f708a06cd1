// Package config loads the editor server settings from an optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/dukex/runnr/pkg/autosave"
	"github.com/dukex/runnr/pkg/editor"
	"github.com/dukex/runnr/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort       = 9091
	DefaultStorageURL = "file://./data"
	DefaultEventBus   = "gochannel"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Config holds the server settings. Values set explicitly on the command
// line or through the environment take precedence over the file.
type Config struct {
	Port          int           `yaml:"port"           validate:"min=1,max=65535"`
	StorageURL    string        `yaml:"storage_url"    validate:"required"`
	SlotKey       string        `yaml:"slot_key"       validate:"required,max=200"`
	HistoryLimit  int           `yaml:"history_limit"  validate:"min=1,max=10000"`
	AutosaveDelay time.Duration `yaml:"autosave_delay" validate:"min=0"`
	EventBus      string        `yaml:"event_bus"      validate:"oneof=gochannel kafka"`
	KafkaBrokers  []string      `yaml:"kafka_brokers"  validate:"required_if=EventBus kafka,dive,hostname_port"`
	LogLevel      string        `yaml:"log_level"      validate:"oneof=debug info warn error"`
	LogFormat     string        `yaml:"log_format"     validate:"oneof=text json pretty"`
	Tracing       bool          `yaml:"tracing"`
}

func Default() Config {
	return Config{
		Port:          DefaultPort,
		StorageURL:    DefaultStorageURL,
		SlotKey:       persistence.DefaultSlotKey,
		HistoryLimit:  editor.DefaultHistoryLimit,
		AutosaveDelay: autosave.DefaultDelay,
		EventBus:      DefaultEventBus,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
	}
}

// Load reads the file at path over the defaults. An empty path or a
// missing file yields the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}

	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
