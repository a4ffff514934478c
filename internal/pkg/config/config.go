package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gosimple/slug"
)

type Config struct {
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"INFO"`
	StateDir         string        `env:"SOUZU_STATE_DIR,expand" envDefault:"${HOME}/.local/state/souzu"`
	CacheDir         string        `env:"SOUZU_CACHE_DIR,expand" envDefault:"${HOME}/.cache/souzu"`
	Timezone         string        `env:"TIMEZONE"`
	DiscoveryTimeout time.Duration `env:"DISCOVERY_TIMEOUT" envDefault:"1m"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	HTTPAddr         string        `env:"HTTP_ADDR"`
	PrinterCfg       PrinterConfig
	SlackCfg         SlackConfig
}

// PrinterConfig holds what is needed to talk to the printers. Access codes
// are keyed by device id.
type PrinterConfig struct {
	CACertFile       string            `env:"BAMBU_CA_FILE,expand"`
	ReconnectDelay   time.Duration     `env:"RECONNECT_DELAY" envDefault:"30s"`
	AccessCodes      map[string]string `env:"PRINTER_ACCESS_CODES" envKeyValSeparator:":"`
	FilenamePrefixes map[string]string `env:"PRINTER_FILENAME_PREFIXES" envKeyValSeparator:":"`
	Addresses        map[string]string `env:"PRINTER_ADDRESSES" envKeyValSeparator:"="`
}

type SlackConfig struct {
	AccessToken              string `env:"SLACK_ACCESS_TOKEN"`
	PrintNotificationChannel string `env:"SLACK_PRINT_CHANNEL"`
	ErrorNotificationChannel string `env:"SLACK_ERROR_CHANNEL"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

// Location returns the configured timezone, or the local one.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (p *PrinterConfig) AccessCode(deviceID string) (string, bool) {
	code, ok := p.AccessCodes[deviceID]
	return code, ok && code != ""
}

// FilenamePrefix returns the configured file prefix for a device, falling
// back to a slug of its id.
func (p *PrinterConfig) FilenamePrefix(deviceID string) string {
	if prefix, ok := p.FilenamePrefixes[deviceID]; ok && prefix != "" {
		return prefix
	}
	return DefaultFilenamePrefix(deviceID)
}

// DefaultFilenamePrefix is a filesystem safe name derived from a device id.
func DefaultFilenamePrefix(deviceID string) string {
	return slug.Make(deviceID)
}
