// Package config provides configuration for the Simple-WC3 tunnel.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Kaladum/simple-wc3/protocol/w3disc"
)

// Default configuration values.
const (
	// DefaultGamePort is the UDP/TCP port WC3 uses for LAN play.
	DefaultGamePort = 6112

	// DefaultScanInterval is how often the host polls the local WC3
	// instance for its lobby.
	DefaultScanInterval = time.Second

	// Classic WC3 builds answer LAN queries for versions 1.25 through
	// 1.31. Newer community patches may extend this; the range is
	// configurable for that reason.
	DefaultVersionMin = 25
	DefaultVersionMax = 31

	// DefaultFeedCapacity is the per-client buffer of pending lobby
	// events. Slow clients drop events beyond it; the next scan tick
	// republishes the lobby anyway.
	DefaultFeedCapacity = 8
)

// Config holds the configuration for both tunnel roles.
type Config struct {
	// GamePort is the local port the WC3 instance plays on.
	GamePort uint16

	// VersionMin and VersionMax bound the game versions queried for,
	// inclusive.
	VersionMin uint32
	VersionMax uint32

	// ScanInterval is the lobby poll period on the host.
	ScanInterval time.Duration

	// ListenAddr is the UDP address the overlay endpoint binds to.
	// An empty port picks an ephemeral one.
	ListenAddr string

	// AdvertiseHost overrides the host portion of the printed node
	// address. When empty, the first non-loopback interface address is
	// used.
	AdvertiseHost string

	// FeedCapacity is the per-client lobby event buffer size.
	FeedCapacity int
}

// fileConfig mirrors Config for YAML decoding. Pointer fields distinguish
// an absent key from an explicit zero, and durations arrive as strings
// ("2s") rather than nanosecond integers.
type fileConfig struct {
	GamePort      *uint16 `yaml:"game_port"`
	VersionMin    *uint32 `yaml:"version_min"`
	VersionMax    *uint32 `yaml:"version_max"`
	ScanInterval  *string `yaml:"scan_interval"`
	ListenAddr    *string `yaml:"listen_addr"`
	AdvertiseHost *string `yaml:"advertise_host"`
	FeedCapacity  *int    `yaml:"feed_capacity"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		GamePort:     DefaultGamePort,
		VersionMin:   DefaultVersionMin,
		VersionMax:   DefaultVersionMax,
		ScanInterval: DefaultScanInterval,
		ListenAddr:   "0.0.0.0:0",
		FeedCapacity: DefaultFeedCapacity,
	}
}

// Load reads a YAML config file over the defaults. Fields absent from the
// file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	var file fileConfig
	if err := yaml.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if file.GamePort != nil {
		cfg.GamePort = *file.GamePort
	}
	if file.VersionMin != nil {
		cfg.VersionMin = *file.VersionMin
	}
	if file.VersionMax != nil {
		cfg.VersionMax = *file.VersionMax
	}
	if file.ScanInterval != nil {
		cfg.ScanInterval, err = time.ParseDuration(*file.ScanInterval)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: scan_interval: %w", path, err)
		}
	}
	if file.ListenAddr != nil {
		cfg.ListenAddr = *file.ListenAddr
	}
	if file.AdvertiseHost != nil {
		cfg.AdvertiseHost = *file.AdvertiseHost
	}
	if file.FeedCapacity != nil {
		cfg.FeedCapacity = *file.FeedCapacity
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.VersionMin > c.VersionMax {
		return fmt.Errorf("version range %d..%d is empty", c.VersionMin, c.VersionMax)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan interval %s is not positive", c.ScanInterval)
	}
	if c.FeedCapacity < 1 {
		return fmt.Errorf("feed capacity %d is below 1", c.FeedCapacity)
	}

	return nil
}

// Versions returns the supported game versions, ascending.
func (c *Config) Versions() []uint32 {
	versions := make([]uint32, 0, c.VersionMax-c.VersionMin+1)
	for v := c.VersionMin; v <= c.VersionMax; v++ {
		versions = append(versions, v)
	}

	return versions
}

// GameTypes returns the products queried for.
func (c *Config) GameTypes() []w3disc.GameType {
	return []w3disc.GameType{w3disc.Warcraft3, w3disc.TheFrozenThrone}
}

// ParseVersion parses a version string like "1.26" or "26" into uint32.
func ParseVersion(s string) (uint32, error) {
	s = strings.TrimSpace(s)

	// Handle "1.XX" format
	if after, found := strings.CutPrefix(s, "1."); found {
		s = after
	}

	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", s, err)
	}

	return uint32(v), nil
}

// FormatVersion formats a version number as "1.XX".
func FormatVersion(v uint32) string {
	return fmt.Sprintf("1.%d", v)
}
