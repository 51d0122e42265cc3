package config

import (
	"encoding/json"
	"os"

	"github.com/kelseyhightower/envconfig"
)

const (
	// DefaultFrameRate matches NTSC drop-frame video timing, chosen so a
	// target rate below most display refresh rates is exercised by default.
	DefaultFrameRate = 29.97

	DefaultWidth  = 500
	DefaultHeight = 500
)

// Config holds runtime configuration for the frame-synchronization
// client. Fields may be loaded from a JSON file, overridden from the
// environment (GLXSYNC_* variables), and finally by command-line flags.
type Config struct {
	Debug bool `json:"debug"`
	Trace bool `json:"trace"`

	// NoSync disables the extended frame-synchronization protocol; the
	// render loop still paces to FrameRate but publishes no counters.
	NoSync bool `json:"no_sync" envconfig:"NO_SYNC"`

	// FrameRate is the target frame submission rate in frames/second.
	FrameRate float64 `json:"frame_rate" envconfig:"FRAME_RATE"`

	// Initial window dimensions in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Title is the window name published to the window manager. Empty
	// means the invocation name.
	Title string `json:"title"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:     false,
		Trace:     false,
		NoSync:    false,
		FrameRate: DefaultFrameRate,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.FrameRate <= 0 {
		c.FrameRate = DefaultFrameRate
	}
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.Trace {
		c.Debug = true
	}
	return nil
}

// Load attempts to read configuration from the given JSON file path. If the
// file does not exist it returns DefaultConfig(). On JSON error it returns
// defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// FromEnv overlays GLXSYNC_* environment variables onto the config.
func (c *Config) FromEnv() error {
	if err := envconfig.Process("glxsync", c); err != nil {
		return err
	}
	return c.Validate()
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
