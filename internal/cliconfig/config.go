package cliconfig

import (
	"fmt"
	"strconv"
	"time"
)

// Defaults for the localizer endpoints and init coordinates.
const (
	DefaultInitEndpoint  = "127.0.0.1:18001"
	DefaultFetchEndpoint = "127.0.0.1:18002"

	DefaultLat    = 50.4162
	DefaultLng    = 30.8906
	DefaultMeters = 1000
)

// Config holds CLI configuration for framecast.
type Config struct {
	StreamDir string
	FrameExt  string
	LogFile   string

	InitEndpoint  string
	FetchEndpoint string

	Lat    float64
	Lng    float64
	Meters int

	Tick        time.Duration
	Poll        time.Duration
	DialTimeout time.Duration
	MaxRuntime  time.Duration

	WaitFrames bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		StreamDir:     "data/stream",
		FrameExt:      ".jpg",
		LogFile:       "data/reader.log",
		InitEndpoint:  DefaultInitEndpoint,
		FetchEndpoint: DefaultFetchEndpoint,
		Lat:           DefaultLat,
		Lng:           DefaultLng,
		Meters:        DefaultMeters,
		Tick:          time.Second,
		Poll:          20 * time.Millisecond,
		DialTimeout:   250 * time.Millisecond,
		MaxRuntime:    2 * time.Minute,
	}
}

// Validate checks the configuration for errors and normalizes derived
// values.
func (c *Config) Validate() error {
	if c.StreamDir == "" {
		return fmt.Errorf("stream-dir is required")
	}
	if c.LogFile == "" {
		return fmt.Errorf("log-file is required")
	}
	if c.InitEndpoint == "" || c.FetchEndpoint == "" {
		return fmt.Errorf("init-endpoint and fetch-endpoint are required")
	}
	if c.FrameExt == "" {
		c.FrameExt = ".jpg"
	}
	if c.FrameExt[0] != '.' {
		c.FrameExt = "." + c.FrameExt
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("lat must be in [-90, 90]")
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("lng must be in [-180, 180]")
	}
	if c.Meters <= 0 {
		return fmt.Errorf("meters must be positive")
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive")
	}
	if c.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Poll >= c.Tick {
		return fmt.Errorf("poll interval must be shorter than tick")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive")
	}
	if c.MaxRuntime <= 0 {
		return fmt.Errorf("max runtime must be positive")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setCoord sets a coordinate from a pointer if not nil and flag not changed.
// Unlike setInt it accepts zero and negative values; coordinates are signed.
func (s *configSetter) setCoord(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not
// changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setCoordFromString parses a string to float64 and sets the destination.
// Used for environment variables that come as strings.
func (s *configSetter) setCoordFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
