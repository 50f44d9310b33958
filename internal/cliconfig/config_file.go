package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations and pointers for
// signed/boolean fields so unset values are distinguishable in TOML.
type FileConfig struct {
	StreamDir     string   `toml:"stream_dir"`
	FrameExt      string   `toml:"frame_ext"`
	LogFile       string   `toml:"log_file"`
	InitEndpoint  string   `toml:"init_endpoint"`
	FetchEndpoint string   `toml:"fetch_endpoint"`
	Lat           *float64 `toml:"lat"`
	Lng           *float64 `toml:"lng"`
	Meters        int      `toml:"meters"`
	Tick          string   `toml:"tick"`
	Poll          string   `toml:"poll"`
	DialTimeout   string   `toml:"dial_timeout"`
	MaxRuntime    string   `toml:"max_runtime"`
	WaitFrames    *bool    `toml:"wait_frames"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.framecast/config.toml if the user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".framecast", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("stream-dir", fc.StreamDir, &cfg.StreamDir)
	s.setString("frame-ext", fc.FrameExt, &cfg.FrameExt)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)
	s.setString("init-endpoint", fc.InitEndpoint, &cfg.InitEndpoint)
	s.setString("fetch-endpoint", fc.FetchEndpoint, &cfg.FetchEndpoint)

	s.setCoord("lat", fc.Lat, &cfg.Lat)
	s.setCoord("lng", fc.Lng, &cfg.Lng)
	s.setInt("meters", fc.Meters, &cfg.Meters)

	if err := s.setDuration("tick", fc.Tick, &cfg.Tick); err != nil {
		return err
	}
	if err := s.setDuration("poll", fc.Poll, &cfg.Poll); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("max-runtime", fc.MaxRuntime, &cfg.MaxRuntime); err != nil {
		return err
	}

	s.setBool("wait-frames", fc.WaitFrames, &cfg.WaitFrames)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
