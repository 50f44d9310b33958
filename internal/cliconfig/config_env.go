package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (FRAMECAST_*). It respects flags that have been explicitly set (changed
// map). Returns an error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("stream-dir", os.Getenv("FRAMECAST_STREAM_DIR"), &cfg.StreamDir)
	s.setString("frame-ext", os.Getenv("FRAMECAST_FRAME_EXT"), &cfg.FrameExt)
	s.setString("log-file", os.Getenv("FRAMECAST_LOG_FILE"), &cfg.LogFile)
	s.setString("init-endpoint", os.Getenv("FRAMECAST_INIT_ENDPOINT"), &cfg.InitEndpoint)
	s.setString("fetch-endpoint", os.Getenv("FRAMECAST_FETCH_ENDPOINT"), &cfg.FetchEndpoint)

	if err := s.setCoordFromString("lat", os.Getenv("FRAMECAST_LAT"), &cfg.Lat); err != nil {
		return err
	}
	if err := s.setCoordFromString("lng", os.Getenv("FRAMECAST_LNG"), &cfg.Lng); err != nil {
		return err
	}
	if err := s.setIntFromString("meters", os.Getenv("FRAMECAST_METERS"), &cfg.Meters); err != nil {
		return err
	}

	if err := s.setDuration("tick", os.Getenv("FRAMECAST_TICK"), &cfg.Tick); err != nil {
		return err
	}
	if err := s.setDuration("poll", os.Getenv("FRAMECAST_POLL"), &cfg.Poll); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", os.Getenv("FRAMECAST_DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("max-runtime", os.Getenv("FRAMECAST_MAX_RUNTIME"), &cfg.MaxRuntime); err != nil {
		return err
	}

	s.setBoolFromString("wait-frames", os.Getenv("FRAMECAST_WAIT_FRAMES"), &cfg.WaitFrames)

	return nil
}
