package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/skyfield-labs/framecast/internal/catalog"
	"github.com/skyfield-labs/framecast/internal/cliconfig"
	"github.com/skyfield-labs/framecast/internal/journal"
	"github.com/skyfield-labs/framecast/internal/reader"
	"github.com/skyfield-labs/framecast/internal/transport"
	logpkg "github.com/skyfield-labs/framecast/pkg/log"
)

const helpDescription = `
Stream captured frames to a localizer service and record the returned
geolocation for each frame.

Highlights:
  - Paced dispatch with a deliberate drop policy: slow localizer responses
    cost individual frames, never unbounded buffering or a stalled loop.
  - Session handshake retries until the localizer starts listening.
  - Append-only outcome log; a run can be reconstructed from it alone.
  - Configure via file, environment (FRAMECAST_*), or flags.
`

var exampleUsage = strings.TrimSpace(`
  framecast --stream-dir data/stream --lat 50.4162 --lng 30.8906
  framecast --config $HOME/.framecast/config.toml --max-runtime 5m
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "framecast",
		Short:   "Stream captured frames to a localizer and record geolocation results",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.framecast/config.toml),
			// then environment, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			log.Info().Interface("config", cfg).Msg("configuration")

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg, log)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.framecast/config.toml)")
	root.Flags().StringVar(&cfg.StreamDir, "stream-dir", cfg.StreamDir, "directory containing captured frames")
	root.Flags().StringVar(&cfg.FrameExt, "frame-ext", cfg.FrameExt, "frame file extension")
	root.Flags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "outcome log path (truncated at start)")

	root.Flags().StringVar(&cfg.InitEndpoint, "init-endpoint", cfg.InitEndpoint, "localizer init endpoint (host:port)")
	root.Flags().StringVar(&cfg.FetchEndpoint, "fetch-endpoint", cfg.FetchEndpoint, "localizer fetch endpoint (host:port)")

	root.Flags().Float64Var(&cfg.Lat, "lat", cfg.Lat, "map area latitude for session init")
	root.Flags().Float64Var(&cfg.Lng, "lng", cfg.Lng, "map area longitude for session init")
	root.Flags().IntVar(&cfg.Meters, "meters", cfg.Meters, "map coverage radius in meters")

	root.Flags().DurationVar(&cfg.Tick, "tick", cfg.Tick, "pacing period between send-or-drop decisions")
	root.Flags().DurationVar(&cfg.Poll, "poll", cfg.Poll, "response polling interval between ticks")
	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connect timeout per exchange")
	root.Flags().DurationVar(&cfg.MaxRuntime, "max-runtime", cfg.MaxRuntime, "watchdog bound on total runtime")
	root.Flags().BoolVar(&cfg.WaitFrames, "wait-frames", cfg.WaitFrames, "wait for the first frame if the stream directory is empty")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("framecast")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliconfig.Config, zl zerolog.Logger) error {
	jrnl, err := journal.Open(cfg.LogFile)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	frames, err := catalog.Load(cfg.StreamDir, cfg.FrameExt)
	if err != nil {
		return err
	}
	if len(frames) == 0 && cfg.WaitFrames {
		zl.Info().Str("dir", cfg.StreamDir).Msg("stream directory empty, waiting for first frame")
		waitCtx, cancel := context.WithTimeout(ctx, cfg.MaxRuntime)
		err := catalog.WaitForFrames(waitCtx, cfg.StreamDir, cfg.FrameExt)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return err
		}
		if frames, err = catalog.Load(cfg.StreamDir, cfg.FrameExt); err != nil {
			return err
		}
	}
	zl.Info().Int("frames", len(frames)).Str("dir", cfg.StreamDir).Msg("catalog loaded")

	r := reader.New(
		reader.Config{
			InitEndpoint:  cfg.InitEndpoint,
			FetchEndpoint: cfg.FetchEndpoint,
			Lat:           cfg.Lat,
			Lng:           cfg.Lng,
			Meters:        cfg.Meters,
			LoggingID:     uuid.NewString(),
			Tick:          cfg.Tick,
			Poll:          cfg.Poll,
			MaxRuntime:    cfg.MaxRuntime,
		},
		transport.NetDialer{Timeout: cfg.DialTimeout},
		frames,
		jrnl,
		logpkg.NewZerologAdapterWithLogger(zl),
	)

	if err := r.Run(ctx); err != nil {
		// Signal-driven shutdown is a normal exit.
		if errors.Is(err, context.Canceled) {
			zl.Info().Msg("interrupted, shutting down")
			return nil
		}
		return err
	}
	return nil
}
