// Package main provides the CLI entry point for framegrab.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/framegrab/pkg/adapters/logger"
	"github.com/user/framegrab/pkg/adapters/promobserver"
	"github.com/user/framegrab/pkg/adapters/smartcapability"
	"github.com/user/framegrab/pkg/adapters/zaplogger"
	"github.com/user/framegrab/pkg/config"
	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/grabber"
	"github.com/user/framegrab/pkg/ports"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Globals

	Info    InfoCmd    `cmd:"" help:"Show stream metadata and the keyframe index."`
	Extract ExtractCmd `cmd:"" help:"Extract frames as image files."`
	Sheet   SheetCmd   `cmd:"" help:"Render a contact sheet of frames."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Globals are the flags shared by every subcommand. Empty values leave the
// configuration file and FRAMEGRAB_* environment in charge.
type Globals struct {
	Config     string `short:"c" type:"existingfile" help:"YAML configuration file."`
	Backend    string `help:"Decoding backend (auto, libav, ffmpeg)."`
	FFmpegPath string `help:"Path to ffmpeg executable (falls back to FFMPEG_PATH env, then PATH)."`

	// Logging options
	LogLevel  string `short:"l" help:"Log level (debug, info, warn, error)."`
	LogFormat string `help:"Log format (console, json)."`
	Quiet     bool   `short:"Q" help:"Suppress all log output."`

	MetricsTextfile string `help:"Write Prometheus metrics to this file on exit."`
}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("framegrab"),
		kong.Description(l10n.T("Random-access frame extraction from MP4 and MPEG-TS video.")),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// app holds everything a subcommand needs once the globals are resolved.
type app struct {
	cfg        config.Config
	log        ports.Logger
	capability *smartcapability.Capability
	registry   *prometheus.Registry
	observer   ports.Observer
	syncLog    func()
}

// setup resolves configuration and builds the shared adapters.
func (g *Globals) setup() (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	g.override(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, syncLog: func() {}}

	switch {
	case g.Quiet:
		a.log = logger.NewNoop()
	case cfg.Log.Format == config.LogFormatJSON:
		zl, err := zaplogger.NewProduction(cfg.LogLevel())
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		a.log = zl
		a.syncLog = func() { _ = zl.Sync() }
	default:
		a.log = logger.NewConsole(cfg.LogLevel())
	}

	if cfg.Backend.Name == config.BackendLibav && !smartcapability.IsLibavAvailable() {
		return nil, fmt.Errorf("backend %q: this build has no libav support", cfg.Backend.Name)
	}
	a.capability = smartcapability.New(smartcapability.Options{
		FFmpegPath:   cfg.Backend.FFmpegPath,
		DisableLibav: cfg.Backend.Name == config.BackendFFmpeg,
	})

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		obs, err := promobserver.New(a.registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		a.observer = obs
	}

	return a, nil
}

// override applies command-line flags on top of the loaded configuration.
func (g *Globals) override(cfg *config.Config) {
	if g.Backend != "" {
		cfg.Backend.Name = g.Backend
	}
	if g.FFmpegPath != "" {
		cfg.Backend.FFmpegPath = g.FFmpegPath
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	if g.MetricsTextfile != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Textfile = g.MetricsTextfile
	}
}

// close flushes metrics and logs. It is called once per command.
func (a *app) close() {
	if a.registry != nil && a.cfg.Metrics.Textfile != "" {
		if err := promobserver.WriteTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
			a.log.Error("Failed to write metrics: %v", err)
		} else {
			a.log.Debug("Metrics written to %s", a.cfg.Metrics.Textfile)
		}
	}
	a.syncLog()
}

// extractorOptions returns the options every extractor of this run shares.
func (a *app) extractorOptions() extractor.Options {
	return a.cfg.ExtractorOptions(a.log, a.observer)
}

// open opens an extractor on path and logs the backend selection.
func (a *app) open(path string) (*extractor.Extractor, error) {
	x, err := extractor.Open(a.capability, path, a.extractorOptions())
	if err != nil {
		return nil, err
	}
	info := a.capability.Info()
	a.log.Debug("Opened %s with %s backend (%s container)", path, info.Backend, info.Container)
	return x, nil
}

// configureCamera applies the configured camera model and type to g.
func (a *app) configureCamera(g *grabber.Grabber) {
	if a.cfg.Grabber.CameraModel != "" {
		g.SetCameraModel(a.cfg.Grabber.CameraModel)
	}
	if a.cfg.Grabber.CameraType != "" {
		g.SetCameraType(grabber.CameraType(a.cfg.Grabber.CameraType))
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(log ports.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// VersionCmd shows version information.
type VersionCmd struct{}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("framegrab version %s", version))
	fmt.Println(l10n.F("libav backend: %s", yesNo(smartcapability.IsLibavAvailable())))
	fmt.Println(l10n.F("ffmpeg backend: %s", yesNo(smartcapability.IsFFmpegAvailable())))
	return nil
}

func yesNo(v bool) string {
	if v {
		return l10n.T("available")
	}
	return l10n.T("unavailable")
}
