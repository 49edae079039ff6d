package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"periph.io/x/host/v3"

	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/indicator"
	"github.com/coreman2200/soundgauge/internal/config"
	"github.com/coreman2200/soundgauge/preview"
	"github.com/coreman2200/soundgauge/runner"
	"github.com/coreman2200/soundgauge/sink"
)

type flags struct {
	config  string
	refresh time.Duration
	sensor  string
	display string
	mode    string
	preview string
	level   string
}

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	var f flags
	rootCmd := newRootCmd(&f)
	if err := fang.Execute(context.Background(), rootCmd, fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM)); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(f *flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "soundgauge",
		Short: "Sound level meter with an arc or bar gauge",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "YAML config file")
	pf.StringVar(&f.level, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&f.sensor, "sensor", "", "sensor driver: dbmeter or sim")
	pf.StringVar(&f.display, "display", "", "display driver: st7789, ssd1306 or braille")
	rootCmd.Flags().DurationVarP(&f.refresh, "refresh", "r", 0, "refresh interval")
	rootCmd.Flags().StringVar(&f.mode, "mode", "", "start in arc or bar mode")
	rootCmd.Flags().StringVar(&f.preview, "preview", "", "serve the browser preview on this address")

	rootCmd.AddCommand(outlineCmd(f), probeCmd(f), configCmd(f))
	return rootCmd
}

// loadConfig layers defaults, the YAML file, the environment and explicit flags.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("refresh") {
		cfg.RefreshMs = int(f.refresh / time.Millisecond)
	}
	if changed("sensor") {
		cfg.Sensor.Driver = f.sensor
	}
	if changed("display") {
		cfg.Display.Driver = f.display
	}
	if changed("mode") {
		cfg.Gauge.Mode = f.mode
	}
	if changed("preview") {
		cfg.Preview.Addr = f.preview
	}
	if changed("log-level") {
		cfg.LogLevel = f.level
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, &gauge.ConfigError{Field: "log_level", Reason: err.Error()}
	}
	zerolog.SetGlobalLevel(lvl)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}

	out, err := sink.Open(cfg.Display, log.Logger)
	if err != nil {
		return err
	}
	defer out.Halt()

	sensor, closeSensor := openSensor(cfg, log.Logger)
	defer closeSensor()

	var gestures []gauge.GestureSource
	if touch, closeTouch := openTouch(cfg.Touch, log.Logger); touch != nil {
		defer closeTouch()
		gestures = append(gestures, touch)
	}

	strip, err := indicator.Open(cfg.Indicator, log.Logger)
	if err != nil {
		log.Warn().Err(err).Msg("indicator disabled")
	}

	var (
		surface gauge.DisplaySink = out
		srv     *preview.Server
		looper  = &runner.Looper{}
	)
	if cfg.Preview.Addr != "" {
		srv = preview.New(log.Logger, looper.Status)
		surface = sink.Multi{out, srv}
		gestures = append(gestures, srv)
		looper.Diagnose = srv.Diagnose
	}

	opts, err := cfg.GaugeOptions()
	if err != nil {
		return err
	}
	ctrl, err := gauge.New(opts, &runner.TimeoutSink{
		Sink:    surface,
		Timeout: time.Duration(cfg.BlitTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	mode, err := cfg.Mode()
	if err != nil {
		return err
	}
	ctrl.SetMode(mode)

	looper.Controller = ctrl
	looper.Sensor = sensor
	looper.Gestures = gestures
	looper.Refresh = time.Duration(cfg.RefreshMs) * time.Millisecond
	looper.PollEvery = time.Duration(cfg.Touch.PollMs) * time.Millisecond
	looper.SinkName = out.Name
	looper.Log = log.Logger
	if strip != nil {
		defer strip.Halt()
		looper.Indicator = strip
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return looper.Run(ctx) })
	if srv != nil {
		g.Go(func() error { return srv.ListenAndServe(ctx, cfg.Preview.Addr) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
