package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/coreman2200/soundgauge/device/cst816"
	"github.com/coreman2200/soundgauge/device/dbmeter"
	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/internal/config"
	"github.com/coreman2200/soundgauge/sim"
)

func nop() {}

// openSensor opens the configured meter. A meter that cannot be reached is
// replaced by the simulated one so the display can still be checked.
func openSensor(cfg *config.Config, log zerolog.Logger) (gauge.SensorSource, func()) {
	simulated := func() gauge.SensorSource {
		mid := (cfg.Gauge.Min + cfg.Gauge.Max) / 2
		return sim.NewSensor(cfg.Gauge.Min, cfg.Gauge.Max, mid, cfg.Sensor.Seed)
	}
	if cfg.Sensor.Driver == "sim" {
		return simulated(), nop
	}
	d, closeBus, err := openMeter(cfg.Sensor)
	if err != nil {
		log.Warn().Err(err).Msg("sound meter unavailable, using simulated readings")
		return simulated(), nop
	}
	log.Info().Str("sensor", d.String()).Msg("sound meter ready")
	return d, closeBus
}

func openMeter(cfg config.Sensor) (*dbmeter.Dev, func(), error) {
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, nil, err
	}
	d, err := dbmeter.New(bus, &dbmeter.Opts{
		Addr:      cfg.Addr,
		Averaging: time.Duration(cfg.AveragingMs) * time.Millisecond,
	})
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return d, func() { bus.Close() }, nil
}

// openTouch returns nil when touch is disabled or missing.
func openTouch(cfg config.Touch, log zerolog.Logger) (gauge.GestureSource, func()) {
	if cfg.Driver != "cst816" {
		return nil, nop
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		log.Warn().Err(err).Msg("touch bus unavailable, gestures disabled")
		return nil, nop
	}
	opts := cst816.Opts{Addr: cfg.Addr, Mode: cst816.ModeGesture}
	if p := gpioreg.ByName(cfg.ResetPin); p != nil {
		opts.Reset = p
	}
	if p := gpioreg.ByName(cfg.IRQPin); p != nil {
		opts.IRQ = p
	}
	d, err := cst816.New(bus, &opts)
	if err != nil {
		bus.Close()
		log.Warn().Err(err).Msg("touch controller unavailable, gestures disabled")
		return nil, nop
	}
	log.Info().Str("touch", d.String()).Uint8("revision", d.Revision()).Msg("touch ready")
	return d, func() {
		d.Halt()
		bus.Close()
	}
}

func describePin(name string) string {
	if name == "" {
		return "none"
	}
	if p := gpioreg.ByName(name); p != nil {
		return p.String()
	}
	return fmt.Sprintf("%s (missing)", name)
}
