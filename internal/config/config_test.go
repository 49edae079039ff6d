package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/model"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	o, err := c.GaugeOptions()
	require.NoError(t, err)
	want := gauge.DefaultOptions()
	assert.Equal(t, want.Arc, o.Arc)
	assert.Equal(t, want.Bar, o.Bar)
	assert.Equal(t, want.DisplayX, o.DisplayX)
	assert.Equal(t, want.DisplayY, o.DisplayY)
	assert.Equal(t, model.Green, o.Bands.QuietColor.RGB565())
	assert.Equal(t, model.Yellow, o.Bands.NormalColor.RGB565())
	assert.Equal(t, model.Red, o.Bands.LoudColor.RGB565())
	assert.Len(t, o.Palette, 3)
	assert.Equal(t, gauge.ActionToggleMode, o.LongPress)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
refresh_ms: 250
gauge:
  max: 120
  long_press: color
  arc:
    outer_radius: 40
sensor:
  driver: sim
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, c.RefreshMs)
	assert.Equal(t, 120.0, c.Gauge.Max)
	assert.Equal(t, 40, c.Gauge.Arc.OuterRadius)
	assert.Equal(t, 35, c.Gauge.Arc.InnerRadius, "untouched keys keep defaults")
	assert.Equal(t, "sim", c.Sensor.Driver)
	assert.Equal(t, "st7789", c.Display.Driver)
	require.NoError(t, c.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := Default()
	c.Gauge.Mode = "bar"
	c.Indicator.LEDs = 8
	require.NoError(t, Save(path, c))

	got, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(c, got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SOUNDGAUGE_REFRESH_MS", "100")
	t.Setenv("SOUNDGAUGE_GAUGE_MAX", "130")
	t.Setenv("SOUNDGAUGE_GAUGE_ARC_INNER_RADIUS", "30")
	t.Setenv("SOUNDGAUGE_GAUGE_PALETTE", "#FF0000,0x001F")
	t.Setenv("SOUNDGAUGE_DISPLAY_DRIVER", "braille")

	c := Default()
	require.NoError(t, c.ApplyEnv())
	assert.Equal(t, 100, c.RefreshMs)
	assert.Equal(t, 130.0, c.Gauge.Max)
	assert.Equal(t, 30, c.Gauge.Arc.InnerRadius)
	assert.Equal(t, []string{"#FF0000", "0x001F"}, c.Gauge.Palette)
	assert.Equal(t, "braille", c.Display.Driver)
	assert.Equal(t, 500, Default().RefreshMs)
	assert.Equal(t, "dbmeter", c.Sensor.Driver, "unset variables leave fields alone")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero refresh", func(c *Config) { c.RefreshMs = 0 }, "refresh_ms"},
		{"empty range", func(c *Config) { c.Gauge.Min, c.Gauge.Max = 50, 50 }, "value_range"},
		{"inner too big", func(c *Config) { c.Gauge.Arc.InnerRadius = 45 }, "inner_radius"},
		{"bad color", func(c *Config) { c.Gauge.LoudColor = "red" }, "gauge.loud_color"},
		{"bad palette", func(c *Config) { c.Gauge.Palette = []string{"#12345"} }, "gauge.palette[0]"},
		{"transparent band", func(c *Config) { c.Gauge.QuietColor = "0x0000" }, "gauge.quiet_color"},
		{"transparent palette", func(c *Config) { c.Gauge.Palette = []string{"#FF0000", "#000000"} }, "gauge.palette[1]"},
		{"transparent outline", func(c *Config) { c.Gauge.BarOutline = "#000000" }, "gauge.bar_outline"},
		{"bad font", func(c *Config) { c.Gauge.Readout.Font = "comic" }, "gauge.readout.font"},
		{"bad mode", func(c *Config) { c.Gauge.Mode = "needle" }, "gauge.mode"},
		{"bad action", func(c *Config) { c.Gauge.LongPress = "reboot" }, "gauge.long_press"},
		{"bad sensor", func(c *Config) { c.Sensor.Driver = "mic" }, "sensor.driver"},
		{"bad display", func(c *Config) { c.Display.Driver = "hdmi" }, "display.driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, gauge.ErrInvalidConfig))
			var ce *gauge.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestGaugeOptionsReadout(t *testing.T) {
	c := Default()
	o, err := c.GaugeOptions()
	require.NoError(t, err)
	assert.NotNil(t, o.Readout.Font)
	assert.Equal(t, 92, o.Readout.Baseline)
	assert.Equal(t, " dB", o.Readout.Suffix)

	c.Gauge.Readout.Font = "none"
	o, err = c.GaugeOptions()
	require.NoError(t, err)
	assert.Nil(t, o.Readout.Font)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
		rgb  bool
	}{
		{"#FF0000", model.Red, true},
		{"#00ff00", model.Green, true},
		{"0xF800", model.Red, false},
		{" 0x07E0 ", model.Green, false},
	}
	for _, tt := range tests {
		c, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, c.RGB565(), tt.in)
		assert.Equal(t, tt.rgb, c.IsRGB(), tt.in)
	}
	for _, bad := range []string{"", "red", "#FFF", "0x1FFFF", "#GG0000"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestMode(t *testing.T) {
	c := Default()
	m, err := c.Mode()
	require.NoError(t, err)
	assert.Equal(t, gauge.ModeArc, m)
	c.Gauge.Mode = "bar"
	m, err = c.Mode()
	require.NoError(t, err)
	assert.Equal(t, gauge.ModeBar, m)
}
