package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"
	"tinygo.org/x/tinyfont/proggy"

	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/model"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "SOUNDGAUGE_"

type Arc struct {
	CenterX     int `yaml:"center_x" env:"CENTER_X"`
	CenterY     int `yaml:"center_y" env:"CENTER_Y"`
	OuterRadius int `yaml:"outer_radius" env:"OUTER_RADIUS"`
	InnerRadius int `yaml:"inner_radius" env:"INNER_RADIUS"`
}

type Bar struct {
	X      int `yaml:"x" env:"X"`
	Y      int `yaml:"y" env:"Y"`
	Width  int `yaml:"width" env:"WIDTH"`
	Height int `yaml:"height" env:"HEIGHT"`
}

// Readout is the numeric value printed under the gauge.
type Readout struct {
	Font     string `yaml:"font" env:"FONT"` // "none" | "small" | "large"
	Baseline int    `yaml:"baseline" env:"BASELINE"`
	Suffix   string `yaml:"suffix" env:"SUFFIX"`
}

type Gauge struct {
	Width    int     `yaml:"width" env:"WIDTH"`
	Height   int     `yaml:"height" env:"HEIGHT"`
	Min      float64 `yaml:"min" env:"MIN"`
	Max      float64 `yaml:"max" env:"MAX"`
	DisplayX int     `yaml:"display_x" env:"DISPLAY_X"`
	DisplayY int     `yaml:"display_y" env:"DISPLAY_Y"`

	// Band cut points: below Quiet is quiet, below Normal is normal, else loud.
	Quiet  float64 `yaml:"quiet_below" env:"QUIET_BELOW"`
	Normal float64 `yaml:"normal_below" env:"NORMAL_BELOW"`

	QuietColor  string `yaml:"quiet_color" env:"QUIET_COLOR"`
	NormalColor string `yaml:"normal_color" env:"NORMAL_COLOR"`
	LoudColor   string `yaml:"loud_color" env:"LOUD_COLOR"`
	BarOutline  string `yaml:"bar_outline" env:"BAR_OUTLINE"`

	Mode      string   `yaml:"mode" env:"MODE"`             // "arc" | "bar"
	LongPress string   `yaml:"long_press" env:"LONG_PRESS"` // "mode" | "color"
	Palette   []string `yaml:"palette" env:"PALETTE"`

	Arc     Arc     `yaml:"arc" envPrefix:"ARC_"`
	Bar     Bar     `yaml:"bar" envPrefix:"BAR_"`
	Readout Readout `yaml:"readout" envPrefix:"READOUT_"`
}

type Sensor struct {
	Driver      string `yaml:"driver" env:"DRIVER"` // "dbmeter" | "sim"
	Bus         string `yaml:"bus" env:"BUS"`
	Addr        uint16 `yaml:"addr" env:"ADDR"`
	AveragingMs int    `yaml:"averaging_ms" env:"AVERAGING_MS"`
	Seed        int64  `yaml:"seed" env:"SEED"`
}

type Touch struct {
	Driver   string `yaml:"driver" env:"DRIVER"` // "cst816" | "none"
	Bus      string `yaml:"bus" env:"BUS"`
	Addr     uint16 `yaml:"addr" env:"ADDR"`
	IRQPin   string `yaml:"irq_pin" env:"IRQ_PIN"`
	ResetPin string `yaml:"reset_pin" env:"RESET_PIN"`
	PollMs   int    `yaml:"poll_ms" env:"POLL_MS"`
}

type Display struct {
	Driver       string `yaml:"driver" env:"DRIVER"` // "st7789" | "ssd1306" | "braille"
	SPI          string `yaml:"spi" env:"SPI"`
	SpeedHz      int64  `yaml:"speed_hz" env:"SPEED_HZ"`
	DCPin        string `yaml:"dc_pin" env:"DC_PIN"`
	ResetPin     string `yaml:"reset_pin" env:"RESET_PIN"`
	BacklightPin string `yaml:"backlight_pin" env:"BACKLIGHT_PIN"`
	I2CBus       string `yaml:"i2c_bus" env:"I2C_BUS"`
	// Origin is subtracted from blit coordinates on small drawers.
	OriginX     int `yaml:"origin_x" env:"ORIGIN_X"`
	OriginY     int `yaml:"origin_y" env:"ORIGIN_Y"`
	BrailleStep int `yaml:"braille_step" env:"BRAILLE_STEP"`
}

type Preview struct {
	Addr string `yaml:"addr" env:"ADDR"` // empty disables the server
}

type Indicator struct {
	LEDs    int    `yaml:"leds" env:"LEDS"` // zero disables the strip
	SPI     string `yaml:"spi" env:"SPI"`
	SpeedHz int64  `yaml:"speed_hz" env:"SPEED_HZ"`
}

type Config struct {
	RefreshMs     int    `yaml:"refresh_ms" env:"REFRESH_MS"`
	BlitTimeoutMs int    `yaml:"blit_timeout_ms" env:"BLIT_TIMEOUT_MS"`
	LogLevel      string `yaml:"log_level" env:"LOG_LEVEL"`

	Gauge     Gauge     `yaml:"gauge" envPrefix:"GAUGE_"`
	Sensor    Sensor    `yaml:"sensor" envPrefix:"SENSOR_"`
	Touch     Touch     `yaml:"touch" envPrefix:"TOUCH_"`
	Display   Display   `yaml:"display" envPrefix:"DISPLAY_"`
	Preview   Preview   `yaml:"preview" envPrefix:"PREVIEW_"`
	Indicator Indicator `yaml:"indicator" envPrefix:"INDICATOR_"`
}

// Default is the 1.69" meter: dbmeter on I²C1, CST816 touch, ST7789 panel.
func Default() *Config {
	return &Config{
		RefreshMs:     500,
		BlitTimeoutMs: 250,
		LogLevel:      "info",
		Gauge: Gauge{
			Width:       160,
			Height:      100,
			Min:         0,
			Max:         100,
			DisplayX:    40,
			DisplayY:    90,
			Quiet:       60,
			Normal:      80,
			QuietColor:  "0x07E0",
			NormalColor: "0xFFE0",
			LoudColor:   "0xF800",
			BarOutline:  "0x4208",
			Mode:        "arc",
			LongPress:   "mode",
			Palette:     []string{"#0000FF", "#902090", "#FFFFFF"},
			Arc:         Arc{CenterX: 80, CenterY: 50, OuterRadius: 45, InnerRadius: 35},
			Bar:         Bar{X: 10, Y: 35, Width: 140, Height: 30},
			Readout:     Readout{Font: "large", Baseline: 92, Suffix: " dB"},
		},
		Sensor: Sensor{Driver: "dbmeter", Bus: "1", Addr: 0x48},
		Touch:  Touch{Driver: "cst816", Bus: "1", Addr: 0x15, IRQPin: "GPIO17", ResetPin: "GPIO16", PollMs: 50},
		Display: Display{
			Driver:       "st7789",
			SPI:          "",
			SpeedHz:      40_000_000,
			DCPin:        "GPIO25",
			ResetPin:     "GPIO27",
			BacklightPin: "GPIO18",
			I2CBus:       "1",
			BrailleStep:  2,
		},
		Indicator: Indicator{SpeedHz: 2_500_000},
	}
}

// Load reads a YAML file over Default. Keys missing from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// ApplyEnv overlays SOUNDGAUGE_* variables. Unset variables leave fields alone.
func (c *Config) ApplyEnv() error {
	return env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix})
}

// Validate checks everything the gauge needs, plus the runtime settings.
func (c *Config) Validate() error {
	if c.RefreshMs <= 0 {
		return &gauge.ConfigError{Field: "refresh_ms", Reason: "must be positive"}
	}
	if c.BlitTimeoutMs < 0 {
		return &gauge.ConfigError{Field: "blit_timeout_ms", Reason: "must not be negative"}
	}
	switch c.Sensor.Driver {
	case "dbmeter", "sim":
	default:
		return &gauge.ConfigError{Field: "sensor.driver", Reason: fmt.Sprintf("unknown driver %q", c.Sensor.Driver)}
	}
	switch c.Touch.Driver {
	case "cst816", "none", "":
	default:
		return &gauge.ConfigError{Field: "touch.driver", Reason: fmt.Sprintf("unknown driver %q", c.Touch.Driver)}
	}
	switch c.Display.Driver {
	case "st7789", "ssd1306", "braille":
	default:
		return &gauge.ConfigError{Field: "display.driver", Reason: fmt.Sprintf("unknown driver %q", c.Display.Driver)}
	}
	if c.Indicator.LEDs < 0 {
		return &gauge.ConfigError{Field: "indicator.leds", Reason: "must not be negative"}
	}
	_, err := c.GaugeOptions()
	return err
}

// GaugeOptions converts the gauge section into controller options.
func (c *Config) GaugeOptions() (gauge.Options, error) {
	g := c.Gauge
	o := gauge.Options{
		Width:    g.Width,
		Height:   g.Height,
		Arc:      gauge.Arc{CX: g.Arc.CenterX, CY: g.Arc.CenterY, Outer: g.Arc.OuterRadius, Inner: g.Arc.InnerRadius},
		Bar:      gauge.Bar{X: g.Bar.X, Y: g.Bar.Y, Width: g.Bar.Width, Height: g.Bar.Height},
		Min:      g.Min,
		Max:      g.Max,
		DisplayX: g.DisplayX,
		DisplayY: g.DisplayY,
		Bands:    gauge.Bands{Quiet: g.Quiet, Normal: g.Normal},
	}

	var err error
	colors := []struct {
		field string
		in    string
		out   *model.Color
	}{
		{"gauge.quiet_color", g.QuietColor, &o.Bands.QuietColor},
		{"gauge.normal_color", g.NormalColor, &o.Bands.NormalColor},
		{"gauge.loud_color", g.LoudColor, &o.Bands.LoudColor},
	}
	for _, e := range colors {
		if *e.out, err = ParseColor(e.in); err != nil {
			return o, &gauge.ConfigError{Field: e.field, Reason: err.Error()}
		}
		if err := visible(e.field, *e.out); err != nil {
			return o, err
		}
	}
	outline, err := ParseColor(g.BarOutline)
	if err != nil {
		return o, &gauge.ConfigError{Field: "gauge.bar_outline", Reason: err.Error()}
	}
	if err := visible("gauge.bar_outline", outline); err != nil {
		return o, err
	}
	o.Bar.Outline = outline.RGB565()

	for i, s := range g.Palette {
		field := fmt.Sprintf("gauge.palette[%d]", i)
		col, err := ParseColor(s)
		if err != nil {
			return o, &gauge.ConfigError{Field: field, Reason: err.Error()}
		}
		if err := visible(field, col); err != nil {
			return o, err
		}
		o.Palette = append(o.Palette, col)
	}

	switch g.LongPress {
	case "mode", "":
		o.LongPress = gauge.ActionToggleMode
	case "color":
		o.LongPress = gauge.ActionCycleColor
	default:
		return o, &gauge.ConfigError{Field: "gauge.long_press", Reason: fmt.Sprintf("unknown action %q", g.LongPress)}
	}
	font, ok := fonts[g.Readout.Font]
	if !ok {
		return o, &gauge.ConfigError{Field: "gauge.readout.font", Reason: fmt.Sprintf("unknown font %q", g.Readout.Font)}
	}
	o.Readout = gauge.Readout{Font: font, Baseline: g.Readout.Baseline, Suffix: g.Readout.Suffix}

	if _, err := c.Mode(); err != nil {
		return o, err
	}
	return o, o.Validate()
}

// fonts maps readout font names to faces; nil disables the readout.
var fonts = map[string]tinyfont.Fonter{
	"":      nil,
	"none":  nil,
	"small": &proggy.TinySZ8pt7b,
	"large": &freemono.Bold12pt7b,
}

// visible rejects colors that pack to the background, which every compositing
// sink skips.
func visible(field string, c model.Color) error {
	if c.RGB565() == model.Background {
		return &gauge.ConfigError{Field: field, Reason: "packs to 0x0000, the transparent background"}
	}
	return nil
}

// Mode is the start-up gauge mode.
func (c *Config) Mode() (gauge.Mode, error) {
	switch c.Gauge.Mode {
	case "arc", "":
		return gauge.ModeArc, nil
	case "bar":
		return gauge.ModeBar, nil
	default:
		return gauge.ModeArc, &gauge.ConfigError{Field: "gauge.mode", Reason: fmt.Sprintf("unknown mode %q", c.Gauge.Mode)}
	}
}

var errColorSyntax = errors.New(`want "#RRGGBB" or a packed "0xRRRR"`)

// ParseColor accepts a 24 bit "#RRGGBB" triple or a packed RGB565 "0xRRRR".
func ParseColor(s string) (model.Color, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "#") && len(s) == 7:
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return model.Color{}, errColorSyntax
		}
		return model.RGB888(uint8(v>>16), uint8(v>>8), uint8(v)), nil
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		v, err := strconv.ParseUint(s[2:], 16, 16)
		if err != nil {
			return model.Color{}, errColorSyntax
		}
		return model.Packed565(uint16(v)), nil
	default:
		return model.Color{}, errColorSyntax
	}
}
