package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"periph.io/x/host/v3"

	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/internal/config"
	"github.com/coreman2200/soundgauge/model"
	"github.com/coreman2200/soundgauge/sink"
)

// outlineCmd draws the ring edges so the panel position can be checked.
func outlineCmd(f *flags) *cobra.Command {
	var (
		thickness int
		hold      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "outline",
		Short: "Draw the gauge outline on the display",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if _, err := host.Init(); err != nil {
				return err
			}
			out, err := sink.Open(cfg.Display, log.Logger)
			if err != nil {
				return err
			}
			defer out.Halt()

			opts, err := cfg.GaugeOptions()
			if err != nil {
				return err
			}
			ctrl, err := gauge.New(opts, out)
			if err != nil {
				return err
			}
			if err := ctrl.Outline(model.White, thickness); err != nil {
				return err
			}
			log.Info().Str("sink", out.Name).Int("thickness", thickness).Msg("outline drawn")
			select {
			case <-cmd.Context().Done():
			case <-time.After(hold):
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&thickness, "thickness", "t", 1, "edge thickness in pixels")
	cmd.Flags().DurationVar(&hold, "hold", 5*time.Second, "keep the outline up this long")
	return cmd
}

// probeCmd reports what the configured hardware answers.
func probeCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Identify the sound meter and list the configured pins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if _, err := host.Init(); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "touch irq:     %s\n", describePin(cfg.Touch.IRQPin))
			fmt.Fprintf(w, "touch reset:   %s\n", describePin(cfg.Touch.ResetPin))
			fmt.Fprintf(w, "display dc:    %s\n", describePin(cfg.Display.DCPin))
			fmt.Fprintf(w, "display reset: %s\n", describePin(cfg.Display.ResetPin))

			d, closeBus, err := openMeter(cfg.Sensor)
			if err != nil {
				return fmt.Errorf("sound meter: %w", err)
			}
			defer closeBus()
			ver, err := d.Version()
			if err != nil {
				return err
			}
			id, err := d.UniqueID()
			if err != nil {
				return err
			}
			db, err := d.Read()
			if err != nil {
				return err
			}
			lo, hi, err := d.MinMax()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "sound meter:   %s version 0x%02X id %08X\n", d, ver, id)
			fmt.Fprintf(w, "level:         %.0f dB (min %d, max %d)\n", db, lo, hi)
			return nil
		},
	}
}

// configCmd prints the effective configuration, or writes it with --write.
func configCmd(f *flags) *cobra.Command {
	var write string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if write != "" {
				if err := config.Save(write, cfg); err != nil {
					return err
				}
				log.Info().Str("path", write).Msg("config written")
				return nil
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
	cmd.Flags().StringVarP(&write, "write", "w", "", "write to this file instead")
	return cmd
}
