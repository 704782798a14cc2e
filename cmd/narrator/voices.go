package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/go-narrator/internal/playback"
	"github.com/example/go-narrator/internal/voice"
)

func newVoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List voices from the voice manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			mgr, err := voice.NewManager(cfg.Paths.VoicesManifest)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tLANGUAGE\tLICENSE\tPATH")
			for _, v := range mgr.ListVoices() {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Language, v.License, v.Path)
			}
			return tw.Flush()
		},
	}
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio playback devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := playback.ListDevices()
			if err != nil {
				return err
			}
			return printDevices(cmd, devices)
		},
	}
}

func printDevices(cmd *cobra.Command, devices []playback.Device) error {
	for _, d := range devices {
		mark := " "
		if d.IsDefault {
			mark = "*"
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, d.Name); err != nil {
			return err
		}
	}
	return nil
}
