package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-narrator/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime, model and audio checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			result := doctor.Run(doctor.FromConfig(cfg), cmd.OutOrStdout())
			if result.Failed() {
				return fmt.Errorf("doctor: %d check(s) failed", len(result.Failures()))
			}
			return nil
		},
	}
}
