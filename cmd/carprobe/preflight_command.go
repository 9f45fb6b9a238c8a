package main

import (
	"errors"

	"github.com/spf13/cobra"

	"carprobe/internal/preflight"
)

var errPreflightFailed = errors.New("preflight checks failed")

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check directories and external service access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pr := newPrinter(cmd.OutOrStdout())
			results := preflight.RunAll(cmd.Context(), cfg)
			pr.section("Preflight")
			for _, result := range results {
				pr.status(result.Name, toneFor(result.Passed), result.Detail)
			}
			if preflight.Failed(results) {
				return errPreflightFailed
			}
			return nil
		},
	}
}
