package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"carprobe/internal/config"
	"carprobe/internal/export"
	"carprobe/internal/pipeline"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var includeRetired bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write vehicles and MOT history to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(outPath)
			if target == "" {
				return fmt.Errorf("--out is required")
			}
			expanded, err := config.ExpandPath(target)
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				if err := export.NewService(p.Store, nil).WriteFile(runCtx, expanded, includeRetired); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote workbook to %s\n", expanded)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination .xlsx file")
	cmd.Flags().BoolVar(&includeRetired, "all", false, "Include retired vehicles")
	return cmd
}
