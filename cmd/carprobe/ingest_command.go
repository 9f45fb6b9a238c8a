package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carprobe/internal/ingest"
	"carprobe/internal/pipeline"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Store listing JSON documents and schedule enrichment",
		Long: "Reads listing documents (a single object or an array per file), derives\n" +
			"vehicles and schedules the enrichment chain. With --sync the queue is\n" +
			"drained before the command exits.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				out := cmd.OutOrStdout()
				var failures []error
				saved := 0
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						failures = append(failures, fmt.Errorf("read %s: %w", path, err))
						continue
					}
					listings, decodeErr := ingest.Decode(data)
					if decodeErr != nil {
						failures = append(failures, fmt.Errorf("%s: %w", path, decodeErr))
					}
					for _, listing := range listings {
						report, err := p.Ingest.Save(runCtx, listing)
						if err != nil {
							failures = append(failures, fmt.Errorf("%s: listing %s: %w", path, listing.SourceID, err))
							continue
						}
						saved++
						scheduled := report.Scheduled
						if scheduled == "" {
							scheduled = "nothing"
						}
						fmt.Fprintf(out, "Listing %s -> vehicle %d (%s, scheduled %s)\n",
							listing.SourceID, report.VehicleID, report.Decision.Kind, scheduled)
					}
				}

				if sync {
					processed, err := p.Workflow.Drain(runCtx)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Processed %d job(s)\n", processed)
				}

				fmt.Fprintf(out, "Saved %d listing(s)\n", saved)
				if len(failures) > 0 {
					return errors.Join(failures...)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Run queued enrichment before exiting")
	return cmd
}
