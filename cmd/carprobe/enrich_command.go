package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"carprobe/internal/pipeline"
	"carprobe/internal/stage"
)

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var stageName string
	var sync bool

	cmd := &cobra.Command{
		Use:   "enrich VEHICLE_ID",
		Short: "Re-enqueue an enrichment stage for a vehicle",
		Long: "Schedules one stage for an existing vehicle. Later stages follow\n" +
			"automatically. Defaults to the first chain stage.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicleID, err := parseID(args[0], "vehicle id")
			if err != nil {
				return err
			}
			name := strings.ToLower(strings.TrimSpace(stageName))
			if name == "" {
				name = stage.Names[0]
			}
			if !stage.Known(name) {
				return fmt.Errorf("unknown stage %q (expected one of %s)", stageName, strings.Join(stage.Names, ", "))
			}

			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				vehicle, err := p.Store.GetVehicle(runCtx, vehicleID)
				if err != nil {
					return err
				}
				if vehicle == nil {
					return fmt.Errorf("vehicle %d not found", vehicleID)
				}
				job, err := p.Queue.Enqueue(runCtx, name, vehicle.ListingID, vehicle.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued %s for vehicle %d (job %d)\n", name, vehicle.ID, job.ID)
				if !sync {
					return nil
				}
				processed, err := p.Workflow.Drain(runCtx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Processed %d job(s)\n", processed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stageName, "stage", "", "Stage to run ("+strings.Join(stage.Names, ", ")+")")
	cmd.Flags().BoolVar(&sync, "sync", false, "Run queued enrichment before exiting")
	return cmd
}
