package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"carprobe/internal/pipeline"
	"carprobe/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the enrichment queue",
	}
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueuePurgeCommand(ctx))
	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show job counts, stage health and recent jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				pr := newPrinter(cmd.OutOrStdout())
				summary := p.Workflow.Status(runCtx)
				pr.section("Queue")
				for _, status := range []queue.Status{queue.StatusQueued, queue.StatusRunning, queue.StatusDone, queue.StatusFailed} {
					count := summary.QueueStats[status]
					t := toneInfo
					if status == queue.StatusFailed && count > 0 {
						t = toneWarn
					}
					pr.status(string(status), t, strconv.Itoa(count))
				}

				pr.blank()
				pr.section("Stages")
				for _, health := range summary.StageHealth {
					pr.status(health.Name, toneFor(health.Ready), health.Detail)
				}

				jobs, err := p.Queue.Recent(runCtx, limit)
				if err != nil {
					return err
				}
				pr.blank()
				if len(jobs) == 0 {
					fmt.Fprintln(pr.out, "No jobs")
					return nil
				}
				pr.table([]string{"Job", "Stage", "Vehicle", "Status", "Attempts", "Outcome", "Updated"}, jobRows(jobs), 0, 2, 4)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent jobs to show")
	return cmd
}

func jobRows(jobs []*queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		outcome := job.Outcome
		if job.Status == queue.StatusFailed {
			outcome = strings.TrimSpace(job.ErrorKind + ": " + job.ErrorMessage)
		}
		vehicle := "-"
		if job.VehicleID != 0 {
			vehicle = strconv.FormatInt(job.VehicleID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.Stage,
			vehicle,
			string(job.Status),
			strconv.Itoa(job.Attempts),
			orDash(outcome),
			job.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return rows
}

func newQueuePurgeCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete finished jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := make([]queue.Status, 0, len(statuses))
			for _, raw := range statuses {
				status := queue.Status(strings.ToLower(strings.TrimSpace(raw)))
				switch status {
				case queue.StatusDone, queue.StatusFailed:
					selected = append(selected, status)
				default:
					return fmt.Errorf("cannot purge status %q (expected done or failed)", raw)
				}
			}
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				removed, err := p.Queue.Purge(runCtx, selected...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Statuses to purge (done, failed); defaults to both")
	return cmd
}
