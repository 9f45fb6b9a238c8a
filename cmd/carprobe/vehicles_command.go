package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"carprobe/internal/pipeline"
	"carprobe/internal/store"
)

func newVehiclesCommand(ctx *commandContext) *cobra.Command {
	var includeRetired bool
	var limit int

	cmd := &cobra.Command{
		Use:   "vehicles",
		Short: "List known vehicles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				vehicles, err := p.Store.ListVehicles(runCtx, store.VehicleFilter{IncludeRetired: includeRetired, Limit: limit})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(vehicles) == 0 {
					fmt.Fprintln(out, "No vehicles")
					return nil
				}
				rows := make([][]string, 0, len(vehicles))
				for _, v := range vehicles {
					rows = append(rows, []string{
						strconv.FormatInt(v.ID, 10),
						orDash(v.Registration),
						orDash(strings.TrimSpace(v.Make + " " + v.Model)),
						intOrDash(v.Year),
						formatPrice(v),
						orDash(v.MotStatus),
						string(v.State()),
					})
				}
				newPrinter(out).table([]string{"ID", "Registration", "Vehicle", "Year", "Price", "MOT", "State"}, rows, 0, 3, 4)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&includeRetired, "all", false, "Include retired vehicles")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of vehicles to list")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show VEHICLE_ID",
		Short: "Show a vehicle with its MOT history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicleID, err := parseID(args[0], "vehicle id")
			if err != nil {
				return err
			}
			return ctx.withPipeline(cmd, func(runCtx context.Context, p *pipeline.Pipeline) error {
				v, err := p.Store.GetVehicle(runCtx, vehicleID)
				if err != nil {
					return err
				}
				if v == nil {
					return fmt.Errorf("vehicle %d not found", vehicleID)
				}
				tests, err := p.Store.MotTests(runCtx, v.ID)
				if err != nil {
					return err
				}
				renderVehicle(cmd, v, tests)
				return nil
			})
		},
	}
}

func renderVehicle(cmd *cobra.Command, v *store.Vehicle, tests []store.MotTest) {
	pr := newPrinter(cmd.OutOrStdout())
	out := pr.out

	fmt.Fprintf(out, "Vehicle %d (listing %d)\n", v.ID, v.ListingID)
	fields := [][2]string{
		{"Registration", registrationLine(v)},
		{"Vehicle", orDash(strings.TrimSpace(v.Make + " " + v.Model))},
		{"Year", intOrDash(v.Year)},
		{"Fuel", orDash(v.FuelType)},
		{"Transmission", orDash(v.Transmission)},
		{"Mileage", intOrDash(v.Mileage)},
		{"Price", formatPrice(v)},
		{"Tax", statusWithDate(v.TaxStatus, v.TaxDueDate)},
		{"MOT", statusWithDate(v.MotStatus, v.MotExpiryDate)},
		{"State", string(v.State())},
		{"Retired", yesNo(v.Retired())},
	}
	for _, field := range fields {
		pr.field(field[0], field[1])
	}

	if v.HasSummary() {
		pr.blank()
		fmt.Fprintln(out, "Purchase advice")
		fmt.Fprintf(out, "  %s\n", orDash(v.PurchaseSummary))
		pr.field("Repair estimate", orDash(v.RepairEstimate))
		pr.field("Expected lifetime", orDash(v.LifetimeNote))
	}

	pr.blank()
	if len(tests) == 0 {
		fmt.Fprintln(out, "No MOT history")
		return
	}
	rows := make([][]string, 0, len(tests))
	for _, test := range tests {
		rows = append(rows, []string{
			test.TestNumber,
			test.CompletedAt.Format("2006-01-02"),
			pr.tint(toneFor(test.Passed()), test.Result),
			intOrDash(test.Odometer),
			strconv.Itoa(len(test.Failures)),
			strconv.Itoa(len(test.Advisories)),
		})
	}
	pr.table([]string{"Test", "Completed", "Result", "Odometer", "Failures", "Advisories"}, rows, 3, 4, 5)
}

func registrationLine(v *store.Vehicle) string {
	if !v.HasRegistration() {
		if v.DetectedPlate != "" {
			return fmt.Sprintf("- (partial plate %s)", v.DetectedPlate)
		}
		return "-"
	}
	if v.RegistrationSource == "" {
		return v.Registration
	}
	return fmt.Sprintf("%s (%s)", v.Registration, v.RegistrationSource)
}

func statusWithDate(status string, date *time.Time) string {
	if date == nil {
		return orDash(status)
	}
	return fmt.Sprintf("%s until %s", orDash(status), date.Format("2006-01-02"))
}

func formatPrice(v *store.Vehicle) string {
	if !v.Price.Valid {
		return "-"
	}
	return "£" + v.Price.Decimal.StringFixed(0)
}
