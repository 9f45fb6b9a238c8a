package main

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"carprobe/internal/extract"
)

func newExtractCommand() *cobra.Command {
	var description string
	var specs []string
	var price string

	cmd := &cobra.Command{
		Use:         "extract TITLE",
		Short:       "Run attribute extraction on listing text",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			input := extract.Input{
				Title:       args[0],
				Description: description,
				Specs:       specs,
			}
			if price != "" {
				value, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("invalid price %q: %w", price, err)
				}
				input.Price = value
			}

			attrs := extract.FromListing(input)
			out := cmd.OutOrStdout()
			if attrs.Empty() {
				fmt.Fprintln(out, "Nothing extracted")
				return nil
			}
			rows := [][]string{
				{"Year", intOrDash(attrs.Year)},
				{"Make", orDash(attrs.Make)},
				{"Model", orDash(attrs.Model)},
				{"Fuel", orDash(attrs.FuelType)},
				{"Transmission", orDash(attrs.Transmission)},
				{"Mileage", intOrDash(attrs.Mileage)},
				{"Engine (cc)", intOrDash(attrs.EngineSize)},
				{"Doors", intOrDash(attrs.Doors)},
				{"Body", orDash(attrs.BodyType)},
				{"Colour", orDash(attrs.Colour)},
				{"Owners", intOrDash(attrs.PreviousOwners)},
				{"Service history", orDash(attrs.ServiceHistory)},
				{"Price", priceOrDash(attrs.Price)},
			}
			newPrinter(out).table([]string{"Field", "Value"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Listing description text")
	cmd.Flags().StringArrayVar(&specs, "spec", nil, "Spec line (repeatable)")
	cmd.Flags().StringVar(&price, "price", "", "Asking price")
	return cmd
}

func priceOrDash(price decimal.NullDecimal) string {
	if !price.Valid {
		return "-"
	}
	if price.Decimal.IsInteger() {
		return "£" + strconv.FormatInt(price.Decimal.IntPart(), 10)
	}
	return "£" + price.Decimal.StringFixed(2)
}
