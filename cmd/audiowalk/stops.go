package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvallinder/audiowalk/internal/geo"
	"github.com/nvallinder/audiowalk/internal/model"
	"github.com/nvallinder/audiowalk/internal/tour"
)

var stopsOpts struct {
	from string
}

var stopsCmd = &cobra.Command{
	Use:   "stops <tour.yaml>",
	Short: "List a tour's stops",
	Long: `List a tour's stops in route order. With --from, also show the
distance from the given position to each stop's trigger point.`,
	Args: cobra.ExactArgs(1),
	RunE: runStops,
}

func init() {
	rootCmd.AddCommand(stopsCmd)

	stopsCmd.Flags().StringVar(&stopsOpts.from, "from", "",
		"Position as lat,lng for distance output")
}

func runStops(cmd *cobra.Command, args []string) error {
	t, err := tour.Load(args[0])
	if err != nil {
		return err
	}

	var from *model.Coordinates
	if stopsOpts.from != "" {
		c, err := parseCoords(stopsOpts.from)
		if err != nil {
			return err
		}
		from = &c
	}

	for i := range t.Stops {
		stop := &t.Stops[i]
		line := fmt.Sprintf("  %2d. %-24s %-14s", i+1, stop.ID, stop.Category)
		if from != nil {
			d := geo.Distance(*from, stop.TriggerCoords())
			if math.IsNaN(d) {
				line += "  (no coordinates)"
			} else {
				line += "  " + humanize.SIWithDigits(d, 1, "m")
			}
		}
		fmt.Println(line)
	}
	return nil
}

func parseCoords(s string) (model.Coordinates, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return model.Coordinates{}, fmt.Errorf("invalid position %q, expected lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("invalid longitude: %w", err)
	}
	c := model.Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return model.Coordinates{}, fmt.Errorf("position %q out of range", s)
	}
	return c, nil
}
