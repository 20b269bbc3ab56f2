package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/openaerial/visnav/navigation"
)

// ListRoutesAction is the corresponding Action for 'routes list'.
func ListRoutesAction(c *cli.Context) error {
	planner := navigation.DefaultRoutePlanner()
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Route", "Cities", "Distance", "Flight time"})
	for i, route := range planner.PopularRoutes() {
		info, err := planner.RouteInfo(route.Cities)
		if err != nil {
			return errors.Wrapf(err, "route %q", route.Name)
		}
		t.AppendRow(table.Row{
			i + 1,
			route.Name,
			strings.Join(route.Cities, " -> "),
			fmt.Sprintf("%.0f km", info.DistanceKm),
			navigation.FormatFlightTime(info.FlightTime),
		})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// RouteInfoAction is the corresponding Action for 'routes info'.
func RouteInfoAction(c *cli.Context) error {
	info, err := navigation.DefaultRoutePlanner().RouteInfo(c.Args().Slice())
	if err != nil {
		return err
	}
	headerf(c.App.Writer, "%s", strings.Join(info.Cities, " -> "))
	t := table.NewWriter()
	t.AppendHeader(table.Row{"From", "To", "Distance"})
	for i, leg := range info.Legs {
		t.AppendRow(table.Row{info.Cities[i], info.Cities[i+1], fmt.Sprintf("%.0f px (%.0f km)", leg, leg*navigation.KmPerPixel)})
	}
	t.AppendFooter(table.Row{"", "total", fmt.Sprintf("%.0f px (%.0f km)", info.DistancePixels, info.DistanceKm)})
	printf(c.App.Writer, "%s", t.Render())
	printf(c.App.Writer, "%d waypoints, estimated flight time %s at %.0f km/h",
		info.WaypointCount(), navigation.FormatFlightTime(info.FlightTime), navigation.CruiseSpeedKmh)
	return nil
}

// SuggestRouteAction is the corresponding Action for 'routes suggest'.
func SuggestRouteAction(c *cli.Context) error {
	planner := navigation.DefaultRoutePlanner()
	route, err := planner.SuggestRoute(c.String(routeFlagFrom), c.String(routeFlagTo), c.Int(routeFlagMax))
	if err != nil {
		return err
	}
	info, err := planner.RouteInfo(route)
	if err != nil {
		return err
	}
	infof(c.App.Writer, "%s", strings.Join(route, " -> "))
	printf(c.App.Writer, "%.0f km, %s", info.DistanceKm, navigation.FormatFlightTime(info.FlightTime))
	return nil
}

// NearestCitiesAction is the corresponding Action for 'routes nearest'.
func NearestCitiesAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("expected exactly one city")
	}
	nearest, err := navigation.DefaultRoutePlanner().NearestCities(c.Args().First(), c.Int(routeFlagCount))
	if err != nil {
		return err
	}
	for _, cd := range nearest {
		printf(c.App.Writer, "%-12s %5.0f km", cd.City, cd.Distance*navigation.KmPerPixel)
	}
	return nil
}
