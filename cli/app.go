// Package cli contains the visnav command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	configFlag   = "config"
	debugFlag    = "debug"
	logFileFlag  = "log-file"
	maxTicksFlag = "max-ticks"
	hzFlag       = "hz"

	runFlagFramesDir  = "frames-dir"
	runFlagSaveEvery  = "save-every"
	runFlagStatusFile = "status-file"
	runFlagPlot       = "plot"
	runFlagNoSummary  = "no-summary"

	detectFlagScales = "scales"
	detectFlagOut    = "out"

	routeFlagFrom  = "from"
	routeFlagTo    = "to"
	routeFlagMax   = "max-waypoints"
	routeFlagCount = "count"
)

// NewApp returns the visnav app with Writer set to out and ErrWriter set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "visnav",
		Usage:           "fly a simulated vehicle with camera-only navigation and landing",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "load mission configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  logFileFlag,
				Usage: "also write logs to a rotating `FILE`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run a simulated mission until it lands or runs out of ticks",
				UsageText: "visnav [global options] run [command options]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  maxTicksFlag,
						Usage: "stop after `N` ticks (0 keeps the configured value)",
					},
					&cli.Float64Flag{
						Name:  hzFlag,
						Usage: "tick rate, 0 or less runs unpaced (overrides the config when set)",
					},
					&cli.StringFlag{
						Name:  runFlagFramesDir,
						Usage: "save annotated frames to `DIR`",
					},
					&cli.IntFlag{
						Name:  runFlagSaveEvery,
						Usage: "with --frames-dir, save every `N`th frame as well as every state change",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  runFlagStatusFile,
						Usage: "write one JSON status per tick to `FILE`",
					},
					&cli.StringFlag{
						Name:  runFlagPlot,
						Usage: "write a trajectory plot to `FILE` (png, svg or pdf)",
					},
					&cli.BoolFlag{
						Name:  runFlagNoSummary,
						Usage: "do not print the summary table",
					},
				},
				Action: RunAction,
			},
			{
				Name:      "detect",
				Usage:     "find a landmark image in a camera frame",
				ArgsUsage: "<landmark image> <frame image>",
				Flags: []cli.Flag{
					&cli.Float64SliceFlag{
						Name:  detectFlagScales,
						Usage: "reference magnifications to try",
					},
					&cli.StringFlag{
						Name:  detectFlagOut,
						Usage: "write the annotated frame to `FILE`",
					},
				},
				Action: DetectAction,
			},
			{
				Name:      "odometry",
				Usage:     "estimate the image motion between two frames",
				ArgsUsage: "<previous frame> <current frame>",
				Action:    OdometryAction,
			},
			{
				Name:            "routes",
				Usage:           "plan routes over the bundled city map",
				HideHelpCommand: true,
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list the popular routes",
						Action: ListRoutesAction,
					},
					{
						Name:      "info",
						Usage:     "show distance and flight time of a route",
						ArgsUsage: "<city> <city> [city...]",
						Action:    RouteInfoAction,
					},
					{
						Name:  "suggest",
						Usage: "suggest a route between two cities",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: routeFlagFrom, Required: true, Usage: "start `CITY`"},
							&cli.StringFlag{Name: routeFlagTo, Required: true, Usage: "destination `CITY`"},
							&cli.IntFlag{Name: routeFlagMax, Value: 4, Usage: "at most `N` cities including both ends"},
						},
						Action: SuggestRouteAction,
					},
					{
						Name:      "nearest",
						Usage:     "list the cities closest to a city",
						ArgsUsage: "<city>",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: routeFlagCount, Value: 3, Usage: "number of cities"},
						},
						Action: NearestCitiesAction,
					},
				},
			},
			{
				Name:   "config",
				Usage:  "print the effective mission configuration as JSON",
				Action: PrintConfigAction,
			},
			{
				Name:   "version",
				Usage:  "print version info for this program",
				Action: VersionAction,
			},
		},
	}
}
