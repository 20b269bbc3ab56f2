package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/config"
	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/navigation"
	"github.com/openaerial/visnav/sim"
)

// loadConfig reads the --config file, or the defaults plus environment overrides without one.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String(configFlag); path != "" {
		return config.Read(path)
	}
	cfg := config.Default()
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(c *cli.Context, cfg *config.Config) (logging.Logger, func()) {
	lc := cfg.Log
	if path := c.String(logFileFlag); path != "" {
		lc.File = &logging.FileAppenderConfig{Filename: filepath.Clean(path)}
	}
	logger, closer := config.NewLogger("visnav", lc, c.Bool(debugFlag))
	return logger, func() {
		utils.UncheckedError(logger.Sync())
		utils.UncheckedError(closer.Close())
	}
}

func applyRunFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet(maxTicksFlag) {
		cfg.Sim.MaxTicks = c.Int(maxTicksFlag)
	}
	if c.IsSet(hzFlag) {
		cfg.Sim.Hz = c.Float64(hzFlag)
	}
	if dir := c.String(runFlagFramesDir); dir != "" {
		cfg.Sim.FramesDir = dir
		cfg.Sim.SaveEvery = c.Int(runFlagSaveEvery)
	}
	if path := c.String(runFlagStatusFile); path != "" {
		cfg.Sim.StatusFile = path
	}
	if path := c.String(runFlagPlot); path != "" {
		cfg.Sim.TrajectoryPlot = path
	}
	return cfg.Validate()
}

// RunAction is the corresponding Action for 'run'.
func RunAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := applyRunFlags(c, cfg); err != nil {
		return err
	}
	logger, cleanup := newLogger(c, cfg)
	defer cleanup()

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return errors.Wrap(err, "cannot set up mission")
	}

	rec := &sim.Recorder{}
	sinks := sim.MultiSink{sim.NewLogSink(logger.Sublogger("status")), rec}
	if cfg.Sim.StatusFile != "" {
		//nolint:gosec
		f, err := os.Create(cfg.Sim.StatusFile)
		if err != nil {
			return errors.Wrap(err, "cannot create status file")
		}
		defer utils.UncheckedErrorFunc(f.Close)
		sinks = append(sinks, sim.NewJSONLinesSink(f))
	}
	var opts []sim.RunnerOption
	if cfg.Sim.FramesDir != "" {
		renderer, err := sim.NewRenderer(cfg.Sim.FramesDir, cfg.Sim.SaveEvery, logger.Sublogger("render"))
		if err != nil {
			return err
		}
		opts = append(opts, sim.WithRenderer(renderer))
	}
	runner, err := sim.NewRunner(p.world, p.machine, p.vehicle, sinks, cfg.Sim.RunnerConfig, logger, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	res, runErr := runner.Run(ctx)

	statuses := rec.Statuses()
	if !c.Bool(runFlagNoSummary) {
		printf(c.App.Writer, "%s", sim.Summary(statuses))
	}
	if cfg.Sim.TrajectoryPlot != "" {
		planned := lo.Map(p.waypoints, func(wp navigation.Waypoint, _ int) r2.Point { return wp.Position })
		if err := sim.PlotTrajectory(cfg.Sim.TrajectoryPlot, statuses, planned,
			[]r2.Point{p.world.LandmarkPosition()}); err != nil {
			warningf(c.App.ErrWriter, "%v", err)
		} else {
			printf(c.App.Writer, "trajectory written to %s", cfg.Sim.TrajectoryPlot)
		}
	}
	printf(c.App.Writer, "vehicle: %s", p.vehicle.Telemetry())

	switch {
	case errors.Is(runErr, context.Canceled):
		warningf(c.App.ErrWriter, "mission %s interrupted after %d ticks", res.RunID, res.Ticks)
		return nil
	case runErr != nil:
		return runErr
	case res.Completed:
		infof(c.App.Writer, "landed at %s after %d ticks (run %s)", res.Final.Pose, res.Ticks, res.RunID)
	default:
		warningf(c.App.Writer, "mission %s ended in %s after %d ticks without landing", res.RunID, res.Final.State, res.Ticks)
	}
	return nil
}

// PrintConfigAction is the corresponding Action for 'config'.
func PrintConfigAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, cfg)
}
