package sim

import (
	"context"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/mission"
	"github.com/openaerial/visnav/navigation"
)

// RunnerConfig controls the tick loop.
type RunnerConfig struct {
	// Hz is the tick rate. Zero or less runs as fast as possible.
	Hz float64 `json:"hz"`
	// MaxTicks bounds the run. Zero means until completion or cancellation.
	MaxTicks        int  `json:"max_ticks"`
	StopOnCompleted bool `json:"stop_on_completed"`
	CameraWidth     int  `json:"camera_width"`
	CameraHeight    int  `json:"camera_height"`
}

// DefaultRunnerConfig returns an unpaced 2000 tick run with a 640x480 camera.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxTicks:        2000,
		StopOnCompleted: true,
		CameraWidth:     640,
		CameraHeight:    480,
	}
}

// Validate ensures all parts of the config are valid.
func (config *RunnerConfig) Validate(path string) error {
	var errs error
	if config.MaxTicks < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("max_ticks should be >= 0")))
	}
	if config.CameraWidth <= 0 || config.CameraHeight <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("camera size %dx%d is invalid", config.CameraWidth, config.CameraHeight)))
	}
	if config.MaxTicks == 0 && !config.StopOnCompleted {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.New("an unbounded run needs stop_on_completed")))
	}
	return errs
}

func (config *RunnerConfig) cameraSize() image.Point {
	return image.Pt(config.CameraWidth, config.CameraHeight)
}

func (config *RunnerConfig) period() time.Duration {
	if config.Hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / config.Hz)
}

// Result describes a finished run.
type Result struct {
	RunID     string         `json:"run_id"`
	Ticks     int            `json:"ticks"`
	Final     mission.Status `json:"final"`
	Completed bool           `json:"completed"`
	Duration  time.Duration  `json:"duration"`
}

// Runner drives the frame, step, apply, publish loop. Everything happens on the calling
// goroutine.
type Runner struct {
	source   FrameSource
	machine  *mission.Machine
	executor Executor
	sink     StatusSink
	renderer *Renderer
	cfg      RunnerConfig
	clock    clock.Clock
	logger   logging.Logger
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithRenderer saves annotated frames during the run.
func WithRenderer(renderer *Renderer) RunnerOption {
	return func(r *Runner) {
		r.renderer = renderer
	}
}

// NewRunner returns a runner. A nil sink discards statuses.
func NewRunner(
	source FrameSource,
	machine *mission.Machine,
	executor Executor,
	sink StatusSink,
	cfg RunnerConfig,
	logger logging.Logger,
	opts ...RunnerOption,
) (*Runner, error) {
	if source == nil || machine == nil || executor == nil {
		return nil, errors.New("runner needs a frame source, a mission machine and an executor")
	}
	if err := cfg.Validate("sim"); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = MultiSink{}
	}
	r := &Runner{
		source:   source,
		machine:  machine,
		executor: executor,
		sink:     sink,
		cfg:      cfg,
		clock:    clock.New(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run resets the mission and ticks until it completes, MaxTicks is reached or ctx is done. The
// result is returned alongside ctx's error on cancellation. Sink and renderer errors are logged
// and do not stop the run.
func (r *Runner) Run(ctx context.Context) (res Result, err error) {
	res.RunID = uuid.NewString()
	logger := r.logger.Sublogger(res.RunID[:8])
	start := r.clock.Now()
	defer func() {
		res.Duration = r.clock.Since(start)
	}()

	mc := r.machine.NewContext()
	if resetter, ok := r.executor.(interface{ Reset() }); ok {
		resetter.Reset()
	}
	logger.Infow("mission started", "run_id", res.RunID, "pose", mc.Pose.String(), "max_ticks", r.cfg.MaxTicks)

	var ticks <-chan time.Time
	if period := r.cfg.period(); period > 0 {
		ticker := r.clock.Ticker(period)
		defer ticker.Stop()
		ticks = ticker.C
	}

	size := r.cfg.cameraSize()
	for r.cfg.MaxTicks == 0 || res.Ticks < r.cfg.MaxTicks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if ticks != nil && res.Ticks > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-ticks:
			}
		}

		frame := r.source.Frame(mc.Pose, size)
		st := r.machine.Step(mc, frame)
		mc.Pose = r.executor.Apply(mc.Pose, st.Command)
		res.Ticks++
		res.Final = st

		if err := r.sink.Publish(st); err != nil {
			logger.Warnw("cannot publish status", "tick", st.Tick, "error", err)
		}
		if r.renderer != nil {
			if _, err := r.renderer.Render(frame, st); err != nil {
				logger.Warnw("cannot render frame", "tick", st.Tick, "error", err)
			}
		}

		if st.State == mission.Completed {
			res.Completed = true
			if r.cfg.StopOnCompleted {
				break
			}
		}
	}

	if res.Completed {
		logger.Infow("mission completed", "ticks", res.Ticks, "pose", res.Final.Pose.String())
	} else {
		logger.Warnw("mission ended without landing", "ticks", res.Ticks, "state", res.Final.State)
	}
	return res, nil
}

// Step runs a single tick outside of Run, for interactive front ends.
func (r *Runner) Step(mc *mission.Context) (mission.Status, image.Image) {
	frame := r.source.Frame(mc.Pose, r.cfg.cameraSize())
	st := r.machine.Step(mc, frame)
	mc.Pose = r.executor.Apply(mc.Pose, st.Command)
	if err := r.sink.Publish(st); err != nil {
		r.logger.Warnw("cannot publish status", "tick", st.Tick, "error", err)
	}
	return st, frame
}

// HoldExecutor ignores every command. It keeps the pose fixed, which is useful to replay the
// pipeline over a single viewpoint.
type HoldExecutor struct{}

// Apply implements Executor.
func (HoldExecutor) Apply(pose navigation.Pose, _ navigation.Command) navigation.Pose {
	return pose
}
