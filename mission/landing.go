package mission

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/navigation"
)

// LandingConfig holds the precision approach parameters.
type LandingConfig struct {
	// PositionTolerance is the per-axis pixel error under which the landmark counts as centered.
	PositionTolerance float64 `json:"position_tolerance"`
	// Gain scales the pixel error into a [0, 1] command magnitude.
	Gain float64 `json:"gain"`
}

// DefaultLandingConfig returns a 3 pixel tolerance and a gain of 0.02.
func DefaultLandingConfig() LandingConfig {
	return LandingConfig{PositionTolerance: 3, Gain: 0.02}
}

// Validate ensures all parts of the config are valid.
func (config *LandingConfig) Validate(path string) error {
	var errs error
	if config.PositionTolerance <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("position_tolerance should be > 0")))
	}
	if config.Gain < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("gain should be >= 0")))
	}
	return errs
}

// LandingDecision is the approach command for one frame.
type LandingDecision struct {
	Command navigation.Command `json:"command"`
	// Error is landmark center minus camera center, in frame pixels.
	Error    r2.Point `json:"error"`
	Distance float64  `json:"distance"`
	// Magnitude is the proportional effort for the chosen axis, for display only.
	Magnitude float64 `json:"magnitude"`
	Centered  bool    `json:"centered"`
}

// LandingController centers the landmark in the frame one axis at a time, then descends.
type LandingController struct {
	cfg LandingConfig
}

// NewLandingController returns a controller for cfg.
func NewLandingController(cfg LandingConfig) (*LandingController, error) {
	if err := cfg.Validate("landing"); err != nil {
		return nil, err
	}
	return &LandingController{cfg: cfg}, nil
}

// Decide returns the command that moves the landmark toward the camera center. Once both axes
// are within tolerance the command is Descend.
func (lc *LandingController) Decide(landmark, cameraCenter r2.Point) LandingDecision {
	e := landmark.Sub(cameraCenter)
	d := LandingDecision{Error: e, Distance: e.Norm()}
	tol := lc.cfg.PositionTolerance
	switch {
	case math.Abs(e.X) > tol:
		d.Command = navigation.MoveRight
		if e.X < 0 {
			d.Command = navigation.MoveLeft
		}
		d.Magnitude = lc.magnitude(e.X)
	case math.Abs(e.Y) > tol:
		// landmark above center means fly forward
		d.Command = navigation.MoveBackward
		if e.Y < 0 {
			d.Command = navigation.MoveForward
		}
		d.Magnitude = lc.magnitude(e.Y)
	default:
		d.Command = navigation.Descend
		d.Centered = true
		d.Magnitude = 1
	}
	return d
}

func (lc *LandingController) magnitude(err float64) float64 {
	return math.Min(1, lc.cfg.Gain*math.Abs(err))
}
