package navigation

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/logging"
)

// ErrNoWaypoints is returned when a controller is built without waypoints.
var ErrNoWaypoints = errors.New("at least one waypoint is required")

// Pose is the vehicle position in map pixels plus its altitude.
type Pose struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Altitude float64 `json:"altitude"`
}

// Point returns the horizontal position.
func (p Pose) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.1f, %.1f, alt %.1f)", p.X, p.Y, p.Altitude)
}

// Waypoint is a target position on the map. Altitude is only enforced when HasAltitude is set.
type Waypoint struct {
	Name        string   `json:"name,omitempty"`
	Position    r2.Point `json:"position"`
	Altitude    float64  `json:"altitude,omitempty"`
	HasAltitude bool     `json:"has_altitude,omitempty"`
}

// NewWaypoint returns an unnamed waypoint without an altitude target.
func NewWaypoint(x, y float64) Waypoint {
	return Waypoint{Position: r2.Point{X: x, Y: y}}
}

// Config holds the navigation controller parameters.
type Config struct {
	// ArrivalThreshold is the distance in pixels under which a waypoint counts as reached.
	ArrivalThreshold float64 `json:"arrival_threshold"`
	// AltitudeTolerance is the altitude error ignored for waypoints with an altitude.
	AltitudeTolerance float64 `json:"altitude_tolerance"`
}

// DefaultConfig returns a 25 pixel arrival threshold and a 5 unit altitude tolerance.
func DefaultConfig() Config {
	return Config{ArrivalThreshold: 25, AltitudeTolerance: 5}
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	var errs error
	if config.ArrivalThreshold <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("arrival_threshold should be > 0")))
	}
	if config.AltitudeTolerance < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("altitude_tolerance should be >= 0")))
	}
	return errs
}

// Progress describes how far along the waypoint list the controller is.
type Progress struct {
	Cursor  int  `json:"cursor"`
	Total   int  `json:"total"`
	Reached bool `json:"reached"`
}

func (p Progress) String() string {
	if p.Reached {
		return fmt.Sprintf("%d/%d reached", p.Total, p.Total)
	}
	return fmt.Sprintf("%d/%d", p.Cursor+1, p.Total)
}

// Controller steers toward each waypoint in turn, correcting one axis at a time. The only state
// it carries is the cursor into the waypoint list.
type Controller struct {
	waypoints []Waypoint
	cfg       Config
	logger    logging.Logger

	cursor  int
	reached bool
}

// NewController returns a controller aimed at the first waypoint.
func NewController(waypoints []Waypoint, cfg Config, logger logging.Logger) (*Controller, error) {
	if len(waypoints) == 0 {
		return nil, ErrNoWaypoints
	}
	if err := cfg.Validate("navigation"); err != nil {
		return nil, err
	}
	wps := make([]Waypoint, len(waypoints))
	copy(wps, waypoints)
	return &Controller{waypoints: wps, cfg: cfg, logger: logger}, nil
}

// NextCommand returns the command that moves pose toward the current target, and that target.
// Arriving within the threshold advances the cursor by one before the command is chosen. Arriving
// at the last waypoint yields ReachedDestination on this and every later call.
func (c *Controller) NextCommand(pose Pose) (Command, Waypoint) {
	last := len(c.waypoints) - 1
	if c.reached {
		return ReachedDestination, c.waypoints[last]
	}
	target := c.waypoints[c.cursor]
	if pose.Point().Sub(target.Position).Norm() < c.cfg.ArrivalThreshold {
		if c.cursor == last {
			c.reached = true
			c.logger.Infow("final waypoint reached", "waypoint", c.cursor, "pose", pose.String())
			return ReachedDestination, target
		}
		c.cursor++
		target = c.waypoints[c.cursor]
		c.logger.Infow("waypoint reached", "next", c.cursor, "target", target.Position)
	}
	return c.steer(pose, target), target
}

func (c *Controller) steer(pose Pose, target Waypoint) Command {
	dx := target.Position.X - pose.X
	dy := target.Position.Y - pose.Y
	if target.HasAltitude {
		dz := target.Altitude - pose.Altitude
		if math.Abs(dz) > c.cfg.AltitudeTolerance && math.Abs(dz) > math.Abs(dx) && math.Abs(dz) > math.Abs(dy) {
			if dz > 0 {
				return Ascend
			}
			return Descend
		}
	}
	return Toward(pose.Point(), target.Position)
}

// Toward returns the horizontal move that closes the larger of the two axis offsets from one map
// position to another.
func Toward(from, to r2.Point) Command {
	dx := to.X - from.X
	dy := to.Y - from.Y
	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			return MoveRight
		}
		return MoveLeft
	}
	// image y grows downward
	if dy < 0 {
		return MoveForward
	}
	return MoveBackward
}

// Cursor returns the index of the current target waypoint.
func (c *Controller) Cursor() int {
	return c.cursor
}

// Target returns the current target waypoint.
func (c *Controller) Target() Waypoint {
	return c.waypoints[c.cursor]
}

// Destination returns the final waypoint.
func (c *Controller) Destination() Waypoint {
	return c.waypoints[len(c.waypoints)-1]
}

// Reached reports whether the final waypoint has been reached.
func (c *Controller) Reached() bool {
	return c.reached
}

// Progress reports the cursor position.
func (c *Controller) Progress() Progress {
	return Progress{Cursor: c.cursor, Total: len(c.waypoints), Reached: c.reached}
}

// Waypoints returns a copy of the waypoint list.
func (c *Controller) Waypoints() []Waypoint {
	wps := make([]Waypoint, len(c.waypoints))
	copy(wps, c.waypoints)
	return wps
}

// RemainingDistance is the distance from pose to the current target plus the length of the rest
// of the route.
func (c *Controller) RemainingDistance(pose Pose) float64 {
	if c.reached {
		return 0
	}
	dist := pose.Point().Sub(c.waypoints[c.cursor].Position).Norm()
	for i := c.cursor + 1; i < len(c.waypoints); i++ {
		dist += c.waypoints[i].Position.Sub(c.waypoints[i-1].Position).Norm()
	}
	return dist
}

// Reset aims the controller at the first waypoint again.
func (c *Controller) Reset() {
	c.cursor = 0
	c.reached = false
}
