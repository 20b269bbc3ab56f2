package sim

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/navigation"
)

// Executor applies a command to a pose and returns the pose one tick later.
type Executor interface {
	Apply(pose navigation.Pose, cmd navigation.Command) navigation.Pose
}

// VehicleConfig describes the simulated kinematics.
type VehicleConfig struct {
	// BaseVelocity is the horizontal step in map pixels per tick at ReferenceAltitude. The step
	// scales with altitude so one step covers a similar share of the camera frame.
	BaseVelocity      float64 `json:"base_velocity"`
	ReferenceAltitude float64 `json:"reference_altitude"`
	MinVelocity       float64 `json:"min_velocity"`
	MaxVelocity       float64 `json:"max_velocity"`
	DescentRate       float64 `json:"descent_rate"`
	AscentRate        float64 `json:"ascent_rate"`
	MinAltitude       float64 `json:"min_altitude"`
	MaxAltitude       float64 `json:"max_altitude"`
	// BatteryDrain is the battery percentage used every tick.
	BatteryDrain float64 `json:"battery_drain"`
}

// DefaultVehicleConfig returns the kinematics of the reference quadcopter.
func DefaultVehicleConfig() VehicleConfig {
	return VehicleConfig{
		BaseVelocity:      2,
		ReferenceAltitude: 100,
		MinVelocity:       0.2,
		MaxVelocity:       5,
		DescentRate:       1.5,
		AscentRate:        2,
		MinAltitude:       5,
		MaxAltitude:       150,
		BatteryDrain:      0.005,
	}
}

// Validate ensures all parts of the config are valid.
func (config *VehicleConfig) Validate(path string) error {
	var errs error
	if config.BaseVelocity <= 0 || config.ReferenceAltitude <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.New("base_velocity and reference_altitude should be > 0")))
	}
	if config.MinVelocity <= 0 || config.MaxVelocity < config.MinVelocity {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("velocity range [%v, %v] is invalid", config.MinVelocity, config.MaxVelocity)))
	}
	if config.DescentRate <= 0 || config.AscentRate <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("climb rates should be > 0")))
	}
	if config.MinAltitude <= 0 || config.MaxAltitude < config.MinAltitude {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("altitude range [%v, %v] is invalid", config.MinAltitude, config.MaxAltitude)))
	}
	if config.BatteryDrain < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("battery_drain should be >= 0")))
	}
	return errs
}

// BatteryStatus buckets a battery percentage.
type BatteryStatus string

// The battery buckets, from full to empty.
const (
	BatteryOK        BatteryStatus = "OK"
	BatteryLow       BatteryStatus = "LOW"
	BatteryCritical  BatteryStatus = "CRITICAL"
	BatteryEmergency BatteryStatus = "EMERGENCY"
)

// BatteryStatusOf returns the bucket for a battery percentage.
func BatteryStatusOf(level float64) BatteryStatus {
	switch {
	case level > 50:
		return BatteryOK
	case level > 20:
		return BatteryLow
	case level > 5:
		return BatteryCritical
	default:
		return BatteryEmergency
	}
}

// Telemetry is the vehicle state that is not part of the pose.
type Telemetry struct {
	Heading     float64            `json:"heading"`
	Velocity    float64            `json:"velocity"`
	Battery     float64            `json:"battery"`
	Status      BatteryStatus      `json:"battery_status"`
	LastCommand navigation.Command `json:"last_command"`
	Distance    float64            `json:"distance"`
}

func (t Telemetry) String() string {
	return fmt.Sprintf("heading %.0f, v %.2f, battery %.1f%% %s", t.Heading, t.Velocity, t.Battery, t.Status)
}

// Vehicle is a point mass that moves one fixed step per command and never leaves the map.
type Vehicle struct {
	cfg       VehicleConfig
	bounds    image.Point
	telemetry Telemetry
}

// NewVehicle returns a vehicle flying over a map of the given size with a full battery.
func NewVehicle(cfg VehicleConfig, mapSize image.Point) (*Vehicle, error) {
	if err := cfg.Validate("vehicle"); err != nil {
		return nil, err
	}
	if mapSize.X <= 0 || mapSize.Y <= 0 {
		return nil, errors.Errorf("invalid map size %v", mapSize)
	}
	v := &Vehicle{cfg: cfg, bounds: mapSize}
	v.Reset()
	return v, nil
}

// Reset refills the battery and clears the odometer.
func (v *Vehicle) Reset() {
	v.telemetry = Telemetry{Battery: 100, Status: BatteryOK, LastCommand: navigation.Hold}
}

// Telemetry returns the state after the most recent Apply.
func (v *Vehicle) Telemetry() Telemetry {
	return v.telemetry
}

// Velocity returns the horizontal step at an altitude.
func (v *Vehicle) Velocity(altitude float64) float64 {
	step := v.cfg.BaseVelocity * altitude / v.cfg.ReferenceAltitude
	return math.Max(v.cfg.MinVelocity, math.Min(v.cfg.MaxVelocity, step))
}

// Apply moves the vehicle one tick. Forward is toward smaller map Y.
func (v *Vehicle) Apply(pose navigation.Pose, cmd navigation.Command) navigation.Pose {
	next := pose
	step := v.Velocity(pose.Altitude)
	switch cmd {
	case navigation.MoveForward:
		next.Y -= step
		v.telemetry.Heading = 90
	case navigation.MoveBackward:
		next.Y += step
		v.telemetry.Heading = 270
	case navigation.MoveLeft:
		next.X -= step
		v.telemetry.Heading = 180
	case navigation.MoveRight:
		next.X += step
		v.telemetry.Heading = 0
	case navigation.Descend:
		next.Altitude -= v.cfg.DescentRate
	case navigation.Ascend:
		next.Altitude += v.cfg.AscentRate
	case navigation.Hold, navigation.ReachedDestination:
	}
	next.X = math.Max(0, math.Min(float64(v.bounds.X-1), next.X))
	next.Y = math.Max(0, math.Min(float64(v.bounds.Y-1), next.Y))
	next.Altitude = math.Max(v.cfg.MinAltitude, math.Min(v.cfg.MaxAltitude, next.Altitude))

	v.telemetry.Velocity = step
	v.telemetry.Battery = math.Max(0, v.telemetry.Battery-v.cfg.BatteryDrain)
	v.telemetry.Status = BatteryStatusOf(v.telemetry.Battery)
	v.telemetry.LastCommand = cmd
	v.telemetry.Distance += next.Point().Sub(pose.Point()).Norm()
	return next
}
