// Package config defines the structures to configure a visnav mission and the simulator it runs
// in.
package config

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/mission"
	"github.com/openaerial/visnav/navigation"
	"github.com/openaerial/visnav/sim"
	"github.com/openaerial/visnav/vision/keypoints"
	"github.com/openaerial/visnav/vision/landmark"
	"github.com/openaerial/visnav/vision/odometry"
)

// Config describes a complete mission: the vision pipeline, the route, the mission policy and
// the simulated world.
type Config struct {
	Matcher    keypoints.MatcherConfig         `json:"matcher"`
	Odometry   odometry.MotionEstimationConfig `json:"odometry"`
	Landmark   landmark.Config                 `json:"landmark"`
	Navigation NavigationConfig                `json:"navigation"`
	Mission    mission.Config                  `json:"mission"`
	Vehicle    sim.VehicleConfig               `json:"vehicle"`
	Sim        SimConfig                       `json:"sim"`
	Log        LogConfig                       `json:"log"`

	// ConfigFilePath is the file the config was read from, if any.
	ConfigFilePath string `json:"-"`
}

// Point is a map position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// R2 converts p to an r2.Point.
func (p Point) R2() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// WaypointConfig is one entry of an explicit route.
type WaypointConfig struct {
	Name string  `json:"name,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	// Altitude is optional; without it the waypoint only constrains the horizontal position.
	Altitude *float64 `json:"altitude,omitempty"`
}

// NavigationConfig selects the route. Exactly one of Waypoints, Route and PopularRoute is used.
type NavigationConfig struct {
	navigation.Config
	Waypoints []WaypointConfig `json:"waypoints,omitempty"`
	// Route is a list of city names resolved with the built-in route planner.
	Route        []string `json:"route,omitempty"`
	PopularRoute string   `json:"popular_route,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *NavigationConfig) Validate(path string) error {
	errs := config.Config.Validate(path)
	sources := 0
	if len(config.Waypoints) > 0 {
		sources++
	}
	if len(config.Route) > 0 {
		sources++
	}
	if config.PopularRoute != "" {
		sources++
	}
	switch {
	case sources == 0:
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "waypoints"))
	case sources > 1:
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.New("only one of waypoints, route and popular_route may be set")))
	}
	if len(config.Route) > 0 {
		if err := navigation.DefaultRoutePlanner().ValidateRoute(config.Route); err != nil {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, err))
		}
	}
	if config.PopularRoute != "" {
		if _, ok := navigation.DefaultRoutePlanner().PopularRoute(config.PopularRoute); !ok {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Errorf("unknown popular route %q", config.PopularRoute)))
		}
	}
	return errs
}

// Resolve returns the waypoints the controller flies.
func (config *NavigationConfig) Resolve() ([]navigation.Waypoint, error) {
	if len(config.Waypoints) > 0 {
		wps := make([]navigation.Waypoint, 0, len(config.Waypoints))
		for _, wc := range config.Waypoints {
			wp := navigation.Waypoint{Name: wc.Name, Position: r2.Point{X: wc.X, Y: wc.Y}}
			if wc.Altitude != nil {
				wp.Altitude = *wc.Altitude
				wp.HasAltitude = true
			}
			wps = append(wps, wp)
		}
		return wps, nil
	}
	planner := navigation.DefaultRoutePlanner()
	route := config.Route
	if config.PopularRoute != "" {
		named, ok := planner.PopularRoute(config.PopularRoute)
		if !ok {
			return nil, errors.Errorf("unknown popular route %q", config.PopularRoute)
		}
		route = named.Cities
	}
	return planner.Waypoints(route)
}

// SimConfig describes the simulated world and the run loop.
type SimConfig struct {
	sim.RunnerConfig
	// MapPath and LandmarkPath load images from disk; without them both are generated.
	MapPath      string `json:"map_path,omitempty"`
	LandmarkPath string `json:"landmark_path,omitempty"`
	MapWidth     int    `json:"map_width"`
	MapHeight    int    `json:"map_height"`
	LandmarkSize int    `json:"landmark_size"`
	// LandmarkPosition defaults to the last waypoint.
	LandmarkPosition *Point `json:"landmark_position,omitempty"`
	Seed             uint64 `json:"seed"`

	FramesDir      string `json:"frames_dir,omitempty"`
	SaveEvery      int    `json:"save_every,omitempty"`
	StatusFile     string `json:"status_file,omitempty"`
	TrajectoryPlot string `json:"trajectory_plot,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *SimConfig) Validate(path string) error {
	errs := config.RunnerConfig.Validate(path)
	if config.MapPath == "" && (config.MapWidth <= 0 || config.MapHeight <= 0) {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("map size %dx%d is invalid", config.MapWidth, config.MapHeight)))
	}
	if config.LandmarkPath == "" && config.LandmarkSize <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("landmark_size should be > 0")))
	}
	if config.SaveEvery < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("save_every should be >= 0")))
	}
	return errs
}

// Default returns the demo mission: a six waypoint route over a generated 800x600 map ending
// on the landing pad.
func Default() *Config {
	lm := landmark.DefaultConfig()
	lm.ReferenceScales = []float64{1, 2, 4}
	return &Config{
		Matcher:  keypoints.DefaultMatcherConfig(),
		Odometry: odometry.DefaultMotionEstimationConfig(),
		Landmark: lm,
		Navigation: NavigationConfig{
			Config: navigation.DefaultConfig(),
			Waypoints: []WaypointConfig{
				{Name: "start", X: 100, Y: 100},
				{X: 300, Y: 100},
				{X: 300, Y: 300},
				{X: 500, Y: 300},
				{X: 500, Y: 380},
				{Name: "pad", X: 500, Y: 400},
			},
		},
		Mission: mission.DefaultConfig(),
		Vehicle: sim.DefaultVehicleConfig(),
		Sim: SimConfig{
			RunnerConfig: sim.DefaultRunnerConfig(),
			MapWidth:     800,
			MapHeight:    600,
			LandmarkSize: 120,
			Seed:         7,
		},
	}
}

// Validate ensures all parts of the config are valid. Every problem is reported, not just the
// first.
func (c *Config) Validate() error {
	var errs error
	errs = multierr.Append(errs, c.Matcher.Validate("matcher"))
	errs = multierr.Append(errs, c.Odometry.Validate("odometry"))
	errs = multierr.Append(errs, c.Landmark.Validate("landmark"))
	errs = multierr.Append(errs, c.Navigation.Validate("navigation"))
	errs = multierr.Append(errs, c.Mission.Validate("mission"))
	errs = multierr.Append(errs, c.Vehicle.Validate("vehicle"))
	errs = multierr.Append(errs, c.Sim.Validate("sim"))
	errs = multierr.Append(errs, c.Log.Validate("log"))
	if c.Mission.MinAltitude < c.Vehicle.MinAltitude {
		errs = multierr.Append(errs, utils.NewConfigValidationError("mission",
			errors.Errorf("min_altitude %v is below the vehicle floor %v", c.Mission.MinAltitude, c.Vehicle.MinAltitude)))
	}
	return errs
}

// LandmarkPosition returns where the landing pad lies on the map.
func (c *Config) LandmarkPosition(waypoints []navigation.Waypoint) r2.Point {
	if c.Sim.LandmarkPosition != nil {
		return c.Sim.LandmarkPosition.R2()
	}
	if len(waypoints) == 0 {
		return r2.Point{}
	}
	return waypoints[len(waypoints)-1].Position
}
