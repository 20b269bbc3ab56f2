package cli

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/openaerial/visnav/config"
	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/mission"
	"github.com/openaerial/visnav/navigation"
	"github.com/openaerial/visnav/sim"
	"github.com/openaerial/visnav/vision/keypoints"
	"github.com/openaerial/visnav/vision/landmark"
	"github.com/openaerial/visnav/vision/odometry"
)

// pipeline is everything a simulated mission needs, built from one config.
type pipeline struct {
	waypoints []navigation.Waypoint
	world     *sim.World
	vehicle   *sim.Vehicle
	machine   *mission.Machine
}

func loadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open image %q", path)
	}
	return img, nil
}

func newWorld(cfg *config.Config, landmarkAt r2.Point) (*sim.World, error) {
	var terrain, pad image.Image
	var err error
	if cfg.Sim.MapPath != "" {
		if terrain, err = loadImage(cfg.Sim.MapPath); err != nil {
			return nil, err
		}
	} else {
		terrain = sim.GenerateTerrain(cfg.Sim.MapWidth, cfg.Sim.MapHeight, cfg.Sim.Seed)
	}
	if cfg.Sim.LandmarkPath != "" {
		if pad, err = loadImage(cfg.Sim.LandmarkPath); err != nil {
			return nil, err
		}
	} else {
		pad = sim.GenerateLandmark(cfg.Sim.LandmarkSize, cfg.Sim.Seed+1)
	}
	return sim.NewWorld(terrain, pad, landmarkAt)
}

func newPipeline(cfg *config.Config, logger logging.Logger) (*pipeline, error) {
	waypoints, err := cfg.Navigation.Resolve()
	if err != nil {
		return nil, err
	}
	world, err := newWorld(cfg, cfg.LandmarkPosition(waypoints))
	if err != nil {
		return nil, err
	}
	matcher, err := keypoints.NewMatcher(cfg.Matcher, logger.Sublogger("matcher"))
	if err != nil {
		return nil, err
	}
	estimator, err := odometry.NewEstimator(matcher, cfg.Odometry, logger.Sublogger("odometry"))
	if err != nil {
		return nil, err
	}
	detector, err := landmark.NewDetector(world.Landmark(), matcher, cfg.Landmark, logger.Sublogger("landmark"))
	if err != nil {
		return nil, err
	}
	nav, err := navigation.NewController(waypoints, cfg.Navigation.Config, logger.Sublogger("navigation"))
	if err != nil {
		return nil, err
	}
	machine, err := mission.NewMachine(nav, detector, estimator, cfg.Mission, logger.Sublogger("mission"))
	if err != nil {
		return nil, err
	}
	vehicle, err := sim.NewVehicle(cfg.Vehicle, world.Size())
	if err != nil {
		return nil, err
	}
	return &pipeline{waypoints: waypoints, world: world, vehicle: vehicle, machine: machine}, nil
}
