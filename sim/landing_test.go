package sim

import (
	"context"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/mission"
	"github.com/openaerial/visnav/navigation"
	"github.com/openaerial/visnav/vision/keypoints"
	"github.com/openaerial/visnav/vision/landmark"
	"github.com/openaerial/visnav/vision/odometry"
)

// TestVisualLandingOnGeneratedWorld flies a route that ends on the pad with the real detector
// and odometry on rendered frames. The pad is too small to match from the start altitude, so the
// vehicle has to descend over the final waypoint before it can see it.
func TestVisualLandingOnGeneratedWorld(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the full vision pipeline on every tick")
	}
	logger := logging.NewTestLogger(t)
	padAt := r2.Point{X: 400, Y: 300}
	world, err := NewWorld(GenerateTerrain(800, 600, 7), GenerateLandmark(120, 8), padAt)
	test.That(t, err, test.ShouldBeNil)

	matcher, err := keypoints.NewMatcher(keypoints.DefaultMatcherConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	lmCfg := landmark.DefaultConfig()
	lmCfg.ReferenceScales = []float64{1, 2, 4}
	detector, err := landmark.NewDetector(world.Landmark(), matcher, lmCfg, logger)
	test.That(t, err, test.ShouldBeNil)
	estimator, err := odometry.NewEstimator(matcher, odometry.DefaultMotionEstimationConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	nav, err := navigation.NewController(
		[]navigation.Waypoint{navigation.NewWaypoint(340, 300), navigation.NewWaypoint(padAt.X, padAt.Y)},
		navigation.DefaultConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	machine, err := mission.NewMachine(nav, detector, estimator, mission.DefaultConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	vehicle, err := NewVehicle(DefaultVehicleConfig(), world.Size())
	test.That(t, err, test.ShouldBeNil)

	cfg := DefaultRunnerConfig()
	cfg.MaxTicks = 400
	rec := &Recorder{}
	r, err := NewRunner(world, machine, vehicle, rec, cfg, logger)
	test.That(t, err, test.ShouldBeNil)

	res, err := r.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Completed, test.ShouldBeTrue)
	test.That(t, res.Final.Message, test.ShouldEqual, "landed")
	test.That(t, res.Final.Pose.Altitude, test.ShouldAlmostEqual, 5)
	test.That(t, res.Final.Pose.Point().Sub(padAt).Norm(), test.ShouldBeLessThan, 10)

	detected := false
	for _, st := range rec.Statuses() {
		if st.Detection.Found {
			detected = true
			break
		}
	}
	test.That(t, detected, test.ShouldBeTrue)
}
