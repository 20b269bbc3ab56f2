package odometry

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestTrack(t *testing.T) {
	track := NewTrack(TrackConfig{Window: 2, MinConfidence: 0.3})
	_, ok := track.Smoothed()
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, track.Add(Estimate{DX: 1, DY: 2, Confidence: 0.9, Valid: true}), test.ShouldBeTrue)
	test.That(t, track.Add(Estimate{DX: 100, DY: 100, Confidence: 0.3, Valid: true}), test.ShouldBeFalse)
	test.That(t, track.Add(NoEstimate()), test.ShouldBeFalse)
	test.That(t, track.Add(Estimate{DX: 3, DY: 4, Confidence: 0.5, Valid: true}), test.ShouldBeTrue)
	test.That(t, track.Add(Estimate{DX: 5, DY: 6, Confidence: 1, Valid: true}), test.ShouldBeTrue)

	smoothed, ok := track.Smoothed()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, smoothed, test.ShouldResemble, r2.Point{X: 4, Y: 5})
	// content moving right and down means the vehicle moved left and up
	test.That(t, track.Position(), test.ShouldResemble, r2.Point{X: -9, Y: -12})
	test.That(t, track.Accepted(), test.ShouldEqual, 3)

	track.Reset()
	_, ok = track.Smoothed()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, track.Position(), test.ShouldResemble, r2.Point{})
	test.That(t, track.Accepted(), test.ShouldEqual, 0)
}

func TestTrackDefaults(t *testing.T) {
	cfg := DefaultTrackConfig()
	test.That(t, cfg.Window, test.ShouldEqual, 10)
	test.That(t, cfg.MinConfidence, test.ShouldEqual, 0.3)
	// a zero window still keeps the latest estimate
	track := NewTrack(TrackConfig{})
	track.Add(Estimate{DX: 2, Confidence: 0.1, Valid: true})
	smoothed, ok := track.Smoothed()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, smoothed.X, test.ShouldEqual, 2.0)
}
