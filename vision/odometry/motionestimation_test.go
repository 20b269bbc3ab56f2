package odometry

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/rimage"
	"github.com/openaerial/visnav/vision/keypoints"
)

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	logger := logging.NewTestLogger(t)
	matcher, err := keypoints.NewMatcher(keypoints.DefaultMatcherConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	est, err := NewEstimator(matcher, DefaultMotionEstimationConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	return est
}

func crop(img image.Image, r image.Rectangle) image.Image {
	return img.(interface {
		SubImage(image.Rectangle) image.Image
	}).SubImage(r)
}

func blankFrame(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 140
	}
	return img
}

func TestIdenticalFrames(t *testing.T) {
	est := newTestEstimator(t)
	frame := rimage.GenerateTexture(320, 240, 90, 4)

	res, err := est.EstimateMotion(frame, frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Valid, test.ShouldBeTrue)
	test.That(t, res.Matches, test.ShouldBeGreaterThanOrEqualTo, 5)
	test.That(t, res.Confidence, test.ShouldEqual, Confidence(res.Matches, 100))
	test.That(t, res.DX, test.ShouldAlmostEqual, 0, 1e-3)
	test.That(t, res.DY, test.ShouldAlmostEqual, 0, 1e-3)
	test.That(t, est.HasPrevious(), test.ShouldBeFalse)
}

func TestShiftedFrames(t *testing.T) {
	est := newTestEstimator(t)
	world := rimage.GenerateTexture(420, 320, 140, 9)
	prev := crop(world, image.Rect(20, 20, 340, 260))
	curr := crop(world, image.Rect(28, 25, 348, 265))

	res, err := est.EstimateMotion(prev, curr)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Valid, test.ShouldBeTrue)
	// content moves opposite to the camera
	test.That(t, res.DX, test.ShouldAlmostEqual, -8, 0.5)
	test.That(t, res.DY, test.ShouldAlmostEqual, -5, 0.5)
	test.That(t, res.Inliers, test.ShouldBeGreaterThanOrEqualTo, 4)
	test.That(t, res.Inliers, test.ShouldBeLessThanOrEqualTo, res.Matches)
}

func TestFeaturelessFrames(t *testing.T) {
	est := newTestEstimator(t)
	res, err := est.EstimateMotion(blankFrame(320, 240), blankFrame(320, 240))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Valid, test.ShouldBeFalse)
	test.That(t, res.Confidence, test.ShouldEqual, 0)
	test.That(t, res, test.ShouldResemble, NoEstimate())

	// one textured frame is not enough either
	res, err = est.EstimateMotion(rimage.GenerateTexture(320, 240, 90, 4), blankFrame(320, 240))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Valid, test.ShouldBeFalse)
}

func TestUpdateUsesPreviousFrame(t *testing.T) {
	est := newTestEstimator(t)
	frame := rimage.GenerateTexture(320, 240, 90, 4)

	test.That(t, est.Update(frame).Valid, test.ShouldBeFalse)
	test.That(t, est.HasPrevious(), test.ShouldBeTrue)

	second := est.Update(frame)
	test.That(t, second.Valid, test.ShouldBeTrue)
	test.That(t, second.DX, test.ShouldAlmostEqual, 0, 1e-3)

	est.Reset()
	test.That(t, est.HasPrevious(), test.ShouldBeFalse)
	test.That(t, est.Update(frame).Valid, test.ShouldBeFalse)

	// an unusable frame drops the cache
	test.That(t, est.Update(nil).Valid, test.ShouldBeFalse)
	test.That(t, est.HasPrevious(), test.ShouldBeFalse)
}

func TestEmptyInput(t *testing.T) {
	est := newTestEstimator(t)
	_, err := est.EstimateMotion(nil, blankFrame(10, 10))
	test.That(t, err, test.ShouldBeError, rimage.ErrEmptyImage)
	_, err = est.EstimateMotion(blankFrame(10, 10), image.NewGray(image.Rectangle{}))
	test.That(t, err, test.ShouldBeError, rimage.ErrEmptyImage)
}

func TestConfidence(t *testing.T) {
	test.That(t, Confidence(0, 100), test.ShouldEqual, 0)
	test.That(t, Confidence(50, 100), test.ShouldEqual, 0.5)
	test.That(t, Confidence(100, 100), test.ShouldEqual, 1)
	test.That(t, Confidence(250, 100), test.ShouldEqual, 1)
	test.That(t, Confidence(10, 0), test.ShouldEqual, 0)
}

func TestMotionEstimationConfig(t *testing.T) {
	cfg := DefaultMotionEstimationConfig()
	test.That(t, cfg.Validate("odometry"), test.ShouldBeNil)

	path := filepath.Join(t.TempDir(), "odometry.json")
	test.That(t, os.WriteFile(path, []byte(`{"min_matches": 8}`), 0o600), test.ShouldBeNil)
	loaded, err := LoadMotionEstimationConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.MinMatches, test.ShouldEqual, 8)
	test.That(t, loaded.ConfidenceCeiling, test.ShouldEqual, 100)

	test.That(t, os.WriteFile(path, []byte(`{"min_matches": 2, "confidence_ceiling": -1}`), 0o600), test.ShouldBeNil)
	_, err = LoadMotionEstimationConfig(path)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewEstimator(nil, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
