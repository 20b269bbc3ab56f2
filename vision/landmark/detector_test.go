package landmark

import (
	"image"
	"image/draw"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/rimage"
	"github.com/openaerial/visnav/vision/keypoints"
)

func newTestDetector(t *testing.T, reference image.Image) (*Detector, error) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	matcher, err := keypoints.NewMatcher(keypoints.DefaultMatcherConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	return NewDetector(reference, matcher, DefaultConfig(), logger)
}

func uniformFrame(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 120
	}
	return img
}

func pasteAt(frame draw.Image, patch image.Image, at image.Point) {
	r := patch.Bounds().Sub(patch.Bounds().Min).Add(at)
	draw.Draw(frame, r, patch, patch.Bounds().Min, draw.Src)
}

func TestDetectPastedLandmark(t *testing.T) {
	reference := rimage.GenerateTexture(160, 160, 70, 21)
	det, err := newTestDetector(t, reference)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, det.ReferenceSize(), test.ShouldResemble, image.Pt(160, 160))
	test.That(t, det.ReferenceFeatures(), test.ShouldBeGreaterThan, 0)

	frame := uniformFrame(400, 300)
	pasteAt(frame, reference, image.Pt(150, 80))

	got := det.Detect(frame)
	test.That(t, got.Found, test.ShouldBeTrue)
	test.That(t, got.Projected, test.ShouldBeTrue)
	test.That(t, got.Scale, test.ShouldEqual, 1.0)
	test.That(t, got.Corners, test.ShouldHaveLength, 4)
	test.That(t, got.Confidence, test.ShouldEqual, Confidence(got.Matches, 20))
	test.That(t, got.Center.X, test.ShouldAlmostEqual, 150+79.5, 3)
	test.That(t, got.Center.Y, test.ShouldAlmostEqual, 80+79.5, 3)
	test.That(t, got.BoundingBox.Min.X, test.ShouldAlmostEqual, 150, 4)
	test.That(t, got.BoundingBox.Max.Y, test.ShouldAlmostEqual, 240, 4)
}

func TestDetectMagnifiedLandmark(t *testing.T) {
	reference := rimage.GenerateTexture(120, 120, 50, 5)
	logger := logging.NewTestLogger(t)
	matcher, err := keypoints.NewMatcher(keypoints.DefaultMatcherConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	cfg := DefaultConfig()
	cfg.ReferenceScales = []float64{1, 2}
	det, err := NewDetector(reference, matcher, cfg, logger)
	test.That(t, err, test.ShouldBeNil)

	frame := uniformFrame(400, 300)
	pasteAt(frame, imaging.Resize(reference, 240, 240, imaging.Linear), image.Pt(80, 30))

	got := det.Detect(frame)
	test.That(t, got.Found, test.ShouldBeTrue)
	test.That(t, got.Scale, test.ShouldEqual, 2.0)
	test.That(t, got.Center.X, test.ShouldAlmostEqual, 80+119.5, 3)
	test.That(t, got.Center.Y, test.ShouldAlmostEqual, 30+119.5, 3)
}

func TestDetectBlankFrame(t *testing.T) {
	det, err := newTestDetector(t, rimage.GenerateTexture(160, 160, 70, 21))
	test.That(t, err, test.ShouldBeNil)

	got := det.Detect(uniformFrame(400, 300))
	test.That(t, got.Found, test.ShouldBeFalse)
	test.That(t, got, test.ShouldResemble, NotFound())

	test.That(t, det.Detect(nil).Found, test.ShouldBeFalse)
}

func TestNewDetectorErrors(t *testing.T) {
	_, err := newTestDetector(t, uniformFrame(160, 160))
	test.That(t, err, test.ShouldBeError, ErrNoReferenceFeatures)

	_, err = newTestDetector(t, image.NewGray(image.Rectangle{}))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewDetector(uniformFrame(10, 10), nil, DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConfidence(t *testing.T) {
	for _, tc := range []struct {
		matches  int
		expected float64
	}{
		{0, 0},
		{10, 0.5},
		{12, 0.6},
		{20, 1},
		{50, 1},
	} {
		test.That(t, Confidence(tc.matches, 20), test.ShouldAlmostEqual, tc.expected)
	}
	cfg := DefaultConfig()
	test.That(t, Confidence(12, cfg.MatchCeiling) >= cfg.VisibilityThreshold, test.ShouldBeTrue)
	test.That(t, Confidence(11, cfg.MatchCeiling) >= cfg.VisibilityThreshold, test.ShouldBeFalse)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("landmark"), test.ShouldBeNil)
	cfg.VisibilityThreshold = 0
	cfg.MinHomographyMatches = 3
	cfg.ReferenceScales = []float64{1, -2}
	cfg.MinInlierRatio = 1.5
	err := cfg.Validate("landmark")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "visibility_threshold")
	test.That(t, err.Error(), test.ShouldContainSubstring, "min_homography_matches")
	test.That(t, err.Error(), test.ShouldContainSubstring, "reference_scales")
	test.That(t, err.Error(), test.ShouldContainSubstring, "min_inlier_ratio")
}

func TestFallbackGeometry(t *testing.T) {
	pts := []r2.Point{{X: 10, Y: 10}, {X: 20, Y: 30}, {X: 30, Y: 20}}
	c := centroid(pts)
	test.That(t, c.X, test.ShouldAlmostEqual, 20)
	test.That(t, c.Y, test.ShouldAlmostEqual, 20)
	test.That(t, boundingBox(pts), test.ShouldResemble, image.Rect(10, 10, 30, 30))
}
