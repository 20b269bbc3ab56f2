package keypoints

import (
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/rimage"
)

func TestHammingDistance(t *testing.T) {
	d, err := HammingDistance(Descriptor{0b1011, 0}, Descriptor{0b0001, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, 3)

	_, err = HammingDistance(Descriptor{1}, Descriptor{1, 2})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestKnnMatch(t *testing.T) {
	query := []Descriptor{{0b0000}, {0b1111}}
	train := []Descriptor{{0b0111}, {0b0001}, {0b1111}, {0b0011}}

	knn, err := KnnMatch(query, train, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, knn, test.ShouldHaveLength, 2)
	test.That(t, knn[0], test.ShouldResemble, []Match{
		{QueryIdx: 0, TrainIdx: 1, Distance: 1},
		{QueryIdx: 0, TrainIdx: 3, Distance: 2},
	})
	test.That(t, knn[1], test.ShouldResemble, []Match{
		{QueryIdx: 1, TrainIdx: 2, Distance: 0},
		{QueryIdx: 1, TrainIdx: 0, Distance: 1},
	})

	// ties keep the lower train index first
	knn, err = KnnMatch([]Descriptor{{0}}, []Descriptor{{1}, {2}, {4}}, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, knn[0][0].TrainIdx, test.ShouldEqual, 0)
	test.That(t, knn[0][1].TrainIdx, test.ShouldEqual, 1)

	knn, err = KnnMatch(query, train[:1], 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, knn[0], test.ShouldHaveLength, 1)
}

func TestRatioTest(t *testing.T) {
	knn := [][]Match{
		{{QueryIdx: 0, TrainIdx: 1, Distance: 10}, {QueryIdx: 0, TrainIdx: 2, Distance: 100}},
		{{QueryIdx: 1, TrainIdx: 3, Distance: 70}, {QueryIdx: 1, TrainIdx: 2, Distance: 100}},
		{{QueryIdx: 2, TrainIdx: 0, Distance: 0}, {QueryIdx: 2, TrainIdx: 4, Distance: 0}},
		{{QueryIdx: 3, TrainIdx: 0, Distance: 5}},
	}
	good := RatioTest(knn, 0.7)
	// 70 < 0.7 * 100 is false: the comparison is strict
	test.That(t, good, test.ShouldResemble, []Match{{QueryIdx: 0, TrainIdx: 1, Distance: 10}})
	test.That(t, RatioTest(knn, 0.71), test.ShouldHaveLength, 2)
	test.That(t, RatioTest(nil, 0.7), test.ShouldBeEmpty)
}

func TestRatioTestMonotonic(t *testing.T) {
	m, err := NewMatcher(DefaultMatcherConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	f1, err := m.Detect(rimage.GenerateTexture(240, 200, 80, 5))
	test.That(t, err, test.ShouldBeNil)
	f2, err := m.Detect(rimage.GenerateTexture(240, 200, 80, 6))
	test.That(t, err, test.ShouldBeNil)

	knn, err := KnnMatch(f1.Descriptors, f2.Descriptors, 2)
	test.That(t, err, test.ShouldBeNil)
	previous := 0
	for _, ratio := range []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 1.0} {
		n := len(RatioTest(knn, ratio))
		test.That(t, n, test.ShouldBeGreaterThanOrEqualTo, previous)
		previous = n
	}
}

func TestMatchDescriptors(t *testing.T) {
	query := []Descriptor{{0b0000}, {0b1111}, {0b1100}}
	train := []Descriptor{{0b1111}, {0b0000}, {0b0110_0000_0000}}

	matches, err := MatchDescriptors(query, train, DefaultMatchingConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, matches, test.ShouldHaveLength, 2)
	// sorted by distance, ties by query index
	test.That(t, matches[0], test.ShouldResemble, Match{QueryIdx: 0, TrainIdx: 1, Distance: 0})
	test.That(t, matches[1], test.ShouldResemble, Match{QueryIdx: 1, TrainIdx: 0, Distance: 0})

	empty, err := MatchDescriptors(nil, train, DefaultMatchingConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty, test.ShouldBeEmpty)
	empty, err = MatchDescriptors(query, []Descriptor{}, DefaultMatchingConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty, test.ShouldBeEmpty)

	capped, err := MatchDescriptors([]Descriptor{{0b0001}}, []Descriptor{{0b0000}, {0b1111_1111}}, &MatchingConfig{
		RatioThreshold: 0.7,
		MaxDist:        1,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, capped, test.ShouldBeEmpty)
}

func TestGetMatchingKeyPoints(t *testing.T) {
	kps1 := KeyPoints{{Point: r2.Point{X: 1, Y: 1}}, {Point: r2.Point{X: 2, Y: 2}}}
	kps2 := KeyPoints{{Point: r2.Point{X: 10, Y: 10}}, {Point: r2.Point{X: 20, Y: 20}}, {Point: r2.Point{X: 30, Y: 30}}}
	pts1, pts2, err := GetMatchingKeyPoints([]Match{{QueryIdx: 1, TrainIdx: 2}}, kps1, kps2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pts1, test.ShouldResemble, []r2.Point{{X: 2, Y: 2}})
	test.That(t, pts2, test.ShouldResemble, []r2.Point{{X: 30, Y: 30}})

	_, _, err = GetMatchingKeyPoints([]Match{{QueryIdx: 0, TrainIdx: 5}}, kps1, kps2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMatcherIdenticalImages(t *testing.T) {
	m, err := NewMatcher(DefaultMatcherConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	img := rimage.GenerateTexture(320, 240, 80, 21)

	res, err := m.MatchImages(img, img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(res.Matches), test.ShouldBeGreaterThan, 20)
	for _, match := range res.Matches {
		test.That(t, match.Distance, test.ShouldEqual, 0)
		test.That(t, match.TrainIdx, test.ShouldEqual, match.QueryIdx)
	}
	pts1, pts2 := res.Points()
	test.That(t, pts1, test.ShouldResemble, pts2)
}

func TestMatcherFeaturelessAndEmpty(t *testing.T) {
	m, err := NewMatcher(DefaultMatcherConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	blank := image.NewGray(image.Rect(0, 0, 200, 200))
	for i := range blank.Pix {
		blank.Pix[i] = 90
	}
	features, err := m.Detect(blank)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, features.Len(), test.ShouldEqual, 0)

	textured, err := m.Detect(rimage.GenerateTexture(200, 200, 60, 2))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Match(features, textured), test.ShouldBeEmpty)
	test.That(t, m.Match(textured, nil), test.ShouldBeEmpty)

	_, err = m.Detect(nil)
	test.That(t, err, test.ShouldBeError, rimage.ErrEmptyImage)
	_, err = m.Detect(image.NewRGBA(image.Rectangle{}))
	test.That(t, err, test.ShouldBeError, rimage.ErrEmptyImage)
}

func TestNewMatcherRejectsBadConfig(t *testing.T) {
	cfg := DefaultMatcherConfig()
	cfg.Matching = &MatchingConfig{RatioThreshold: 1.5}
	_, err := NewMatcher(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewMatcher(MatcherConfig{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlotting(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 50, 40))
	img.SetGray(10, 10, color.Gray{255})
	out := PlotKeypoints(img, KeyPoints{{Point: r2.Point{X: 10, Y: 10}}})
	test.That(t, out.Bounds(), test.ShouldResemble, img.Bounds())

	side := PlotMatchedLines(img, img, []r2.Point{{X: 1, Y: 1}}, []r2.Point{{X: 2, Y: 2}})
	test.That(t, side.Bounds().Dx(), test.ShouldEqual, 100)
	test.That(t, side.Bounds().Dy(), test.ShouldEqual, 40)
}
