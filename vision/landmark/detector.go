// Package landmark locates a known reference image (the landing pad) inside camera frames.
package landmark

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/rimage"
	"github.com/openaerial/visnav/rimage/transform"
	"github.com/openaerial/visnav/vision/keypoints"
)

// ErrNoReferenceFeatures is returned when the reference image has no usable features.
var ErrNoReferenceFeatures = errors.New("no features detected in landmark image")

// Config holds the landmark detection parameters.
type Config struct {
	// VisibilityThreshold is the confidence at or above which the landmark counts as found.
	VisibilityThreshold float64 `json:"visibility_threshold"`
	// MatchCeiling is the good match count at which confidence saturates at 1.
	MatchCeiling float64 `json:"match_ceiling"`
	// MinHomographyMatches is the match count needed to project the reference outline. A fit
	// also needs at least this many inliers.
	MinHomographyMatches int `json:"min_homography_matches"`
	// MinInlierRatio is the share of matches a fit must explain before its outline is used.
	MinInlierRatio float64 `json:"min_inlier_ratio"`
	// ReferenceScales are the magnifications at which the reference is matched. The scale with
	// the most good matches wins, which keeps a close-up landmark detectable.
	ReferenceScales []float64              `json:"reference_scales,omitempty"`
	RANSAC          transform.RANSACConfig `json:"ransac"`
}

// DefaultConfig returns a 0.6 visibility threshold with confidence saturating at 20 matches.
func DefaultConfig() Config {
	return Config{
		VisibilityThreshold:  0.6,
		MatchCeiling:         20,
		MinHomographyMatches: 4,
		MinInlierRatio:       0.5,
		ReferenceScales:      []float64{1},
		RANSAC:               transform.DefaultRANSACConfig(),
	}
}

// Validate ensures all parts of the Config are valid.
func (config *Config) Validate(path string) error {
	var errs error
	if config.VisibilityThreshold <= 0 || config.VisibilityThreshold > 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.New("visibility_threshold should be in (0, 1]")))
	}
	if config.MatchCeiling <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("match_ceiling should be > 0")))
	}
	if config.MinHomographyMatches < 4 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.New("min_homography_matches should be >= 4")))
	}
	if config.MinInlierRatio < 0 || config.MinInlierRatio > 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("min_inlier_ratio should be in [0, 1]")))
	}
	for _, scale := range config.ReferenceScales {
		if scale <= 0 {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Errorf("reference_scales entries should be > 0, got %v", scale)))
		}
	}
	return multierr.Append(errs, config.RANSAC.Validate(path+".ransac"))
}

// Detection is the outcome of looking for the landmark in one frame. When Found is false the
// other fields may still describe a weak candidate but must not be acted upon.
type Detection struct {
	Found       bool            `json:"found"`
	Center      r2.Point        `json:"center"`
	Confidence  float64         `json:"confidence"`
	BoundingBox image.Rectangle `json:"bounding_box"`
	// Corners is the projected reference outline, set when Projected is true.
	Corners   []r2.Point `json:"corners,omitempty"`
	Matches   int        `json:"matches"`
	Projected bool       `json:"projected"`
	// Scale is the reference magnification that matched best.
	Scale float64 `json:"scale,omitempty"`
}

// NotFound is the detection reported when nothing matched.
func NotFound() Detection {
	return Detection{}
}

// scaledReference is the reference features at one magnification. Keypoints stay in scaled
// pixels; corners are the scaled outline.
type scaledReference struct {
	scale    float64
	features *keypoints.Features
	corners  []r2.Point
}

// Detector matches frames against a reference image whose features are computed once.
type Detector struct {
	matcher    *keypoints.Matcher
	references []scaledReference
	size       image.Point
	cfg        Config
	logger     logging.Logger
}

// NewDetector extracts the reference features at every configured scale. A reference without
// features is an error since nothing could ever be found.
func NewDetector(reference image.Image, matcher *keypoints.Matcher, cfg Config, logger logging.Logger) (*Detector, error) {
	if matcher == nil {
		return nil, errors.New("landmark detection needs a feature matcher")
	}
	if err := cfg.Validate("landmark"); err != nil {
		return nil, err
	}
	if rimage.IsEmpty(reference) {
		return nil, errors.Wrap(rimage.ErrEmptyImage, "cannot process landmark image")
	}
	scales := cfg.ReferenceScales
	if len(scales) == 0 {
		scales = []float64{1}
	}
	size := reference.Bounds().Size()
	d := &Detector{matcher: matcher, size: size, cfg: cfg, logger: logger}
	for _, scale := range scales {
		img := reference
		if scale != 1 {
			w := int(math.Round(float64(size.X) * scale))
			h := int(math.Round(float64(size.Y) * scale))
			if w < 1 || h < 1 {
				continue
			}
			img = imaging.Resize(reference, w, h, imaging.Linear)
		}
		features, err := matcher.Detect(img)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot process landmark image at scale %v", scale)
		}
		if features.Len() == 0 {
			logger.Debugw("no landmark features at scale", "scale", scale)
			continue
		}
		w, h := float64(features.Size.X), float64(features.Size.Y)
		d.references = append(d.references, scaledReference{
			scale:    scale,
			features: features,
			corners: []r2.Point{
				{X: 0, Y: 0},
				{X: w - 1, Y: 0},
				{X: w - 1, Y: h - 1},
				{X: 0, Y: h - 1},
			},
		})
		logger.Infow("landmark reference loaded", "scale", scale, "keypoints", features.Len(), "width", w, "height", h)
	}
	if len(d.references) == 0 {
		return nil, ErrNoReferenceFeatures
	}
	return d, nil
}

// ReferenceSize returns the size of the reference image.
func (d *Detector) ReferenceSize() image.Point {
	return d.size
}

// ReferenceFeatures returns the number of features over all reference scales.
func (d *Detector) ReferenceFeatures() int {
	n := 0
	for _, ref := range d.references {
		n += ref.features.Len()
	}
	return n
}

// Confidence maps a good match count to [0, 1], saturating at ceiling.
func Confidence(matches int, ceiling float64) float64 {
	if matches <= 0 || ceiling <= 0 {
		return 0
	}
	return math.Min(1, float64(matches)/ceiling)
}

// Detect looks for the landmark in frame. It never fails: unusable frames are reported as not
// found.
func (d *Detector) Detect(frame image.Image) Detection {
	if rimage.IsEmpty(frame) {
		return NotFound()
	}
	features, err := d.matcher.Detect(frame)
	if err != nil {
		d.logger.Debugw("cannot extract frame features", "error", err)
		return NotFound()
	}
	var (
		ref     scaledReference
		matches []keypoints.Match
	)
	for _, candidate := range d.references {
		if m := d.matcher.Match(candidate.features, features); len(m) > len(matches) {
			ref, matches = candidate, m
		}
	}
	if len(matches) == 0 {
		return NotFound()
	}
	refPts, framePts, err := keypoints.GetMatchingKeyPoints(matches, ref.features.KeyPoints, features.KeyPoints)
	if err != nil {
		d.logger.Debugw("inconsistent matches", "error", err)
		return NotFound()
	}

	det := Detection{
		Confidence: Confidence(len(matches), d.cfg.MatchCeiling),
		Matches:    len(matches),
		Scale:      ref.scale,
	}
	det.Found = det.Confidence >= d.cfg.VisibilityThreshold

	located := framePts
	if len(matches) >= d.cfg.MinHomographyMatches {
		corners, inliers, ok := d.project(ref, refPts, framePts)
		if ok {
			det.Corners = corners
			det.Center = centroid(corners)
			det.BoundingBox = boundingBox(corners)
			det.Projected = true
			return det
		}
		if len(inliers) >= d.cfg.MinHomographyMatches {
			located = inliers
		}
	}
	det.Center = centroid(located)
	det.BoundingBox = boundingBox(located)
	return det
}

// project maps the reference outline into the frame. The outline is only returned when the fit
// explains enough matches and the outline is a plausible view of the pad from above. The frame
// points that agree with the fit are returned whenever a fit exists.
func (d *Detector) project(ref scaledReference, refPts, framePts []r2.Point) ([]r2.Point, []r2.Point, bool) {
	fit, err := transform.EstimateHomographyRANSAC(refPts, framePts, d.cfg.RANSAC)
	if err != nil {
		d.logger.Debugw("landmark homography fit failed", "matches", len(refPts), "error", err)
		return nil, nil, false
	}
	inliers := make([]r2.Point, 0, fit.NumInliers)
	for i, in := range fit.Inliers {
		if in {
			inliers = append(inliers, framePts[i])
		}
	}
	if fit.NumInliers < d.cfg.MinHomographyMatches || float64(fit.NumInliers) < d.cfg.MinInlierRatio*float64(len(framePts)) {
		d.logger.Debugw("landmark homography has too few inliers", "inliers", fit.NumInliers, "matches", len(framePts))
		return nil, inliers, false
	}
	corners, err := fit.H.ApplyAll(ref.corners)
	if err != nil {
		return nil, inliers, false
	}
	if err := checkOutline(corners, ref.corners, centroid(inliers)); err != nil {
		d.logger.Debugw("landmark outline rejected", "error", err, "corners", corners)
		return nil, inliers, false
	}
	return corners, inliers, true
}

func centroid(pts []r2.Point) r2.Point {
	c := r2.Point{}
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Mul(1 / float64(len(pts)))
}

func boundingBox(pts []r2.Point) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, minY = math.Min(minX, p.X), math.Min(minY, p.Y)
		maxX, maxY = math.Max(maxX, p.X), math.Max(maxY, p.Y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}
