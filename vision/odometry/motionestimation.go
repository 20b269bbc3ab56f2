// Package odometry estimates frame to frame image motion from matched ORB features.
package odometry

import (
	"encoding/json"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/rimage"
	"github.com/openaerial/visnav/rimage/transform"
	"github.com/openaerial/visnav/vision/keypoints"
)

// MotionEstimationConfig contains the parameters needed for motion estimation between two video
// frames.
type MotionEstimationConfig struct {
	// MinMatches is the number of good matches below which no estimate is produced.
	MinMatches int `json:"min_matches"`
	// ConfidenceCeiling is the match count at which confidence saturates at 1.
	ConfidenceCeiling float64                `json:"confidence_ceiling"`
	RANSAC            transform.RANSACConfig `json:"ransac"`
}

// DefaultMotionEstimationConfig returns 5 minimum matches and a ceiling of 100.
func DefaultMotionEstimationConfig() MotionEstimationConfig {
	return MotionEstimationConfig{
		MinMatches:        5,
		ConfidenceCeiling: 100,
		RANSAC:            transform.DefaultRANSACConfig(),
	}
}

// LoadMotionEstimationConfig loads a motion estimation configuration from a json file. Missing
// fields keep their defaults.
func LoadMotionEstimationConfig(path string) (*MotionEstimationConfig, error) {
	config := DefaultMotionEstimationConfig()
	configFile, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	if err := json.NewDecoder(configFile).Decode(&config); err != nil {
		return nil, errors.Wrapf(err, "cannot parse motion estimation config %q", path)
	}
	if err := config.Validate(path); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate ensures all parts of the config are valid.
func (config *MotionEstimationConfig) Validate(path string) error {
	var errs error
	if config.MinMatches < 4 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.New("min_matches should be >= 4 for a homography fit")))
	}
	if config.ConfidenceCeiling <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("confidence_ceiling should be > 0")))
	}
	return multierr.Append(errs, config.RANSAC.Validate(path+".ransac"))
}

// Estimate is the image displacement between two consecutive frames. Valid is false when no
// estimate could be made; DX, DY and Confidence are then zero.
type Estimate struct {
	DX         float64 `json:"dx"`
	DY         float64 `json:"dy"`
	Confidence float64 `json:"confidence"`
	Matches    int     `json:"matches"`
	Inliers    int     `json:"inliers"`
	Valid      bool    `json:"valid"`
}

// NoEstimate returns the estimate reported when motion cannot be measured.
func NoEstimate() Estimate {
	return Estimate{}
}

// Estimator turns pairs of frames into displacement estimates. It caches the most recent frame's
// features, and nothing older.
type Estimator struct {
	matcher *keypoints.Matcher
	cfg     MotionEstimationConfig
	logger  logging.Logger

	prev *keypoints.Features
}

// NewEstimator returns an estimator with an empty frame cache.
func NewEstimator(matcher *keypoints.Matcher, cfg MotionEstimationConfig, logger logging.Logger) (*Estimator, error) {
	if matcher == nil {
		return nil, errors.New("odometry needs a feature matcher")
	}
	if err := cfg.Validate("odometry"); err != nil {
		return nil, err
	}
	return &Estimator{matcher: matcher, cfg: cfg, logger: logger}, nil
}

// EstimateMotion estimates the displacement between prev and curr without touching the cache.
func (e *Estimator) EstimateMotion(prev, curr image.Image) (Estimate, error) {
	if rimage.IsEmpty(prev) || rimage.IsEmpty(curr) {
		return NoEstimate(), rimage.ErrEmptyImage
	}
	pf, err := e.matcher.Detect(prev)
	if err != nil {
		return NoEstimate(), err
	}
	cf, err := e.matcher.Detect(curr)
	if err != nil {
		return NoEstimate(), err
	}
	return e.estimateFromFeatures(pf, cf), nil
}

// Update estimates the displacement between the cached frame and curr, then caches curr. The
// first call after construction or Reset has nothing to compare against and returns
// NoEstimate. A frame that cannot be processed clears the cache.
func (e *Estimator) Update(curr image.Image) Estimate {
	cf, err := e.matcher.Detect(curr)
	if err != nil {
		e.logger.Debugw("cannot extract features from frame", "error", err)
		e.prev = nil
		return NoEstimate()
	}
	prev := e.prev
	e.prev = cf
	if prev == nil {
		return NoEstimate()
	}
	return e.estimateFromFeatures(prev, cf)
}

// Reset clears the cached previous frame.
func (e *Estimator) Reset() {
	e.prev = nil
}

// HasPrevious reports whether a previous frame is cached.
func (e *Estimator) HasPrevious() bool {
	return e.prev != nil
}

func (e *Estimator) estimateFromFeatures(prev, curr *keypoints.Features) Estimate {
	matches := e.matcher.Match(prev, curr)
	if len(matches) < e.cfg.MinMatches {
		e.logger.Debugw("not enough matches for odometry", "matches", len(matches), "required", e.cfg.MinMatches)
		return NoEstimate()
	}
	src, dst, err := keypoints.GetMatchingKeyPoints(matches, prev.KeyPoints, curr.KeyPoints)
	if err != nil {
		e.logger.Debugw("inconsistent matches", "error", err)
		return NoEstimate()
	}
	fit, err := transform.EstimateHomographyRANSAC(src, dst, e.cfg.RANSAC)
	if err != nil {
		e.logger.Debugw("homography fit failed", "matches", len(matches), "error", err)
		return NoEstimate()
	}
	t := fit.H.Translation()
	return Estimate{
		DX:         t.X,
		DY:         t.Y,
		Confidence: Confidence(len(matches), e.cfg.ConfidenceCeiling),
		Matches:    len(matches),
		Inliers:    fit.NumInliers,
		Valid:      true,
	}
}

// Confidence maps a good match count to [0, 1], saturating at ceiling.
func Confidence(matches int, ceiling float64) float64 {
	if matches <= 0 || ceiling <= 0 {
		return 0
	}
	return math.Min(1, float64(matches)/ceiling)
}
