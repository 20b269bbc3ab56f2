package keypoints

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/rimage"
)

// MatcherConfig bundles the extraction and matching parameters.
type MatcherConfig struct {
	ORB      *ORBConfig      `json:"orb"`
	Matching *MatchingConfig `json:"matching"`
}

// DefaultMatcherConfig returns the default ORB and ratio-test parameters.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{ORB: DefaultORBConfig(), Matching: DefaultMatchingConfig()}
}

// Validate ensures all parts of the MatcherConfig are valid.
func (config *MatcherConfig) Validate(path string) error {
	var errs error
	if config.ORB == nil {
		errs = multierr.Append(errs, errors.Errorf("%s: orb config is required", path))
	} else {
		errs = multierr.Append(errs, config.ORB.Validate(path+".orb"))
	}
	if config.Matching == nil {
		errs = multierr.Append(errs, errors.Errorf("%s: matching config is required", path))
	} else {
		errs = multierr.Append(errs, config.Matching.Validate(path+".matching"))
	}
	return errs
}

// Features are the keypoints and descriptors extracted from one image.
type Features struct {
	KeyPoints   KeyPoints
	Descriptors []Descriptor
	// Size is the source image size.
	Size image.Point
}

// Len returns the number of extracted features.
func (f *Features) Len() int {
	if f == nil {
		return 0
	}
	return len(f.KeyPoints)
}

// MatchResult holds the good matches between a query and a train image.
type MatchResult struct {
	Query   *Features
	Train   *Features
	Matches []Match
}

// Points returns the matched locations, query side first.
func (r *MatchResult) Points() ([]r2.Point, []r2.Point) {
	pts1, pts2, err := GetMatchingKeyPoints(r.Matches, r.Query.KeyPoints, r.Train.KeyPoints)
	if err != nil {
		return nil, nil
	}
	return pts1, pts2
}

// Matcher extracts ORB features and matches them with a fixed BRIEF sampling pattern, so
// descriptors from different calls are comparable.
type Matcher struct {
	cfg         MatcherConfig
	samplePairs *SamplePairs
	logger      logging.Logger
}

// NewMatcher validates the config and draws the BRIEF sampling pattern.
func NewMatcher(cfg MatcherConfig, logger logging.Logger) (*Matcher, error) {
	if err := cfg.Validate("matcher"); err != nil {
		return nil, err
	}
	brief := cfg.ORB.BRIEFConf
	return &Matcher{
		cfg:         cfg,
		samplePairs: GenerateSamplePairs(brief.Sampling, brief.N, brief.PatchSize, brief.Seed),
		logger:      logger,
	}, nil
}

// Config returns the matcher configuration.
func (m *Matcher) Config() MatcherConfig {
	return m.cfg
}

// Detect extracts features from img. A nil or zero-sized image is an error; an image without
// corners gives empty features.
func (m *Matcher) Detect(img image.Image) (*Features, error) {
	if rimage.IsEmpty(img) {
		return nil, rimage.ErrEmptyImage
	}
	gray := rimage.MakeGray(img)
	descs, kps, err := ComputeORBKeypoints(gray, m.samplePairs, m.cfg.ORB)
	if err != nil {
		return nil, errors.Wrap(err, "cannot compute ORB features")
	}
	m.logger.Debugw("extracted features", "keypoints", len(kps))
	return &Features{KeyPoints: kps, Descriptors: descs, Size: gray.Bounds().Size()}, nil
}

// Match returns the good matches between query and train features. Missing or empty features
// on either side give no matches.
func (m *Matcher) Match(query, train *Features) []Match {
	if query.Len() == 0 || train.Len() == 0 {
		return []Match{}
	}
	matches, err := MatchDescriptors(query.Descriptors, train.Descriptors, m.cfg.Matching)
	if err != nil {
		m.logger.Warnw("descriptor matching failed", "error", err)
		return []Match{}
	}
	return matches
}

// MatchImages extracts features from both images and matches them.
func (m *Matcher) MatchImages(query, train image.Image) (*MatchResult, error) {
	qf, err := m.Detect(query)
	if err != nil {
		return nil, err
	}
	tf, err := m.Detect(train)
	if err != nil {
		return nil, err
	}
	return &MatchResult{Query: qf, Train: tf, Matches: m.Match(qf, tf)}, nil
}
