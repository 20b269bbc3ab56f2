package keypoints

import (
	"encoding/json"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/rimage"
)

// ORBConfig contains the parameters / configs needed to compute ORB features.
type ORBConfig struct {
	NFeatures     int          `json:"n_features"`
	ScaleFactor   float64      `json:"scale_factor"`
	NLevels       int          `json:"n_levels"`
	EdgeThreshold int          `json:"edge_threshold"`
	FastConf      *FASTConfig  `json:"fast"`
	BRIEFConf     *BRIEFConfig `json:"brief"`
}

// DefaultORBConfig returns 2000 features over an 8 level pyramid with scale factor 1.2.
func DefaultORBConfig() *ORBConfig {
	return &ORBConfig{
		NFeatures:     2000,
		ScaleFactor:   1.2,
		NLevels:       8,
		EdgeThreshold: 31,
		FastConf:      DefaultFASTConfig(),
		BRIEFConf:     DefaultBRIEFConfig(),
	}
}

// LoadORBConfiguration loads a ORBConfig from a json file.
func LoadORBConfiguration(file string) (*ORBConfig, error) {
	config := DefaultORBConfig()
	configFile, err := os.Open(filepath.Clean(file))
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	if err := json.NewDecoder(configFile).Decode(config); err != nil {
		return nil, errors.Wrapf(err, "cannot parse ORB config %q", file)
	}
	if err := config.Validate(file); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate ensures all parts of the ORBConfig are valid.
func (config *ORBConfig) Validate(path string) error {
	var errs error
	if config.NFeatures < 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("n_features should be >= 1")))
	}
	if config.NLevels < 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("n_levels should be >= 1")))
	}
	if config.ScaleFactor <= 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("scale_factor should be greater than 1")))
	}
	if config.FastConf == nil {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "fast"))
	} else {
		errs = multierr.Append(errs, config.FastConf.Validate(path+".fast"))
	}
	if config.BRIEFConf == nil {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "brief"))
	} else {
		errs = multierr.Append(errs, config.BRIEFConf.Validate(path+".brief"))
		// rotated sample pairs reach half a patch diagonal away from the keypoint
		reach := int(math.Ceil(float64(config.BRIEFConf.PatchSize/2) * math.Sqrt2))
		if config.EdgeThreshold < reach {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Errorf("edge_threshold should be >= %d for patch_size %d", reach, config.BRIEFConf.PatchSize)))
		}
	}
	return errs
}

// featuresPerLevel spreads nFeatures over nLevels geometrically, proportionally to level area
// ratios of 1/scaleFactor per level.
func featuresPerLevel(nFeatures, nLevels int, scaleFactor float64) []int {
	counts := make([]int, nLevels)
	factor := 1 / scaleFactor
	desired := float64(nFeatures) * (1 - factor) / (1 - math.Pow(factor, float64(nLevels)))
	sum := 0
	for level := 0; level < nLevels-1; level++ {
		counts[level] = int(math.Round(desired))
		sum += counts[level]
		desired *= factor
	}
	if last := nFeatures - sum; last > 0 {
		counts[nLevels-1] = last
	}
	return counts
}

// ComputeORBKeypoints computes ORB keypoints and descriptors on a gray image. An image without
// corners yields empty results and no error.
func ComputeORBKeypoints(im *image.Gray, sp *SamplePairs, cfg *ORBConfig) ([]Descriptor, KeyPoints, error) {
	if rimage.IsEmpty(im) {
		return nil, nil, rimage.ErrEmptyImage
	}
	if sp == nil || sp.N != cfg.BRIEFConf.N {
		return nil, nil, errors.New("sample pairs do not match the BRIEF configuration")
	}
	minSize := 2*cfg.EdgeThreshold + 1
	if im.Bounds().Dx() < minSize || im.Bounds().Dy() < minSize {
		return []Descriptor{}, KeyPoints{}, nil
	}
	pyramid, err := rimage.GetImagePyramid(im, cfg.NLevels, cfg.ScaleFactor, minSize)
	if err != nil {
		return nil, nil, err
	}
	quotas := featuresPerLevel(cfg.NFeatures, len(pyramid.Images), cfg.ScaleFactor)

	orbDescriptors := make([]Descriptor, 0)
	orbPoints := make(KeyPoints, 0)
	for level, levelImg := range pyramid.Images {
		kps := ComputeFAST(levelImg, cfg.FastConf, cfg.EdgeThreshold)
		sort.SliceStable(kps, func(i, j int) bool { return kps[i].Response > kps[j].Response })
		if len(kps) > quotas[level] {
			kps = kps[:quotas[level]]
		}
		if len(kps) == 0 {
			continue
		}

		pts := make([]image.Point, len(kps))
		for i, kp := range kps {
			pts[i] = image.Point{int(kp.Point.X), int(kp.Point.Y)}
		}
		var angles []float64
		if cfg.FastConf.Oriented || cfg.BRIEFConf.UseOrientation {
			angles = computeKeypointsOrientations(levelImg, pts)
		}
		descs, err := ComputeBRIEFDescriptors(levelImg, sp, pts, angles, cfg.BRIEFConf)
		if err != nil {
			return nil, nil, err
		}

		scale := pyramid.Scales[level]
		for i, kp := range kps {
			kp.Point = r2.Point{X: kp.Point.X * scale, Y: kp.Point.Y * scale}
			kp.Octave = level
			kp.Size = float64(cfg.BRIEFConf.PatchSize) * scale
			if angles != nil {
				kp.Angle = angles[i]
			}
			orbPoints = append(orbPoints, kp)
			orbDescriptors = append(orbDescriptors, descs[i])
		}
	}
	return orbDescriptors, orbPoints, nil
}
