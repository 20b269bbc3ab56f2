package keypoints

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// FASTConfig holds the parameters for FAST keypoint detection.
type FASTConfig struct {
	// Threshold is the gray-level difference a circle pixel needs to count as brighter or darker.
	Threshold int `json:"threshold"`
	// NMatchesCircle is the length of the contiguous arc required for a corner.
	NMatchesCircle int `json:"n_matches"`
	// NMSWinSize is the side of the non-maximum suppression window. 0 or 1 disables NMS.
	NMSWinSize int  `json:"nms_win_size"`
	Oriented   bool `json:"oriented"`
}

// DefaultFASTConfig returns the FAST-9 configuration used by ORB.
func DefaultFASTConfig() *FASTConfig {
	return &FASTConfig{
		Threshold:      20,
		NMatchesCircle: 9,
		NMSWinSize:     3,
		Oriented:       true,
	}
}

// LoadFASTConfiguration loads a FASTConfig from a json file.
func LoadFASTConfiguration(file string) (*FASTConfig, error) {
	var config FASTConfig
	configFile, err := os.Open(filepath.Clean(file))
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	if err := json.NewDecoder(configFile).Decode(&config); err != nil {
		return nil, errors.Wrapf(err, "cannot parse FAST config %q", file)
	}
	return &config, nil
}

// Validate ensures all parts of the FASTConfig are valid.
func (config *FASTConfig) Validate(path string) error {
	if config.Threshold < 1 || config.Threshold > 254 {
		return utils.NewConfigValidationError(path, errors.New("threshold should be in [1, 254]"))
	}
	if config.NMatchesCircle < 9 || config.NMatchesCircle > len(CircleIdx) {
		return utils.NewConfigValidationError(path, errors.New("n_matches should be in [9, 16]"))
	}
	if config.NMSWinSize < 0 {
		return utils.NewConfigValidationError(path, errors.New("nms_win_size should be >= 0"))
	}
	return nil
}

var (
	// CrossIdx is the 4-pixel cross used for the quick rejection test.
	CrossIdx = []image.Point{{0, 3}, {3, 0}, {0, -3}, {-3, 0}}
	// CircleIdx is the 16-pixel Bresenham circle of radius 3, clockwise from the top.
	CircleIdx = []image.Point{
		{0, -3}, {1, -3}, {2, -2}, {3, -1},
		{3, 0}, {3, 1}, {2, 2}, {1, 3},
		{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
		{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
	}
)

// fastRadius is the radius of the circle the segment test samples.
const fastRadius = 3

// GetPointValuesInNeighborhood returns the gray values at coords+offset for every offset.
func GetPointValuesInNeighborhood(img *image.Gray, coords image.Point, neighborhood []image.Point) []float64 {
	vals := make([]float64, len(neighborhood))
	for i, offset := range neighborhood {
		vals[i] = float64(img.GrayAt(coords.X+offset.X, coords.Y+offset.Y).Y)
	}
	return vals
}

// isValidSliceVals reports whether vals holds at least n contiguous positive values, wrapping
// around the end of the slice.
func isValidSliceVals(vals []float64, n int) bool {
	if n <= 0 {
		return true
	}
	if len(vals) == 0 {
		return false
	}
	run := 0
	for i := 0; i < 2*len(vals); i++ {
		if vals[i%len(vals)] > 0 {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func sumOfPositiveValuesSlice(s []float64) float64 {
	sum := 0.
	for _, v := range s {
		if v > 0 {
			sum += v
		}
	}
	return sum
}

func sumOfNegativeValuesSlice(s []float64) float64 {
	sum := 0.
	for _, v := range s {
		if v < 0 {
			sum += v
		}
	}
	return sum
}

// getBrighterValues returns a mask with 1 wherever s is strictly above t.
func getBrighterValues(s []float64, t float64) []float64 {
	mask := make([]float64, len(s))
	for i, v := range s {
		if v > t {
			mask[i] = 1
		}
	}
	return mask
}

// getDarkerValues returns a mask with 1 wherever s is strictly below t.
func getDarkerValues(s []float64, t float64) []float64 {
	mask := make([]float64, len(s))
	for i, v := range s {
		if v < t {
			mask[i] = 1
		}
	}
	return mask
}

// countMask returns the number of set entries of a 0/1 mask.
func countMask(mask []float64) int {
	return int(sumOfPositiveValuesSlice(mask))
}

// segmentScore runs the segment test at p. It returns the corner score and whether p is a
// corner. The score is the summed excess over the threshold on the winning side.
func segmentScore(img *image.Gray, p image.Point, cfg *FASTConfig) (float64, bool) {
	center := float64(img.GrayAt(p.X, p.Y).Y)
	t := float64(cfg.Threshold)
	upper, lower := center+t, center-t

	// Any arc of 9 or more circle pixels covers at least 2 of the 4 cross pixels.
	cross := GetPointValuesInNeighborhood(img, p, CrossIdx)
	if countMask(getBrighterValues(cross, upper)) < 2 && countMask(getDarkerValues(cross, lower)) < 2 {
		return 0, false
	}

	circle := GetPointValuesInNeighborhood(img, p, CircleIdx)
	brighter := getBrighterValues(circle, upper)
	darker := getDarkerValues(circle, lower)
	isBright := isValidSliceVals(brighter, cfg.NMatchesCircle)
	isDark := isValidSliceVals(darker, cfg.NMatchesCircle)
	if !isBright && !isDark {
		return 0, false
	}

	diffs := make([]float64, len(circle))
	for i, v := range circle {
		diffs[i] = v - center
	}
	brightScore, darkScore := 0., 0.
	for i, d := range diffs {
		if brighter[i] > 0 {
			brightScore += d - t
		}
		if darker[i] > 0 {
			darkScore += -d - t
		}
	}
	if isBright && (!isDark || brightScore >= darkScore) {
		return brightScore, true
	}
	return darkScore, true
}

// ComputeFAST detects FAST corners at least border pixels away from the image edges. Keypoints
// are returned in raster order with their segment-test score as Response.
func ComputeFAST(img *image.Gray, cfg *FASTConfig, border int) KeyPoints {
	if border < fastRadius {
		border = fastRadius
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 2*border || h <= 2*border {
		return KeyPoints{}
	}

	scores := make([]float64, w*h)
	candidates := make([]int, 0)
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			score, ok := segmentScore(img, image.Point{bounds.Min.X + x, bounds.Min.Y + y}, cfg)
			if !ok {
				continue
			}
			scores[y*w+x] = score
			candidates = append(candidates, y*w+x)
		}
	}

	half := cfg.NMSWinSize / 2
	kps := make(KeyPoints, 0, len(candidates))
	for _, idx := range candidates {
		x, y := idx%w, idx/w
		if half > 0 && !isLocalMax(scores, w, h, x, y, half) {
			continue
		}
		kps = append(kps, KeyPoint{
			Point:    r2.Point{X: float64(x), Y: float64(y)},
			Response: scores[idx],
		})
	}
	return kps
}

// isLocalMax keeps the first pixel in raster order among equal maxima so results do not depend
// on iteration details.
func isLocalMax(scores []float64, w, h, x, y, half int) bool {
	s := scores[y*w+x]
	for dy := -half; dy <= half; dy++ {
		ny := y + dy
		if ny < 0 || ny >= h {
			continue
		}
		for dx := -half; dx <= half; dx++ {
			nx := x + dx
			if (dx == 0 && dy == 0) || nx < 0 || nx >= w {
				continue
			}
			other := scores[ny*w+nx]
			if other > s {
				return false
			}
			if other == s && ny*w+nx < y*w+x {
				return false
			}
		}
	}
	return true
}
