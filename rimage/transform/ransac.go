package transform

import (
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// RANSACConfig controls the robust homography fit.
type RANSACConfig struct {
	// ReprojectionThreshold is the largest distance in pixels at which a correspondence is an
	// inlier.
	ReprojectionThreshold float64 `json:"reprojection_threshold"`
	MaxIterations         int     `json:"max_iterations"`
	// Confidence is the probability of drawing at least one outlier-free sample, used to stop
	// early.
	Confidence float64 `json:"confidence"`
	Seed       uint64  `json:"seed"`
}

// DefaultRANSACConfig returns a 5 pixel threshold with up to 2000 iterations.
func DefaultRANSACConfig() RANSACConfig {
	return RANSACConfig{
		ReprojectionThreshold: 5.0,
		MaxIterations:         2000,
		Confidence:            0.995,
		Seed:                  42,
	}
}

// Validate ensures all parts of the RANSACConfig are valid.
func (config *RANSACConfig) Validate(path string) error {
	if config.ReprojectionThreshold <= 0 {
		return utils.NewConfigValidationError(path, errors.New("reprojection_threshold should be > 0"))
	}
	if config.MaxIterations < 1 {
		return utils.NewConfigValidationError(path, errors.New("max_iterations should be >= 1"))
	}
	if config.Confidence <= 0 || config.Confidence >= 1 {
		return utils.NewConfigValidationError(path, errors.New("confidence should be in (0, 1)"))
	}
	return nil
}

// RANSACResult is a robust fit and the correspondences that support it.
type RANSACResult struct {
	H       *Homography
	Inliers []bool
	// NumInliers is the number of true entries of Inliers.
	NumInliers int
}

const minimalSample = 4

// countInliers marks every correspondence within threshold of h.
func countInliers(h *Homography, src, dst []r2.Point, threshold float64) ([]bool, int) {
	mask := make([]bool, len(src))
	n := 0
	for i := range src {
		if h.ReprojectionError(src[i], dst[i]) < threshold {
			mask[i] = true
			n++
		}
	}
	return mask, n
}

// adaptiveIterations returns the number of samples needed to reach the confidence given the
// current inlier ratio.
func adaptiveIterations(confidence, inlierRatio float64, maxIterations int) int {
	if inlierRatio >= 1 {
		return 1
	}
	pGood := math.Pow(inlierRatio, minimalSample)
	if pGood <= 0 {
		return maxIterations
	}
	n := math.Log(1-confidence) / math.Log(1-pGood)
	if math.IsNaN(n) || n > float64(maxIterations) {
		return maxIterations
	}
	return int(math.Ceil(n))
}

func sampleIndices(rng *rand.Rand, n int) [minimalSample]int {
	var idx [minimalSample]int
	for i := 0; i < minimalSample; i++ {
	draw:
		for {
			candidate := rng.IntN(n)
			for j := 0; j < i; j++ {
				if idx[j] == candidate {
					continue draw
				}
			}
			idx[i] = candidate
			break
		}
	}
	return idx
}

// EstimateHomographyRANSAC robustly fits a homography mapping src onto dst. Minimal samples with
// collinear points are skipped. The best model is refit on all of its inliers. The random
// source is seeded from the config, so identical inputs give identical results.
func EstimateHomographyRANSAC(src, dst []r2.Point, cfg RANSACConfig) (*RANSACResult, error) {
	if len(src) != len(dst) {
		return nil, errors.New("sets of points src and dst must have the same number of elements")
	}
	if len(src) < minimalSample {
		return nil, ErrInsufficientPoints
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(len(src))))
	n := len(src)

	var best *Homography
	bestCount := 0
	iterations := cfg.MaxIterations
	sampleSrc := make([]r2.Point, minimalSample)
	sampleDst := make([]r2.Point, minimalSample)
	for iter := 0; iter < iterations; iter++ {
		idx := sampleIndices(rng, n)
		for i, k := range idx {
			sampleSrc[i] = src[k]
			sampleDst[i] = dst[k]
		}
		if hasCollinearTriple(sampleSrc, 1e-6) || hasCollinearTriple(sampleDst, 1e-6) {
			continue
		}
		h, err := EstimateHomography(sampleSrc, sampleDst)
		if err != nil || !h.isWellConditioned() {
			continue
		}
		_, count := countInliers(h, src, dst, cfg.ReprojectionThreshold)
		if count > bestCount {
			best, bestCount = h, count
			iterations = adaptiveIterations(cfg.Confidence, float64(count)/float64(n), cfg.MaxIterations)
		}
		if n == minimalSample {
			// a single well posed sample is the whole data set
			break
		}
	}
	if best == nil || bestCount < minimalSample {
		return nil, ErrDegenerateFit
	}

	mask, count := countInliers(best, src, dst, cfg.ReprojectionThreshold)
	inSrc := make([]r2.Point, 0, count)
	inDst := make([]r2.Point, 0, count)
	for i, in := range mask {
		if in {
			inSrc = append(inSrc, src[i])
			inDst = append(inDst, dst[i])
		}
	}
	if refit, err := EstimateHomography(inSrc, inDst); err == nil && refit.isWellConditioned() {
		refitMask, refitCount := countInliers(refit, src, dst, cfg.ReprojectionThreshold)
		if refitCount >= count {
			best, mask, count = refit, refitMask, refitCount
		}
	}
	return &RANSACResult{H: best, Inliers: mask, NumInliers: count}, nil
}
