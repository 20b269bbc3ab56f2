package keypoints

import (
	"math/bits"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/floats"
)

// Descriptor is a binary descriptor packed into 64 bit words.
type Descriptor []uint64

// HammingDistance returns the number of differing bits between two descriptors of equal length.
func HammingDistance(d1, d2 Descriptor) (int, error) {
	if len(d1) != len(d2) {
		return 0, errors.Errorf("descriptors have different lengths: %d and %d", len(d1), len(d2))
	}
	dist := 0
	for i := range d1 {
		dist += bits.OnesCount64(d1[i] ^ d2[i])
	}
	return dist, nil
}

// MatchingConfig contains the parameters for matching descriptors.
type MatchingConfig struct {
	// RatioThreshold keeps a match only when best < RatioThreshold * second best.
	RatioThreshold float64 `json:"ratio_threshold"`
	// MaxDist drops matches at or above this Hamming distance. 0 disables the check.
	MaxDist int `json:"max_dist"`
}

// DefaultMatchingConfig returns Lowe's ratio of 0.7 without a distance cap.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{RatioThreshold: 0.7}
}

// Validate ensures all parts of the MatchingConfig are valid.
func (config *MatchingConfig) Validate(path string) error {
	if config.RatioThreshold <= 0 || config.RatioThreshold > 1 {
		return utils.NewConfigValidationError(path, errors.New("ratio_threshold should be in (0, 1]"))
	}
	if config.MaxDist < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_dist should be >= 0"))
	}
	return nil
}

// Match pairs a query descriptor with a train descriptor.
type Match struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}

// KnnMatch returns, for every query descriptor, its k nearest train descriptors by Hamming
// distance, closest first. Ties go to the lower train index. Rows hold fewer than k matches
// when train is smaller than k.
func KnnMatch(query, train []Descriptor, k int) ([][]Match, error) {
	out := make([][]Match, len(query))
	if k <= 0 {
		return out, nil
	}
	for qi, qd := range query {
		best := make([]Match, 0, k)
		for ti, td := range train {
			dist, err := HammingDistance(qd, td)
			if err != nil {
				return nil, err
			}
			m := Match{QueryIdx: qi, TrainIdx: ti, Distance: float64(dist)}
			pos := len(best)
			for pos > 0 && best[pos-1].Distance > m.Distance {
				pos--
			}
			if pos >= k {
				continue
			}
			if len(best) < k {
				best = append(best, Match{})
			}
			copy(best[pos+1:], best[pos:len(best)-1])
			best[pos] = m
		}
		out[qi] = best
	}
	return out, nil
}

// RatioTest keeps the best candidate of each row whose distance is strictly below ratio times
// the second best. Rows with fewer than two candidates are dropped.
func RatioTest(knn [][]Match, ratio float64) []Match {
	good := make([]Match, 0, len(knn))
	for _, row := range knn {
		if len(row) < 2 {
			continue
		}
		if row[0].Distance < ratio*row[1].Distance {
			good = append(good, row[0])
		}
	}
	return good
}

// MatchDescriptors performs 2-nearest-neighbour matching followed by the ratio test and returns
// the good matches sorted by increasing distance. Empty inputs give no matches.
func MatchDescriptors(query, train []Descriptor, cfg *MatchingConfig) ([]Match, error) {
	if len(query) == 0 || len(train) == 0 {
		return []Match{}, nil
	}
	knn, err := KnnMatch(query, train, 2)
	if err != nil {
		return nil, err
	}
	good := RatioTest(knn, cfg.RatioThreshold)
	if cfg.MaxDist > 0 {
		kept := good[:0]
		for _, m := range good {
			if m.Distance < float64(cfg.MaxDist) {
				kept = append(kept, m)
			}
		}
		good = kept
	}
	// the query index breaks distance ties so the order is deterministic
	keys := make([]float64, len(good))
	for i, m := range good {
		keys[i] = m.Distance*float64(len(query)) + float64(m.QueryIdx)
	}
	sortedIndices := make([]int, len(good))
	floats.Argsort(keys, sortedIndices)
	sorted := make([]Match, len(good))
	for i, idx := range sortedIndices {
		sorted[i] = good[idx]
	}
	return sorted, nil
}

// GetMatchingKeyPoints takes the matches and the keypoints and returns the corresponding matched
// locations, query side first.
func GetMatchingKeyPoints(matches []Match, kps1, kps2 KeyPoints) ([]r2.Point, []r2.Point, error) {
	pts1 := make([]r2.Point, len(matches))
	pts2 := make([]r2.Point, len(matches))
	for i, match := range matches {
		if match.QueryIdx < 0 || match.QueryIdx >= len(kps1) {
			return nil, nil, errors.Errorf("query index %d out of range for %d keypoints", match.QueryIdx, len(kps1))
		}
		if match.TrainIdx < 0 || match.TrainIdx >= len(kps2) {
			return nil, nil, errors.Errorf("train index %d out of range for %d keypoints", match.TrainIdx, len(kps2))
		}
		pts1[i] = kps1[match.QueryIdx].Point
		pts2[i] = kps2[match.TrainIdx].Point
	}
	return pts1, pts2, nil
}
