package keypoints

import (
	"encoding/json"
	"image"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/rimage"
)

// SamplingType selects how BRIEF sample positions are drawn within the patch.
type SamplingType int

const (
	// Uniform draws sample coordinates uniformly over the patch.
	Uniform SamplingType = iota
	// Normal draws sample coordinates from an isotropic Gaussian centered on the keypoint.
	Normal
)

// String returns the json name of the sampling type.
func (s SamplingType) String() string {
	switch s {
	case Uniform:
		return "uniform"
	case Normal:
		return "normal"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the sampling type by name.
func (s SamplingType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the name or the integer value.
func (s *SamplingType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		var v int
		if err := json.Unmarshal(data, &v); err != nil {
			return errors.Errorf("invalid sampling type %s", data)
		}
		*s = SamplingType(v)
		return nil
	}
	switch name {
	case "uniform":
		*s = Uniform
	case "normal":
		*s = Normal
	default:
		return errors.Errorf("unknown sampling type %q", name)
	}
	return nil
}

// SamplePairs are N pairs of offsets used to create the BRIEF Descriptors of a patch.
type SamplePairs struct {
	P0 []image.Point
	P1 []image.Point
	N  int
}

// GenerateSamplePairs draws n sample pairs inside a patch of side patchSize. The same seed
// always yields the same pairs.
func GenerateSamplePairs(dist SamplingType, n, patchSize int, seed uint64) *SamplePairs {
	rng := rand.New(rand.NewPCG(seed, uint64(n)<<32|uint64(patchSize)))
	half := patchSize / 2
	sample := func() int {
		var v float64
		switch dist {
		case Normal:
			// BRIEF G II: sigma^2 = S^2 / 25
			v = rng.NormFloat64() * float64(patchSize) / 5
		default:
			v = rng.Float64()*float64(2*half+1) - float64(half) - 0.5
		}
		return int(math.Max(-float64(half), math.Min(float64(half), math.Round(v))))
	}

	p0 := make([]image.Point, 0, n)
	p1 := make([]image.Point, 0, n)
	for len(p0) < n {
		a := image.Point{sample(), sample()}
		b := image.Point{sample(), sample()}
		if a == b {
			// identical positions always compare equal and carry no information
			continue
		}
		p0 = append(p0, a)
		p1 = append(p1, b)
	}
	return &SamplePairs{P0: p0, P1: p1, N: n}
}

// BRIEFConfig stores the parameters.
type BRIEFConfig struct {
	N              int          `json:"n"` // number of samples taken
	Sampling       SamplingType `json:"sampling"`
	UseOrientation bool         `json:"use_orientation"`
	PatchSize      int          `json:"patch_size"`
	Seed           uint64       `json:"seed"`
}

// DefaultBRIEFConfig returns the steered 256-bit configuration used by ORB.
func DefaultBRIEFConfig() *BRIEFConfig {
	return &BRIEFConfig{
		N:              256,
		Sampling:       Normal,
		UseOrientation: true,
		PatchSize:      31,
		Seed:           1,
	}
}

// Validate ensures all parts of the BRIEFConfig are valid.
func (config *BRIEFConfig) Validate(path string) error {
	if config.N <= 0 || config.N%64 != 0 {
		return utils.NewConfigValidationError(path, errors.New("n should be a positive multiple of 64"))
	}
	if config.PatchSize < 5 || config.PatchSize%2 == 0 {
		return utils.NewConfigValidationError(path, errors.New("patch_size should be odd and >= 5"))
	}
	return nil
}

// ComputeBRIEFDescriptors computes BRIEF descriptors on image img at pts. When the config uses
// orientation, the sample pattern is rotated by angles[i] for pts[i].
func ComputeBRIEFDescriptors(
	img *image.Gray, sp *SamplePairs, pts []image.Point, angles []float64, cfg *BRIEFConfig,
) ([]Descriptor, error) {
	if cfg.UseOrientation && len(angles) != len(pts) {
		return nil, errors.Errorf("got %d orientations for %d keypoints", len(angles), len(pts))
	}
	blurred, err := rimage.ConvolveGray(img, rimage.GetGaussian5(), image.Point{2, 2}, rimage.BorderReflect)
	if err != nil {
		return nil, err
	}

	descs := make([]Descriptor, len(pts))
	for k, kp := range pts {
		// Divide by 64 since we store a descriptor as a uint64 array.
		descriptor := make(Descriptor, sp.N/64)
		cosTheta, sinTheta := 1.0, 0.0
		if cfg.UseOrientation {
			cosTheta = math.Cos(angles[k])
			sinTheta = math.Sin(angles[k])
		}
		for i := 0; i < sp.N; i++ {
			x0, y0 := float64(sp.P0[i].X), float64(sp.P0[i].Y)
			x1, y1 := float64(sp.P1[i].X), float64(sp.P1[i].Y)
			outx0 := int(math.Round(cosTheta*x0 - sinTheta*y0))
			outy0 := int(math.Round(sinTheta*x0 + cosTheta*y0))
			outx1 := int(math.Round(cosTheta*x1 - sinTheta*y1))
			outy1 := int(math.Round(sinTheta*x1 + cosTheta*y1))
			p0Val := blurred.GrayAt(kp.X+outx0, kp.Y+outy0).Y
			p1Val := blurred.GrayAt(kp.X+outx1, kp.Y+outy1).Y
			if p0Val > p1Val {
				descriptor[i/64] |= 1 << (i % 64)
			}
		}
		descs[k] = descriptor
	}
	return descs, nil
}
