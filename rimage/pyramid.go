package rimage

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImagePyramid is a stack of progressively downscaled gray images. Scales[i] is the factor that
// maps level i coordinates back to level 0.
type ImagePyramid struct {
	Images []*image.Gray
	Scales []float64
}

// GetImagePyramid builds up to nLevels levels, each scaleFactor smaller than the previous one.
// Building stops early once a level would be smaller than minSize on either side.
func GetImagePyramid(img *image.Gray, nLevels int, scaleFactor float64, minSize int) (*ImagePyramid, error) {
	if IsEmpty(img) {
		return nil, ErrEmptyImage
	}
	if nLevels < 1 {
		return nil, errors.Errorf("pyramid needs at least one level, got %d", nLevels)
	}
	if scaleFactor <= 1 {
		return nil, errors.Errorf("pyramid scale factor must be > 1, got %v", scaleFactor)
	}
	base := MakeGray(img)
	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	pyramid := &ImagePyramid{
		Images: []*image.Gray{base},
		Scales: []float64{1},
	}
	for level := 1; level < nLevels; level++ {
		scale := math.Pow(scaleFactor, float64(level))
		lw := int(math.Round(float64(w) / scale))
		lh := int(math.Round(float64(h) / scale))
		if lw < minSize || lh < minSize {
			break
		}
		resized := imaging.Resize(base, lw, lh, imaging.Linear)
		pyramid.Images = append(pyramid.Images, MakeGray(resized))
		pyramid.Scales = append(pyramid.Scales, scale)
	}
	return pyramid, nil
}
