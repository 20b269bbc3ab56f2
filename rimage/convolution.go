package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// BorderPad selects how pixels outside the image are synthesized.
type BorderPad int

const (
	// BorderConstant pads with zeros.
	BorderConstant BorderPad = iota
	// BorderReplicate repeats the closest edge pixel.
	BorderReplicate
	// BorderReflect mirrors the image around its edge, excluding the edge pixel.
	BorderReflect
)

// Kernel is a convolution matrix stored row major.
type Kernel struct {
	Content [][]float64
	Width   int
	Height  int
}

// NewKernel returns a zero kernel of the given size.
func NewKernel(width, height int) (*Kernel, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("kernel dimensions must be positive, got %dx%d", width, height)
	}
	content := make([][]float64, height)
	for i := range content {
		content[i] = make([]float64, width)
	}
	return &Kernel{content, width, height}, nil
}

// Size returns the kernel dimensions.
func (k *Kernel) Size() image.Point {
	return image.Point{k.Width, k.Height}
}

// At returns the kernel weight at column x and row y.
func (k *Kernel) At(x, y int) float64 {
	return k.Content[y][x]
}

// Normalize scales the kernel so its weights sum to one.
func (k *Kernel) Normalize() *Kernel {
	sum := 0.
	for _, row := range k.Content {
		for _, v := range row {
			sum += v
		}
	}
	if sum == 0 {
		return k
	}
	for _, row := range k.Content {
		for i := range row {
			row[i] /= sum
		}
	}
	return k
}

// GetGaussian5 returns the normalized 5x5 Gaussian kernel (sigma about 1) used before
// descriptor sampling.
func GetGaussian5() *Kernel {
	k := &Kernel{
		[][]float64{
			{1, 4, 7, 4, 1},
			{4, 16, 26, 16, 4},
			{7, 26, 41, 26, 7},
			{4, 16, 26, 16, 4},
			{1, 4, 7, 4, 1},
		},
		5,
		5,
	}
	return k.Normalize()
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

// PaddingGray returns img enlarged so a kernel of kernelSize anchored at anchor can be applied
// to every original pixel. The result origin is (0, 0).
func PaddingGray(img *image.Gray, kernelSize, anchor image.Point, border BorderPad) (*image.Gray, error) {
	if IsEmpty(img) {
		return nil, ErrEmptyImage
	}
	if anchor.X < 0 || anchor.Y < 0 || anchor.X >= kernelSize.X || anchor.Y >= kernelSize.Y {
		return nil, errors.Errorf("anchor %v is outside kernel of size %v", anchor, kernelSize)
	}
	src := MakeGray(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	left, top := anchor.X, anchor.Y
	padded := image.NewGray(image.Rect(0, 0, w+kernelSize.X-1, h+kernelSize.Y-1))
	for y := 0; y < padded.Bounds().Dy(); y++ {
		sy := y - top
		for x := 0; x < padded.Bounds().Dx(); x++ {
			sx := x - left
			if sx >= 0 && sx < w && sy >= 0 && sy < h {
				padded.SetGray(x, y, src.GrayAt(sx, sy))
				continue
			}
			switch border {
			case BorderConstant:
				// zero value already in place
			case BorderReplicate:
				cx := int(math.Min(math.Max(float64(sx), 0), float64(w-1)))
				cy := int(math.Min(math.Max(float64(sy), 0), float64(h-1)))
				padded.SetGray(x, y, src.GrayAt(cx, cy))
			case BorderReflect:
				padded.SetGray(x, y, src.GrayAt(reflectIndex(sx, w), reflectIndex(sy, h)))
			default:
				return nil, errors.Errorf("unknown border type %d", border)
			}
		}
	}
	return padded, nil
}

// ConvolveGray applies a convolution matrix (Kernel) to a grayscale image.
// Example of usage:
//
//	res, err := rimage.ConvolveGray(img, rimage.GetGaussian5(), image.Point{2, 2}, rimage.BorderReflect)
//
// The anchor is the kernel cell aligned with the output pixel.
func ConvolveGray(img *image.Gray, kernel *Kernel, anchor image.Point, border BorderPad) (*image.Gray, error) {
	kernelSize := kernel.Size()
	padded, err := PaddingGray(img, kernelSize, anchor, border)
	if err != nil {
		return nil, err
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	resultImage := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.
			for ky := 0; ky < kernelSize.Y; ky++ {
				for kx := 0; kx < kernelSize.X; kx++ {
					sum += float64(padded.GrayAt(x+kx, y+ky).Y) * kernel.At(kx, ky)
				}
			}
			sum = math.Min(math.Max(math.Round(sum), 0), 255)
			resultImage.SetGray(x, y, color.Gray{uint8(sum)})
		}
	}
	return resultImage, nil
}
