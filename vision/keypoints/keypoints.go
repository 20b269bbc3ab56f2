// Package keypoints contains ORB feature extraction and matching on gray images:
// FAST corners, intensity-centroid orientation, steered BRIEF descriptors and Hamming
// nearest-neighbour matching with a ratio test.
package keypoints

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
)

type (
	// KeyPoint is a detected corner. Point is in level 0 (full resolution) coordinates.
	KeyPoint struct {
		Point    r2.Point
		Octave   int
		Angle    float64
		Response float64
		Size     float64
	}
	// KeyPoints is a set of keypoints.
	KeyPoints []KeyPoint
)

// Points returns the keypoint locations.
func (kps KeyPoints) Points() []r2.Point {
	pts := make([]r2.Point, len(kps))
	for i, kp := range kps {
		pts[i] = kp.Point
	}
	return pts
}

// orientationRadius is the radius of the circular patch used for the intensity centroid.
const orientationRadius = 15

// computeMaskOrientationFAST returns, for each row offset |dy| in [0, 15], the half width of the
// circular orientation patch.
func computeMaskOrientationFAST() []int {
	return []int{15, 15, 15, 15, 14, 14, 14, 13, 13, 12, 11, 10, 9, 8, 6, 3}
}

// computeKeypointsOrientations returns the intensity-centroid angle of every point. Pixels
// outside img count as 0.
func computeKeypointsOrientations(img *image.Gray, pts []image.Point) []float64 {
	umax := computeMaskOrientationFAST()
	orientations := make([]float64, len(pts))
	for i, kp := range pts {
		m01, m10 := 0, 0
		for dy := -orientationRadius; dy <= orientationRadius; dy++ {
			halfWidth := umax[int(math.Abs(float64(dy)))]
			m01Temp := 0
			for dx := -halfWidth; dx <= halfWidth; dx++ {
				pixVal := int(img.GrayAt(kp.X+dx, kp.Y+dy).Y)
				m10 += pixVal * dx
				m01Temp += pixVal
			}
			m01 += m01Temp * dy
		}
		orientations[i] = math.Atan2(float64(m01), float64(m10))
	}
	return orientations
}

// PlotKeypoints draws keypoints as circles on top of img.
func PlotKeypoints(img image.Image, kps KeyPoints) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetRGBA(0, 0, 1, 0.5)
	for _, kp := range kps {
		radius := 3.0
		if kp.Size > 0 {
			radius = kp.Size / 10
		}
		dc.DrawCircle(kp.Point.X, kp.Point.Y, radius)
		dc.Fill()
	}
	return dc.Image()
}

// PlotMatchedLines places img1 and img2 side by side and draws a line between each matched pair.
// kps1[i] is matched to kps2[i].
func PlotMatchedLines(img1, img2 image.Image, kps1, kps2 []r2.Point) image.Image {
	w1, h1 := img1.Bounds().Dx(), img1.Bounds().Dy()
	w2, h2 := img2.Bounds().Dx(), img2.Bounds().Dy()
	h := h1
	if h2 > h {
		h = h2
	}
	dc := gg.NewContext(w1+w2, h)
	dc.SetColor(color.Black)
	dc.Clear()
	dc.DrawImage(img1, 0, 0)
	dc.DrawImage(img2, w1, 0)

	dc.SetLineWidth(1)
	for i := range kps1 {
		if i >= len(kps2) {
			break
		}
		dc.SetRGBA(0, 1, 0, 0.6)
		dc.DrawLine(kps1[i].X, kps1[i].Y, kps2[i].X+float64(w1), kps2[i].Y)
		dc.Stroke()
	}
	return dc.Image()
}
