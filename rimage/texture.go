package rimage

import (
	"image"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

// GenerateTexture draws a deterministic clutter of overlapping gray rectangles and discs. The
// shapes give corner detectors plenty of structure, which makes the result a stand-in for aerial
// imagery in demos and tests.
func GenerateTexture(width, height, nShapes int, seed uint64) image.Image {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	dc := gg.NewContext(width, height)
	dc.SetRGB(0.45, 0.45, 0.45)
	dc.Clear()

	maxSide := float64(width+height) / 12
	if maxSide < 6 {
		maxSide = 6
	}
	for i := 0; i < nShapes; i++ {
		v := rng.Float64()
		dc.SetRGB(v, v, v)
		x := float64(rng.IntN(width))
		y := float64(rng.IntN(height))
		w := float64(4 + rng.IntN(int(maxSide)))
		h := float64(4 + rng.IntN(int(maxSide)))
		if i%4 == 3 {
			dc.DrawCircle(x, y, w/2)
		} else {
			dc.DrawRectangle(x, y, w, h)
		}
		dc.Fill()
	}
	return dc.Image()
}
