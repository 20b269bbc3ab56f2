package landmark

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// maxAreaRatio bounds how much larger or smaller than the matched reference the projected
// outline may be.
const maxAreaRatio = 25.0

var (
	errOutlineNotConvex = errors.New("outline is not convex or is mirrored")
	errOutlineSize      = errors.New("outline size is implausible")
	errOutlineMisses    = errors.New("outline does not contain the matched points")
)

// checkOutline rejects projected outlines that a downward camera could not produce: folded or
// mirrored quads, quads that shrink or grow far beyond the reference, and quads that lie away
// from the points they were fitted to.
func checkOutline(quad, reference []r2.Point, matched r2.Point) error {
	if len(quad) != len(reference) || len(quad) < 3 {
		return errOutlineNotConvex
	}
	orientation := math.Copysign(1, signedArea(reference))
	n := len(quad)
	for i := range quad {
		a, b, c := quad[i], quad[(i+1)%n], quad[(i+2)%n]
		if b.Sub(a).Cross(c.Sub(b))*orientation <= 0 {
			return errOutlineNotConvex
		}
	}
	ratio := signedArea(quad) / signedArea(reference)
	if ratio < 1/maxAreaRatio || ratio > maxAreaRatio {
		return errors.Wrapf(errOutlineSize, "area ratio %.3f", ratio)
	}
	for i := range quad {
		a, b := quad[i], quad[(i+1)%n]
		if b.Sub(a).Cross(matched.Sub(a))*orientation < 0 {
			return errOutlineMisses
		}
	}
	return nil
}

// signedArea is the shoelace area of a polygon, positive for clockwise vertices in image
// coordinates.
func signedArea(pts []r2.Point) float64 {
	var sum float64
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		sum += p.Cross(q)
	}
	return sum / 2
}
