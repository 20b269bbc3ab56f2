package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInsufficientPoints is returned when a fit is attempted with fewer than 4 correspondences.
	ErrInsufficientPoints = errors.New("at least 4 point correspondences are needed")
	// ErrDegenerateFit is returned when no well conditioned homography explains the points.
	ErrDegenerateFit = errors.New("degenerate homography fit")
)

// Homography is a 3x3 projective transform between two image planes, normalized so H[2,2] = 1.
type Homography struct {
	matrix *mat.Dense
}

// NewHomography creates a homography from 9 values in row major order.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("input to NewHomography must have length of 9. Has length of %d", len(vals))
	}
	if math.Abs(vals[8]) < 1e-12 {
		return nil, ErrDegenerateFit
	}
	scaled := make([]float64, 9)
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrDegenerateFit
		}
		scaled[i] = v / vals[8]
	}
	return &Homography{mat.NewDense(3, 3, scaled)}, nil
}

// Identity returns the identity homography.
func Identity() *Homography {
	return &Homography{eye(3)}
}

// At returns the value of the homography at the given row and column.
func (h *Homography) At(row, col int) float64 {
	return h.matrix.At(row, col)
}

// Translation returns the translational part (H[0,2], H[1,2]).
func (h *Homography) Translation() r2.Point {
	return r2.Point{X: h.At(0, 2), Y: h.At(1, 2)}
}

// Apply maps pt through the homography. ok is false when the point maps to infinity.
func (h *Homography) Apply(pt r2.Point) (r2.Point, bool) {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	w := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	if math.Abs(w) < 1e-12 {
		return r2.Point{}, false
	}
	return r2.Point{X: x / w, Y: y / w}, true
}

// ApplyAll maps every point, failing if any of them maps to infinity.
func (h *Homography) ApplyAll(pts []r2.Point) ([]r2.Point, error) {
	out := make([]r2.Point, len(pts))
	for i, pt := range pts {
		p, ok := h.Apply(pt)
		if !ok {
			return nil, ErrDegenerateFit
		}
		out[i] = p
	}
	return out, nil
}

// Inverse returns the inverse homography.
func (h *Homography) Inverse() (*Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.matrix); err != nil {
		return nil, errors.Wrap(ErrDegenerateFit, err.Error())
	}
	return NewHomography(inv.RawMatrix().Data)
}

// Matrix returns a copy of the underlying matrix.
func (h *Homography) Matrix() *mat.Dense {
	return mat.DenseCopyOf(h.matrix)
}

// ReprojectionError returns the distance between H*src and dst, or +Inf when src maps to
// infinity.
func (h *Homography) ReprojectionError(src, dst r2.Point) float64 {
	p, ok := h.Apply(src)
	if !ok {
		return math.Inf(1)
	}
	return p.Sub(dst).Norm()
}

// isWellConditioned rejects homographies that fold or collapse the plane.
func (h *Homography) isWellConditioned() bool {
	det := h.At(0, 0)*h.At(1, 1) - h.At(0, 1)*h.At(1, 0)
	return det > 1e-6 && !math.IsNaN(det) && !math.IsInf(det, 0)
}

// EstimateHomography fits a homography mapping src onto dst with the normalized direct linear
// transform, using all correspondences.
func EstimateHomography(src, dst []r2.Point) (*Homography, error) {
	if len(src) != len(dst) {
		return nil, errors.New("sets of points src and dst must have the same number of elements")
	}
	if len(src) < 4 {
		return nil, ErrInsufficientPoints
	}
	points1, T1, ok1 := normalizePoints(src)
	points2, T2, ok2 := normalizePoints(dst)
	if !ok1 || !ok2 {
		return nil, ErrDegenerateFit
	}

	nPoints := len(points1)
	rows := 2 * nPoints
	if rows < 9 {
		// pad with a zero row so the factorization always sees a square or tall system
		rows = 9
	}
	m := mat.NewDense(rows, 9, nil)
	for i := range points1 {
		v1 := points1[i]
		v2 := points2[i]
		m.SetRow(2*i, []float64{
			-v1.X, -v1.Y, -1,
			0, 0, 0,
			v2.X * v1.X, v2.X * v1.Y, v2.X,
		})
		m.SetRow(2*i+1, []float64{
			0, 0, 0,
			-v1.X, -v1.Y, -1,
			v2.Y * v1.X, v2.Y * v1.Y, v2.Y,
		})
	}

	mats := performSVD(m)
	if mats == nil {
		return nil, ErrDegenerateFit
	}
	// the null vector has 1 dimension for 4 points in general position
	if s := mats.S; len(s) >= 8 && s[0] > 0 && s[7]/s[0] < 1e-10 {
		return nil, ErrDegenerateFit
	}
	lastColV := mats.V.ColView(8)
	hData := make([]float64, 9)
	for i := range hData {
		hData[i] = lastColV.AtVec(i)
	}
	hn := mat.NewDense(3, 3, hData)

	// denormalize: H = T2^-1 * Hn * T1
	var t2Inv, tmp, full mat.Dense
	if err := t2Inv.Inverse(T2); err != nil {
		return nil, ErrDegenerateFit
	}
	tmp.Mul(&t2Inv, hn)
	full.Mul(&tmp, T1)
	return NewHomography(full.RawMatrix().Data)
}
