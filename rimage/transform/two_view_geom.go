// Package transform estimates planar transforms between two views of a scene.
package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// normalizePoints translates the points so their centroid is the origin and scales them so the
// mean distance to the origin is sqrt(2). It returns the normalized points and the 3x3 transform
// that produced them. ok is false when all points coincide.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense, bool) {
	nPoints := len(pts)
	// compute centroid of points
	mu := r2.Point{X: 0, Y: 0}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1. / float64(nPoints))
	// compute scale factor
	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / float64(nPoints)
	}
	if d < 1e-12 {
		return nil, nil, false
	}
	scale := math.Sqrt(2) / d
	transformData := []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	}
	T := mat.NewDense(3, 3, transformData)
	pointsTransformed := make([]r2.Point, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = pts[i].Sub(mu).Mul(scale)
	}
	return pointsTransformed, T, true
}

// transposeDense returns a transposed copy of m.
func transposeDense(m *mat.Dense) *mat.Dense {
	nRows, nCols := m.Dims()
	m2 := mat.NewDense(nCols, nRows, nil)
	m2.Copy(m.T())
	return m2
}

// eye create an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// matsSVD stores the matrices from SVD decomposition.
type matsSVD struct {
	U  *mat.Dense
	V  *mat.Dense
	VT *mat.Dense
	S  []float64
}

// performSVD performs SVD on inputMatrix and returns matrices U, V, V^T and the singular values.
// It returns nil when the factorization fails.
func performSVD(inputMatrix *mat.Dense) *matsSVD {
	var svd mat.SVD
	if ok := svd.Factorize(inputMatrix, mat.SVDFull); !ok {
		return nil
	}
	u, v := &mat.Dense{}, &mat.Dense{}
	svd.UTo(u)
	svd.VTo(v)
	return &matsSVD{u, v, transposeDense(v), svd.Values(nil)}
}

// triangleArea2 returns twice the signed area of the triangle abc.
func triangleArea2(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// hasCollinearTriple reports whether any three of the points are (nearly) collinear. tol is
// relative to the squared spread of the points.
func hasCollinearTriple(pts []r2.Point, tol float64) bool {
	spread := 0.
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			spread = math.Max(spread, pts[i].Sub(pts[j]).Norm())
		}
	}
	limit := tol * spread * spread
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				if math.Abs(triangleArea2(pts[i], pts[j], pts[k])) <= limit {
					return true
				}
			}
		}
	}
	return false
}
