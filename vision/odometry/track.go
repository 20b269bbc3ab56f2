package odometry

import (
	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
)

// TrackConfig controls which estimates enter the smoothing window.
type TrackConfig struct {
	Window        int     `json:"window"`
	MinConfidence float64 `json:"min_confidence"`
}

// DefaultTrackConfig keeps the last 10 estimates with confidence above 0.3.
func DefaultTrackConfig() TrackConfig {
	return TrackConfig{Window: 10, MinConfidence: 0.3}
}

// Track accumulates valid estimates into a smoothed image displacement and a dead-reckoned
// vehicle position.
type Track struct {
	cfg      TrackConfig
	dx, dy   []float64
	position r2.Point
	accepted int
}

// NewTrack returns an empty track.
func NewTrack(cfg TrackConfig) *Track {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	return &Track{cfg: cfg}
}

// Add records est if it is valid and confident enough, and reports whether it was kept.
func (t *Track) Add(est Estimate) bool {
	if !est.Valid || est.Confidence <= t.cfg.MinConfidence {
		return false
	}
	t.dx = append(t.dx, est.DX)
	t.dy = append(t.dy, est.DY)
	if len(t.dx) > t.cfg.Window {
		t.dx = t.dx[1:]
		t.dy = t.dy[1:]
	}
	// the ground moves through the image opposite to the vehicle
	t.position = t.position.Sub(r2.Point{X: est.DX, Y: est.DY})
	t.accepted++
	return true
}

// Smoothed returns the mean displacement over the window. ok is false while the window is empty.
func (t *Track) Smoothed() (r2.Point, bool) {
	if len(t.dx) == 0 {
		return r2.Point{}, false
	}
	mx, err := stats.Mean(t.dx)
	if err != nil {
		return r2.Point{}, false
	}
	my, err := stats.Mean(t.dy)
	if err != nil {
		return r2.Point{}, false
	}
	return r2.Point{X: mx, Y: my}, true
}

// Position returns the dead-reckoned vehicle displacement in frame pixels since the last reset.
// It is the negated sum of all accepted image displacements.
func (t *Track) Position() r2.Point {
	return t.position
}

// Accepted returns how many estimates were kept since the last reset.
func (t *Track) Accepted() int {
	return t.accepted
}

// Reset empties the window and the accumulated position.
func (t *Track) Reset() {
	t.dx, t.dy = nil, nil
	t.position = r2.Point{}
	t.accepted = 0
}
