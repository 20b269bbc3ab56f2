package sim

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/mission"
	"github.com/openaerial/visnav/rimage"
)

var (
	colorBox    = color.RGBA{R: 0, G: 220, B: 0, A: 255}
	colorCenter = color.RGBA{R: 255, G: 40, B: 40, A: 255}
	colorAim    = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	colorText   = color.White
	colorPanel  = color.RGBA{A: 180}
)

// Annotate draws the detection and mission state of st over frame.
func Annotate(frame image.Image, st mission.Status) image.Image {
	dc := gg.NewContextForImage(frame)
	b := frame.Bounds()
	center := image.Pt(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)
	rimage.DrawCrosshair(dc, center, 12, colorAim, 1.5)

	if det := st.Detection; det.Found {
		if len(det.Corners) > 0 {
			corners := make([]image.Point, 0, len(det.Corners))
			for _, c := range det.Corners {
				corners = append(corners, roundPoint(c))
			}
			rimage.DrawPolygon(dc, corners, colorBox, 2)
		} else {
			rimage.DrawRectangleEmpty(dc, det.BoundingBox, colorBox, 2)
		}
		c := roundPoint(det.Center)
		dc.SetColor(colorCenter)
		dc.DrawCircle(float64(c.X), float64(c.Y), 4)
		dc.Fill()
		dc.SetLineWidth(1)
		dc.DrawLine(float64(center.X), float64(center.Y), float64(c.X), float64(c.Y))
		dc.Stroke()
	}

	lines := []string{
		fmt.Sprintf("tick %d  %s  %s", st.Tick, st.State, st.Command),
		fmt.Sprintf("pose %s  wp %s", st.Pose.String(), st.Progress.String()),
		fmt.Sprintf("landmark %.2f (%d matches)  odometry %.2f", st.Detection.Confidence, st.Detection.Matches, st.Odometry.Confidence),
	}
	if st.Message != "" {
		lines = append(lines, st.Message)
	}
	for i, line := range lines {
		rimage.DrawLabel(dc, line, image.Pt(b.Min.X+8, b.Min.Y+8+i*18), colorText, colorPanel, 12)
	}
	return dc.Image()
}

func roundPoint(p r2.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// Renderer saves annotated frames to a directory every SaveEvery ticks.
type Renderer struct {
	dir       string
	saveEvery int
	logger    logging.Logger
}

// NewRenderer creates dir if needed. A saveEvery below 1 saves nothing but state changes.
func NewRenderer(dir string, saveEvery int, logger logging.Logger) (*Renderer, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "cannot create frame directory %q", dir)
	}
	return &Renderer{dir: dir, saveEvery: saveEvery, logger: logger}, nil
}

// ShouldRender reports whether the frame for st is saved.
func (r *Renderer) ShouldRender(st mission.Status) bool {
	if st.Transitioned() {
		return true
	}
	return r.saveEvery > 0 && st.Tick%r.saveEvery == 0
}

// Render saves the annotated frame when ShouldRender allows it and returns the written path.
func (r *Renderer) Render(frame image.Image, st mission.Status) (string, error) {
	if !r.ShouldRender(st) {
		return "", nil
	}
	path := filepath.Join(r.dir, fmt.Sprintf("frame_%05d.png", st.Tick))
	if err := imaging.Save(Annotate(frame, st), path); err != nil {
		return "", errors.Wrapf(err, "cannot save frame %q", path)
	}
	r.logger.Debugw("saved debug frame", "path", path)
	return path, nil
}

// PlotTrajectory writes a PNG of the flown path over the planned waypoints and the landmark.
// Map Y grows downward, so the Y axis is inverted.
func PlotTrajectory(path string, statuses []mission.Status, waypoints, landmark []r2.Point) error {
	p := plot.New()
	p.Title.Text = "flight path"
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	p.Add(plotter.NewGrid())

	if len(waypoints) > 0 {
		plan, err := plotter.NewLine(toXYs(waypoints))
		if err != nil {
			return err
		}
		plan.LineStyle.Color = color.Gray{Y: 120}
		plan.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		marks, err := plotter.NewScatter(toXYs(waypoints))
		if err != nil {
			return err
		}
		marks.GlyphStyle.Shape = draw.CircleGlyph{}
		marks.GlyphStyle.Radius = vg.Points(3)
		p.Add(plan, marks)
		p.Legend.Add("plan", plan, marks)
	}

	if len(statuses) > 0 {
		flown := make([]r2.Point, 0, len(statuses))
		for _, st := range statuses {
			flown = append(flown, st.Pose.Point())
		}
		track, err := plotter.NewLine(toXYs(flown))
		if err != nil {
			return err
		}
		track.LineStyle.Color = color.RGBA{B: 220, A: 255}
		track.LineStyle.Width = vg.Points(1.5)
		p.Add(track)
		p.Legend.Add("flown", track)
	}

	if len(landmark) > 0 {
		pad, err := plotter.NewScatter(toXYs(landmark))
		if err != nil {
			return err
		}
		pad.GlyphStyle.Shape = draw.CrossGlyph{}
		pad.GlyphStyle.Radius = vg.Points(6)
		pad.GlyphStyle.Color = colorCenter
		p.Add(pad)
		p.Legend.Add("landmark", pad)
	}

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "cannot save trajectory plot %q", path)
	}
	return nil
}

func toXYs(pts []r2.Point) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, p := range pts {
		xys[i].X = p.X
		xys[i].Y = p.Y
	}
	return xys
}
