// Package sim provides the simulated surroundings of the navigation pipeline: a map that renders
// camera frames, a vehicle that executes commands, status sinks and a tick runner.
package sim

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/openaerial/visnav/navigation"
	"github.com/openaerial/visnav/rimage"
)

const (
	// minZoomAltitude is the altitude below which the camera footprint stops shrinking.
	minZoomAltitude = 10.0
	// referenceAltitude is the altitude at which one map pixel maps to one frame pixel.
	referenceAltitude = 100.0
	minZoom           = 0.1
	maxZoom           = 2.0
)

// FrameSource renders what the downward camera sees from a pose.
type FrameSource interface {
	Frame(pose navigation.Pose, size image.Point) image.Image
}

// World is a top-down map with the landing pad painted onto it.
type World struct {
	terrain    *image.NRGBA
	landmark   image.Image
	landmarkAt r2.Point
}

// NewWorld paints landmark onto a copy of terrain, centered on landmarkAt.
func NewWorld(terrain, landmark image.Image, landmarkAt r2.Point) (*World, error) {
	if rimage.IsEmpty(terrain) {
		return nil, errors.Wrap(rimage.ErrEmptyImage, "map")
	}
	if rimage.IsEmpty(landmark) {
		return nil, errors.Wrap(rimage.ErrEmptyImage, "landmark")
	}
	size := landmark.Bounds().Size()
	topLeft := image.Pt(
		int(math.Round(landmarkAt.X))-size.X/2,
		int(math.Round(landmarkAt.Y))-size.Y/2,
	)
	bounds := terrain.Bounds()
	if !topLeft.In(bounds) || !topLeft.Add(size).Sub(image.Pt(1, 1)).In(bounds) {
		return nil, errors.Errorf("landmark of size %v at %v does not fit the %v map", size, landmarkAt, bounds.Size())
	}
	painted := imaging.Paste(imaging.Clone(terrain), landmark, topLeft)
	return &World{terrain: painted, landmark: landmark, landmarkAt: landmarkAt}, nil
}

// Size returns the map size in pixels.
func (w *World) Size() image.Point {
	return w.terrain.Bounds().Size()
}

// Map returns the map with the landmark painted on.
func (w *World) Map() image.Image {
	return w.terrain
}

// Landmark returns the reference landmark image.
func (w *World) Landmark() image.Image {
	return w.landmark
}

// LandmarkPosition returns the landmark center in map pixels.
func (w *World) LandmarkPosition() r2.Point {
	return w.landmarkAt
}

// Zoom returns the ratio of map pixels per frame pixel at an altitude. Higher altitudes see more
// of the map.
func Zoom(altitude float64) float64 {
	z := math.Max(altitude, minZoomAltitude) / referenceAltitude
	return math.Max(minZoom, math.Min(maxZoom, z))
}

// ViewRect returns the map pixels seen from pose by a camera of the given size, rounded out to
// whole pixels. The view is always centered on the pose, so near the map edges part of it lies
// outside the map.
func (w *World) ViewRect(pose navigation.Pose, size image.Point) image.Rectangle {
	origin, zoom := viewOrigin(pose, size)
	return image.Rect(
		int(math.Floor(origin.X)),
		int(math.Floor(origin.Y)),
		int(math.Ceil(origin.X+float64(size.X)*zoom)),
		int(math.Ceil(origin.Y+float64(size.Y)*zoom)),
	)
}

// viewOrigin returns the map position of the frame's top left corner and the zoom.
func viewOrigin(pose navigation.Pose, size image.Point) (r2.Point, float64) {
	zoom := Zoom(pose.Altitude)
	return r2.Point{
		X: pose.X - float64(size.X)*zoom/2,
		Y: pose.Y - float64(size.Y)*zoom/2,
	}, zoom
}

// Frame renders the camera view from pose. The result always has the requested size; parts of
// the view outside the map are black. The view is resampled at sub-pixel offsets, so a small
// move of the vehicle moves the scene by the same amount in the frame.
func (w *World) Frame(pose navigation.Pose, size image.Point) image.Image {
	if size.X <= 0 || size.Y <= 0 {
		return image.NewRGBA(image.Rectangle{})
	}
	origin, zoom := viewOrigin(pose, size)
	canvas := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, xdraw.Src)
	mapToFrame := f64.Aff3{
		1 / zoom, 0, -origin.X / zoom,
		0, 1 / zoom, -origin.Y / zoom,
	}
	xdraw.BiLinear.Transform(canvas, mapToFrame, w.terrain, w.terrain.Bounds(), xdraw.Src, nil)
	return canvas
}

// MapToFrame converts a map position into frame pixels for a camera at pose.
func (w *World) MapToFrame(pose navigation.Pose, size image.Point, p r2.Point) r2.Point {
	origin, zoom := viewOrigin(pose, size)
	return p.Sub(origin).Mul(1 / zoom)
}

// GenerateTerrain returns a procedural map with roads drawn over a cluttered texture.
func GenerateTerrain(width, height int, seed uint64) image.Image {
	dc := gg.NewContextForImage(rimage.GenerateTexture(width, height, width*height/900, seed))
	dc.SetRGB(0.2, 0.2, 0.2)
	dc.SetLineWidth(6)
	for x := 80; x < width; x += 160 {
		dc.DrawLine(float64(x), 0, float64(x), float64(height))
	}
	for y := 60; y < height; y += 140 {
		dc.DrawLine(0, float64(y), float64(width), float64(y))
	}
	dc.Stroke()
	return dc.Image()
}

// GenerateLandmark returns a square landing pad: a textured disc with a high contrast H.
func GenerateLandmark(size int, seed uint64) image.Image {
	dc := gg.NewContextForImage(rimage.GenerateTexture(size, size, size/2, seed))
	s := float64(size)
	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(math.Max(2, s/20))
	dc.DrawCircle(s/2, s/2, s*0.42)
	dc.Stroke()
	dc.SetRGB(0.05, 0.05, 0.05)
	bar := s / 8
	dc.DrawRectangle(s*0.3, s*0.25, bar, s*0.5)
	dc.DrawRectangle(s*0.7-bar, s*0.25, bar, s*0.5)
	dc.DrawRectangle(s*0.3, s/2-bar/2, s*0.4, bar)
	dc.Fill()
	return dc.Image()
}
