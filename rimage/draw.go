package rimage

import (
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	overlayFont     *truetype.Font
	overlayFontOnce sync.Once
)

// Font returns the font used for overlay text.
func Font() *truetype.Font {
	overlayFontOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			panic(err)
		}
		overlayFont = f
	})
	return overlayFont
}

// FontFace returns an overlay font face at size points.
func FontFace(size float64) font.Face {
	return truetype.NewFace(Font(), &truetype.Options{Size: size})
}

// DrawString writes text with its top left corner at p.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(FontFace(size))
	dc.SetColor(c)
	dc.DrawStringAnchored(text, float64(p.X), float64(p.Y), 0, 1)
}

// DrawLabel writes text on an opaque background so it stays readable over busy imagery.
func DrawLabel(dc *gg.Context, text string, p image.Point, fg, bg color.Color, size float64) {
	dc.SetFontFace(FontFace(size))
	w, h := dc.MeasureString(text)
	pad := size / 4
	dc.SetColor(bg)
	dc.DrawRectangle(float64(p.X)-pad, float64(p.Y)-pad, w+2*pad, h+2*pad)
	dc.Fill()
	dc.SetColor(fg)
	dc.DrawStringAnchored(text, float64(p.X), float64(p.Y), 0, 1)
}

// DrawRectangleEmpty outlines r.
func DrawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}

// DrawPolygon outlines the closed polygon through pts.
func DrawPolygon(dc *gg.Context, pts []image.Point, c color.Color, width float64) {
	if len(pts) < 2 {
		return
	}
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.MoveTo(float64(pts[0].X), float64(pts[0].Y))
	for _, p := range pts[1:] {
		dc.LineTo(float64(p.X), float64(p.Y))
	}
	dc.ClosePath()
	dc.Stroke()
}

// DrawCrosshair draws a plus sign of half-length radius centered on p.
func DrawCrosshair(dc *gg.Context, p image.Point, radius float64, c color.Color, width float64) {
	x, y := float64(p.X), float64(p.Y)
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawLine(x-radius, y, x+radius, y)
	dc.DrawLine(x, y-radius, x, y+radius)
	dc.Stroke()
}
