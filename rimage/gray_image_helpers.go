// Package rimage holds the gray-image helpers the vision pipeline is built on: conversion,
// padding, convolution, and image pyramids.
package rimage

import (
	"image"
	"image/draw"

	"github.com/pkg/errors"
)

// ErrEmptyImage is returned when an operation is handed a nil or zero-sized image.
var ErrEmptyImage = errors.New("image is empty")

// IsEmpty reports whether img is nil or has no pixels.
func IsEmpty(img image.Image) bool {
	if img == nil {
		return true
	}
	return img.Bounds().Empty()
}

// SameImgSize checks if two images have the same dimensions.
func SameImgSize(g1, g2 image.Image) bool {
	return g1.Bounds().Dx() == g2.Bounds().Dx() && g1.Bounds().Dy() == g2.Bounds().Dy()
}

// MakeGray converts an image to grayscale with its origin moved to (0, 0). Gray images already
// at the origin are returned as is.
func MakeGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	bounds := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// MeanIntensity returns the average gray level of an image.
func MeanIntensity(img *image.Gray) float64 {
	if IsEmpty(img) {
		return 0
	}
	sum := 0
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, y):img.PixOffset(bounds.Max.X, y)]
		for _, v := range row {
			sum += int(v)
		}
	}
	return float64(sum) / float64(bounds.Dx()*bounds.Dy())
}
