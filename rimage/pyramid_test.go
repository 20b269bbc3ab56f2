package rimage

import (
	"image"
	"testing"

	"go.viam.com/test"
)

func TestGetImagePyramid(t *testing.T) {
	img := MakeGray(GenerateTexture(100, 80, 40, 1))
	pyramid, err := GetImagePyramid(img, 4, 2, 20)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pyramid.Scales, test.ShouldResemble, []float64{1, 2, 4})
	test.That(t, pyramid.Images, test.ShouldHaveLength, 3)
	test.That(t, pyramid.Images[0], test.ShouldEqual, img)
	test.That(t, pyramid.Images[1].Bounds().Size(), test.ShouldResemble, image.Pt(50, 40))
	test.That(t, pyramid.Images[2].Bounds().Size(), test.ShouldResemble, image.Pt(25, 20))

	single, err := GetImagePyramid(img, 1, 1.2, 8)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, single.Images, test.ShouldHaveLength, 1)

	_, err = GetImagePyramid(image.NewGray(image.Rect(0, 0, 0, 0)), 3, 2, 8)
	test.That(t, err, test.ShouldBeError, ErrEmptyImage)
	_, err = GetImagePyramid(img, 0, 2, 8)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = GetImagePyramid(img, 3, 1, 8)
	test.That(t, err, test.ShouldNotBeNil)
}
