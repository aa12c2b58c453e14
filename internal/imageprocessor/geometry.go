package imageprocessor

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

const (
	// OutputSize is the width and height of every processed portrait.
	OutputSize = 250
	// PaddingRatio of the face width is added around the face on each side.
	PaddingRatio = 0.2
)

// Grayscale returns a single-channel copy of img.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	xdraw.Draw(gray, b, img, b.Min, xdraw.Src)
	return gray
}

// SelectLargest picks the region with the largest area. On ties the first one
// wins.
func SelectLargest(regions []Region) (Region, error) {
	if len(regions) == 0 {
		return Region{}, ErrNoFaceDetected
	}
	best := regions[0]
	for _, r := range regions[1:] {
		if r.Area() > best.Area() {
			best = r
		}
	}
	return best, nil
}

// CropWindow pads region by PaddingRatio of its width on every side and clamps
// each edge to bounds independently. The result is not canonicalised and may
// be empty or inverted when the region lies outside bounds.
//
// Near an edge the window is not square and the resize stretches it.
func CropWindow(bounds image.Rectangle, region Region) image.Rectangle {
	padding := int(math.Floor(PaddingRatio * float64(region.Width)))
	return image.Rectangle{
		Min: image.Pt(
			max(bounds.Min.X, region.X-padding),
			max(bounds.Min.Y, region.Y-padding),
		),
		Max: image.Pt(
			min(bounds.Max.X, region.X+region.Width+padding),
			min(bounds.Max.Y, region.Y+region.Height+padding),
		),
	}
}

// Crop extracts the padded window around region from img.
func Crop(img *image.NRGBA, region Region) (*image.NRGBA, error) {
	return crop(img, CropWindow(img.Bounds(), region))
}

func crop(img *image.NRGBA, window image.Rectangle) (*image.NRGBA, error) {
	if window.Dx() <= 0 || window.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateCrop, window)
	}
	return imaging.Crop(img, window), nil
}

// Resize scales img to OutputSize×OutputSize one axis at a time. A shrinking
// axis averages source pixels by covered area; a growing axis interpolates
// linearly.
func Resize(img image.Image) *image.NRGBA {
	b := img.Bounds()
	wide := imaging.Resize(img, OutputSize, b.Dy(), axisFilter(b.Dx()))
	return imaging.Resize(wide, OutputSize, OutputSize, axisFilter(b.Dy()))
}

// axisFilter picks the resampling filter for an axis of length src. Box only
// averages when shrinking; enlarged with it, pixels are just repeated.
func axisFilter(src int) imaging.ResampleFilter {
	if src > OutputSize {
		return imaging.Box
	}
	return imaging.Linear
}
