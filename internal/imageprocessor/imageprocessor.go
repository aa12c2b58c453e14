package imageprocessor

import (
	"context"
	"fmt"
	"image"
)

// Detection parameters passed to the face detector on every call.
const (
	ScaleFactor  = 1.1
	MinNeighbors = 5
	MinFaceSize  = 100
)

// Region is a candidate face rectangle in source pixel coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns Width*Height.
func (r Region) Area() int {
	return r.Width * r.Height
}

// Rect converts the region to an image.Rectangle without canonicalising it.
func (r Region) Rect() image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(r.X, r.Y),
		Max: image.Pt(r.X+r.Width, r.Y+r.Height),
	}
}

// RegionFromRect is the inverse of Rect.
func RegionFromRect(rect image.Rectangle) Region {
	return Region{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}
}

// DetectParams tunes the sensitivity of a Detector.
type DetectParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      image.Point
}

// DefaultDetectParams returns the parameters the pipeline always uses.
func DefaultDetectParams() DetectParams {
	return DetectParams{
		ScaleFactor:  ScaleFactor,
		MinNeighbors: MinNeighbors,
		MinSize:      image.Pt(MinFaceSize, MinFaceSize),
	}
}

// Detector finds candidate face regions in a grayscale raster. Implementations
// that are not safe for concurrent use must be pooled by the caller.
type Detector interface {
	Detect(ctx context.Context, gray *image.Gray, params DetectParams) ([]Region, error)
}

// CropObserver receives the crop window and the cropped raster before resizing.
type CropObserver func(window image.Rectangle, cropped *image.NRGBA)

// Option configures a Processor.
type Option func(*Processor)

// WithCropObserver registers a hook invoked after the crop stage.
func WithCropObserver(fn CropObserver) Option {
	return func(p *Processor) {
		p.onCrop = fn
	}
}

// Processor turns a submitted photo envelope into a normalized portrait. It
// keeps no per-call state, so one instance can serve concurrent requests as
// long as its Detector can.
type Processor struct {
	detector Detector
	params   DetectParams
	onCrop   CropObserver
}

// NewProcessor builds a Processor around the given face detector.
func NewProcessor(detector Detector, opts ...Option) *Processor {
	p := &Processor{
		detector: detector,
		params:   DefaultDetectParams(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process decodes the envelope, crops the largest detected face with padding,
// resizes it to OutputSize×OutputSize and returns it as a JPEG data URL.
func (p *Processor) Process(ctx context.Context, blob string) (string, error) {
	img, err := Decode(blob)
	if err != nil {
		return "", err
	}

	gray := Grayscale(img)
	regions, err := p.detector.Detect(ctx, gray, p.params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDetection, err)
	}

	face, err := SelectLargest(regions)
	if err != nil {
		return "", err
	}

	window := CropWindow(img.Bounds(), face)
	cropped, err := crop(img, window)
	if err != nil {
		return "", err
	}
	if p.onCrop != nil {
		p.onCrop(window, cropped)
	}

	return Encode(Resize(cropped))
}
