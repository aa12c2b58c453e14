// Package cascade detects faces with an OpenCV Haar cascade classifier.
package cascade

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/example/face-register/internal/facedetect"
	"github.com/example/face-register/internal/imageprocessor"
)

// Classifier wraps one loaded cascade. It is not safe for concurrent use.
type Classifier struct {
	classifier gocv.CascadeClassifier
}

// Load reads a cascade definition such as haarcascade_frontalface_default.xml.
func Load(path string) (*Classifier, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("cascade: unable to load classifier from %q", path)
	}
	return &Classifier{classifier: classifier}, nil
}

// NewPool loads size independent classifiers from path.
func NewPool(path string, size int) (*facedetect.Pool, error) {
	return facedetect.NewPool(size, func() (imageprocessor.Detector, error) {
		return Load(path)
	})
}

// Detect runs multi-scale detection on gray.
func (c *Classifier) Detect(ctx context.Context, gray *image.Gray, params imageprocessor.DetectParams) ([]imageprocessor.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("cascade: convert raster: %w", err)
	}
	defer mat.Close()

	rects := c.classifier.DetectMultiScaleWithParams(
		mat,
		params.ScaleFactor,
		params.MinNeighbors,
		0,
		params.MinSize,
		image.Point{},
	)

	regions := make([]imageprocessor.Region, 0, len(rects))
	for _, r := range rects {
		regions = append(regions, imageprocessor.RegionFromRect(r))
	}
	return regions, nil
}

// Close frees the native classifier.
func (c *Classifier) Close() error {
	return c.classifier.Close()
}
