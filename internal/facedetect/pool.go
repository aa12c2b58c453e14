package facedetect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"go.uber.org/multierr"

	"github.com/example/face-register/internal/imageprocessor"
)

// Factory creates one detector instance for a Pool.
type Factory func() (imageprocessor.Detector, error)

// Pool shares a fixed set of detectors that are not safe for concurrent use.
// Each Detect call borrows one instance exclusively.
type Pool struct {
	idle chan imageprocessor.Detector
	all  []imageprocessor.Detector
}

// NewPool builds size detectors with factory. Instances created before a
// failure are closed.
func NewPool(size int, factory Factory) (*Pool, error) {
	if size <= 0 {
		return nil, errors.New("facedetect: pool size must be positive")
	}

	p := &Pool{idle: make(chan imageprocessor.Detector, size)}
	for i := 0; i < size; i++ {
		d, err := factory()
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("facedetect: create detector %d: %w", i, err), p.Close())
		}
		p.all = append(p.all, d)
		p.idle <- d
	}
	return p, nil
}

// Size returns the number of pooled detectors.
func (p *Pool) Size() int {
	return len(p.all)
}

// Detect waits for an idle detector or for ctx to end.
func (p *Pool) Detect(ctx context.Context, gray *image.Gray, params imageprocessor.DetectParams) ([]imageprocessor.Region, error) {
	var d imageprocessor.Detector
	select {
	case d = <-p.idle:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { p.idle <- d }()

	return d.Detect(ctx, gray, params)
}

// Close releases every pooled detector that holds resources. It must not be
// called while Detect calls are in flight.
func (p *Pool) Close() error {
	var err error
	for _, d := range p.all {
		if c, ok := d.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
