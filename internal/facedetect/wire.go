package facedetect

import (
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/face-register/internal/imageprocessor"
)

const (
	// ServiceName is the gRPC service exposing a face detector.
	ServiceName = "facedetect.v1.FaceDetector"
	// DetectMethod is the full method name of the Detect RPC.
	DetectMethod = "/" + ServiceName + "/Detect"

	// MaxPixels bounds the raster size accepted over the wire.
	MaxPixels = 40 << 20
	// MaxDimension bounds each side of a raster and each size parameter.
	MaxDimension = 1 << 15
)

// EncodeRequest packs a grayscale raster and detection parameters into a
// Detect request. Rows are packed without stride padding.
func EncodeRequest(gray *image.Gray, params imageprocessor.DetectParams) (*structpb.Struct, error) {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := gray.PixOffset(b.Min.X, y)
		pix = append(pix, gray.Pix[off:off+w]...)
	}

	return structpb.NewStruct(map[string]interface{}{
		"width":         float64(w),
		"height":        float64(h),
		"pixels":        base64.StdEncoding.EncodeToString(pix),
		"scale_factor":  params.ScaleFactor,
		"min_neighbors": float64(params.MinNeighbors),
		"min_width":     float64(params.MinSize.X),
		"min_height":    float64(params.MinSize.Y),
	})
}

// DecodeRequest is the inverse of EncodeRequest.
func DecodeRequest(req *structpb.Struct) (*image.Gray, imageprocessor.DetectParams, error) {
	var params imageprocessor.DetectParams
	fields := req.GetFields()

	w, err := wholeNumber(fields, "width")
	if err != nil {
		return nil, params, err
	}
	h, err := wholeNumber(fields, "height")
	if err != nil {
		return nil, params, err
	}
	if w == 0 || h == 0 || w > MaxPixels/h {
		return nil, params, fmt.Errorf("invalid raster size %dx%d", w, h)
	}

	pix, err := base64.StdEncoding.DecodeString(fields["pixels"].GetStringValue())
	if err != nil {
		return nil, params, fmt.Errorf("decode pixels: %w", err)
	}
	if len(pix) != w*h {
		return nil, params, fmt.Errorf("expected %d pixels, got %d", w*h, len(pix))
	}

	scale := fields["scale_factor"].GetNumberValue()
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 1 {
		return nil, params, fmt.Errorf("scale factor must be a finite number greater than 1, got %v", scale)
	}
	neighbors, err := wholeNumber(fields, "min_neighbors")
	if err != nil {
		return nil, params, err
	}
	minW, err := wholeNumber(fields, "min_width")
	if err != nil {
		return nil, params, err
	}
	minH, err := wholeNumber(fields, "min_height")
	if err != nil {
		return nil, params, err
	}

	params = imageprocessor.DetectParams{
		ScaleFactor:  scale,
		MinNeighbors: neighbors,
		MinSize:      image.Pt(minW, minH),
	}
	return &image.Gray{Pix: pix, Stride: w, Rect: image.Rect(0, 0, w, h)}, params, nil
}

// wholeNumber reads fields[key] as an integer in [0, MaxDimension].
func wholeNumber(fields map[string]*structpb.Value, key string) (int, error) {
	v := fields[key].GetNumberValue()
	if math.IsNaN(v) || v < 0 || v > MaxDimension || v != math.Trunc(v) {
		return 0, fmt.Errorf("%s must be a whole number between 0 and %d, got %v", key, MaxDimension, v)
	}
	return int(v), nil
}

// EncodeResponse packs detected regions into a Detect response.
func EncodeResponse(regions []imageprocessor.Region) (*structpb.Struct, error) {
	faces := make([]interface{}, 0, len(regions))
	for _, r := range regions {
		faces = append(faces, map[string]interface{}{
			"x":      float64(r.X),
			"y":      float64(r.Y),
			"width":  float64(r.Width),
			"height": float64(r.Height),
		})
	}
	return structpb.NewStruct(map[string]interface{}{"faces": faces})
}

// DecodeResponse is the inverse of EncodeResponse.
func DecodeResponse(resp *structpb.Struct) ([]imageprocessor.Region, error) {
	values := resp.GetFields()["faces"].GetListValue().GetValues()
	regions := make([]imageprocessor.Region, 0, len(values))
	for i, v := range values {
		face := v.GetStructValue()
		if face == nil {
			return nil, fmt.Errorf("face %d is not an object", i)
		}
		f := face.GetFields()
		regions = append(regions, imageprocessor.Region{
			X:      int(f["x"].GetNumberValue()),
			Y:      int(f["y"].GetNumberValue()),
			Width:  int(f["width"].GetNumberValue()),
			Height: int(f["height"].GetNumberValue()),
		})
	}
	return regions, nil
}
