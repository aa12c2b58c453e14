package imageprocessor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// EncodedPrefix is prepended to every processed portrait.
	EncodedPrefix = "data:image/jpeg;base64,"
	// JPEGQuality is the quality level of the re-encoded portrait.
	JPEGQuality = 90
)

// Decode parses a "<header>,<base64>" envelope into an opaque colour raster.
// The container format is sniffed from the payload; the header's declared
// media type is ignored.
func Decode(blob string) (*image.NRGBA, error) {
	if blob == "" {
		return nil, ErrMissingInput
	}

	header, payload, found := strings.Cut(blob, ",")
	if !found {
		return nil, fmt.Errorf("%w: missing header separator", ErrMalformedEnvelope)
	}
	if strings.TrimSpace(header) == "" {
		return nil, fmt.Errorf("%w: empty header", ErrMalformedEnvelope)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodableRaster, err)
	}
	return opaque(img), nil
}

// Encode compresses img as JPEG and wraps it in a data URL.
func Encode(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncodingFailure, err)
	}
	return EncodedPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// opaque copies img into a zero-origin NRGBA buffer and drops the alpha
// channel, keeping the stored colour of transparent pixels.
func opaque(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
