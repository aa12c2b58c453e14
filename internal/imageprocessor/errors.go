package imageprocessor

import "errors"

var (
	ErrMissingInput      = errors.New("photo data is required")
	ErrMalformedEnvelope = errors.New("invalid Base64 string format, unable to decode image")
	ErrUndecodableRaster = errors.New("invalid image data")
	ErrNoFaceDetected    = errors.New("no face detected in the image")
	ErrDegenerateCrop    = errors.New("face crop window is empty")
	ErrEncodingFailure   = errors.New("failed to encode processed image")
	ErrDetection         = errors.New("face detection failed")
)

// userErrors can be fixed by submitting a different photo.
var userErrors = []error{
	ErrMissingInput,
	ErrMalformedEnvelope,
	ErrUndecodableRaster,
	ErrNoFaceDetected,
}

var allErrors = append(append([]error{}, userErrors...), ErrDegenerateCrop, ErrEncodingFailure, ErrDetection)

// IsClientError reports whether err was caused by the submitted photo itself.
func IsClientError(err error) bool {
	for _, kind := range userErrors {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Reason returns the short message of the pipeline error class err belongs to,
// without any wrapped detail. It returns "" for errors from elsewhere.
func Reason(err error) string {
	for _, kind := range allErrors {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ""
}
