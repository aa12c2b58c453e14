package grpcclient

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/face-register/internal/facedetect"
	"github.com/example/face-register/internal/imageprocessor"
	"github.com/example/face-register/internal/logging"
)

// DialFaceDetector returns a ready-to-use detector backed by a remote
// face detection service.
func DialFaceDetector(ctx context.Context, addr string, logger *zap.Logger) (imageprocessor.Detector, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_face_detector", "", err)
		logger.Error("failed to dial face detector", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewFaceDetector(conn, logger), conn, nil
}

// NewFaceDetector wraps an existing connection.
func NewFaceDetector(conn grpc.ClientConnInterface, logger *zap.Logger) imageprocessor.Detector {
	return &grpcFaceDetector{conn: conn, logger: logger}
}

type grpcFaceDetector struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

func (g *grpcFaceDetector) Detect(ctx context.Context, gray *image.Gray, params imageprocessor.DetectParams) ([]imageprocessor.Region, error) {
	requestID := logging.RequestIDFromContext(ctx)

	req, err := facedetect.EncodeRequest(gray, params)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.encode_request", requestID, err)
	}
	if requestID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, facedetect.RequestIDHeader, requestID)
	}

	resp := new(structpb.Struct)
	if err := g.conn.Invoke(ctx, facedetect.DetectMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.detect_faces", requestID, err)
		g.logger.Error("face detector call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	regions, err := facedetect.DecodeResponse(resp)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.decode_response", requestID, err)
	}
	return regions, nil
}
