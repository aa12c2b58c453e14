package facedetect

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/face-register/internal/imageprocessor"
	"github.com/example/face-register/internal/logging"
)

// RequestIDHeader carries the caller's request id in gRPC metadata.
const RequestIDHeader = "x-request-id"

// DetectorServer is the server API for the FaceDetector service.
type DetectorServer interface {
	Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Server serves a local Detector to remote callers.
type Server struct {
	detector imageprocessor.Detector
	logger   *zap.Logger
}

// NewServer wraps detector for gRPC. A pooled detector should be used when
// the underlying model is not safe for concurrent use.
func NewServer(detector imageprocessor.Detector, logger *zap.Logger) *Server {
	return &Server{detector: detector, logger: logger.Named("facedetect_server")}
}

// Detect implements DetectorServer.
func (s *Server) Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	opLogger := logging.WithOperation(s.logger, "facedetect.detect", requestIDFromMetadata(ctx))

	gray, params, err := DecodeRequest(req)
	if err != nil {
		opLogger.Warn("rejected detect request", zap.Error(err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	started := time.Now()
	regions, err := s.detector.Detect(ctx, gray, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, status.FromContextError(ctxErr).Err()
		}
		opLogger.Error("detection failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "detection failed")
	}

	opLogger.Debug("detection finished",
		zap.Int("faces", len(regions)),
		zap.Int("width", gray.Rect.Dx()),
		zap.Int("height", gray.Rect.Dy()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return EncodeResponse(regions)
}

// RegisterServer registers srv on gs under ServiceName.
func RegisterServer(gs grpc.ServiceRegistrar, srv DetectorServer) {
	gs.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DetectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Detect",
			Handler:    detectHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "facedetect/v1/facedetect.proto",
}

func detectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DetectorServer).Detect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: DetectMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DetectorServer).Detect(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func requestIDFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(RequestIDHeader); len(values) > 0 {
		return values[0]
	}
	return ""
}
