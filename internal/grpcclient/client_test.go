package grpcclient

import (
	"context"
	"errors"
	"image"
	"net"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/face-register/internal/facedetect"
	"github.com/example/face-register/internal/imageprocessor"
	"github.com/example/face-register/internal/logging"
)

type recordingServer struct {
	regions   []imageprocessor.Region
	requestID string
	params    imageprocessor.DetectParams
	size      image.Point
}

func (s *recordingServer) Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(facedetect.RequestIDHeader); len(ids) > 0 {
			s.requestID = ids[0]
		}
	}
	gray, params, err := facedetect.DecodeRequest(req)
	if err != nil {
		return nil, err
	}
	s.params = params
	s.size = gray.Bounds().Size()
	return facedetect.EncodeResponse(s.regions)
}

func startServer(t *testing.T, srv facedetect.DetectorServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	facedetect.RegisterServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufconn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestFaceDetectorForwardsRequest(t *testing.T) {
	srv := &recordingServer{regions: []imageprocessor.Region{{X: 10, Y: 20, Width: 120, Height: 130}}}
	detector := NewFaceDetector(startServer(t, srv), zap.NewNop())

	ctx := logging.ContextWithRequestID(context.Background(), "req-42")
	regions, err := detector.Detect(ctx, image.NewGray(image.Rect(0, 0, 64, 48)), imageprocessor.DefaultDetectParams())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(regions) != 1 || regions[0] != srv.regions[0] {
		t.Fatalf("unexpected regions: %+v", regions)
	}
	if srv.requestID != "req-42" {
		t.Fatalf("expected request id to be forwarded, got %q", srv.requestID)
	}
	if srv.params != imageprocessor.DefaultDetectParams() {
		t.Fatalf("unexpected params: %+v", srv.params)
	}
	if srv.size != image.Pt(64, 48) {
		t.Fatalf("unexpected raster size: %v", srv.size)
	}
}

type failingServer struct{}

func (failingServer) Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return nil, errors.New("unavailable")
}

func TestFaceDetectorReturnsOperationError(t *testing.T) {
	detector := NewFaceDetector(startServer(t, failingServer{}), zap.NewNop())

	ctx := logging.ContextWithRequestID(context.Background(), "req-7")
	_, err := detector.Detect(ctx, image.NewGray(image.Rect(0, 0, 8, 8)), imageprocessor.DefaultDetectParams())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "grpcclient.detect_faces" || opErr.RequestID != "req-7" {
		t.Fatalf("unexpected operation error: %+v", opErr)
	}
}
