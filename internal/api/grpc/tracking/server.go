package tracking

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	pb "github.com/oshokin/uwb-tracker/internal/pb/v1"
)

// Reader abstracts the snapshot the transport layer serves.
type Reader interface {
	Positions() []domain.Position
	Anchors() []domain.Anchor
}

// Server implements the TrackingService gRPC API.
type Server struct {
	pb.UnimplementedTrackingServiceServer

	// reader provides the latest published state.
	reader Reader
}

// NewServer wires the provided reader into a gRPC handler.
func NewServer(reader Reader) *Server {
	return &Server{
		reader: reader,
	}
}

// ListPositions returns the latest solved position of every tag.
func (s *Server) ListPositions(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	resp, err := EncodePositions(s.reader.Positions())
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode positions")
	}

	return resp, nil
}

// ListAnchors returns every anchor with its liveness.
func (s *Server) ListAnchors(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	resp, err := EncodeAnchors(s.reader.Anchors())
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode anchors")
	}

	return resp, nil
}

var _ pb.TrackingServiceServer = (*Server)(nil)
