package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// TrackingServiceName is the fully qualified service name.
	TrackingServiceName = "uwbtracker.v1.TrackingService"

	// TrackingServiceListPositionsFullMethodName is the ListPositions method path.
	TrackingServiceListPositionsFullMethodName = "/" + TrackingServiceName + "/ListPositions"
	// TrackingServiceListAnchorsFullMethodName is the ListAnchors method path.
	TrackingServiceListAnchorsFullMethodName = "/" + TrackingServiceName + "/ListAnchors"
)

// TrackingServiceServer is the server API for TrackingService.
type TrackingServiceServer interface {
	// ListPositions returns {"positions": [...]} with the latest solved tag positions.
	ListPositions(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	// ListAnchors returns {"anchors": [...]} with anchors and their liveness.
	ListAnchors(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedTrackingServiceServer can be embedded for forward compatibility.
type UnimplementedTrackingServiceServer struct{}

// ListPositions returns codes.Unimplemented.
func (UnimplementedTrackingServiceServer) ListPositions(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPositions not implemented")
}

// ListAnchors returns codes.Unimplemented.
func (UnimplementedTrackingServiceServer) ListAnchors(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAnchors not implemented")
}

// RegisterTrackingServiceServer registers srv on s.
func RegisterTrackingServiceServer(s grpc.ServiceRegistrar, srv TrackingServiceServer) {
	s.RegisterService(&TrackingServiceDesc, srv)
}

func listPositionsHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(TrackingServiceServer).ListPositions(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TrackingServiceListPositionsFullMethodName,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TrackingServiceServer).ListPositions(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func listAnchorsHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(TrackingServiceServer).ListAnchors(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TrackingServiceListAnchorsFullMethodName,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TrackingServiceServer).ListAnchors(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

// TrackingServiceDesc is the grpc.ServiceDesc for TrackingService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var TrackingServiceDesc = grpc.ServiceDesc{
	ServiceName: TrackingServiceName,
	HandlerType: (*TrackingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListPositions", Handler: listPositionsHandler},
		{MethodName: "ListAnchors", Handler: listAnchorsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "uwbtracker/v1/tracking.proto",
}

// TrackingServiceClient is the client API for TrackingService.
type TrackingServiceClient interface {
	ListPositions(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListAnchors(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type trackingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewTrackingServiceClient wraps cc.
func NewTrackingServiceClient(cc grpc.ClientConnInterface) TrackingServiceClient {
	return &trackingServiceClient{cc: cc}
}

func (c *trackingServiceClient) ListPositions(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TrackingServiceListPositionsFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *trackingServiceClient) ListAnchors(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TrackingServiceListAnchorsFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
