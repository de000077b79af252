package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName        = "stewardlens.v1.SnapshotService"
	sendSnapshotMethod = "/" + ServiceName + "/SendSnapshot"
)

// SnapshotServiceServer is implemented by the server-side receiver.
type SnapshotServiceServer interface {
	SendSnapshot(context.Context, *Snapshot) (*SendResponse, error)
}

// UnimplementedSnapshotServiceServer can be embedded for forward compatibility.
type UnimplementedSnapshotServiceServer struct{}

func (UnimplementedSnapshotServiceServer) SendSnapshot(context.Context, *Snapshot) (*SendResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SendSnapshot not implemented")
}

// RegisterSnapshotServiceServer registers srv on s.
func RegisterSnapshotServiceServer(s grpc.ServiceRegistrar, srv SnapshotServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func sendSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Snapshot)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotServiceServer).SendSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: sendSnapshotMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SnapshotServiceServer).SendSnapshot(ctx, req.(*Snapshot))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes SnapshotService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendSnapshot",
			Handler:    sendSnapshotHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stewardlens/v1/snapshot",
}

// SnapshotServiceClient is the agent-side stub.
type SnapshotServiceClient interface {
	SendSnapshot(ctx context.Context, in *Snapshot, opts ...grpc.CallOption) (*SendResponse, error)
}

type snapshotServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSnapshotServiceClient returns a client that sends every call with the
// JSON codec.
func NewSnapshotServiceClient(cc grpc.ClientConnInterface) SnapshotServiceClient {
	return &snapshotServiceClient{cc: cc}
}

func (c *snapshotServiceClient) SendSnapshot(ctx context.Context, in *Snapshot, opts ...grpc.CallOption) (*SendResponse, error) {
	out := new(SendResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, sendSnapshotMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
