package auth

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// APIKeyInterceptor returns a gRPC UnaryServerInterceptor that requires the
// metadata entry named header to equal key on every call. When mode is not
// "apikey" or key is empty it is a pass-through.
//
// gRPC lowercases metadata keys, so header should be lowercase.
func APIKeyInterceptor(mode, header, key string) grpc.UnaryServerInterceptor {
	check := newKeyCheck(mode, header, key)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if check == nil {
			return handler(ctx, req)
		}
		if err := check.fromMetadata(ctx); err != nil {
			slog.Warn("auth: rejected grpc call", "method", info.FullMethod, "peer", peerAddr(ctx), "reason", status.Convert(err).Message())
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (c *keyCheck) fromMetadata(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get(c.header)
	if len(vals) == 0 || !c.match(vals[0]) {
		return status.Error(codes.Unauthenticated, "invalid api key")
	}
	return nil
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}
