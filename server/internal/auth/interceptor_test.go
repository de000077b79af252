package auth

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestAPIKeyInterceptor(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		header string // interceptor header
		key    string // configured key
		md     metadata.MD
		want   codes.Code
	}{
		{"mode none passes without metadata", "none", "x-api-key", "secret", nil, codes.OK},
		{"mtls mode is not checked here", "mtls", "x-api-key", "secret", nil, codes.OK},
		{"empty key passes", "apikey", "x-api-key", "", nil, codes.OK},
		{"correct key", "apikey", "x-api-key", "secret", metadata.Pairs("x-api-key", "secret"), codes.OK},
		{"custom header", "apikey", "x-steward-token", "tok", metadata.Pairs("x-steward-token", "tok"), codes.OK},
		{"wrong key", "apikey", "x-api-key", "secret", metadata.Pairs("x-api-key", "nope"), codes.Unauthenticated},
		{"key under other header", "apikey", "x-steward-token", "tok", metadata.Pairs("x-api-key", "tok"), codes.Unauthenticated},
		{"empty metadata", "apikey", "x-api-key", "secret", metadata.MD{}, codes.Unauthenticated},
		{"no metadata", "apikey", "x-api-key", "secret", nil, codes.Unauthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}

			called := false
			handler := func(context.Context, any) (any, error) {
				called = true
				return "ok", nil
			}
			info := &grpc.UnaryServerInfo{FullMethod: "/stewardlens.v1.SnapshotService/SendSnapshot"}

			res, err := APIKeyInterceptor(tc.mode, tc.header, tc.key)(ctx, nil, info, handler)
			if code := status.Code(err); code != tc.want {
				t.Fatalf("code: got %v, want %v (err %v)", code, tc.want, err)
			}
			if tc.want == codes.OK {
				if res != "ok" {
					t.Errorf("result: got %v, want ok", res)
				}
			} else if called {
				t.Error("handler ran for a rejected call")
			}
		})
	}
}

func TestKeyCheck_Disabled(t *testing.T) {
	if newKeyCheck("none", "x-api-key", "k") != nil {
		t.Error("mode none: expected disabled check")
	}
	if newKeyCheck(ModeAPIKey, "x-api-key", "") != nil {
		t.Error("empty key: expected disabled check")
	}
	c := newKeyCheck(ModeAPIKey, "x-api-key", "k")
	if c == nil || !c.match("k") || c.match("") || c.match("kk") {
		t.Errorf("match: unexpected result for %+v", c)
	}
}
