package server

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// OriginHeader is the metadata key carrying the host page origin.
const OriginHeader = "origin"

type contextKey string

const originKey contextKey = "origin"

// OriginPolicy decides which host page origins may use the bridge.
type OriginPolicy interface {
	AllowsOrigin(origin string) bool
}

// health checks are answered regardless of origin.
func exempt(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/grpc.health.v1.Health/")
}

func checkOrigin(ctx context.Context, policy OriginPolicy) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.PermissionDenied, "missing metadata")
	}
	origins := md.Get(OriginHeader)
	if len(origins) == 0 {
		return nil, status.Error(codes.PermissionDenied, "missing origin")
	}
	if !policy.AllowsOrigin(origins[0]) {
		return nil, status.Errorf(codes.PermissionDenied, "origin %q not allowed", origins[0])
	}
	return context.WithValue(ctx, originKey, origins[0]), nil
}

// UnaryOriginInterceptor rejects calls from origins outside the policy and
// records the caller's origin in the context.
func UnaryOriginInterceptor(policy OriginPolicy) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if exempt(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := checkOrigin(ctx, policy)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamOriginInterceptor is the streaming counterpart of
// UnaryOriginInterceptor.
func StreamOriginInterceptor(policy OriginPolicy) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if exempt(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := checkOrigin(ss.Context(), policy)
		if err != nil {
			return err
		}
		return handler(srv, &originStream{ServerStream: ss, ctx: ctx})
	}
}

type originStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *originStream) Context() context.Context {
	return s.ctx
}

// OriginFromContext extracts the caller's origin.
// Returns empty string if not found.
func OriginFromContext(ctx context.Context) string {
	if origin, ok := ctx.Value(originKey).(string); ok {
		return origin
	}
	return ""
}
