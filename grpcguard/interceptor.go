// Package grpcguard runs the goGuard pipeline in front of gRPC handlers.
//
// The full method name ("/pkg.Service/Method") is used as the request path, so routes
// and rate-limit policies are configured with service or method prefixes.
package grpcguard

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor evaluates every unary call. Forwarded calls carry the session
// in their context.
func UnaryServerInterceptor(engine *goGuard.Engine, logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := evaluate(ctx, engine, info.FullMethod, logger)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor evaluates a stream once, when it opens.
func StreamServerInterceptor(engine *goGuard.Engine, logger *slog.Logger) grpc.StreamServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := evaluate(ss.Context(), engine, info.FullMethod, logger)
		if err != nil {
			return err
		}
		return handler(srv, &contextServerStream{ServerStream: ss, ctx: ctx})
	}
}

func evaluate(ctx context.Context, engine *goGuard.Engine, fullMethod string, logger *slog.Logger) (context.Context, error) {
	if engine == nil {
		return ctx, status.Error(codes.Unavailable, "service unavailable")
	}

	rc := requestContext(ctx, fullMethod)
	route, _ := engine.RouteFor(fullMethod)
	d := engine.Evaluate(ctx, rc, route)
	if !d.Forwarded() {
		logger.Debug("grpc call rejected",
			slog.String("method", fullMethod),
			slog.String("reason", string(d.Reason)),
		)
		if ra := d.Header.Get("Retry-After"); ra != "" {
			if err := grpc.SetHeader(ctx, metadata.Pairs("retry-after", ra)); err != nil {
				logger.Debug("grpc retry-after header not set",
					slog.String("method", fullMethod),
					slog.String("error", err.Error()),
				)
			}
		}
		return ctx, statusFor(d.Status)
	}

	ctx = goGuard.WithDecision(ctx, d)
	if d.Session != nil {
		ctx = goGuard.WithSession(ctx, d.Session)
	}
	return ctx, nil
}

func requestContext(ctx context.Context, fullMethod string) goGuard.RequestContext {
	rc := goGuard.RequestContext{
		Path:   fullMethod,
		Method: http.MethodPost,
		Header: make(http.Header),
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		rc.IP = p.Addr.String()
		if host, _, err := net.SplitHostPort(rc.IP); err == nil {
			rc.IP = host
		}
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for k, vals := range md {
			for _, v := range vals {
				rc.Header.Add(k, v)
			}
		}
		if vals := md.Get("user-agent"); len(vals) > 0 {
			rc.UserAgent = vals[0]
		}
		if vals := md.Get("authorization"); len(vals) > 0 {
			rc.Token = goGuard.ExtractToken(vals[0], "Bearer")
		}
	}
	return rc
}

func statusFor(httpStatus int) error {
	switch httpStatus {
	case http.StatusTooManyRequests:
		return status.Error(codes.ResourceExhausted, "too many requests")
	case http.StatusUnauthorized:
		return status.Error(codes.Unauthenticated, "unauthorized")
	case http.StatusForbidden:
		return status.Error(codes.PermissionDenied, "access denied")
	default:
		return status.Error(codes.Unavailable, "service unavailable")
	}
}

type contextServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextServerStream) Context() context.Context {
	return s.ctx
}
