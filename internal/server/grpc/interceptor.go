package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/server/auth"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const principalKey ctxKey = "principal"

// methodRequirements lists the gated methods. Methods not listed are public.
var methodRequirements = map[string]auth.Requirement{
	methodWhoAmI:         {Scopes: []scope.Scope{scope.Me}, AllowOnFirstLogin: true},
	methodChangePassword: {Scopes: []scope.Scope{scope.Me}, AllowOnFirstLogin: true},
}

func (s *GRPCServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	requirement, ok := methodRequirements[info.FullMethod]
	if !ok {
		return handler(ctx, req)
	}

	raw, err := bearerTokenFromMetadata(ctx)
	if err != nil {
		return nil, statusFromError(err)
	}

	principal, err := s.service.Authorize(ctx, raw, requirement)
	if err != nil {
		return nil, statusFromError(err)
	}

	return handler(context.WithValue(ctx, principalKey, principal), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	fields := []any{
		"method", info.FullMethod,
		"code", code.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if code == codes.Internal {
		s.logger.Error(ctx, "grpc call failed", append(fields, "error", err)...)
	} else {
		s.logger.Info(ctx, "grpc call completed", fields...)
	}
	return resp, err
}

func principalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok && p != nil
}

func bearerTokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", common.ErrUnauthenticated
	}
	values := md.Get(common.AuthorizationHeaderName)
	if len(values) == 0 {
		return "", common.ErrUnauthenticated
	}

	scheme, token, ok := strings.Cut(strings.TrimSpace(values[0]), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerTokenType) {
		return "", common.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", common.ErrUnauthenticated
	}
	return token, nil
}
