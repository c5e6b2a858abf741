// Package grpc exposes the identity service over gRPC. Messages are
// google.protobuf.Struct values and the service descriptor is declared by hand.
package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/server/models"
	"github.com/dmitrijs2005/khazana/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "khazana.identity.v1.IdentityService"

	methodIssueToken     = "/" + ServiceName + "/IssueToken"
	methodWhoAmI         = "/" + ServiceName + "/WhoAmI"
	methodChangePassword = "/" + ServiceName + "/ChangePassword"
)

// IdentityServiceServer is the handler type of the hand-written descriptor.
type IdentityServiceServer interface {
	IssueToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func Register(server grpc.ServiceRegistrar, svc IdentityServiceServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*IdentityServiceServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "IssueToken", Handler: unaryHandler(methodIssueToken, IdentityServiceServer.IssueToken)},
			{MethodName: "WhoAmI", Handler: unaryHandler(methodWhoAmI, IdentityServiceServer.WhoAmI)},
			{MethodName: "ChangePassword", Handler: unaryHandler(methodChangePassword, IdentityServiceServer.ChangePassword)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "khazana/identity/v1/identity.proto",
	}, svc)
}

type structMethod func(IdentityServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		svc := srv.(IdentityServiceServer)
		if interceptor == nil {
			return call(svc, ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(svc, ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func (s *GRPCServer) IssueToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	username := fields["username"].GetStringValue()
	password := fields["password"].GetStringValue()
	if username == "" || password == "" {
		return nil, statusFromError(common.ErrInvalidCredentials)
	}

	var scopes []string
	for _, v := range fields["scopes"].GetListValue().GetValues() {
		scopes = append(scopes, v.GetStringValue())
	}

	result, err := s.service.IssueToken(ctx, services.ExchangeRequest{
		Username: username,
		Password: password,
		Scopes:   scopes,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return newStruct(map[string]any{
		"access_token":            result.Token.Raw,
		"token_type":              common.BearerTokenType,
		"scopes":                  toList(result.Token.GrantedScopes),
		"firstLogin":              result.FirstLogin,
		"passwordPolicyViolation": result.PasswordPolicyViolation,
		"expires_at":              result.Token.ExpiresAt.Unix(),
	})
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	principal, ok := principalFromContext(ctx)
	if !ok {
		return nil, statusFromError(common.ErrUnauthenticated)
	}
	return viewStruct(s.service.Me(principal))
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	principal, ok := principalFromContext(ctx)
	if !ok {
		return nil, statusFromError(common.ErrUnauthenticated)
	}

	fields := req.GetFields()
	view, err := s.service.ChangePassword(ctx, principal, services.ChangePasswordRequest{
		OldPassword:  fields["oldPassword"].GetStringValue(),
		NewPassword:  fields["newPassword"].GetStringValue(),
		EmailAddress: fields["emailAddress"].GetStringValue(),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return viewStruct(view)
}

func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	st := statusFromError(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error(ctx, "request failed", "error", err)
	}
	return st
}

// statusFromError maps service errors onto gRPC status codes.
func statusFromError(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "incorrect username or password")
	case errors.Is(err, common.ErrTokenMalformed),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "could not validate credentials")
	case errors.Is(err, common.ErrFirstLoginRequired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrScopeNotGranted),
		errors.Is(err, common.ErrPrivilegeEscalation),
		errors.Is(err, common.ErrAdminRequired),
		errors.Is(err, common.ErrAdminProtected):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrPasswordTooShort),
		errors.Is(err, common.ErrPasswordTooLong),
		errors.Is(err, common.ErrWeakPassword),
		errors.Is(err, common.ErrIncorrectPassword),
		errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrAccountLocked):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, common.ErrorInternal.Error())
	}
}

func viewStruct(v models.IdentityView) (*structpb.Struct, error) {
	var email any
	if v.EmailAddress != nil {
		email = *v.EmailAddress
	}
	return newStruct(map[string]any{
		"username":     v.Username,
		"emailAddress": email,
		"scopes":       toList(v.Scopes),
		"firstLogin":   v.FirstLogin,
	})
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func toList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
