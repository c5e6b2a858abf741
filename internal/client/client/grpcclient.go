package client

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/khazana/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName = "khazana.identity.v1.IdentityService"

	methodIssueToken     = "/" + serviceName + "/IssueToken"
	methodWhoAmI         = "/" + serviceName + "/WhoAmI"
	methodChangePassword = "/" + serviceName + "/ChangePassword"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
}

// NewGRPCClient creates a client for endpointURL. Extra dial options are
// appended after the defaults.
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(errorInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AuthorizationHeaderName, "Bearer "+token)
	return metadata.NewOutgoingContext(ctx, md)
}

// errorInterceptor turns status errors into the package sentinels.
func errorInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if err := invoker(ctx, method, req, reply, cc, opts...); err != nil {
		return mapError(err)
	}
	return nil
}

func mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var sentinel error
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		sentinel = ErrUnavailable
	case codes.Unauthenticated:
		sentinel = ErrUnauthorized
	case codes.PermissionDenied:
		sentinel = ErrForbidden
	case codes.ResourceExhausted:
		sentinel = ErrLocked
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists:
		sentinel = ErrRejected
	default:
		sentinel = ErrServer
	}
	return &APIError{Err: sentinel, Detail: st.Message()}
}

func (c *GRPCClient) invoke(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GRPCClient) IssueToken(ctx context.Context, username, password string, scopes []string) (*Token, error) {
	list := make([]any, len(scopes))
	for i, s := range scopes {
		list[i] = s
	}

	resp, err := c.invoke(ctx, methodIssueToken, map[string]any{
		"username": username,
		"password": password,
		"scopes":   list,
	})
	if err != nil {
		return nil, err
	}

	f := resp.GetFields()
	return &Token{
		AccessToken:             f["access_token"].GetStringValue(),
		TokenType:               f["token_type"].GetStringValue(),
		Scopes:                  stringList(f["scopes"]),
		FirstLogin:              f["firstLogin"].GetBoolValue(),
		PasswordPolicyViolation: f["passwordPolicyViolation"].GetBoolValue(),
	}, nil
}

func (c *GRPCClient) Me(ctx context.Context, token string) (*Identity, error) {
	resp, err := c.invoke(withAccessToken(ctx, token), methodWhoAmI, map[string]any{})
	if err != nil {
		return nil, err
	}
	return identityFromStruct(resp), nil
}

func (c *GRPCClient) ChangePassword(ctx context.Context, token string, change PasswordChange) (*Identity, error) {
	resp, err := c.invoke(withAccessToken(ctx, token), methodChangePassword, map[string]any{
		"oldPassword":  change.OldPassword,
		"newPassword":  change.NewPassword,
		"emailAddress": change.EmailAddress,
	})
	if err != nil {
		return nil, err
	}
	return identityFromStruct(resp), nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func identityFromStruct(s *structpb.Struct) *Identity {
	f := s.GetFields()
	identity := &Identity{
		Username:   f["username"].GetStringValue(),
		Scopes:     stringList(f["scopes"]),
		FirstLogin: f["firstLogin"].GetBoolValue(),
	}
	if v, ok := f["emailAddress"].GetKind().(*structpb.Value_StringValue); ok {
		email := v.StringValue
		identity.EmailAddress = &email
	}
	return identity
}

func stringList(v *structpb.Value) []string {
	values := v.GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, item := range values {
		out = append(out, item.GetStringValue())
	}
	return out
}
