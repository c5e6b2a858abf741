package common

// AdminUsername is the name of the bootstrap administrator. The identity with
// this name can never lose the admin scope and can never be deactivated.
const AdminUsername = "admin"

// AuthorizationHeaderName is the HTTP header and gRPC metadata key carrying
// the bearer token.
const AuthorizationHeaderName = "authorization"

// BearerTokenType is the token_type reported by the credential exchange.
const BearerTokenType = "bearer"
