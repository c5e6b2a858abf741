package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/khazana/internal/flagx"
)

// parseFlags overlays selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string        HTTP bind address (e.g. ":8000")
//	-g string        gRPC bind address (e.g. ":50051")
//	-d string        PostgreSQL DSN
//	-s string        JWT HMAC secret
//	-alg string      JWT algorithm (HS256, HS384, HS512)
//	-t duration      access token lifetime (e.g. "30m")
//	-r string        Redis address for failed-login lockout
//	-l string        log level
//	-explicit-scopes require explicit scopes on token requests
//
// Arguments are first filtered with flagx.FilterArgs so that -c/-config and
// flags owned by other components do not fail parsing.
func parseFlags(config *Config, args []string) error {
	filtered := flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-alg", "-t", "-r", "-l", "-explicit-scopes"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT secret")
	fs.StringVar(&config.JWTAlgorithm, "alg", config.JWTAlgorithm, "JWT algorithm")
	fs.DurationVar(&config.AccessTokenTTL, "t", config.AccessTokenTTL, "access token lifetime")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "Redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.BoolVar(&config.RequireExplicitScopes, "explicit-scopes", config.RequireExplicitScopes, "grant only 'me' when no scope is requested")

	return fs.Parse(filtered)
}
