// Package config handles configuration for the identity server:
// defaults, an optional JSON or YAML file, environment variables and
// command-line flags, applied in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/khazana/internal/server/auth"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgorithmHS256 = "HS256"
	AlgorithmHS384 = "HS384"
	AlgorithmHS512 = "HS512"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds runtime settings for the identity server.
//
// Fields:
//   - HTTPAddr / GRPCAddr: bind addresses of the two transports.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory store.
//   - JWTSecret / JWTAlgorithm: HMAC signing key and algorithm for access tokens.
//   - AccessTokenTTL: lifetime of issued tokens.
//   - BcryptCost: work factor for new credential hashes.
//   - BootstrapAdminPassword: initial password of the "admin" identity.
//   - RequireExplicitScopes: when set, a token request without scopes gets only "me".
//   - RedisAddr / LockoutThreshold / LockoutWindow: failed-login lockout; disabled when RedisAddr is empty.
//   - LogLevel: debug, info, warn or error.
//   - ShutdownTimeout: grace period for in-flight requests on shutdown.
type Config struct {
	HTTPAddr               string
	GRPCAddr               string
	DatabaseDSN            string
	JWTSecret              string
	JWTAlgorithm           string
	AccessTokenTTL         time.Duration
	BcryptCost             int
	BootstrapAdminPassword string
	RequireExplicitScopes  bool
	RedisAddr              string
	LockoutThreshold       int
	LockoutWindow          time.Duration
	LogLevel               string
	ShutdownTimeout        time.Duration
}

// LoadDefaults populates Config with development defaults. JWTSecret stays
// empty and Validate rejects it until one is supplied.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8000"
	c.GRPCAddr = ":50051"
	c.DatabaseDSN = ""
	c.JWTSecret = ""
	c.JWTAlgorithm = AlgorithmHS256
	c.AccessTokenTTL = auth.DefaultTokenTTL
	c.BcryptCost = bcrypt.DefaultCost
	c.BootstrapAdminPassword = "admin"
	c.RequireExplicitScopes = false
	c.RedisAddr = ""
	c.LockoutThreshold = 5
	c.LockoutWindow = 15 * time.Minute
	c.LogLevel = "info"
	c.ShutdownTimeout = 10 * time.Second
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if strings.TrimSpace(c.GRPCAddr) == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	switch c.JWTAlgorithm {
	case AlgorithmHS256, AlgorithmHS384, AlgorithmHS512:
	default:
		errs = append(errs, fmt.Errorf("unsupported jwt algorithm %q", c.JWTAlgorithm))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("access token ttl must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.BootstrapAdminPassword == "" {
		errs = append(errs, errors.New("bootstrap admin password is required"))
	}
	if c.RedisAddr != "" {
		if c.LockoutThreshold <= 0 {
			errs = append(errs, errors.New("lockout threshold must be positive"))
		}
		if c.LockoutWindow <= 0 {
			errs = append(errs, errors.New("lockout window must be positive"))
		}
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// LockoutEnabled reports whether failed-login lockout is configured.
func (c *Config) LockoutEnabled() bool {
	return c.RedisAddr != ""
}

// LoadConfig builds a Config from defaults, the optional config file named by
// -c/-config, the environment and finally command-line flags.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

func load(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, lookupEnv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
