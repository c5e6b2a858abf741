package config

import (
	"fmt"
	"strconv"
	"time"
)

const envPrefix = "KHAZANA_"

// parseEnv overlays values from KHAZANA_* variables. JWT_SECRET and
// JWT_ALGORITHM are honoured as fallbacks for existing deployments; the
// prefixed names win when both are set.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	str := func(dst *string, names ...string) {
		for _, n := range names {
			if v, ok := lookup(n); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&config.HTTPAddr, envPrefix+"HTTP_ADDR")
	str(&config.GRPCAddr, envPrefix+"GRPC_ADDR")
	str(&config.DatabaseDSN, envPrefix+"DATABASE_DSN")
	str(&config.JWTSecret, envPrefix+"JWT_SECRET", "JWT_SECRET")
	str(&config.JWTAlgorithm, envPrefix+"JWT_ALGORITHM", "JWT_ALGORITHM")
	str(&config.BootstrapAdminPassword, envPrefix+"BOOTSTRAP_ADMIN_PASSWORD")
	str(&config.RedisAddr, envPrefix+"REDIS_ADDR")
	str(&config.LogLevel, envPrefix+"LOG_LEVEL")

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{envPrefix + "ACCESS_TOKEN_TTL", &config.AccessTokenTTL},
		{envPrefix + "LOCKOUT_WINDOW", &config.LockoutWindow},
		{envPrefix + "SHUTDOWN_TIMEOUT", &config.ShutdownTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.name)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{envPrefix + "BCRYPT_COST", &config.BcryptCost},
		{envPrefix + "LOCKOUT_THRESHOLD", &config.LockoutThreshold},
	}
	for _, i := range ints {
		v, ok := lookup(i.name)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", i.name, err)
		}
		*i.dst = parsed
	}

	if v, ok := lookup(envPrefix + "REQUIRE_EXPLICIT_SCOPES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sREQUIRE_EXPLICIT_SCOPES: %w", envPrefix, err)
		}
		config.RequireExplicitScopes = b
	}

	return nil
}
