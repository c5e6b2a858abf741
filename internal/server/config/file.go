package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/khazana/internal/flagx"
	"github.com/dmitrijs2005/khazana/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Intervals use
// timex.Duration so they may be written as "30m" or as integer nanoseconds.
// Pointer fields distinguish "absent" from an explicit zero value.
type FileConfig struct {
	HTTPAddr               string          `json:"http_addr" yaml:"http_addr"`
	GRPCAddr               string          `json:"grpc_addr" yaml:"grpc_addr"`
	DatabaseDSN            string          `json:"database_dsn" yaml:"database_dsn"`
	JWTSecret              string          `json:"jwt_secret" yaml:"jwt_secret"`
	JWTAlgorithm           string          `json:"jwt_algorithm" yaml:"jwt_algorithm"`
	AccessTokenTTL         *timex.Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	BcryptCost             *int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	BootstrapAdminPassword string          `json:"bootstrap_admin_password" yaml:"bootstrap_admin_password"`
	RequireExplicitScopes  *bool           `json:"require_explicit_scopes" yaml:"require_explicit_scopes"`
	RedisAddr              string          `json:"redis_addr" yaml:"redis_addr"`
	LockoutThreshold       *int            `json:"lockout_threshold" yaml:"lockout_threshold"`
	LockoutWindow          *timex.Duration `json:"lockout_window" yaml:"lockout_window"`
	LogLevel               string          `json:"log_level" yaml:"log_level"`
	ShutdownTimeout        *timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// parseFile overlays values from the file named by -c/-config. YAML is
// selected by a .yaml or .yml extension, JSON otherwise. Without the flag
// nothing is loaded.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(config *Config) {
	setString(&config.HTTPAddr, fc.HTTPAddr)
	setString(&config.GRPCAddr, fc.GRPCAddr)
	setString(&config.DatabaseDSN, fc.DatabaseDSN)
	setString(&config.JWTSecret, fc.JWTSecret)
	setString(&config.JWTAlgorithm, fc.JWTAlgorithm)
	setString(&config.BootstrapAdminPassword, fc.BootstrapAdminPassword)
	setString(&config.RedisAddr, fc.RedisAddr)
	setString(&config.LogLevel, fc.LogLevel)

	if fc.AccessTokenTTL != nil {
		config.AccessTokenTTL = fc.AccessTokenTTL.Duration
	}
	if fc.BcryptCost != nil {
		config.BcryptCost = *fc.BcryptCost
	}
	if fc.RequireExplicitScopes != nil {
		config.RequireExplicitScopes = *fc.RequireExplicitScopes
	}
	if fc.LockoutThreshold != nil {
		config.LockoutThreshold = *fc.LockoutThreshold
	}
	if fc.LockoutWindow != nil {
		config.LockoutWindow = fc.LockoutWindow.Duration
	}
	if fc.ShutdownTimeout != nil {
		config.ShutdownTimeout = fc.ShutdownTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
