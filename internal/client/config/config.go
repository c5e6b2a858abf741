// Package config loads runtime configuration for the Khazana CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string          base URL of the HTTP API
//	-g string          address:port of the gRPC endpoint
//	-transport string  "http" or "grpc"
//	-t duration        per-request timeout
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "grpc_addr": "127.0.0.1:50051",
//	  "transport": "http",
//	  "request_timeout": "10s"
//	}
package config

import (
	"fmt"
	"os"
	"time"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config holds runtime settings for the CLI.
type Config struct {
	ServerURL      string
	GRPCAddr       string
	Transport      string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with defaults matching a local server.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.GRPCAddr = "127.0.0.1:50051"
	c.Transport = TransportHTTP
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	switch cfg.Transport {
	case TransportHTTP, TransportGRPC:
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	return cfg, nil
}
