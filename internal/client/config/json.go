package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/khazana/internal/flagx"
	"github.com/dmitrijs2005/khazana/internal/timex"
)

// JSONConfig is a DTO used exclusively for JSON unmarshalling. Missing
// fields leave the current values untouched.
type JSONConfig struct {
	ServerURL      string          `json:"server_url"`
	GRPCAddr       string          `json:"grpc_addr"`
	Transport      string          `json:"transport"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
}

// parseJSON overlays cfg with the JSON file named by -c/-config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.GRPCAddr != "" {
		cfg.GRPCAddr = jc.GRPCAddr
	}
	if jc.Transport != "" {
		cfg.Transport = jc.Transport
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}
