package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/khazana/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Arguments are filtered with flagx.FilterArgs first so that -c/-config does
// not trip the flag set.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, []string{"-a", "-g", "-transport", "-t"})

	fs := flag.NewFlagSet("khazana-cli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the HTTP API")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "address and port of the gRPC endpoint")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport to use: http or grpc")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "per-request timeout")

	return fs.Parse(filtered)
}
