package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8000", c.ServerURL)
	assert.Equal(t, "127.0.0.1:50051", c.GRPCAddr)
	assert.Equal(t, TransportHTTP, c.Transport)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Sources(t *testing.T) {
	path := writeFile(t, `{"server_url": "http://keeper:8000", "transport": "grpc", "request_timeout": "3s"}`)

	tests := []struct {
		name string
		args []string
		want Config
	}{
		{
			name: "defaults",
			args: nil,
			want: Config{ServerURL: "http://127.0.0.1:8000", GRPCAddr: "127.0.0.1:50051", Transport: "http", RequestTimeout: 10 * time.Second},
		},
		{
			name: "json file",
			args: []string{"-c", path},
			want: Config{ServerURL: "http://keeper:8000", GRPCAddr: "127.0.0.1:50051", Transport: "grpc", RequestTimeout: 3 * time.Second},
		},
		{
			name: "flags override file",
			args: []string{"-config", path, "-transport", "http", "-g", "keeper:9000", "-t=1s"},
			want: Config{ServerURL: "http://keeper:8000", GRPCAddr: "keeper:9000", Transport: "http", RequestTimeout: time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := load(tt.args)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	bad := writeFile(t, `{"server_url": 42}`)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"-c", filepath.Join(t.TempDir(), "nope.json")}},
		{"bad json", []string{"-c", bad}},
		{"unknown transport", []string{"-transport", "carrier-pigeon"}},
		{"bad timeout", []string{"-t", "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(tt.args)
			require.Error(t, err)
		})
	}
}
