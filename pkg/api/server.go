// Package api wires the cnsfacts HTTP API onto the shared server.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/NVIDIA/cns-facts/pkg/config"
	"github.com/NVIDIA/cns-facts/pkg/logging"
	"github.com/NVIDIA/cns-facts/pkg/server"
)

const (
	name           = "cnsfacts-api-server"
	versionDefault = "dev"

	// FactsPath is the route serving collection runs.
	FactsPath = "/v1/facts"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/NVIDIA/cns-facts/pkg/api.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Options configures Serve.
type Options struct {
	// Config is the collection configuration. If nil, config.Default() is used.
	Config *config.Config

	// Server overrides the server configuration. If nil,
	// server.DefaultConfig() is used.
	Server *server.Config

	// Version overrides the build version.
	Version string
}

// Routes returns the API handlers keyed by path.
func Routes(ver string, cfg *config.Config) map[string]http.HandlerFunc {
	facts := NewFactsHandler(ver, cfg)
	return map[string]http.HandlerFunc{
		FactsPath: facts.ServeHTTP,
	}
}

// Serve starts the API server and blocks until ctx is cancelled or the
// process is signalled.
func Serve(ctx context.Context, opts Options) error {
	ver := version
	if opts.Version != "" {
		ver = opts.Version
	}
	srvCfg := opts.Server
	if srvCfg == nil {
		srvCfg = server.DefaultConfig()
	}

	logging.SetDefaultStructuredLogger(name, ver)
	slog.Info("starting",
		slog.String("name", name),
		slog.String("version", ver),
		slog.String("commit", commit),
		slog.String("date", date),
		slog.String("address", srvCfg.Addr()))

	s := server.New(
		server.WithName(name),
		server.WithVersion(ver),
		server.WithConfig(srvCfg),
		server.WithHandler(Routes(ver, opts.Config)),
	)

	if err := s.Run(ctx); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		return err
	}

	return nil
}
