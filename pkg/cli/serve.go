package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cns-facts/pkg/api"
	"github.com/NVIDIA/cns-facts/pkg/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve facts over HTTP",
		Description: `Starts an HTTP server exposing:

  GET /v1/facts   fresh collection run per request
                  (?plugin=, ?attribute=, ?format=json|yaml|table)
  GET /health     liveness
  GET /ready      readiness
  GET /metrics    Prometheus metrics

The port defaults to 8080 or the PORT environment variable.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "listen address (default: all interfaces)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "listen port (overrides PORT)",
			},
			hintsFlag(),
			disableFlag(),
			configFlag(),
			kubeconfigFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			srvCfg := server.DefaultConfig()
			if cmd.IsSet("address") {
				srvCfg.Address = cmd.String("address")
			}
			if cmd.IsSet("port") {
				srvCfg.Port = int(cmd.Int("port"))
			}

			return api.Serve(ctx, api.Options{
				Config:  cfg,
				Server:  srvCfg,
				Version: version,
			})
		},
	}
}
