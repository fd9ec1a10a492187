/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cns-facts/pkg/config"
	"github.com/NVIDIA/cns-facts/pkg/k8s/client"
	"github.com/NVIDIA/cns-facts/pkg/serializer"
)

// parseOutputFormat extracts and validates the output format from CLI flags.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	outFormat := serializer.Format(cmd.String("format"))
	if outFormat.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q, valid formats are: %v", outFormat, serializer.SupportedFormats())
	}
	return outFormat, nil
}

// loadConfig reads --config and applies the flag overrides shared by
// commands that run plugins.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("hints") {
		cfg.Hints.Paths = cmd.StringSlice("hints")
	}
	if cmd.IsSet("disable") {
		cfg.Plugins.Disabled = append(cfg.Plugins.Disabled, cmd.StringSlice("disable")...)
	}
	if cmd.IsSet("kubeconfig") {
		cfg.Kubernetes.Kubeconfig = cmd.String("kubeconfig")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSerializer opens the --output destination in the --format format.
// The returned close function is never nil.
func newSerializer(cmd *cli.Command) (serializer.Serializer, func(), error) {
	outFormat, err := parseOutputFormat(cmd)
	if err != nil {
		return nil, nil, err
	}

	ser, err := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
	if err != nil {
		return nil, nil, err
	}

	if cm, ok := ser.(*serializer.ConfigMapWriter); ok && cmd.String("kubeconfig") != "" {
		kc, err := client.BuildKubeClient(cmd.String("kubeconfig"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build kubernetes client: %w", err)
		}
		cm.WithKubeClient(kc)
	}

	closeFn := func() {
		if c, ok := ser.(serializer.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close serializer", slog.String("error", err.Error()))
			}
		}
	}
	return ser, closeFn, nil
}
