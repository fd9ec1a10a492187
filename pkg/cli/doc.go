// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli implements the command-line interface of cnsfacts.
//
// # Commands
//
// collect - Run fact plugins and write the resulting document:
//
//	cnsfacts collect [--plugin NAME]... [--output DEST] [--format yaml|json|table] [attribute.path ...]
//	cnsfacts collect --plugin cloud -t json
//	cnsfacts collect -o cm://gpu-operator/node-facts
//	cnsfacts collect --from facts.yaml kernel.release
//	cnsfacts collect --deploy-agent --namespace gpu-operator --node-selector nodeGroup=gpu
//
// plugins - List plugins, or run them and report per-plugin outcomes:
//
//	cnsfacts plugins
//	cnsfacts plugins --run cloud
//
// serve - Serve GET /v1/facts, /health, /ready and /metrics:
//
//	cnsfacts serve --port 8080
//
// # Global Flags
//
//	--debug        Enable debug logging
//	--log-json     Output logs in JSON format
//	--help, -h     Show command help
//	--version, -v  Show version information
//
// # Environment Variables
//
//	CNSFACTS_CONFIG       Path to the configuration file
//	CNSFACTS_HINTS_PATH   Hint directories, separated like PATH
//	LOG_LEVEL             Set logging verbosity (debug, info, warn, error)
//	NODE_NAME             Node name for Kubernetes collection
//	KUBECONFIG            Path to kubeconfig file
//	PORT                  Listen port for serve
//
// # Exit Codes
//
//	0  Success
//	1  General error (invalid arguments, execution failure)
//	2  Context canceled or timeout
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/NVIDIA/cns-facts/pkg/cli.version=1.0.0'"
package cli
