/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cli is the ssm command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/carverauto/ssm/cmd/ssm/app"
	"github.com/carverauto/ssm/pkg/config"
	"github.com/carverauto/ssm/pkg/models"
)

const defaultConfigPath = "/etc/ssm/ssm.json"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the ssm root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "ssm",
		Short:         "Background mail and calendar monitoring with rule-driven actions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath,
		"path to the service config (JSON or YAML); CONFIG_SOURCE=env reads SSM_* variables instead")

	cmd.AddCommand(
		NewServeCommand(opts),
		NewRunOnceCommand(opts),
		NewMigrateCommand(opts),
		NewNodesCommand(opts),
		NewTokensCommand(opts),
		NewVersionCommand(),
	)

	return cmd
}

// loadConfig reads and validates the service config.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*models.ServiceConfig, error) {
	var cfg models.ServiceConfig

	if err := config.NewConfig(nil).LoadAndValidate(cmd.Context(), o.ConfigPath, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// build loads the config and wires an App. Callers must Close it.
func (o *RootOptions) build(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	return app.Build(cmd.Context(), cfg)
}
