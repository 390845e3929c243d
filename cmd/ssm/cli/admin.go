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

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/carverauto/ssm/pkg/models"
)

var (
	errOwnerRequired   = errors.New("--owner is required")
	errRefreshRequired = errors.New("token has no refresh_token")
)

// NewNodesCommand groups node administration.
func NewNodesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Manage monitored nodes",
	}

	cmd.AddCommand(newNodesRegisterCommand(rootOpts))

	return cmd
}

func newNodesRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	node := &models.MonitoredNode{}

	cmd := &cobra.Command{
		Use:   "register <node-id>",
		Short: "Register a node for an owner and canvas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if node.OwnerID == "" {
				return errOwnerRequired
			}

			node.ID = args[0]

			a, err := rootOpts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.RegisterNode(cmd.Context(), node); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered node %s\n", node.ID)

			return nil
		},
	}

	cmd.Flags().StringVar(&node.OwnerID, "owner", "", "owning user id (required)")
	cmd.Flags().StringVar(&node.CanvasID, "canvas", "", "canvas id")
	cmd.Flags().IntVar(&node.PollIntervalMinutes, "interval", models.DefaultPollIntervalMinutes, "cron interval in minutes")

	return cmd
}

// NewTokensCommand groups OAuth token administration.
func NewTokensCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage stored OAuth tokens",
	}

	cmd.AddCommand(newTokensImportCommand(rootOpts))

	return cmd
}

func newTokensImportCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import <user-id> <connection-id>",
		Short: "Seal and store an OAuth token JSON document for a connection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := readToken(cmd, file)
			if err != nil {
				return err
			}

			a, err := rootOpts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ImportToken(cmd.Context(), args[0], args[1], tok); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stored token for connection %s\n", args[1])

			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "token JSON file, - for stdin")

	return cmd
}

func readToken(cmd *cobra.Command, file string) (*oauth2.Token, error) {
	var r io.Reader = cmd.InOrStdin()

	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		r = f
	}

	var tok oauth2.Token
	if err := json.NewDecoder(r).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}

	if tok.RefreshToken == "" {
		return nil, errRefreshRequired
	}

	return &tok, nil
}
