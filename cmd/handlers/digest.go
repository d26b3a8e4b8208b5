/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"newshive/internal/config"
	"newshive/internal/logger"
	"newshive/internal/render"
	"newshive/internal/store"
)

// NewDigestCmd creates the digest command
func NewDigestCmd() *cobra.Command {
	var userID int64
	var format string

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Run one digest and print it to stdout",
		Long: `Runs the full agent pipeline once for the given user profile and
prints the rendered digest. Useful for trying out feeds and prompts
without a bot token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, userID, format)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user ID to build the digest for (0 uses a scratch profile)")
	cmd.Flags().StringVar(&format, "format", string(render.FormatPlain), "output format: plain, markdown, html or telegram")

	return cmd
}

func runDigest(cmd *cobra.Command, userID int64, format string) error {
	cfg := config.Get()
	if err := cfg.ValidateForPipeline(); err != nil {
		return err
	}
	cfg.Render.Format = format

	st, err := store.NewStore(cfg.Cache.Directory)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	pl, _, err := buildPipeline(cfg, st)
	if err != nil {
		return err
	}

	profile, err := st.GetOrCreateUser(userID)
	if err != nil {
		return fmt.Errorf("failed to load user profile: %w", err)
	}

	result, err := pl.Run(cmd.Context(), profile)
	if err != nil {
		return fmt.Errorf("digest run failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(result.Deliveries) == 0 {
		fmt.Fprintln(out, "Nothing new to read right now.")
	}
	for i, delivery := range result.Deliveries {
		if i > 0 {
			fmt.Fprintln(out, strings.Repeat("-", 40))
		}
		for _, message := range delivery.Messages {
			fmt.Fprintln(out, message)
		}
	}

	logger.Info("Digest complete",
		"articles", result.Stats.TotalArticles,
		"delivered", result.Stats.Delivered,
		"rejected", result.Stats.Rejected,
		"cache_hits", result.Stats.CacheHits,
		"duration", result.Stats.Duration)
	return nil
}
