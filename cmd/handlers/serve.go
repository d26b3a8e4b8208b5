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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newshive/internal/bot"
	"newshive/internal/config"
	"newshive/internal/logger"
	"newshive/internal/store"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		Long: `Starts long polling against the Telegram Bot API and serves
digests, settings, search and stats commands until interrupted.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	st, err := store.NewStore(cfg.Cache.Directory)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	pl, registry, err := buildPipeline(cfg, st)
	if err != nil {
		return err
	}

	handler := bot.NewCommandHandler(st, pl, cfg.Telegram.SearchResults)
	b, err := bot.New(cfg.Telegram, handler)
	if err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("NewsHive serving", "sources", len(cfg.Feeds.Sources), "model", cfg.LLM.Model)
	err = b.Run(ctx)

	for name, counters := range registry.Snapshot() {
		logger.Info("Agent totals",
			"agent", name,
			"attempts", counters.Attempts,
			"fallbacks", counters.Fallbacks,
			"successes", counters.Successes)
	}
	return err
}
