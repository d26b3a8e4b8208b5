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

	"newshive/internal/config"
	"newshive/internal/feeds"
	"newshive/internal/fetch"
	"newshive/internal/llm"
	"newshive/internal/metrics"
	"newshive/internal/parse"
	"newshive/internal/pipeline"
	"newshive/internal/recommend"
	"newshive/internal/render"
	"newshive/internal/store"
	"newshive/internal/summarize"
	"newshive/internal/tags"
	"newshive/internal/taxonomy"
)

// buildPipeline wires the full agent pipeline from configuration. The
// returned registry collects per-agent metrics for the lifetime of the
// process.
func buildPipeline(cfg *config.Config, st *store.Store) (*pipeline.Pipeline, *metrics.Registry, error) {
	taxStore, err := taxonomy.NewStore(cfg.Taxonomy.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open taxonomy store: %w", err)
	}

	client := llm.NewClient(cfg.LLM)
	registry := metrics.NewRegistry()

	parseOpts := parse.DefaultOptions()
	parseOpts.MaxRetries = cfg.Pipeline.ParseRetries
	parseOpts.RetryDelay = cfg.LLM.RetryDelay
	if len(cfg.Pipeline.SpamMarkers) > 0 {
		parseOpts.SpamMarkers = cfg.Pipeline.SpamMarkers
	}
	if len(cfg.Pipeline.NSFWMarkers) > 0 {
		parseOpts.NSFWMarkers = cfg.Pipeline.NSFWMarkers
	}

	parser := parse.NewAgent(client, parseOpts, registry)
	summarizer := summarize.NewAgent(client, registry).
		WithOutputFormat(summarize.OutputFormat(cfg.Render.SummaryMarkup))
	tagger := tags.NewAgent(client, taxStore, tags.Options{ProposeThreshold: cfg.Taxonomy.ProposeThreshold}, registry)
	recommender := recommend.NewAgent(client, st, registry)
	renderer := render.NewAgent(cfg.Telegram.MessageLimit, registry)

	loader := feeds.NewLoader(cfg.Feeds)
	fetcher := fetch.NewFetcher(cfg.Feeds.Timeout, cfg.Feeds.UserAgent)

	opts := pipeline.DefaultOptions()
	opts.CacheTTL = cfg.Feeds.MaxAge
	opts.MaxArticles = cfg.Pipeline.MaxArticles
	opts.Tone = render.Tone(cfg.Render.Tone)
	opts.Format = render.Format(cfg.Render.Format)
	opts.UserAgent = cfg.Render.UserAgent

	return pipeline.NewPipeline(loader, parser, summarizer, tagger, recommender, renderer, fetcher, st, opts), registry, nil
}
