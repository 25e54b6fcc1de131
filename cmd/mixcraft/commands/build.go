package commands

import (
	"os"

	"github.com/haivivi/mixcraft/pkg/analysis"
	"github.com/haivivi/mixcraft/pkg/cli"
	"github.com/haivivi/mixcraft/pkg/discovery"
	"github.com/haivivi/mixcraft/pkg/export"
	"github.com/haivivi/mixcraft/pkg/freesound"
	"github.com/haivivi/mixcraft/pkg/jamendo"
	"github.com/haivivi/mixcraft/pkg/mix"
	"github.com/haivivi/mixcraft/pkg/pipeline"
	"github.com/haivivi/mixcraft/pkg/producer"
)

// contextValue reads a setting from the context, falling back to the
// environment.
func contextValue(v, envKey string) string {
	if v != "" {
		return v
	}
	return os.Getenv(envKey)
}

// jamendoClient builds a Jamendo client honoring the context's timeout
// and retry settings.
func jamendoClient(ctx *cli.Context, clientID string) *jamendo.Client {
	var opts []jamendo.Option
	if ctx.Timeout > 0 {
		opts = append(opts, jamendo.WithTimeout(ctx.RequestTimeout(0)))
	}
	if ctx.MaxRetries > 0 {
		opts = append(opts, jamendo.WithRetry(ctx.MaxRetries))
	}
	return jamendo.NewClient(clientID, opts...)
}

// freesoundClient builds a Freesound client honoring the context's
// timeout and retry settings.
func freesoundClient(ctx *cli.Context, token string) *freesound.Client {
	var opts []freesound.Option
	if ctx.Timeout > 0 {
		opts = append(opts, freesound.WithTimeout(ctx.RequestTimeout(0)))
	}
	if ctx.MaxRetries > 0 {
		opts = append(opts, freesound.WithRetry(ctx.MaxRetries))
	}
	return freesound.NewClient(token, opts...)
}

// buildProducer wires the LLM producer from context or environment keys.
func buildProducer(ctx *cli.Context) (producer.Producer, error) {
	apiKey := contextValue(ctx.OpenAIKey, "OPENAI_API_KEY")
	if apiKey == "" {
		return nil, &pipeline.ConfigurationError{
			Setting: "openai_key",
			Reason:  "set it in the context (mixcraft config add-context) or via OPENAI_API_KEY",
		}
	}
	var opts []producer.OpenAIOption
	if ctx.Model != "" {
		opts = append(opts, producer.WithModel(ctx.Model))
	}
	if ctx.OpenAIBaseURL != "" {
		opts = append(opts, producer.WithBaseURL(ctx.OpenAIBaseURL))
	}
	return producer.NewOpenAIProducer(apiKey, opts...)
}

// buildPipeline assembles every stage from the resolved context.
func buildPipeline(ctx *cli.Context) (*pipeline.Pipeline, func(), error) {
	prod, err := buildProducer(ctx)
	if err != nil {
		return nil, nil, err
	}

	paths, err := cli.NewPaths()
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, err
	}

	logger := newLogger()

	finderOpts := []discovery.Option{
		discovery.WithMusicDir(paths.MusicDir()),
		discovery.WithLogger(logger),
	}
	if id := contextValue(ctx.JamendoClientID, "JAMENDO_CLIENT_ID"); id != "" {
		finderOpts = append(finderOpts, discovery.WithJamendo(jamendoClient(ctx, id)))
	}
	if token := contextValue(ctx.FreesoundToken, "FREESOUND_API_KEY"); token != "" {
		finderOpts = append(finderOpts, discovery.WithFreesound(freesoundClient(ctx, token)))
	}
	finder := discovery.NewFinder(finderOpts...)

	analyzerOpts := []analysis.Option{analysis.WithLogger(logger)}
	cleanup := func() {}
	if cache, err := analysis.OpenCache(paths.CacheDir()); err != nil {
		logger.Warn("analysis cache unavailable", "error", err)
	} else {
		analyzerOpts = append(analyzerOpts, analysis.WithCache(cache))
		cleanup = func() { cache.Close() }
	}
	analyzer := analysis.NewAnalyzer(analyzerOpts...)

	engine := mix.NewEngine(
		mix.WithWorkDir(paths.TmpDir()),
		mix.WithLogger(logger),
	)
	exporter := export.NewExporter(paths.ExportsDir(), export.WithLogger(logger))

	p, err := pipeline.New(prod, finder, analyzer, engine, exporter, pipeline.WithLogger(logger))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}
