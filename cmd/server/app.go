package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/agenthands/graphrag/internal/cache"
	"github.com/agenthands/graphrag/internal/config"
	"github.com/agenthands/graphrag/internal/core"
	"github.com/agenthands/graphrag/internal/core/alias"
	"github.com/agenthands/graphrag/internal/core/assemble"
	"github.com/agenthands/graphrag/internal/core/generate"
	"github.com/agenthands/graphrag/internal/core/intent"
	"github.com/agenthands/graphrag/internal/core/linker"
	"github.com/agenthands/graphrag/internal/core/retrieval"
	"github.com/agenthands/graphrag/internal/driver"
	"github.com/agenthands/graphrag/internal/llm"
	"github.com/agenthands/graphrag/internal/logger"
	"github.com/agenthands/graphrag/internal/tracing"
)

// app owns every long-lived dependency. It is built once per process and
// handed to the commands explicitly.
type app struct {
	cfg      *config.Config
	driver   *driver.Neo4jDriver
	store    *driver.Store
	index    *alias.Index
	cache    cache.Cache
	pipeline *core.Pipeline

	shutdownTracing func(context.Context) error
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	return config.Load(path)
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger.Init(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	shutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, shutdownTracing: shutdown}

	a.driver, err = driver.NewNeo4jDriver(cfg.Graph)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	a.store = driver.NewStore(a.driver, cfg.Graph.QueryTimeout())
	if err := a.store.Ping(ctx); err != nil {
		// Not fatal: requests degrade until the graph comes back.
		logger.Warn(ctx, "graph not reachable at startup", "uri", cfg.Graph.URI, "error", err)
	} else if cfg.Graph.CreateIndexes {
		if err := a.store.EnsureIndexes(ctx); err != nil {
			logger.Warn(ctx, "failed to create entity id indexes", "error", err)
		}
	}

	a.index, err = buildIndex(ctx, cfg.Linking, a.store)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.cache, err = cache.New(cfg.Cache)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}

	counter, err := assemble.NewCounter(cfg.Context)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	var retrievalCache retrieval.Cache
	if a.cache != nil {
		retrievalCache = a.cache
	}

	a.pipeline = &core.Pipeline{
		Index: a.index,
		Linker: linker.New(a.index, linker.Options{
			MaxNGram:            cfg.Linking.MaxNGram,
			SimilarityThreshold: cfg.Linking.SimilarityThreshold,
			MinFuzzyLength:      cfg.Linking.MinFuzzyLength,
		}),
		Router: intent.NewRouter(),
		Retriever: retrieval.New(a.store, retrievalCache, retrieval.Options{
			MaxResults:   cfg.Retrieval.MaxResults,
			MaxDepth:     cfg.Retrieval.MaxDepth,
			KeywordLimit: cfg.Retrieval.KeywordLimit,
			IndexVersion: a.index.Version(),
		}),
		Assembler:         assemble.New(cfg.Context.Budget, counter),
		Generator:         generate.New(llmClient, generate.OptionsFrom(cfg.LLM, cfg.Prompts)),
		MaxQuestionLength: cfg.Server.MaxQuestionLength,
	}

	logger.Info(ctx, "pipeline ready",
		"aliases", a.index.Size(),
		"alias_version", a.index.Version(),
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
	)
	return a, nil
}

// buildIndex loads the alias index from the exported node CSVs and, when
// enabled, from the graph itself.
func buildIndex(ctx context.Context, cfg config.LinkingConfig, store *driver.Store) (*alias.Index, error) {
	b := alias.NewBuilder()
	if cfg.AliasPath != "" {
		n, err := b.AddDir(cfg.AliasPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load aliases from %s: %w", cfg.AliasPath, err)
		}
		logger.Info(ctx, "loaded alias files", "path", cfg.AliasPath, "entities", n)
	}
	if cfg.BootstrapFromGraph {
		n, err := b.AddSource(ctx, store)
		if err != nil {
			logger.Warn(ctx, "could not load aliases from graph", "error", err)
		} else {
			logger.Info(ctx, "loaded aliases from graph", "entities", n)
		}
	}
	if b.Len() == 0 {
		logger.Warn(ctx, "alias index is empty; every question will use keyword search")
	}
	return b.Build(), nil
}

func (a *app) Close(ctx context.Context) {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn(ctx, "cache close failed", "error", err)
		}
	}
	if a.driver != nil {
		if err := a.driver.Close(ctx); err != nil {
			logger.Warn(ctx, "neo4j close failed", "error", err)
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			logger.Warn(ctx, "tracing shutdown failed", "error", err)
		}
	}
	_ = logger.Close()
}
