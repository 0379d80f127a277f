package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/domain"
	"docrag/internal/embedding/hash"
	"docrag/internal/embedding/openai"
	"docrag/internal/engine"
	"docrag/internal/errs"
	"docrag/internal/index/memory"
	"docrag/internal/index/sqlite"
	"docrag/internal/registry"
	"docrag/internal/summarizer"
)

// app bundles the assembled components shared by all subcommands.
type app struct {
	cfg    *config.AppConfig
	log    *slog.Logger
	engine *engine.Engine
}

// buildApp loads configuration and wires the retrieval pipeline.
func buildApp(cmd *cobra.Command) (*app, error) {
	// Secrets like OPENAI_API_KEY may live in a local .env file.
	_ = godotenv.Load()

	cfgPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	chk, err := chunker.New(cfg.Chunker.MaxLength, cfg.Chunker.OverlapValue())
	if err != nil {
		return nil, err
	}
	reg := registry.New(indexFactory(cfg))
	if cfg.Index.Type == "sqlite" {
		if err := rehydrate(cmd.Context(), reg, cfg.Index.SQLite.Dir); err != nil {
			return nil, err
		}
	}

	eng := engine.New(reg, embedder, chk, summarizer.NewFrequency(), engine.Options{
		MaxFragmentsPerDocument: cfg.Engine.MaxFragmentsPerDocument,
		EmbedBatchSize:          cfg.Engine.EmbedBatchSize,
		EmbedConcurrency:        cfg.Engine.EmbedConcurrency,
		RetryAttempts:           cfg.Engine.RetryAttempts,
		RetryBase:               cfg.Engine.RetryBase(),
		SummaryMaxSentences:     cfg.Summarizer.MaxSentences,
	}, log)

	return &app{cfg: cfg, log: log, engine: eng}, nil
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hash":
		return hash.New(cfg.Embedder.Hash.Dimension), nil
	case "openai":
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   cfg.Embedder.OpenAI.Timeout(),
		})
	default:
		return nil, errs.New(errs.CodeConfigInvalid, "unknown embedder type",
			errs.Field("type", cfg.Embedder.Type))
	}
}

func indexFactory(cfg *config.AppConfig) registry.IndexFactory {
	if cfg.Index.Type == "sqlite" {
		dir := cfg.Index.SQLite.Dir
		return func(corpusID string) (domain.VectorIndex, error) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "create index directory",
					errs.Field("dir", dir))
			}
			// Corpus identifiers are opaque; escape them for the filesystem.
			name := url.PathEscape(corpusID) + ".db"
			return sqlite.Open(filepath.Join(dir, name))
		}
	}
	return func(string) (domain.VectorIndex, error) {
		return memory.New(), nil
	}
}

// rehydrate restores corpora from existing per-corpus database files so
// replacement detection and lexical fallback survive restarts.
func rehydrate(ctx context.Context, reg *registry.Registry, dir string) error {
	names, err := filepath.Glob(filepath.Join(dir, "*.db"))
	if err != nil || len(names) == 0 {
		return nil
	}
	for _, name := range names {
		escaped := strings.TrimSuffix(filepath.Base(name), ".db")
		corpusID, err := url.PathUnescape(escaped)
		if err != nil {
			continue
		}
		corpus, err := reg.GetOrCreate(corpusID)
		if err != nil {
			return err
		}
		idx, ok := corpus.Index().(*sqlite.Index)
		if !ok {
			continue
		}
		entries, err := idx.Entries(ctx)
		if err != nil {
			return err
		}
		byDoc := make(map[string][]domain.IndexEntry)
		for _, e := range entries {
			byDoc[e.Fragment.DocumentID] = append(byDoc[e.Fragment.DocumentID], e)
		}
		for docID, docEntries := range byDoc {
			corpus.RecordDocument(docID, docEntries)
		}
	}
	return nil
}
