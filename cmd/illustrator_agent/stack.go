package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jonathan/course-illustrator/internal/ban"
	"github.com/jonathan/course-illustrator/internal/config"
	"github.com/jonathan/course-illustrator/internal/db"
	"github.com/jonathan/course-illustrator/internal/llm"
	"github.com/jonathan/course-illustrator/internal/preload"
	"github.com/jonathan/course-illustrator/internal/providers"
	"github.com/jonathan/course-illustrator/internal/resolver"
	"github.com/jonathan/course-illustrator/internal/scoring"
	"github.com/jonathan/course-illustrator/internal/session"
)

// stack is the assembled set of collaborating components behind both the
// server and the one-shot CLI commands.
type stack struct {
	resolver  *resolver.Resolver
	preloader *preload.Preloader
	sessions  *session.Store
	bans      *ban.Registry
	database  *db.DB
}

func (s *stack) stop() {
	s.resolver.Stop()
	s.preloader.Stop()
	s.sessions.Stop()
	if s.database != nil {
		s.database.Close()
	}
}

// buildStack wires the full component graph from configuration. A missing
// database URL or API key degrades gracefully: bans stay memory-only and
// classification falls back to keywords.
func buildStack(ctx context.Context, cfg config.Config) (*stack, error) {
	var database *db.DB
	var banStore ban.Store
	if cfg.DatabaseURL != "" {
		var err error
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Database unavailable, ban patterns will not persist: %v", err)
		} else {
			banStore = database
		}
	}

	registry := ban.NewRegistry(ctx, banStore, cfg.Verbose)

	tables := scoring.DefaultTables()
	if cfg.TablesPath != "" {
		loaded, err := scoring.LoadTables(cfg.TablesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load civilization tables: %w", err)
		}
		tables = loaded
	}

	var classifier scoring.Classifier = scoring.NewKeywordClassifier(nil)
	if cfg.APIKey != "" {
		client, err := llm.NewGeminiClient(ctx, cfg.APIKey, cfg.ClassifierModel)
		if err != nil {
			log.Printf("Gemini client unavailable, using keyword classifier: %v", err)
		} else {
			classifier = llm.NewTopicClassifier(client, cfg.Verbose)
		}
	}

	providerList := []providers.Provider{
		providers.NewOpenverse(cfg.OpenverseBaseURL, nil),
		providers.NewWikimedia(cfg.WikimediaBaseURL, nil, cfg.UseBrowser, cfg.Verbose),
	}

	res := resolver.New(resolver.Config{
		Providers:  providerList,
		Scorer:     scoring.NewScorer(tables),
		Bans:       registry,
		Classifier: classifier,
		Threshold:  cfg.ScoreThreshold,
		CacheSize:  cfg.CacheSize,
		CacheTTL:   time.Duration(cfg.CacheTTLMinutes) * time.Minute,
		Verbose:    cfg.Verbose,
	})

	pre := preload.New(preload.Config{
		CacheSize:     cfg.PreloadCacheSize,
		CacheTTL:      time.Duration(cfg.CacheTTLMinutes) * time.Minute,
		MaxConcurrent: cfg.MaxConcurrentPreload,
		Verbose:       cfg.Verbose,
	})
	registry.RegisterInvalidator(pre.InvalidateMatching)

	sessions := session.NewStore(session.Config{
		Timeout:       time.Duration(cfg.SessionTimeoutMinutes) * time.Minute,
		SweepInterval: time.Duration(cfg.SweepIntervalMinutes) * time.Minute,
		Verbose:       cfg.Verbose,
	})

	return &stack{
		resolver:  res,
		preloader: pre,
		sessions:  sessions,
		bans:      registry,
		database:  database,
	}, nil
}

// loadMergedConfig loads the optional config file and fills unset values from
// environment-derived defaults.
func loadMergedConfig(path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loaded
	}

	cfg = cfg.MergeWithDefaults(config.Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		APIKey:      os.Getenv("GEMINI_API_KEY"),
	})

	return cfg, nil
}
