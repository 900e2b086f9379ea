package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fintext/fatura/internal/assist"
	"github.com/fintext/fatura/internal/cache"
	"github.com/fintext/fatura/internal/community"
	"github.com/fintext/fatura/internal/config"
	"github.com/fintext/fatura/internal/detector"
	"github.com/fintext/fatura/internal/feedback"
	"github.com/fintext/fatura/internal/parser"
	"github.com/fintext/fatura/internal/pipeline"
	"github.com/fintext/fatura/internal/registry"
)

// stack bundles everything a command may need, with closers for the
// sqlite-backed pieces.
type stack struct {
	pipeline  *pipeline.Pipeline
	banks     *registry.Registry
	detector  *detector.Detector
	assistant *assist.Assistant
	feedback  *feedback.Store
	templates *community.Registry
	store     *community.Store
	cache     *cache.Cache
	settings  config.Settings
}

func (s *stack) Close() {
	if s.feedback != nil {
		_ = s.feedback.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

// buildStack assembles the full extraction stack from configuration. The
// assistant model and the databases are created on first use.
func buildStack(ctx context.Context) (*stack, error) {
	settings := config.Load()

	banks := registry.New()
	c := cache.New(settings.CacheTTL, settings.CacheMaxSize, settings.CacheEnabled)

	det, err := detector.New(banks, c, settings.MinConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to build detector: %w", err)
	}

	assistant := assist.New(settings.AssistThreshold)
	if _, err := os.Stat(settings.ModelPath); err == nil {
		if err := assistant.Load(settings.ModelPath); err != nil {
			return nil, fmt.Errorf("failed to load assistant model: %w", err)
		}
	}

	fb, err := feedback.NewStore(settings.FeedbackDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback store: %w", err)
	}

	templateStore, err := community.NewStore(settings.TemplateDB)
	if err != nil {
		fb.Close()
		return nil, fmt.Errorf("failed to open template store: %w", err)
	}

	templates, err := community.NewRegistry(ctx, templateStore, banks, det)
	if err != nil {
		fb.Close()
		templateStore.Close()
		return nil, fmt.Errorf("failed to load community templates: %w", err)
	}

	parsers := parser.NewRegistry(banks, templates)

	p, err := pipeline.New(pipeline.Deps{
		Banks:     banks,
		Detector:  det,
		Assistant: assistant,
		Parsers:   parsers,
		Cache:     c,
		Feedback:  fb,
		Observer:  pipeline.LogObserver{},
	})
	if err != nil {
		fb.Close()
		templateStore.Close()
		return nil, err
	}

	return &stack{
		pipeline:  p,
		banks:     banks,
		detector:  det,
		assistant: assistant,
		feedback:  fb,
		templates: templates,
		store:     templateStore,
		cache:     c,
		settings:  settings,
	}, nil
}

// readInput returns the contents of path, or stdin when path is "-" or empty.
func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied document path
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
