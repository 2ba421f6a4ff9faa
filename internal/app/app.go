// Package app wires configuration into the provider registry, the job
// orchestrator and their supporting services.
package app

import (
	"errors"
	"fmt"
	"net/http"

	"studio/internal/infra"
	"studio/internal/jobs"
	"studio/internal/metrics"
	"studio/internal/providers/avatar"
	"studio/internal/providers/storyboard"
	"studio/internal/providers/video"
	"studio/internal/providers/voice"
	"studio/internal/storage"
)

// Deps holds what main must provide.
type Deps struct {
	Cfg    *infra.Config
	Logger *infra.Logger
	// HTTPClient overrides the provider client; tests point it at fakes.
	HTTPClient *http.Client
	// Clock overrides the orchestrator clock.
	Clock jobs.Clock
}

// App is the fully wired application.
type App struct {
	Cfg          *infra.Config
	Logger       *infra.Logger
	Registry     *jobs.Registry
	Orchestrator *jobs.Orchestrator
	Metrics      *metrics.Collector
	Store        *storage.FileStore
}

// New builds the registry from the configured credentials and the
// orchestrator around it. Providers without credentials are skipped with a
// warning so the remaining ones stay usable.
func New(deps Deps) (*App, error) {
	if deps.Cfg == nil {
		return nil, errors.New("app: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}

	registry, err := BuildRegistry(deps.Cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFileStore(deps.Cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("app: storage: %w", err)
	}
	collector := metrics.New()
	orch := jobs.New(jobs.Options{
		HTTPClient:    deps.HTTPClient,
		SubmitTimeout: deps.Cfg.JobSubmitTimeout,
		PollTimeout:   deps.Cfg.JobPollTimeout,
		Policy: jobs.Policy{
			Interval: deps.Cfg.JobPollInterval,
			MaxWait:  deps.Cfg.JobMaxWait,
			Backoff:  jobs.BackoffFixed,
		},
		Clock:    deps.Clock,
		Logger:   logger,
		Observer: collector,
	})

	return &App{
		Cfg:          deps.Cfg,
		Logger:       logger,
		Registry:     registry,
		Orchestrator: orch,
		Metrics:      collector,
		Store:        store,
	}, nil
}

// BuildRegistry constructs an adapter for every provider with credentials.
func BuildRegistry(cfg *infra.Config, logger *infra.Logger) (*jobs.Registry, error) {
	registry := jobs.NewRegistry()

	type candidate struct {
		name string
		new  func() (jobs.Adapter, error)
	}
	candidates := []candidate{
		{storyboard.Name, func() (jobs.Adapter, error) {
			return storyboard.New(storyboard.Options{
				Token:      cfg.RenderMCPToken,
				BaseURL:    cfg.RenderMCPURL,
				StatusPath: cfg.RenderMCPStatusPath,
			})
		}},
		{voice.Name, func() (jobs.Adapter, error) {
			return voice.New(voice.Options{APIKey: cfg.ElevenLabsAPIKey, BaseURL: cfg.ElevenLabsBaseURL})
		}},
		{avatar.Name, func() (jobs.Adapter, error) {
			return avatar.New(avatar.Options{
				APIKey:     cfg.HeyGenAPIKey,
				BaseURL:    cfg.HeyGenBaseURL,
				StatusPath: cfg.HeyGenStatusPath,
			})
		}},
		{video.Name, func() (jobs.Adapter, error) {
			return video.New(video.Options{
				APIKey:     cfg.RunwayAPIKey,
				BaseURL:    cfg.RunwayBaseURL,
				APIVersion: cfg.RunwayAPIVersion,
				StatusPath: cfg.RunwayStatusPath,
			})
		}},
	}

	for _, c := range candidates {
		a, err := c.new()
		switch {
		case isMissingKey(err):
			logger.Warn().Str("provider", c.name).Msg("app: provider disabled, credentials not configured")
			continue
		case err != nil:
			return nil, fmt.Errorf("app: %s adapter: %w", c.name, err)
		}
		registry.Register(a)
	}
	logger.Info().Strs("providers", registry.Names()).Msg("app: providers registered")
	return registry, nil
}

func isMissingKey(err error) bool {
	return errors.Is(err, storyboard.ErrMissingAPIKey) ||
		errors.Is(err, voice.ErrMissingAPIKey) ||
		errors.Is(err, avatar.ErrMissingAPIKey) ||
		errors.Is(err, video.ErrMissingAPIKey)
}
