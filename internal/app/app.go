// Package app wires configuration into the running object graph: LLM
// clients, providers, services, accounting storage and metrics. Both the
// HTTP server and the CLI build their dependencies through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fleveque/crm-service/internal/config"
	"github.com/fleveque/crm-service/internal/llm"
	"github.com/fleveque/crm-service/internal/materials"
	"github.com/fleveque/crm-service/internal/provider"
	"github.com/fleveque/crm-service/internal/service"
	"github.com/fleveque/crm-service/internal/storage"
	"github.com/fleveque/crm-service/internal/telemetry"
)

const serviceName = "crm-service"

// App holds the fully wired services. Everything in it is immutable after
// New returns and safe for concurrent use.
type App struct {
	Materials materials.List
	Reports   *service.ReportService
	Detector  *service.Detector
	// Usage is nil when call accounting is disabled.
	Usage storage.LLMCallRepository
	// MetricsHandler is nil when metrics are disabled.
	MetricsHandler http.Handler

	completions *provider.CompletionProvider
	db          *sqlx.DB
	shutdown    func(context.Context) error
	logger      *zap.Logger
}

// New builds the application from cfg. Missing API keys for every configured
// provider is an error; a key for only some providers is logged and tolerated.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	list, err := materials.Load(cfg.Materials.ListPath)
	if err != nil {
		return nil, fmt.Errorf("loading material list: %w", err)
	}

	prompts, err := llm.NewPrompts(cfg.LLM.Prompts)
	if err != nil {
		return nil, fmt.Errorf("compiling prompts: %w", err)
	}

	clients, visionClients, err := buildClients(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Materials: list, logger: logger}

	var recorder provider.CallRecorder = provider.NopRecorder{}
	if cfg.Usage.DatabasePath != "" {
		db, err := storage.NewDatabase(cfg.Usage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("opening usage database: %w", err)
		}
		a.db = db
		a.Usage = storage.NewLLMCallRepository(db)
		recorder = a.Usage
	}

	metrics := telemetry.Nop()
	if cfg.Metrics.Enabled {
		m, handler, shutdown, err := telemetry.Setup(serviceName)
		if err != nil {
			a.closeDB()
			return nil, fmt.Errorf("setting up metrics: %w", err)
		}
		metrics, a.MetricsHandler, a.shutdown = m, handler, shutdown
	}

	// One limiter for every outbound call, text and vision alike.
	opts := provider.Options{
		Limiter: provider.NewLimiter(cfg.LLM.RatePerMinute, cfg.LLM.Burst),
		Timeout: cfg.LLM.Timeout,
	}

	a.completions = provider.NewCompletionProvider(clients, prompts, opts, recorder, metrics, logger)
	vision, err := provider.NewVisionProvider(visionClients, prompts, opts, recorder, metrics, logger)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	estimator := service.NewMaterialEstimator(list, a.completions, cfg.LLM.MaxConcurrency, logger)
	a.Reports = service.NewReportService(estimator, a.completions, logger)
	a.Detector = service.NewDetector(service.NewImageProcessor(cfg.Detector.MaxDimension), vision, logger)

	logger.Info("application ready",
		zap.Int("materials", list.Len()),
		zap.Int("providers", len(clients)),
		zap.Bool("usage_accounting", a.Usage != nil),
		zap.Bool("metrics", a.MetricsHandler != nil),
	)
	return a, nil
}

// Verify checks the provider credentials. An llm.ErrAuth result should stop
// the process.
func (a *App) Verify(ctx context.Context) error {
	return a.completions.Verify(ctx)
}

// Close flushes metrics and closes the accounting database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down metrics: %w", err))
		}
	}
	if err := a.closeDB(); err != nil {
		errs = append(errs, fmt.Errorf("closing usage database: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) closeDB() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// buildClients creates the text and vision clients in provider order,
// skipping providers without an API key.
func buildClients(cfg config.LLMConfig, logger *zap.Logger) ([]llm.Client, []llm.VisionClient, error) {
	settings := llm.Settings{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}

	var clients []llm.Client
	var vision []llm.VisionClient
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "openai":
			if cfg.OpenAI.APIKey == "" {
				logger.Warn("skipping provider without API key", zap.String("provider", name))
				continue
			}
			c := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.VisionModel, settings)
			clients = append(clients, c)
			vision = append(vision, c)
		case "anthropic":
			if cfg.Anthropic.APIKey == "" {
				logger.Warn("skipping provider without API key", zap.String("provider", name))
				continue
			}
			c := llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, settings)
			clients = append(clients, c)
			vision = append(vision, c)
		default:
			return nil, nil, fmt.Errorf("unknown LLM provider %q in llm.provider_order", name)
		}
	}

	if len(clients) == 0 {
		return nil, nil, fmt.Errorf("%w: no API key set for any of %v", llm.ErrAuth, cfg.ProviderOrder)
	}
	return clients, vision, nil
}
