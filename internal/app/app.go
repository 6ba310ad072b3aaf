// Package app wires the configured services together: one entity registry,
// one audit store, and the guardianship, declaration and contract services
// sharing a logger, a metrics registry and a tracer provider.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	contractmetrics "civitas/internal/contract/metrics"
	contractsvc "civitas/internal/contract/service"
	"civitas/internal/entity/store"
	guardianmetrics "civitas/internal/guardianship/metrics"
	guardiansvc "civitas/internal/guardianship/service"
	intentmetrics "civitas/internal/intent/metrics"
	intent "civitas/internal/intent/models"
	intentsvc "civitas/internal/intent/service"
	"civitas/internal/platform/config"
	"civitas/internal/platform/logger"
	platformmetrics "civitas/internal/platform/metrics"
	"civitas/internal/platform/tracing"
	"civitas/pkg/platform/audit"
	"civitas/pkg/platform/audit/publishers/compliance"
	"civitas/pkg/platform/audit/publishers/ops"
	auditmemory "civitas/pkg/platform/audit/store/memory"
)

// Version is reported through the build_info gauge.
var Version = "dev"

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *prometheus.Registry
	Tracing  *tracing.Provider
	Registry *store.Registry
	Audit    audit.Store

	Guardianship *guardiansvc.Service
	Declarations *intentsvc.Book
	Contracts    *contractsvc.Service
}

type Option func(*options)

type options struct {
	logOutput   io.Writer
	traceOutput io.Writer
	clock       func() time.Time
	auditStore  audit.Store
}

// WithLogOutput redirects logs away from stdout.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithTraceOutput redirects the stdout span exporter.
func WithTraceOutput(w io.Writer) Option {
	return func(o *options) { o.traceOutput = w }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

func WithAuditStore(s audit.Store) Option {
	return func(o *options) { o.auditStore = s }
}

// New validates cfg and builds every service from it.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{
		logOutput:   os.Stdout,
		traceOutput: os.Stdout,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.auditStore == nil {
		o.auditStore = auditmemory.NewInMemoryStore()
	}

	digest, err := intent.ParseDigestAlgorithm(cfg.MatchDigest)
	if err != nil {
		return nil, err
	}

	log := logger.NewWithWriter(cfg, o.logOutput)
	reg := platformmetrics.NewRegistry(cfg.MetricsNamespace, Version)
	tp, err := tracing.NewWithWriter(cfg, o.traceOutput)
	if err != nil {
		return nil, err
	}

	complianceEmitter := compliance.New(o.auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(reg, cfg.MetricsNamespace)),
		compliance.WithClock(o.clock),
	)
	opsTracker := ops.New(o.auditStore,
		ops.WithLogger(log),
		ops.WithMetrics(ops.NewMetrics(reg, cfg.MetricsNamespace)),
		ops.WithSampler(ops.NewSampler(cfg.OpsSampleRate)),
		ops.WithClock(o.clock),
	)

	registry := store.NewRegistry()

	guardianship, err := guardiansvc.New(registry,
		guardiansvc.WithLogger(log),
		guardiansvc.WithAuditPublisher(complianceEmitter),
		guardiansvc.WithMetrics(guardianmetrics.New(reg, cfg.MetricsNamespace)),
		guardiansvc.WithTracer(tracing.Tracer(tp, "civitas/guardianship")),
		guardiansvc.WithLockTimeout(cfg.LockTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("guardianship service: %w", err)
	}

	book := intentsvc.New(
		intentsvc.WithDigest(digest),
		intentsvc.WithTraceMatching(cfg.TraceMatching),
		intentsvc.WithClock(o.clock),
		intentsvc.WithLogger(log),
		intentsvc.WithMetrics(intentmetrics.New(reg, cfg.MetricsNamespace)),
		intentsvc.WithTracer(tracing.Tracer(tp, "civitas/intent")),
		intentsvc.WithAuditPublisher(complianceEmitter),
		intentsvc.WithOpsTracker(opsTracker),
	)

	contracts := contractsvc.New(
		contractsvc.WithLogger(log),
		contractsvc.WithAuditPublisher(complianceEmitter),
		contractsvc.WithMetrics(contractmetrics.New(reg, cfg.MetricsNamespace)),
		contractsvc.WithTracer(tracing.Tracer(tp, "civitas/contract")),
		contractsvc.WithClock(o.clock),
	)

	log.Info("civitas services ready",
		"match_digest", string(digest),
		"trace_matching", cfg.TraceMatching,
		"tracing_enabled", cfg.TracingEnabled,
		"lock_timeout", cfg.LockTimeout.String(),
	)

	return &App{
		Config:       cfg,
		Logger:       log,
		Metrics:      reg,
		Tracing:      tp,
		Registry:     registry,
		Audit:        o.auditStore,
		Guardianship: guardianship,
		Declarations: book,
		Contracts:    contracts,
	}, nil
}

// Close flushes the tracer provider.
func (a *App) Close(ctx context.Context) error {
	return a.Tracing.Shutdown(ctx)
}
