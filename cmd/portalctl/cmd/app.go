package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"go.pilab.hu/citizenportal/apiclient"
	"go.pilab.hu/citizenportal/config"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/internal/audit"
	"go.pilab.hu/citizenportal/internal/metrics"
	"go.pilab.hu/citizenportal/log"
	"go.pilab.hu/citizenportal/pagedata"
	"go.pilab.hu/citizenportal/session"
	"go.pilab.hu/citizenportal/storage"
	"go.pilab.hu/citizenportal/storage/redis"
	"go.pilab.hu/citizenportal/tracing"
)

// appContext holds the services shared by every command.
type appContext struct {
	cfg      *config.Config
	logger   log.Logger
	client   *apiclient.Client
	store    storage.Store
	sessions *session.Manager
	metrics  *metrics.Recorder
	audit    *audit.Trail

	tp        *sdktrace.TracerProvider
	auditFile io.Closer
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadConfig()
}

func newAppContext(ctx context.Context, cfgPath, auditPath string) (*appContext, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := log.NewZerologAdapter(log.ParseLevel(cfg.LogLevel), cfg.LogPretty)

	tp, err := tracing.InitTracerProvider(AppName, cfg.TraceExporter, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a := &appContext{
		cfg:     cfg,
		logger:  logger,
		tp:      tp,
		metrics: metrics.NewRecorder(prometheus.NewRegistry(), logger),
	}

	if auditPath != "" {
		f, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		a.auditFile = f
		a.audit = audit.NewTrail(f)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.store = store

	a.sessions = session.NewManager(a.store, session.WithTTL(cfg.SessionTTL), session.WithLogger(logger))
	a.client = apiclient.New(cfg.BaseURL, apiclient.WithLogger(logger), apiclient.WithTimeout(cfg.RequestTimeout))

	logger.Debug(ctx, "portalctl initialized", log.Fields{
		"base_url":        cfg.BaseURL,
		"storage_backend": cfg.StorageBackend,
		"trace_exporter":  cfg.TraceExporter,
	})
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return storage.NewMemoryStore(), nil
	case config.StorageRedis:
		store, err := redis.Dial(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := storage.NewBoltStore(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// pageOptions are the controller options every page command uses.
func (a *appContext) pageOptions() []pagedata.Option {
	return []pagedata.Option{
		pagedata.WithLogger(a.logger),
		pagedata.WithMetrics(a.metrics),
		pagedata.WithAudit(a.audit),
		pagedata.WithTimeout(a.cfg.RequestTimeout),
		pagedata.WithRefilter(a.cfg.ClientRefilter),
	}
}

// Close releases storage and flushes spans.
func (a *appContext) Close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.auditFile != nil {
		errs = append(errs, a.auditFile.Close())
		a.auditFile = nil
	}
	if a.tp != nil {
		errs = append(errs, a.tp.Shutdown(ctx))
		a.tp = nil
	}
	return errors.Join(errs...)
}

// userMessage is the one-line message printed for a failed command.
func userMessage(err error) string {
	if errors.Is(err, perrors.ErrNoSession) {
		return "not logged in, run 'portalctl auth login' first"
	}
	return perrors.Message(err)
}
