// Package app builds the archiver's long-lived services from configuration
// and owns their shutdown order.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/web-archiver/internal/api"
	"github.com/JakeFAU/web-archiver/internal/archive"
	"github.com/JakeFAU/web-archiver/internal/clock/system"
	"github.com/JakeFAU/web-archiver/internal/config"
	"github.com/JakeFAU/web-archiver/internal/events"
	"github.com/JakeFAU/web-archiver/internal/events/sinks"
	collyfetcher "github.com/JakeFAU/web-archiver/internal/fetcher/colly"
	"github.com/JakeFAU/web-archiver/internal/host"
	"github.com/JakeFAU/web-archiver/internal/id"
	"github.com/JakeFAU/web-archiver/internal/logging"
	"github.com/JakeFAU/web-archiver/internal/notify"
	"github.com/JakeFAU/web-archiver/internal/orchestrator"
	"github.com/JakeFAU/web-archiver/internal/policy/ratelimit"
	"github.com/JakeFAU/web-archiver/internal/provider"
	gcppublisher "github.com/JakeFAU/web-archiver/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/web-archiver/internal/storage/gcs"
	localstorage "github.com/JakeFAU/web-archiver/internal/storage/local"
	pgstore "github.com/JakeFAU/web-archiver/internal/storage/postgres"
	"github.com/JakeFAU/web-archiver/internal/store"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg             config.Config
	logger          *zap.Logger
	backend         store.Backend
	store           *store.Store
	orchestrator    *orchestrator.Orchestrator
	apiServer       *api.Server
	paste           *host.PasteHandler
	hub             *events.Hub
	history         *pgstore.HistoryStore
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	storage         *storage.Client
	localDoc        *localstorage.Document
	reconciled      int
}

// Option overrides a collaborator Build would otherwise derive from config.
type Option func(*buildOptions)

type buildOptions struct {
	logger     *zap.Logger
	backend    store.Backend
	transport  archive.Transport
	registerer prometheus.Registerer
	notifier   archive.Notifier
	pasteWait  time.Duration
}

// WithLogger replaces the configured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

// WithBackend keeps records in backend instead of store.location.
func WithBackend(backend store.Backend) Option {
	return func(o *buildOptions) { o.backend = backend }
}

// WithTransport replaces the outbound HTTP transport used by providers.
func WithTransport(transport archive.Transport) Option {
	return func(o *buildOptions) { o.transport = transport }
}

// WithRegisterer registers transition metrics against reg instead of the
// default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *buildOptions) { o.registerer = reg }
}

// WithNotifier replaces the log and ntfy notifiers.
func WithNotifier(n archive.Notifier) Option {
	return func(o *buildOptions) { o.notifier = n }
}

// WithPasteWait makes the paste handler wait up to d for snapshots.
func WithPasteWait(d time.Duration) Option {
	return func(o *buildOptions) { o.pasteWait = d }
}

// Build creates the application's dependencies, loads the store and resets
// provider states left over from an interrupted run.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	logger := bo.logger
	if logger == nil {
		var err error
		logger, err = logging.NewWithLevel(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
	}
	a := &App{cfg: cfg, logger: logger}
	a.logger.Info("building application dependencies",
		zap.Strings("providers", cfg.Providers.Enabled),
		zap.String("store", cfg.Store.Location),
	)

	if err := a.build(ctx, bo); err != nil {
		a.closeInfrastructure(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, bo buildOptions) error {
	if err := a.setupBackend(ctx, bo.backend); err != nil {
		return err
	}
	ids, err := id.New()
	if err != nil {
		return fmt.Errorf("id generator init failed: %w", err)
	}
	a.store = store.New(a.backend, ids, system.New(), store.Config{
		Providers:    a.cfg.Providers.Enabled,
		Debounce:     a.cfg.Debounce(),
		FlushTimeout: a.cfg.CallTimeout(),
	}, a.logger.Named("store"))
	if err = a.store.Load(ctx); err != nil {
		return fmt.Errorf("load store: %w", err)
	}

	transport := bo.transport
	if transport == nil {
		transport = a.setupTransport()
	}
	drivers, err := provider.Build(a.cfg.Providers.Enabled, a.cfg.Providers.Endpoints, transport)
	if err != nil {
		return fmt.Errorf("provider init failed: %w", err)
	}

	if err = a.setupHistory(ctx); err != nil {
		return err
	}
	if err = a.setupPublisher(ctx); err != nil {
		return err
	}
	if err = a.setupEvents(ctx, bo.registerer); err != nil {
		return err
	}

	notifier := bo.notifier
	if notifier == nil {
		notifier = notify.Multi{
			notify.NewLogNotifier(a.logger.Named("notify"), a.cfg.Verbosity()),
			notify.NewNtfy(a.cfg.Notifications.NtfyTopic, a.cfg.NotificationTimeout(), a.cfg.Verbosity()),
		}
	}
	a.orchestrator, err = orchestrator.New(a.store, drivers, orchestrator.Config{
		CallTimeout: a.cfg.CallTimeout(),
		Notifier:    notifier,
		Events:      a.hub,
		Clock:       system.New(),
		Logger:      a.logger.Named("orchestrator"),
	})
	if err != nil {
		return fmt.Errorf("orchestrator init failed: %w", err)
	}
	if a.reconciled, err = a.orchestrator.Reconcile(ctx); err != nil {
		return err
	}

	serverOpts := []api.Option{
		api.WithLogger(a.logger.Named("api")),
		api.WithReadiness(a.ready),
		api.WithAPIKey(a.cfg.Server.APIKey),
	}
	if a.history != nil {
		serverOpts = append(serverOpts, api.WithHistory(api.NewHistoryHandler(a.history, a.logger.Named("history"))))
	}
	a.apiServer = api.NewServer(a.orchestrator, a.store, serverOpts...)
	a.paste = host.NewPasteHandler(a.orchestrator,
		host.WithLinkText(a.cfg.Links.Text),
		host.WithWait(bo.pasteWait),
		host.WithLogger(a.logger.Named("paste")),
	)
	return nil
}

func (a *App) setupBackend(ctx context.Context, override store.Backend) error {
	if override != nil {
		a.logger.Info("using injected store backend")
		a.backend = override
		return nil
	}
	location := a.cfg.Store.Location
	if strings.HasPrefix(location, "gs://") {
		gcsCfg, err := gcsstorage.ParseLocation(location)
		if err != nil {
			return err
		}
		a.storage, err = storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		doc, err := gcsstorage.New(a.storage, gcsCfg)
		if err != nil {
			return fmt.Errorf("gcs store init failed: %w", err)
		}
		a.logger.Info("using GCS store backend", zap.String("bucket", gcsCfg.Bucket), zap.String("object", gcsCfg.Object))
		a.backend = doc
		return nil
	}
	doc, err := localstorage.Open(localstorage.Config{Path: location, Writable: a.cfg.Store.Writable})
	if err != nil {
		return fmt.Errorf("local store init failed: %w", err)
	}
	a.logger.Info("using local store backend", zap.String("path", doc.Location()))
	a.localDoc = doc
	a.backend = doc
	return nil
}

func (a *App) setupTransport() archive.Transport {
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.HTTP.RatePerSecond,
		DefaultBurst: a.cfg.HTTP.Burst,
	})
	a.logger.Info("using colly transport",
		zap.String("user_agent", a.cfg.HTTP.UserAgent),
		zap.Float64("rate_per_second", a.cfg.HTTP.RatePerSecond),
		zap.Int("burst", a.cfg.HTTP.Burst),
	)
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.HTTP.UserAgent,
		Timeout:   a.cfg.CallTimeout(),
		Limiter:   limiter,
	})
}

func (a *App) setupHistory(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Debug("no DSN configured, transition history disabled")
		return nil
	}
	var err error
	a.history, err = pgstore.NewHistoryStore(ctx, pgstore.HistoryStoreConfig{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("history store init failed: %w", err)
	}
	if err = a.history.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("history schema: %w", err)
	}
	a.logger.Info("history store initialized", zap.String("table", a.cfg.DB.Table))
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Debug("no Pub/Sub topic configured, transitions are not published")
		return nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubPublisher = gcppublisher.New(a.pubsubClient.Topic(a.cfg.PubSub.TopicName))
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupEvents(ctx context.Context, reg prometheus.Registerer) error {
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return err
	}
	sinkList := []events.Sink{
		sinks.NewLogSink(a.logger.Named("transitions")),
		promSink,
	}
	if a.history != nil {
		sinkList = append(sinkList, sinks.NewHistorySink(a.history))
	}
	if a.pubsubPublisher != nil {
		sinkList = append(sinkList, sinks.NewPublisherSink(a.pubsubPublisher, a.cfg.PubSub.TopicName))
	}
	hubCfg := events.Config{
		BufferSize:     a.cfg.Events.BufferSize,
		MaxBatchEvents: a.cfg.Events.BatchSize,
		MaxBatchWait:   a.cfg.BatchWait(),
		SinkTimeout:    a.cfg.CallTimeout(),
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         a.logger.Named("events"),
	}
	a.hub = events.NewHub(hubCfg, sinkList...)
	a.logger.Info("event hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return nil
}

// ready reports whether the store document can be read.
func (a *App) ready(ctx context.Context) error {
	if _, err := a.backend.Read(ctx); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store unreadable: %w", err)
	}
	return nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Store returns the record store.
func (a *App) Store() *store.Store { return a.store }

// Orchestrator returns the provider orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orchestrator }

// Paste returns the paste handler.
func (a *App) Paste() *host.PasteHandler { return a.paste }

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// Reconciled returns how many provider states were reset at startup.
func (a *App) Reconciled() int { return a.reconciled }

// Run serves the HTTP API and blocks until ctx is canceled or a
// termination signal arrives. It does not close the app.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close waits for provider tasks until ctx expires, flushes the store and
// releases every external resource.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.orchestrator != nil {
		err = a.orchestrator.Close(ctx)
		if err != nil {
			a.logger.Error("store flush on shutdown failed", zap.Error(err))
		}
	}
	if a.store != nil {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		if closeErr := a.store.Close(storeCtx); closeErr != nil && err == nil {
			err = closeErr
		}
		cancel()
	}
	a.closeInfrastructure(ctx)
	a.logger.Info("shutdown complete")
	if syncErr := a.logger.Sync(); syncErr != nil && !isSyncNoise(syncErr) {
		a.logger.Warn("logger sync failed", zap.Error(syncErr))
	}
	return err
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("event hub close failed", zap.Error(err))
		}
	}
	if a.history != nil {
		a.history.Close()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.localDoc != nil {
		if err := a.localDoc.Close(); err != nil {
			a.logger.Warn("store lock release failed", zap.Error(err))
		}
	}
}

// isSyncNoise filters the EINVAL/ENOTTY zap reports when stderr is a terminal.
func isSyncNoise(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
