// Package di wires the application together with google/wire.
package di

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"storygraph/application/ports"
	"storygraph/application/queries"
	querybus "storygraph/application/queries/bus"
	queryhandlers "storygraph/application/queries/handlers"
	"storygraph/application/session"
	"storygraph/infrastructure/config"
	"storygraph/infrastructure/source/httpsource"
	"storygraph/infrastructure/source/sqlitesource"
	pkgerrors "storygraph/pkg/errors"
	"storygraph/pkg/observability"
)

// ProvideLogger creates the logger for the configured environment.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideMetrics creates the Prometheus collector.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.MetricsNamespace)
}

// ProvideErrorHandler creates the HTTP error handler.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideTuningWatcher loads and starts the tuning watcher when a
// tuning file is configured; otherwise tuning stays nil and the static
// config values apply.
func ProvideTuningWatcher(cfg *config.Config, logger *zap.Logger) (*config.TuningWatcher, error) {
	if cfg.TuningPath == "" {
		return nil, nil
	}
	watcher, err := config.NewTuningWatcher(cfg.TuningPath, logger)
	if err != nil {
		return nil, err
	}
	watcher.Start()
	return watcher, nil
}

// DataSources bundles the configured graph backend.
type DataSources struct {
	Graph    ports.GraphSource
	Chapters ports.ChapterSource

	closer func() error
}

// Close releases the backend connection, if any.
func (d *DataSources) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

// ProvideDataSources opens the graph source selected by GRAPH_SOURCE.
func ProvideDataSources(cfg *config.Config, logger *zap.Logger, metrics *observability.Collector) (*DataSources, error) {
	switch cfg.SourceBackend {
	case config.SourceSQLite:
		store, err := sqlitesource.Open(cfg.SQLitePath, logger, metrics)
		if err != nil {
			return nil, err
		}
		return &DataSources{Graph: store, Chapters: store, closer: store.Close}, nil
	case config.SourceHTTP:
		client := httpsource.NewClient(cfg.AgentBaseURL, cfg.AgentTimeout, logger, metrics)
		return &DataSources{Graph: client, Chapters: client}, nil
	default:
		return nil, fmt.Errorf("unknown graph source %q", cfg.SourceBackend)
	}
}

// ProvideQueryBus builds the query bus with all handlers registered and
// metrics middleware applied.
func ProvideQueryBus(sources *DataSources, logger *zap.Logger, metrics *observability.Collector) (*querybus.QueryBus, error) {
	bus := querybus.NewQueryBus()
	mw := querybus.NewMetricsMiddleware(metrics)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetRelationGraphQuery{}, queryhandlers.NewGetRelationGraphHandler(sources.Graph, logger)},
		{queries.ListChaptersQuery{}, queryhandlers.NewListChaptersHandler(sources.Chapters, logger)},
	}
	for _, reg := range registrations {
		if err := bus.Register(reg.query, mw.Wrap(reg.handler)); err != nil {
			return nil, err
		}
	}
	return bus, nil
}

// ProvideSessionManager creates the view session manager.
func ProvideSessionManager(sources *DataSources, logger *zap.Logger, metrics *observability.Collector) *session.Manager {
	return session.NewManager(sources.Graph, logger, metrics)
}

// SessionDefaults supplies the defaults for new sessions, reading the
// tuning watcher when one is active.
type SessionDefaults func() session.Config

// ProvideSessionDefaults derives session defaults from the static
// config, overlaid with live tuning values.
func ProvideSessionDefaults(cfg *config.Config, tuning *config.TuningWatcher) SessionDefaults {
	return func() session.Config {
		out := session.Config{
			TickInterval: cfg.SessionTickInterval,
			Spread:       cfg.DefaultSpread,
		}
		if tuning == nil {
			return out
		}
		t := tuning.Current()
		out.Spread = t.Layout.DefaultSpread
		out.Width = t.Layout.DefaultWidth
		out.Height = t.Layout.DefaultHeight
		out.TickInterval = time.Duration(t.Session.TickIntervalMS) * time.Millisecond
		return out
	}
}

// Container holds all application dependencies.
type Container struct {
	Config          *config.Config
	Logger          *zap.Logger
	Metrics         *observability.Collector
	ErrorHandler    *pkgerrors.ErrorHandler
	Tuning          *config.TuningWatcher
	Sources         *DataSources
	QueryBus        *querybus.QueryBus
	Sessions        *session.Manager
	SessionDefaults SessionDefaults
}

// Close releases everything the container owns.
func (c *Container) Close() {
	c.Sessions.Close()
	if c.Tuning != nil {
		c.Tuning.Stop()
	}
	if err := c.Sources.Close(); err != nil {
		c.Logger.Warn("closing data sources", zap.Error(err))
	}
}
