package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-dbo/internal/admin"
	"github.com/pixil98/go-dbo/internal/datastore"
	"github.com/pixil98/go-dbo/internal/dbo"
	"github.com/pixil98/go-dbo/internal/driver"
	"github.com/pixil98/go-dbo/internal/editor"
	"github.com/pixil98/go-dbo/internal/messaging"
	"github.com/pixil98/go-dbo/internal/model"
	"github.com/pixil98/go-service"
	"github.com/prometheus/client_golang/prometheus"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}
	ctx := context.Background()

	store, err := cfg.Storage.buildStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	reg := dbo.NewRegistry()
	model.Register(reg)

	perms := cfg.Perm.buildPerms(store)
	if err := perms.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading immortals: %w", err)
	}
	reg.SetAuthority(perms)

	promReg := prometheus.NewRegistry()
	metrics, err := datastore.NewMetrics(promReg)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}
	ds := datastore.New(store, reg, datastore.WithMetrics(metrics))

	if cfg.Storage.AssetsPath != "" {
		report, err := admin.NewOps(ds, perms).ImportAssets(ctx, cfg.Storage.AssetsPath, false)
		if err != nil {
			return nil, fmt.Errorf("importing assets: %w", err)
		}
		slog.Info("assets imported", "path", cfg.Storage.AssetsPath, "report", report)
	}

	autosaver := datastore.NewAutosaver(ds)
	if cfg.ConfigID != "" {
		c, err := ds.LoadByID(ctx, model.TypeConfig, cfg.ConfigID)
		switch {
		case errors.Is(err, dbo.ErrNotFound):
			slog.Warn("config object not found", "config_id", cfg.ConfigID)
		case err != nil:
			return nil, fmt.Errorf("loading config %s: %w", cfg.ConfigID, err)
		default:
			autosaver.Register(c)
		}
	}

	nats, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	pub := messaging.NewEditPublisher(nats, cfg.Nats.SubjectPrefix)

	workers := service.WorkerList{
		"nats":   nats,
		"edits":  &editLogger{server: nats, pub: pub},
		"driver": driver.NewDriver([]driver.Manager{autosaver}, cfg.driverOpts()...),
	}
	if cfg.Metrics.Listen != "" {
		workers["metrics"] = cfg.Metrics.buildMetricsServer(promReg)
	}

	return workers, nil
}

// editLogger logs every edit notice once the nats server is up.
type editLogger struct {
	server *messaging.NatsServer
	pub    *messaging.EditPublisher
}

func (l *editLogger) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-l.server.Ready():
	}

	unsubscribe, err := l.pub.SubscribeEdits("*", func(n editor.Notice) {
		slog.InfoContext(ctx, "edit", "edit_type", n.EditType, "key", n.Key, "source", n.Source, "cascade", n.Cascade)
	})
	if err != nil {
		return fmt.Errorf("subscribing to edits: %w", err)
	}
	defer unsubscribe()

	<-ctx.Done()
	return nil
}
