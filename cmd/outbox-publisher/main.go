// Command outbox-publisher relays committed outbox_events rows to Pub/Sub.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/instance"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/migrate"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/registry"
	"github.com/angelmondragon/farmlink-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

type options struct {
	once        bool
	metricsAddr string
}

func main() {
	var opts options
	flag.BoolVar(&opts.once, "once", false, "drain a single batch and exit")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics on this address (disabled when empty)")
	flag.Parse()

	boot := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg := logger.FromConfig(serviceName, cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

	if err := run(ctx, cfg, logg, opts); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer psClient.Close()

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}

	sink := newPubSubSink(psClient, defaultPublishTimeout)
	defer sink.Close()

	relay, err := NewRelay(RelayParams{
		Config:      cfg.Outbox,
		Logger:      logg,
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		DB:          dbClient,
		Events:      outbox.NewRepository(dbClient.DB()),
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
		Registry:    events,
		Sink:        sink,
	})
	if err != nil {
		return err
	}

	if opts.once {
		n, err := relay.Drain(ctx)
		logg.Info(logg.WithField(ctx, "claimed", n), "outbox.drained_once")
		return err
	}

	if opts.metricsAddr != "" {
		srv := &http.Server{Addr: opts.metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics server failed", err)
			}
		}()
		defer srv.Close()
	}

	logg.Info(logg.WithField(ctx, "topics", events.Topics()), "outbox publisher started")
	return relay.Run(ctx)
}
