package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/catalog"
	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	httpapi "github.com/radieske/points-prediction-market/internal/market-service/http"
	"github.com/radieske/points-prediction-market/internal/market-service/ledger"
	msmetrics "github.com/radieske/points-prediction-market/internal/market-service/metrics"
	"github.com/radieske/points-prediction-market/internal/market-service/pool"
	"github.com/radieske/points-prediction-market/internal/market-service/position"
	"github.com/radieske/points-prediction-market/internal/market-service/producer"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
	"github.com/radieske/points-prediction-market/internal/market-service/settlement"
	"github.com/radieske/points-prediction-market/internal/market-service/ws"
	"github.com/radieske/points-prediction-market/internal/shared/cache"
	"github.com/radieske/points-prediction-market/internal/shared/config"
	"github.com/radieske/points-prediction-market/internal/shared/kafka"
	"github.com/radieske/points-prediction-market/internal/shared/logger"
	"github.com/radieske/points-prediction-market/internal/shared/metrics"
	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

func main() {
	// carrega config
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "market-service"
	}

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := repo.Open(ctx, cfg.StoreDriver, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer store.Close()
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	// Redis é opcional: sem ele o websocket só entrega o snapshot inicial
	var rdb *redis.Client
	if client, err := cache.ConnectRedis(cfg.RedisAddr); err != nil {
		log.Warn("redis unavailable, live pool updates disabled", zap.Error(err))
	} else {
		rdb = client
		defer rdb.Close()
		log.Info("redis connected")
	}

	// writer sem tópico fixo: cada evento informa o seu
	writer := kafka.NewWriter(cfg.KafkaBrokers, "")
	defer writer.Close()
	publisher := producer.NewKafkaPublisher(writer, producer.Topics{
		BetPlaced:      cfg.TopicBetPlaced,
		MarketResolved: cfg.TopicMarketResolved,
		PayoutCredited: cfg.TopicPayoutCredited,
	})

	collectors := msmetrics.NewCollectors(prometheus.DefaultRegisterer)

	led := ledger.New(store, log)
	aggregator := pool.New(store)
	settle := settlement.New(store, led, log, settlement.Hooks{
		OnCredited: func(ctx context.Context, p domain.Payout) {
			collectors.PayoutsCredited.Inc()
			err := publisher.PublishPayoutCredited(ctx, events.PayoutCredited{
				PayoutID: p.ID,
				MarketID: p.MarketID,
				BetID:    p.BetID,
				UserID:   p.UserID,
				Stake:    p.Stake,
				Share:    p.Share,
				Amount:   p.Amount,
			})
			if err != nil {
				log.Warn("publish payout_credited failed", zap.String("payoutId", p.ID), zap.Error(err))
				collectors.PublishErrors.WithLabelValues(cfg.TopicPayoutCredited).Inc()
			}
		},
		OnCreditFailed: func(domain.Payout, error) { collectors.PayoutsFailed.Inc() },
	})

	hub := ws.NewHub(log, func(*http.Request) bool { return true }, snapshotFunc(rdb, cfg.PoolSnapshotTTL, aggregator, log))
	if rdb != nil {
		ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)
	}

	api := httpapi.NewServer(log, httpapi.Deps{
		Catalog:    catalog.New(store, led, log),
		Positions:  position.New(store, led, log),
		Pools:      aggregator,
		Settlement: settle,
		Publisher:  publisher,
		Metrics:    collectors,
		Hub:        hub,
	})

	// sobe servidor de métricas e health
	checks := []metrics.HealthFunc{store.Ping}
	if rdb != nil {
		checks = append(checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.All(checks...))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("market-service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("market-service stopped")
}

// snapshotFunc lê os pools do store; o snapshot do Redis só cobre falhas de leitura
func snapshotFunc(rdb *redis.Client, ttl time.Duration, agg *pool.Aggregator, log *zap.Logger) ws.SnapshotFunc {
	snaps := &pool.Snapshots{Pools: agg, Source: "market-service", Log: log}
	if rdb != nil {
		snaps.Cache = cache.NewPoolSnapshots(rdb, ttl)
	}
	return snaps.Current
}
