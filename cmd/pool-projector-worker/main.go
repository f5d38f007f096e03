package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/pool"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
	"github.com/radieske/points-prediction-market/internal/pool-projector/consumer"
	"github.com/radieske/points-prediction-market/internal/pool-projector/pubsub"
	"github.com/radieske/points-prediction-market/internal/shared/cache"
	"github.com/radieske/points-prediction-market/internal/shared/config"
	"github.com/radieske/points-prediction-market/internal/shared/kafka"
	"github.com/radieske/points-prediction-market/internal/shared/logger"
	"github.com/radieske/points-prediction-market/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pool-projector-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	store, err := repo.Open(ctx, repo.DriverPostgres, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer store.Close()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Configura o consumer Kafka (consumer group pool-projector)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetPlaced, "pool-projector")
	defer reader.Close()

	// Métricas Prometheus para monitoramento da projeção
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_projector_messages_consumed_total", Help: "mensagens consumidas"})
	projected := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_projector_snapshots_total", Help: "snapshots publicados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pool_projector_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, projected, errorsBy)

	proj := &consumer.Projector{
		Log:         log,
		Reader:      reader,
		Pools:       pool.New(store),
		Cache:       cache.NewPoolSnapshots(redisClient, cfg.PoolSnapshotTTL),
		Broadcast:   pubsub.NewRedisBroadcaster(redisClient),
		Channel:     cfg.RedisPubSubChannel,
		OnConsumed:  func() { consumed.Inc() },
		OnProjected: func() { projected.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.All(
		store.Ping,
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	))
	defer metricsSrv.Close()

	log.Info("pool-projector started", zap.String("consume", cfg.TopicBetPlaced), zap.String("channel", cfg.RedisPubSubChannel))
	if err := proj.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("projector stopped with error", zap.Error(err))
	}
	log.Info("pool-projector stopped")
}
