package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/ledger"
	"github.com/radieske/points-prediction-market/internal/market-service/producer"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
	"github.com/radieske/points-prediction-market/internal/market-service/settlement"
	"github.com/radieske/points-prediction-market/internal/settlement-worker/consumer"
	"github.com/radieske/points-prediction-market/internal/shared/config"
	"github.com/radieske/points-prediction-market/internal/shared/kafka"
	"github.com/radieske/points-prediction-market/internal/shared/logger"
	"github.com/radieske/points-prediction-market/internal/shared/metrics"
	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "settlement-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// o worker precisa do mesmo banco do market-service
	store, err := repo.Open(ctx, repo.DriverPostgres, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	// Kafka consumer: market_resolved (consumer group settlement-worker)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMarketResolved, "settlement-worker")
	defer reader.Close()

	// writer sem tópico fixo: payout_credited e DLQ
	writer := kafka.NewWriter(cfg.KafkaBrokers, "")
	defer writer.Close()
	publisher := producer.NewKafkaPublisher(writer, producer.Topics{PayoutCredited: cfg.TopicPayoutCredited})

	// Métricas Prometheus
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_worker_messages_consumed_total", Help: "mensagens consumidas"})
	credited := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_worker_payouts_credited_total", Help: "payouts creditados na retomada"})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_worker_dlq_total", Help: "mensagens enviadas para a DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_worker_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, credited, dlq, errorsBy)

	engine := settlement.New(store, ledger.New(store, log), log, settlement.Hooks{
		OnCredited: func(ctx context.Context, p domain.Payout) {
			err := publisher.PublishPayoutCredited(ctx, events.PayoutCredited{
				PayoutID: p.ID, MarketID: p.MarketID, BetID: p.BetID, UserID: p.UserID,
				Stake: p.Stake, Share: p.Share, Amount: p.Amount,
			})
			if err != nil {
				log.Warn("publish payout_credited failed", zap.String("payoutId", p.ID), zap.Error(err))
				errorsBy.WithLabelValues("publish").Inc()
			}
		},
	})

	var dlqWriter kafka.MessageWriter
	if cfg.TopicMarketResolvedDLQ != "" {
		dlqWriter = writer
	}

	w := &consumer.Worker{
		Log:        log,
		Reader:     reader,
		Settlement: engine,
		DLQ:        dlqWriter,
		DLQTopic:   cfg.TopicMarketResolvedDLQ,
		Retries:    cfg.SettlementRetries,
		Backoff:    cfg.SettlementBackoff,
		OnConsumed: func() { consumed.Inc() },
		OnResumed:  func(out settlement.ResumeResult) { credited.Add(float64(out.Credited)) },
		OnDLQ:      func() { dlq.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, store.Ping)
	defer metricsSrv.Close()

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicMarketResolved),
		zap.String("dlq", cfg.TopicMarketResolvedDLQ),
	)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("worker stopped with error", zap.Error(err))
	}
	log.Info("settlement-worker stopped")
}

