package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/settlement"
	"github.com/radieske/points-prediction-market/internal/shared/kafka"
	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

type Resumer interface {
	ResumeDistribution(ctx context.Context, marketID string) (settlement.ResumeResult, error)
}

// Worker consome market_resolved e garante que todos os payouts do mercado
// foram creditados. Erros transitórios são retentados com backoff linear;
// esgotadas as tentativas (ou em erro permanente) a mensagem vai para a DLQ
type Worker struct {
	Log        *zap.Logger
	Reader     kafka.MessageReader
	Settlement Resumer
	DLQ        kafka.MessageWriter // opcional
	DLQTopic   string
	Retries    int
	Backoff    time.Duration

	OnConsumed func()
	OnResumed  func(settlement.ResumeResult)
	OnDLQ      func()
	OnError    func(string)
}

// Run inicia o loop de consumo; retorna quando ctx é cancelado
func (w *Worker) Run(ctx context.Context) error {
	for {
		m, err := w.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka read failed", zap.Error(err))
			w.fail("read")
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}
		if w.OnConsumed != nil {
			w.OnConsumed()
		}

		var ev events.MarketResolved
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.MarketID == "" {
			w.Log.Error("unmarshal market_resolved", zap.Error(err))
			w.fail("decode")
			w.toDLQ(ctx, "", m.Value)
			continue
		}

		if err := w.Process(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Error("settlement resume failed",
				zap.String("marketId", ev.MarketID),
				zap.Error(err),
			)
			w.toDLQ(ctx, ev.MarketID, m.Value)
		}
	}
}

// Process retoma a distribuição de um mercado com retentativas
func (w *Worker) Process(ctx context.Context, ev events.MarketResolved) error {
	var lastErr error
	for attempt := 0; attempt <= w.Retries; attempt++ {
		if attempt > 0 {
			if !sleep(ctx, time.Duration(attempt)*w.Backoff) {
				return ctx.Err()
			}
		}
		out, err := w.Settlement.ResumeDistribution(ctx, ev.MarketID)
		if err == nil {
			if w.OnResumed != nil {
				w.OnResumed(out)
			}
			if out.Credited > 0 {
				w.Log.Info("pending payouts credited",
					zap.String("marketId", ev.MarketID),
					zap.Int("credited", out.Credited),
					zap.Int("alreadyPaid", out.AlreadyPaid),
				)
			}
			return nil
		}
		lastErr = err
		w.fail("resume")
		if permanent(err) {
			return err
		}
		w.Log.Warn("resume attempt failed",
			zap.String("marketId", ev.MarketID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return lastErr
}

// permanent indica erros que não mudam com nova tentativa
func permanent(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotResolved)
}

func (w *Worker) toDLQ(ctx context.Context, key string, payload []byte) {
	if w.DLQ == nil {
		return
	}
	if err := kafka.WriteJSON(ctx, w.DLQ, w.DLQTopic, key, payload); err != nil {
		w.Log.Error("dlq write failed", zap.Error(err))
		w.fail("dlq")
		return
	}
	if w.OnDLQ != nil {
		w.OnDLQ()
	}
}

func (w *Worker) fail(stage string) {
	if w.OnError != nil {
		w.OnError(stage)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
