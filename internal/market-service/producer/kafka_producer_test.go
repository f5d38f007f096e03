package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/points-prediction-market/internal/shared/kafka"
	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

var fixed = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newPublisher(w *fakeWriter) *KafkaPublisher {
	p := NewKafkaPublisher(w, Topics{BetPlaced: "bet_placed", MarketResolved: "market_resolved", PayoutCredited: "payout_credited"})
	p.now = func() time.Time { return fixed }
	return p
}

func TestPublishBetPlaced(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w)

	err := p.PublishBetPlaced(context.Background(), events.BetPlaced{
		BetID: "b1", UserID: "u1", MarketID: "m1", Side: "YES",
		Amount: decimal.NewFromInt(50), PositionAmount: decimal.NewFromInt(150),
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "bet_placed", msg.Topic)
	assert.Equal(t, "m1", string(msg.Key))

	var got events.BetPlaced
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, fixed.UnixMilli(), got.TsUnixMs)
	assert.True(t, got.PositionAmount.Equal(decimal.NewFromInt(150)))
}

func TestPublishMarketResolvedAndPayout(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w)
	ctx := context.Background()

	require.NoError(t, p.PublishMarketResolved(ctx, events.MarketResolved{MarketID: "m1", Resolution: "NO", Distributed: true}))
	require.NoError(t, p.PublishPayoutCredited(ctx, events.PayoutCredited{PayoutID: "p1", MarketID: "m1", Amount: decimal.NewFromInt(10)}))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "market_resolved", w.msgs[0].Topic)
	assert.Equal(t, "payout_credited", w.msgs[1].Topic)

	var paid events.PayoutCredited
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &paid))
	assert.True(t, paid.Ts.Equal(fixed))
}

func TestPublish_WriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newPublisher(&fakeWriter{err: boom})
	err := p.PublishBetPlaced(context.Background(), events.BetPlaced{MarketID: "m1"})
	assert.ErrorIs(t, err, boom)
}
