package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/ledger"
	"github.com/radieske/points-prediction-market/internal/market-service/position"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
	"github.com/radieske/points-prediction-market/internal/market-service/testutil"
)

// faultyStore falha a escrita de saldo de um usuário enquanto fail estiver ligado
type faultyStore struct {
	repo.Store
	failUser string
	fail     *atomic.Bool
}

func (f faultyStore) Users() repo.UserRepository {
	return faultyUsers{UserRepository: f.Store.Users(), f: f}
}

func (f faultyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repo.Store) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		return fn(ctx, faultyStore{Store: tx, failUser: f.failUser, fail: f.fail})
	})
}

type faultyUsers struct {
	repo.UserRepository
	f faultyStore
}

func (u faultyUsers) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, expectedVersion int64) (domain.User, error) {
	if id == u.f.failUser && u.f.fail.Load() {
		return domain.User{}, fmt.Errorf("update balance: %w: %w", domain.ErrStore, errors.New("connection reset"))
	}
	return u.UserRepository.UpdateBalance(ctx, id, balance, expectedVersion)
}

type fixture struct {
	store     repo.Store
	positions *position.Engine
	engine    *Engine
	market    domain.Market
	credited  []domain.Payout
	failed    int
}

func newFixture(t *testing.T, s repo.Store) *fixture {
	f := &fixture{store: s}
	l := ledger.New(s, zap.NewNop())
	admin := testutil.SeedAdmin(t, s)
	f.market = testutil.SeedMarket(t, s, admin.ID)
	f.positions = position.New(s, l, zap.NewNop())
	f.engine = New(s, l, zap.NewNop(), Hooks{
		OnCredited:     func(_ context.Context, p domain.Payout) { f.credited = append(f.credited, p) },
		OnCreditFailed: func(domain.Payout, error) { f.failed++ },
	})
	return f
}

func (f *fixture) bet(t *testing.T, u domain.User, side domain.Side, amount string) {
	t.Helper()
	_, err := f.positions.PlaceBet(context.Background(), u.ID, f.market.ID, side, testutil.Dec(t, amount))
	require.NoError(t, err)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, testutil.Dec(t, want).Equal(got), "want %s, got %s", want, got)
}

func TestResolve_ProportionalDistribution(t *testing.T) {
	s := repo.NewMemory()
	f := newFixture(t, s)
	a := testutil.SeedUser(t, s, "1000")
	b := testutil.SeedUser(t, s, "1000")
	c := testutil.SeedUser(t, s, "1000")
	f.bet(t, a, domain.SideYes, "100")
	f.bet(t, b, domain.SideYes, "50")
	f.bet(t, c, domain.SideNo, "75")

	res, err := f.engine.ResolveMarketAndDistribute(context.Background(), f.market.ID, domain.SideYes)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Distributed)
	assertDec(t, "150", res.WinningPool)
	assertDec(t, "75", res.LosingPool)
	assertDec(t, "75", res.TotalDistributed)
	assertDec(t, "0", res.Residual)
	assert.Equal(t, 2, res.WinnerCount)
	assert.Equal(t, 2, res.Credited)
	assert.Empty(t, res.Message)

	assert.Equal(t, domain.StatusResolved, res.Market.Status)
	require.NotNil(t, res.Market.Resolution)
	assert.Equal(t, domain.SideYes, *res.Market.Resolution)
	require.NotNil(t, res.Market.ResolvedAt)
	require.NotNil(t, res.Market.Creator)

	// A: 900 + 150, B: 950 + 75, C perde a aposta
	assertDec(t, "1050", testutil.Balance(t, s, a.ID))
	assertDec(t, "1025", testutil.Balance(t, s, b.ID))
	assertDec(t, "925", testutil.Balance(t, s, c.ID))
	assert.Len(t, f.credited, 2)
}

func TestResolve_NoLosersRefundsStake(t *testing.T) {
	s := repo.NewMemory()
	f := newFixture(t, s)
	a := testutil.SeedUser(t, s, "1000")
	f.bet(t, a, domain.SideYes, "100")

	res, err := f.engine.ResolveMarketAndDistribute(context.Background(), f.market.ID, domain.SideYes)
	require.NoError(t, err)

	assert.True(t, res.Distributed)
	assertDec(t, "0", res.TotalDistributed)
	assert.Equal(t, MessageNoLosers, res.Message)
	assertDec(t, "1000", testutil.Balance(t, s, a.ID))
}

func TestResolve_NoWinnersHouseKeepsStakes(t *testing.T) {
	s := repo.NewMemory()
	f := newFixture(t, s)
	c := testutil.SeedUser(t, s, "1000")
	f.bet(t, c, domain.SideNo, "60")

	res, err := f.engine.ResolveMarketAndDistribute(context.Background(), f.market.ID, domain.SideYes)
	require.NoError(t, err)

	assert.False(t, res.Distributed)
	assert.Equal(t, MessageNoWinners, res.Message)
	assert.Zero(t, res.Credited)
	assertDec(t, "940", testutil.Balance(t, s, c.ID))

	payouts, err := f.engine.Payouts(context.Background(), f.market.ID)
	require.NoError(t, err)
	assert.Empty(t, payouts)
}

func TestResolve_EmptyMarket(t *testing.T) {
	s := repo.NewMemory()
	f := newFixture(t, s)

	res, err := f.engine.ResolveMarketAndDistribute(context.Background(), f.market.ID, domain.SideNo)
	require.NoError(t, err)
	assert.False(t, res.Distributed)
	assert.Equal(t, domain.StatusResolved, res.Market.Status)
}

func TestResolve_IsSingleShot(t *testing.T) {
	ctx := context.Background()
	s := repo.NewMemory()
	f := newFixture(t, s)
	a := testutil.SeedUser(t, s, "1000")
	c := testutil.SeedUser(t, s, "1000")
	f.bet(t, a, domain.SideYes, "100")
	f.bet(t, c, domain.SideNo, "100")

	_, err := f.engine.ResolveMarketAndDistribute(ctx, f.market.ID, domain.SideYes)
	require.NoError(t, err)
	before := []decimal.Decimal{testutil.Balance(t, s, a.ID), testutil.Balance(t, s, c.ID)}

	res, err := f.engine.ResolveMarketAndDistribute(ctx, f.market.ID, domain.SideNo)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	assert.Nil(t, res)

	market, err := s.Markets().Get(ctx, f.market.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SideYes, *market.Resolution)
	assert.True(t, before[0].Equal(testutil.Balance(t, s, a.ID)))
	assert.True(t, before[1].Equal(testutil.Balance(t, s, c.ID)))

	_, err = f.positions.PlaceBet(ctx, a.ID, f.market.ID, domain.SideYes, testutil.Dec(t, "1"))
	assert.ErrorIs(t, err, domain.ErrMarketClosed)
}

func TestResolve_Validation(t *testing.T) {
	s := repo.NewMemory()
	f := newFixture(t, s)

	_, err := f.engine.ResolveMarketAndDistribute(context.Background(), f.market.ID, domain.Side("yes"))
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.engine.ResolveMarketAndDistribute(context.Background(), "missing", domain.SideYes)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	market, err := s.Markets().Get(context.Background(), f.market.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, market.Status)
}

// A soma das cotas nunca excede o pool perdedor; o resto é informado
func TestResolve_ConservationWithRounding(t *testing.T) {
	s := repo.NewMemory()
	f := newFixture(t, s)
	winners := []domain.User{
		testutil.SeedUser(t, s, "10"),
		testutil.SeedUser(t, s, "10"),
		testutil.SeedUser(t, s, "10"),
	}
	for _, w := range winners {
		f.bet(t, w, domain.SideNo, "1")
	}
	loser := testutil.SeedUser(t, s, "10")
	f.bet(t, loser, domain.SideYes, "1")

	res, err := f.engine.ResolveMarketAndDistribute(context.Background(), f.market.ID, domain.SideNo)
	require.NoError(t, err)

	assertDec(t, "0.99999999", res.TotalDistributed)
	assertDec(t, "0.00000001", res.Residual)
	assert.True(t, res.TotalDistributed.Add(res.Residual).Equal(res.LosingPool))

	paid := decimal.Zero
	for _, w := range winners {
		assertDec(t, "10.33333333", testutil.Balance(t, s, w.ID))
		paid = paid.Add(testutil.Balance(t, s, w.ID).Sub(testutil.Dec(t, "9")))
	}
	assert.True(t, paid.Add(res.Residual).Equal(res.WinningPool.Add(res.LosingPool)))
}

func TestPlan(t *testing.T) {
	at := time.Now()
	winners := []domain.Bet{
		{ID: "b1", UserID: "a", Amount: decimal.NewFromInt(100)},
		{ID: "b2", UserID: "b", Amount: decimal.NewFromInt(50)},
	}

	payouts := Plan("m", winners, decimal.NewFromInt(150), decimal.NewFromInt(75), at)
	require.Len(t, payouts, 2)
	assertDec(t, "50", payouts[0].Share)
	assertDec(t, "150", payouts[0].Amount)
	assertDec(t, "25", payouts[1].Share)
	assertDec(t, "75", payouts[1].Amount)
	assert.Equal(t, domain.PayoutPending, payouts[0].Status)

	refunds := Plan("m", winners, decimal.NewFromInt(150), decimal.Zero, at)
	require.Len(t, refunds, 2)
	assertDec(t, "100", refunds[0].Amount)
	assertDec(t, "0", refunds[0].Share)

	assert.Empty(t, Plan("m", nil, decimal.Zero, decimal.NewFromInt(10), at))
}

// Uma falha no meio da distribuição deixa o payout pendente; a retomada
// paga exatamente uma vez
func TestResolve_PartialFailureThenResume(t *testing.T) {
	ctx := context.Background()
	mem := repo.NewMemory()
	a := testutil.SeedUser(t, mem, "1000")
	b := testutil.SeedUser(t, mem, "1000")
	c := testutil.SeedUser(t, mem, "1000")

	fail := &atomic.Bool{}
	f := newFixture(t, faultyStore{Store: mem, failUser: b.ID, fail: fail})
	f.bet(t, a, domain.SideYes, "100")
	f.bet(t, b, domain.SideYes, "50")
	f.bet(t, c, domain.SideNo, "75")

	fail.Store(true)
	res, err := f.engine.ResolveMarketAndDistribute(ctx, f.market.ID, domain.SideYes)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialDistribution)
	assert.ErrorIs(t, err, domain.ErrStore)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Credited)
	assert.Equal(t, 1, f.failed)

	assertDec(t, "1050", testutil.Balance(t, mem, a.ID))
	assertDec(t, "950", testutil.Balance(t, mem, b.ID))

	_, err = f.engine.ResolveMarketAndDistribute(ctx, f.market.ID, domain.SideYes)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	// ainda falhando: continua pendente
	resumed, err := f.engine.ResumeDistribution(ctx, f.market.ID)
	assert.ErrorIs(t, err, domain.ErrPartialDistribution)
	assert.Equal(t, 1, resumed.Pending)

	fail.Store(false)
	resumed, err = f.engine.ResumeDistribution(ctx, f.market.ID)
	require.NoError(t, err)
	assert.Equal(t, ResumeResult{MarketID: f.market.ID, Credited: 1, AlreadyPaid: 1, Pending: 0}, resumed)
	assertDec(t, "1025", testutil.Balance(t, mem, b.ID))

	again, err := f.engine.ResumeDistribution(ctx, f.market.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Credited)
	assert.Equal(t, 2, again.AlreadyPaid)
	assertDec(t, "1025", testutil.Balance(t, mem, b.ID))
	assertDec(t, "1050", testutil.Balance(t, mem, a.ID))
}

func TestResumeDistribution_RequiresResolvedMarket(t *testing.T) {
	s := repo.NewMemory()
	f := newFixture(t, s)

	_, err := f.engine.ResumeDistribution(context.Background(), f.market.ID)
	assert.ErrorIs(t, err, domain.ErrNotResolved)

	_, err = f.engine.ResumeDistribution(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
