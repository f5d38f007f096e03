package position

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/ledger"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
	"github.com/radieske/points-prediction-market/internal/market-service/testutil"
)

type fixture struct {
	store  *repo.Memory
	engine *Engine
	admin  domain.User
	market domain.Market
}

func newFixture(t *testing.T) fixture {
	s := repo.NewMemory()
	admin := testutil.SeedAdmin(t, s)
	return fixture{
		store:  s,
		engine: New(s, ledger.New(s, zap.NewNop()), zap.NewNop()),
		admin:  admin,
		market: testutil.SeedMarket(t, s, admin.ID),
	}
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, testutil.Dec(t, want).Equal(got), "want %s, got %s", want, got)
}

func TestPlaceBet_DebitsBalanceAndCreatesPosition(t *testing.T) {
	f := newFixture(t)
	u := testutil.SeedUser(t, f.store, "1000")

	bet, err := f.engine.PlaceBet(context.Background(), u.ID, f.market.ID, domain.SideYes, testutil.Dec(t, "100"))
	require.NoError(t, err)

	assert.Equal(t, domain.SideYes, bet.Side)
	assertDec(t, "100", bet.Amount)
	assertDec(t, "900", testutil.Balance(t, f.store, u.ID))
}

func TestPlace_ReturnsBalanceFromSameTransaction(t *testing.T) {
	f := newFixture(t)
	u := testutil.SeedUser(t, f.store, "1000")

	p, err := f.engine.Place(context.Background(), u.ID, f.market.ID, domain.SideNo, testutil.Dec(t, "250.25"))
	require.NoError(t, err)
	assertDec(t, "749.75", p.Balance)
	assertDec(t, "250.25", p.Bet.Amount)

	_, err = f.engine.Place(context.Background(), u.ID, f.market.ID, domain.SideNo, testutil.Dec(t, "0"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestPlaceBet_SameSideMergesIntoOnePosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := testutil.SeedUser(t, f.store, "1000")

	first, err := f.engine.PlaceBet(ctx, u.ID, f.market.ID, domain.SideYes, testutil.Dec(t, "100"))
	require.NoError(t, err)
	second, err := f.engine.PlaceBet(ctx, u.ID, f.market.ID, domain.SideYes, testutil.Dec(t, "50"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assertDec(t, "150", second.Amount)
	assertDec(t, "850", testutil.Balance(t, f.store, u.ID))

	bets, err := f.engine.GetMarketBets(ctx, f.market.ID)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assertDec(t, "150", bets[0].Amount)
}

func TestPlaceBet_OppositeSideIsIndependent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := testutil.SeedUser(t, f.store, "1000")

	yes, err := f.engine.PlaceBet(ctx, u.ID, f.market.ID, domain.SideYes, testutil.Dec(t, "100"))
	require.NoError(t, err)
	no, err := f.engine.PlaceBet(ctx, u.ID, f.market.ID, domain.SideNo, testutil.Dec(t, "40"))
	require.NoError(t, err)

	assert.NotEqual(t, yes.ID, no.ID)
	assertDec(t, "860", testutil.Balance(t, f.store, u.ID))
}

func TestPlaceBet_Validation(t *testing.T) {
	f := newFixture(t)
	u := testutil.SeedUser(t, f.store, "1000")

	resolved := testutil.SeedMarket(t, f.store, f.admin.ID)
	_, err := f.store.Markets().Resolve(context.Background(), resolved.ID, domain.SideYes, resolved.CreatedAt)
	require.NoError(t, err)

	tests := []struct {
		name    string
		userID  string
		market  string
		side    domain.Side
		amount  string
		wantErr error
	}{
		{"invalid side", u.ID, f.market.ID, domain.Side("MAYBE"), "10", domain.ErrInvalidSide},
		{"zero amount", u.ID, f.market.ID, domain.SideYes, "0", domain.ErrInvalidAmount},
		{"negative amount", u.ID, f.market.ID, domain.SideYes, "-5", domain.ErrInvalidAmount},
		{"more than 8 decimals", u.ID, f.market.ID, domain.SideYes, "0.000000001", domain.ErrAmountScale},
		{"amount at column limit", u.ID, f.market.ID, domain.SideYes, "1000000000000", domain.ErrAmountTooLarge},
		{"side checked before amount", u.ID, f.market.ID, domain.Side(""), "-5", domain.ErrInvalidSide},
		{"unknown user", "missing", f.market.ID, domain.SideYes, "10", domain.ErrNotFound},
		{"insufficient balance", u.ID, f.market.ID, domain.SideYes, "2000", domain.ErrInsufficientBalance},
		{"balance checked before market", u.ID, "missing", domain.SideYes, "2000", domain.ErrInsufficientBalance},
		{"unknown market", u.ID, "missing", domain.SideYes, "10", domain.ErrNotFound},
		{"resolved market", u.ID, resolved.ID, domain.SideYes, "10", domain.ErrMarketClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.PlaceBet(context.Background(), tt.userID, tt.market, tt.side, testutil.Dec(t, tt.amount))
			assert.ErrorIs(t, err, tt.wantErr)
			assertDec(t, "1000", testutil.Balance(t, f.store, u.ID))
		})
	}

	bets, err := f.engine.GetUserBets(context.Background(), u.ID, repo.BetFilter{})
	require.NoError(t, err)
	assert.Empty(t, bets)
}

func TestPlaceBet_MergedPositionBelowLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := testutil.SeedUser(t, f.store, "999999999999")

	_, err := f.engine.PlaceBet(ctx, u.ID, f.market.ID, domain.SideYes, testutil.Dec(t, "600000000000"))
	require.NoError(t, err)

	// saldo recarregado: a soma com a posição existente alcançaria o limite da coluna
	cur, err := f.store.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	_, err = f.store.Users().UpdateBalance(ctx, u.ID, testutil.Dec(t, "999999999999"), cur.Version)
	require.NoError(t, err)

	_, err = f.engine.PlaceBet(ctx, u.ID, f.market.ID, domain.SideYes, testutil.Dec(t, "400000000000"))
	assert.ErrorIs(t, err, domain.ErrAmountTooLarge)
	assertDec(t, "999999999999", testutil.Balance(t, f.store, u.ID))

	bets, err := f.engine.GetUserBets(ctx, u.ID, repo.BetFilter{})
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assertDec(t, "600000000000", bets[0].Amount)
}

func TestPlaceBet_ExactBalanceIsAllowed(t *testing.T) {
	f := newFixture(t)
	u := testutil.SeedUser(t, f.store, "25.5")

	_, err := f.engine.PlaceBet(context.Background(), u.ID, f.market.ID, domain.SideNo, testutil.Dec(t, "25.5"))
	require.NoError(t, err)
	assertDec(t, "0", testutil.Balance(t, f.store, u.ID))
}

// Apostas concorrentes do mesmo usuário: nenhuma atualização perdida e saldo nunca negativo
func TestPlaceBet_ConcurrentBetsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := testutil.SeedUser(t, f.store, "100")

	var wg sync.WaitGroup
	var mu sync.Mutex
	placed := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.PlaceBet(ctx, u.ID, f.market.ID, domain.SideYes, testutil.Dec(t, "10")); err == nil {
				mu.Lock()
				placed++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, placed)
	assertDec(t, "0", testutil.Balance(t, f.store, u.ID))

	bets, err := f.engine.GetUserBets(ctx, u.ID, repo.BetFilter{MarketID: f.market.ID})
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assertDec(t, "100", bets[0].Amount)
}

func TestGetUserBets_AnnotatesMarketNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := testutil.SeedUser(t, f.store, "1000")
	other := testutil.SeedMarket(t, f.store, f.admin.ID)

	_, err := f.engine.PlaceBet(ctx, u.ID, f.market.ID, domain.SideYes, testutil.Dec(t, "10"))
	require.NoError(t, err)
	latest, err := f.engine.PlaceBet(ctx, u.ID, other.ID, domain.SideNo, testutil.Dec(t, "20"))
	require.NoError(t, err)

	bets, err := f.engine.GetUserBets(ctx, u.ID, repo.BetFilter{})
	require.NoError(t, err)
	require.Len(t, bets, 2)
	assert.Equal(t, latest.ID, bets[0].ID)
	require.NotNil(t, bets[0].Market)
	assert.Equal(t, other.ID, bets[0].Market.ID)

	filtered, err := f.engine.GetUserBets(ctx, u.ID, repo.BetFilter{MarketID: f.market.ID})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, f.market.ID, filtered[0].MarketID)
}
