package settlement

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
	"github.com/radieske/points-prediction-market/internal/market-service/testutil"
	"github.com/radieske/points-prediction-market/internal/shared/db"
)

// Aposta e resolução concorrentes no Postgres: sem deadlock (40P01) e saldo final consistente
// nos dois desfechos possíveis (aposta antes ou depois do fechamento)
func TestPostgres_PlaceBetRacingResolve(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	pg, err := db.ConnectPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })
	require.NoError(t, db.Migrate(context.Background(), pg, repo.Schema...))
	s := repo.NewPostgres(pg)

	for i := 0; i < 20; i++ {
		f := newFixture(t, s)
		a := testutil.SeedUser(t, s, "1000")
		b := testutil.SeedUser(t, s, "1000")
		f.bet(t, a, domain.SideYes, "100")
		f.bet(t, b, domain.SideNo, "50")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var betErr, resolveErr error
		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, betErr = f.positions.PlaceBet(ctx, a.ID, f.market.ID, domain.SideYes, testutil.Dec(t, "10"))
		}()
		go func() {
			defer wg.Done()
			<-start
			_, resolveErr = f.engine.ResolveMarketAndDistribute(ctx, f.market.ID, domain.SideYes)
		}()
		close(start)
		wg.Wait()
		cancel()

		require.NoError(t, resolveErr, "iteration %d", i)
		if betErr != nil {
			assert.ErrorIs(t, betErr, domain.ErrMarketClosed, "iteration %d", i)
			assert.False(t, errors.Is(betErr, domain.ErrStore), "iteration %d: %v", i, betErr)
		}
		// 1000-110+160 quando a aposta entra antes, 1000-100+150 quando é rejeitada
		assertDec(t, "1050", testutil.Balance(t, s, a.ID))
		assertDec(t, "950", testutil.Balance(t, s, b.ID))
	}
}
