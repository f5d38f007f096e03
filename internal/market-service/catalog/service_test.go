package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/ledger"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
	"github.com/radieske/points-prediction-market/internal/market-service/testutil"
)

func newService() (*Service, *repo.Memory) {
	s := repo.NewMemory()
	return New(s, ledger.New(s, zap.NewNop()), zap.NewNop()), s
}

func TestCreateMarket(t *testing.T) {
	ctx := context.Background()
	svc, s := newService()
	admin := testutil.SeedAdmin(t, s)

	m, err := svc.CreateMarket(ctx, CreateMarketInput{Title: "  Will BTC close above 100k?  ", Description: "by Dec 31", CreatedBy: admin.ID})
	require.NoError(t, err)
	assert.Equal(t, "Will BTC close above 100k?", m.Title)
	assert.Equal(t, domain.StatusOpen, m.Status)
	assert.Nil(t, m.Resolution)
	assert.Nil(t, m.ResolvedAt)
	require.NotNil(t, m.Creator)
	assert.Equal(t, admin.Username, m.Creator.Username)

	_, err = svc.CreateMarket(ctx, CreateMarketInput{Title: " ", CreatedBy: admin.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.CreateMarket(ctx, CreateMarketInput{Title: "x", CreatedBy: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetMarkets(t *testing.T) {
	ctx := context.Background()
	svc, s := newService()
	admin := testutil.SeedAdmin(t, s)

	first, err := svc.CreateMarket(ctx, CreateMarketInput{Title: "first", CreatedBy: admin.ID})
	require.NoError(t, err)
	second, err := svc.CreateMarket(ctx, CreateMarketInput{Title: "second", CreatedBy: admin.ID})
	require.NoError(t, err)
	_, err = s.Markets().Resolve(ctx, first.ID, domain.SideNo, first.CreatedAt)
	require.NoError(t, err)

	all, err := svc.GetMarkets(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	open, err := svc.GetMarkets(ctx, "open")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	resolved, err := svc.GetMarkets(ctx, "resolved")
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	_, err = svc.GetMarkets(ctx, "closed")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.GetMarketByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	u, err := svc.RegisterUser(ctx, RegisterUserInput{Username: "ana", Email: "Ana@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.True(t, u.PointsBalance.IsZero())

	_, err = svc.RegisterUser(ctx, RegisterUserInput{Username: "ana", Email: "other@example.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.RegisterUser(ctx, RegisterUserInput{Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrUsernameRequired)
	_, err = svc.RegisterUser(ctx, RegisterUserInput{Username: "x"})
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestBalanceOperations(t *testing.T) {
	ctx := context.Background()
	svc, s := newService()
	u := testutil.SeedUser(t, s, "0")

	got, err := svc.AddPointsToUser(ctx, u.ID, testutil.Dec(t, "500"))
	require.NoError(t, err)
	assert.True(t, got.PointsBalance.Equal(testutil.Dec(t, "500")))

	_, err = svc.AddPointsToUser(ctx, u.ID, testutil.Dec(t, "0"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	got, err = svc.UpdateUserBalance(ctx, u.ID, testutil.Dec(t, "42"))
	require.NoError(t, err)
	assert.True(t, got.PointsBalance.Equal(testutil.Dec(t, "42")))

	_, err = svc.UpdateUserBalance(ctx, u.ID, testutil.Dec(t, "-1"))
	assert.ErrorIs(t, err, domain.ErrNegativeBalance)

	entries, err := svc.GetUserLedger(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ReasonDeposit, entries[0].Reason)
	assert.Equal(t, domain.ReasonSet, entries[1].Reason)

	_, err = svc.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
