// Package testutil monta stores em memória populados para os testes do market-service
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
)

// Dec converte literal para decimal; falha o teste em literal inválido
func Dec(t testing.TB, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", v, err)
	}
	return d
}

// SeedUser cria um usuário comum com o saldo informado
func SeedUser(t testing.TB, s repo.Store, balance string) domain.User {
	t.Helper()
	return seed(t, s, balance, domain.RoleUser)
}

// SeedAdmin cria um usuário admin com saldo zero
func SeedAdmin(t testing.TB, s repo.Store) domain.User {
	t.Helper()
	return seed(t, s, "0", domain.RoleAdmin)
}

func seed(t testing.TB, s repo.Store, balance string, role domain.Role) domain.User {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	u, err := s.Users().Insert(context.Background(), domain.User{
		ID:            id,
		Username:      string(role) + "-" + id[:8],
		Email:         string(role) + "-" + id[:8] + "@example.com",
		PointsBalance: Dec(t, balance),
		Role:          role,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedMarket cria um mercado aberto
func SeedMarket(t testing.TB, s repo.Store, createdBy string) domain.Market {
	t.Helper()
	now := time.Now().UTC()
	m, err := s.Markets().Insert(context.Background(), domain.Market{
		ID:        uuid.NewString(),
		Title:     "Will the home team win?",
		Status:    domain.StatusOpen,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed market: %v", err)
	}
	return m
}

// Balance lê o saldo atual do usuário
func Balance(t testing.TB, s repo.Store, userID string) decimal.Decimal {
	t.Helper()
	u, err := s.Users().Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return u.PointsBalance
}
