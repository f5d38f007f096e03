// Package catalog cuida do cadastro de mercados e usuários e expõe as
// operações de saldo do Ledger para a API.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/ledger"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
)

var (
	ErrTitleRequired    = fmt.Errorf("%w: title is required", domain.ErrInvalidArgument)
	ErrUsernameRequired = fmt.Errorf("%w: username is required", domain.ErrInvalidArgument)
	ErrEmailRequired    = fmt.Errorf("%w: email is required", domain.ErrInvalidArgument)
)

type CreateMarketInput struct {
	Title       string
	Description string
	CreatedBy   string
}

type RegisterUserInput struct {
	Username string
	Email    string
}

type Service struct {
	store  repo.Store
	ledger *ledger.Ledger
	log    *zap.Logger
	now    func() time.Time
}

func New(store repo.Store, l *ledger.Ledger, log *zap.Logger) *Service {
	return &Service{store: store, ledger: l, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// CreateMarket cria um mercado aberto e sem resolução
func (s *Service) CreateMarket(ctx context.Context, in CreateMarketInput) (domain.Market, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Market{}, ErrTitleRequired
	}
	if _, err := s.store.Users().Get(ctx, in.CreatedBy); err != nil {
		return domain.Market{}, fmt.Errorf("creator: %w", err)
	}

	now := s.now()
	m, err := s.store.Markets().Insert(ctx, domain.Market{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      domain.StatusOpen,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.log.Info("market created", zap.String("marketId", m.ID), zap.String("createdBy", in.CreatedBy))
	return s.store.Markets().Get(ctx, m.ID)
}

func (s *Service) GetMarketByID(ctx context.Context, id string) (domain.Market, error) {
	return s.store.Markets().Get(ctx, id)
}

// GetMarkets lista mercados, mais recentes primeiro; status vazio lista todos
func (s *Service) GetMarkets(ctx context.Context, status string) ([]domain.Market, error) {
	st := domain.MarketStatus(status)
	if st != "" && !st.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	return s.store.Markets().List(ctx, repo.MarketFilter{Status: st})
}

// RegisterUser cria um usuário comum com saldo zero
func (s *Service) RegisterUser(ctx context.Context, in RegisterUserInput) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" {
		return domain.User{}, ErrUsernameRequired
	}
	if email == "" {
		return domain.User{}, ErrEmailRequired
	}

	now := s.now()
	u, err := s.store.Users().Insert(ctx, domain.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		PointsBalance: decimal.Zero,
		Role:          domain.RoleUser,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return domain.User{}, err
	}

	s.log.Info("user registered", zap.String("userId", u.ID))
	return u, nil
}

func (s *Service) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return s.ledger.GetUserByID(ctx, id)
}

// AddPointsToUser credita pontos (amount > 0)
func (s *Service) AddPointsToUser(ctx context.Context, userID string, amount decimal.Decimal) (domain.User, error) {
	u, err := s.ledger.AddBalance(ctx, userID, amount)
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("points added", zap.String("userId", userID), zap.String("amount", amount.String()))
	return u, nil
}

// UpdateUserBalance define o saldo absoluto (>= 0)
func (s *Service) UpdateUserBalance(ctx context.Context, userID string, balance decimal.Decimal) (domain.User, error) {
	u, err := s.ledger.SetBalance(ctx, userID, balance)
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("balance set", zap.String("userId", userID), zap.String("balance", balance.String()))
	return u, nil
}

func (s *Service) GetUserLedger(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	return s.ledger.Entries(ctx, userID)
}
