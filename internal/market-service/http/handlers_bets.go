package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/dto"
	"github.com/radieske/points-prediction-market/pkg/contracts/events"
	"github.com/radieske/points-prediction-market/pkg/contracts/topics"
)

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	user, _ := CurrentUser(r.Context())

	placed, err := s.d.Positions.Place(r.Context(), user.ID, req.MarketID, domain.Side(req.Side), req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bet := placed.Bet

	if s.d.Metrics != nil {
		s.d.Metrics.BetPlaced(bet.Side, req.Amount)
	}
	if s.d.Publisher != nil {
		err := s.d.Publisher.PublishBetPlaced(r.Context(), events.BetPlaced{
			BetID:          bet.ID,
			UserID:         bet.UserID,
			MarketID:       bet.MarketID,
			Side:           string(bet.Side),
			Amount:         req.Amount,
			PositionAmount: bet.Amount,
		})
		if err != nil {
			// a aposta já foi confirmada; só a projeção de pools atrasa
			s.log.Warn("publish bet_placed failed", zap.String("betId", bet.ID), zap.Error(err))
			s.publishFailed(topics.BetPlaced)
		}
	}

	// saldo vem da transação da aposta: nada após o commit pode virar erro para o cliente
	ok(w, http.StatusCreated, dto.PlaceBetResponse{Bet: bet, NewBalance: placed.Balance})
}

func (s *Server) publishFailed(topic string) {
	if s.d.Metrics != nil {
		s.d.Metrics.PublishErrors.WithLabelValues(topic).Inc()
	}
}
