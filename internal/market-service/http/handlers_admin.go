package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/catalog"
	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/dto"
	"github.com/radieske/points-prediction-market/internal/market-service/settlement"
	"github.com/radieske/points-prediction-market/pkg/contracts/events"
	"github.com/radieske/points-prediction-market/pkg/contracts/topics"
)

func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMarketRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	admin, _ := CurrentUser(r.Context())
	m, err := s.d.Catalog.CreateMarket(r.Context(), catalog.CreateMarketInput{
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   admin.ID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.d.Metrics != nil {
		s.d.Metrics.MarketsCreated.Inc()
	}
	ok(w, http.StatusCreated, m)
}

func (s *Server) addPoints(w http.ResponseWriter, r *http.Request) {
	var req dto.AddPointsRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.d.Catalog.AddPointsToUser(r.Context(), req.UserID, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, u)
}

func (s *Server) updateBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateBalanceRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.d.Catalog.UpdateUserBalance(r.Context(), chi.URLParam(r, "userId"), req.Balance)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, u)
}

// resolveMarket resolve e distribui; em distribuição parcial devolve 500 com o resultado
func (s *Server) resolveMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveMarketRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	res, err := s.d.Settlement.ResolveMarketAndDistribute(r.Context(), id, domain.Side(req.Resolution))
	if res == nil {
		s.fail(w, r, err)
		return
	}
	s.afterResolve(r, res)
	if err != nil {
		s.failWith(w, r, err, res)
		return
	}
	ok(w, http.StatusOK, res)
}

// afterResolve roda sempre que o mercado mudou para resolved
func (s *Server) afterResolve(r *http.Request, res *settlement.Result) {
	resolution := domain.Side("")
	if res.Market.Resolution != nil {
		resolution = *res.Market.Resolution
	}
	if s.d.Metrics != nil {
		s.d.Metrics.MarketResolved(resolution, res.Distributed)
	}
	if s.d.Publisher == nil {
		return
	}
	resolvedAt := time.Now().UTC()
	if res.Market.ResolvedAt != nil {
		resolvedAt = *res.Market.ResolvedAt
	}
	err := s.d.Publisher.PublishMarketResolved(r.Context(), events.MarketResolved{
		MarketID:         res.Market.ID,
		Resolution:       string(resolution),
		Distributed:      res.Distributed,
		WinnerCount:      res.WinnerCount,
		TotalDistributed: res.TotalDistributed,
		ResolvedAt:       resolvedAt,
	})
	if err != nil {
		s.log.Warn("publish market_resolved failed", zap.String("marketId", res.Market.ID), zap.Error(err))
		s.publishFailed(topics.MarketResolved)
	}
}

func (s *Server) resumeSettlement(w http.ResponseWriter, r *http.Request) {
	out, err := s.d.Settlement.ResumeDistribution(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrPartialDistribution) {
		s.failWith(w, r, err, out)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, out)
}

func (s *Server) listPayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := s.d.Settlement.Payouts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, payouts)
}
