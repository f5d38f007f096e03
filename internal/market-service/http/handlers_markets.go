package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/points-prediction-market/internal/market-service/dto"
)

// listMarkets aceita ?status=open|resolved
func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.d.Catalog.GetMarkets(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, markets)
}

// getMarket retorna o mercado junto com os pools atuais
func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := s.d.Catalog.GetMarketByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pools, err := s.d.Pools.GetMarketPools(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, dto.MarketDetailResponse{Market: m, Pools: pools})
}

func (s *Server) getMarketBets(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.d.Catalog.GetMarketByID(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	bets, err := s.d.Positions.GetMarketBets(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, bets)
}

// getMarketPools nunca falha por mercado vazio ou desconhecido
func (s *Server) getMarketPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.d.Pools.GetMarketPools(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, pools)
}
