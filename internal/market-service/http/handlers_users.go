package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/points-prediction-market/internal/market-service/catalog"
	"github.com/radieske/points-prediction-market/internal/market-service/dto"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
)

func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterUserRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.d.Catalog.RegisterUser(r.Context(), catalog.RegisterUserInput{Username: req.Username, Email: req.Email})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, u)
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	ok(w, http.StatusOK, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")
	if err := selfOrAdmin(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.d.Catalog.GetUserByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, u)
}

// getUserBets aceita ?market_id= para filtrar um mercado
func (s *Server) getUserBets(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")
	if err := selfOrAdmin(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	bets, err := s.d.Positions.GetUserBets(r.Context(), id, repo.BetFilter{MarketID: r.URL.Query().Get("market_id")})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, bets)
}

func (s *Server) getUserLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")
	if err := selfOrAdmin(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	entries, err := s.d.Catalog.GetUserLedger(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, entries)
}
