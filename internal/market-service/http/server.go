// Package httpapi expõe a API REST do market-service
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/catalog"
	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/dto"
	"github.com/radieske/points-prediction-market/internal/market-service/metrics"
	"github.com/radieske/points-prediction-market/internal/market-service/pool"
	"github.com/radieske/points-prediction-market/internal/market-service/position"
	"github.com/radieske/points-prediction-market/internal/market-service/settlement"
	"github.com/radieske/points-prediction-market/internal/market-service/ws"
	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrBadJSON         = errors.New("invalid json body")
)

// EventPublisher publica os eventos de domínio após cada escrita confirmada
type EventPublisher interface {
	PublishBetPlaced(context.Context, events.BetPlaced) error
	PublishMarketResolved(context.Context, events.MarketResolved) error
}

// Deps são os componentes usados pelos handlers
// Publisher, Metrics e Hub são opcionais
type Deps struct {
	Catalog    *catalog.Service
	Positions  *position.Engine
	Pools      *pool.Aggregator
	Settlement *settlement.Engine
	Publisher  EventPublisher
	Metrics    *metrics.Collectors
	Hub        *ws.Hub
}

type Server struct {
	log *zap.Logger
	d   Deps
}

func NewServer(log *zap.Logger, d Deps) *Server { return &Server{log: log, d: d} }

// Router monta as rotas públicas, autenticadas e de admin
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", s.registerUser)

		r.Get("/markets", s.listMarkets)
		r.Get("/markets/{id}", s.getMarket)
		r.Get("/markets/{id}/bets", s.getMarketBets)
		r.Get("/markets/{id}/pools", s.getMarketPools)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/users/me", s.getMe)
			r.Get("/users/{userId}", s.getUser)
			r.Get("/users/{userId}/bets", s.getUserBets)
			r.Get("/users/{userId}/ledger", s.getUserLedger)

			r.Post("/bets", s.placeBet)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/markets", s.createMarket)
				r.Post("/markets/{id}/resolve", s.resolveMarket)
				r.Post("/markets/{id}/settlement/resume", s.resumeSettlement)
				r.Get("/markets/{id}/payouts", s.listPayouts)
				r.Post("/users/add-points", s.addPoints)
				r.Put("/users/{userId}/balance", s.updateBalance)
			})
		})
	})

	if s.d.Hub != nil {
		r.Get("/ws", s.d.Hub.HandleWS)
	}
	return r
}

// requestLog registra método, rota, status e latência
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())),
		)
	})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dto.Envelope{Success: true, Data: data})
}

// fail mapeia o erro para o status HTTP; erros internos não vazam detalhes
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.failWith(w, r, err, nil)
}

func (s *Server) failWith(w http.ResponseWriter, r *http.Request, err error, data any) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		msg = "internal error"
		if errors.Is(err, domain.ErrPartialDistribution) {
			msg = domain.ErrPartialDistribution.Error()
		}
	}
	writeJSON(w, status, dto.Envelope{Success: false, Error: msg, Data: data})
}

// StatusFor converte erros de domínio em status HTTP
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPartialDistribution):
		return http.StatusInternalServerError
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadJSON),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrMarketClosed),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrNotResolved):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ErrBadJSON
	}
	return nil
}
