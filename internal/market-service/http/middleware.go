package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
)

// HeaderUserID identifica o usuário autenticado pelo gateway
const HeaderUserID = "X-User-Id"

type ctxKey struct{}

func withUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// CurrentUser retorna o usuário autenticado da requisição
func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(domain.User)
	return u, ok
}

// authenticate carrega o usuário do header; ausente ou desconhecido -> 401
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			s.fail(w, r, ErrUnauthenticated)
			return
		}
		u, err := s.d.Catalog.GetUserByID(r.Context(), id)
		if errors.Is(err, domain.ErrNotFound) {
			s.fail(w, r, ErrUnauthenticated)
			return
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		if !ok {
			s.fail(w, r, ErrUnauthenticated)
			return
		}
		if u.Role != domain.RoleAdmin {
			s.fail(w, r, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// selfOrAdmin libera dados de um usuário para ele mesmo ou para admins
func selfOrAdmin(ctx context.Context, userID string) error {
	u, ok := CurrentUser(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if u.ID != userID && u.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}
