package repo

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
)

// memState é o conteúdo do store em memória; clonável para rollback
type memState struct {
	users   map[string]domain.User
	markets map[string]domain.Market
	bets    map[string]domain.Bet
	payouts map[string]domain.Payout
	entries []domain.LedgerEntry

	// ordem de inserção, usada como desempate na ordenação
	seq  map[string]int64
	next int64
}

func newMemState() *memState {
	return &memState{
		users:   make(map[string]domain.User),
		markets: make(map[string]domain.Market),
		bets:    make(map[string]domain.Bet),
		payouts: make(map[string]domain.Payout),
		seq:     make(map[string]int64),
	}
}

func (s *memState) clone() *memState {
	return &memState{
		users:   maps.Clone(s.users),
		markets: maps.Clone(s.markets),
		bets:    maps.Clone(s.bets),
		payouts: maps.Clone(s.payouts),
		entries: slices.Clone(s.entries),
		seq:     maps.Clone(s.seq),
		next:    s.next,
	}
}

func (s *memState) stamp(id string) {
	s.next++
	s.seq[id] = s.next
}

// newestFirst ordena por created_at decrescente, desempatando pela inserção
func (s *memState) newestFirst(aID string, aAt time.Time, bID string, bAt time.Time) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return s.seq[aID] > s.seq[bID]
}

// Memory implementa Store em memória
// Transações são serializadas por um único mutex e desfeitas restaurando um snapshot
type Memory struct {
	mu   *sync.Mutex
	st   *memState
	inTx bool
}

func NewMemory() *Memory {
	return &Memory{mu: &sync.Mutex{}, st: newMemState()}
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) Users() UserRepository          { return memUsers{m} }
func (m *Memory) Markets() MarketRepository      { return memMarkets{m} }
func (m *Memory) Bets() BetRepository            { return memBets{m} }
func (m *Memory) Payouts() PayoutRepository      { return memPayouts{m} }
func (m *Memory) Entries() EntryRepository       { return memEntries{m} }
func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }
func (m *Memory) Close() error                   { return nil }

func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if m.inTx {
		return fn(ctx, m)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	tx := &Memory{mu: m.mu, st: m.st, inTx: true}
	if err := fn(ctx, tx); err != nil {
		*m.st = *snapshot
		return err
	}
	return nil
}

func now() time.Time { return time.Now().UTC() }

type memUsers struct{ m *Memory }

func (r memUsers) Get(_ context.Context, id string) (domain.User, error) {
	defer r.m.lock()()
	u, ok := r.m.st.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func (r memUsers) GetForUpdate(ctx context.Context, id string) (domain.User, error) {
	return r.Get(ctx, id)
}

func (r memUsers) Insert(_ context.Context, u domain.User) (domain.User, error) {
	defer r.m.lock()()
	for _, existing := range r.m.st.users {
		if existing.ID == u.ID || existing.Username == u.Username || existing.Email == u.Email {
			return domain.User{}, fmt.Errorf("user %s: %w", u.Username, domain.ErrConflict)
		}
	}
	r.m.st.users[u.ID] = u
	r.m.st.stamp(u.ID)
	return u, nil
}

func (r memUsers) UpdateBalance(_ context.Context, id string, balance decimal.Decimal, expectedVersion int64) (domain.User, error) {
	defer r.m.lock()()
	u, ok := r.m.st.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if u.Version != expectedVersion {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrVersionConflict)
	}
	u.PointsBalance = balance
	u.Version++
	u.UpdatedAt = now()
	r.m.st.users[id] = u
	return u, nil
}

type memMarkets struct{ m *Memory }

func (r memMarkets) withCreator(mk domain.Market) domain.Market {
	if u, ok := r.m.st.users[mk.CreatedBy]; ok {
		ref := u.Ref()
		mk.Creator = &ref
	}
	return mk
}

func (r memMarkets) Get(_ context.Context, id string) (domain.Market, error) {
	defer r.m.lock()()
	mk, ok := r.m.st.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("market %s: %w", id, domain.ErrNotFound)
	}
	return r.withCreator(mk), nil
}

func (r memMarkets) getRaw(id string) (domain.Market, error) {
	defer r.m.lock()()
	mk, ok := r.m.st.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("market %s: %w", id, domain.ErrNotFound)
	}
	return mk, nil
}

func (r memMarkets) GetForShare(_ context.Context, id string) (domain.Market, error) {
	return r.getRaw(id)
}

func (r memMarkets) GetForUpdate(_ context.Context, id string) (domain.Market, error) {
	return r.getRaw(id)
}

func (r memMarkets) List(_ context.Context, f MarketFilter) ([]domain.Market, error) {
	defer r.m.lock()()
	out := make([]domain.Market, 0, len(r.m.st.markets))
	for _, mk := range r.m.st.markets {
		if f.Status != "" && mk.Status != f.Status {
			continue
		}
		out = append(out, r.withCreator(mk))
	}
	sort.Slice(out, func(i, j int) bool {
		return r.m.st.newestFirst(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

func (r memMarkets) Insert(_ context.Context, mk domain.Market) (domain.Market, error) {
	defer r.m.lock()()
	if _, ok := r.m.st.markets[mk.ID]; ok {
		return domain.Market{}, fmt.Errorf("market %s: %w", mk.ID, domain.ErrConflict)
	}
	r.m.st.markets[mk.ID] = mk
	r.m.st.stamp(mk.ID)
	return mk, nil
}

func (r memMarkets) Resolve(_ context.Context, id string, resolution domain.Side, at time.Time) (domain.Market, error) {
	defer r.m.lock()()
	mk, ok := r.m.st.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("market %s: %w", id, domain.ErrNotFound)
	}
	if mk.Status != domain.StatusOpen {
		return domain.Market{}, fmt.Errorf("market %s: %w", id, domain.ErrAlreadyResolved)
	}
	res := resolution
	resolvedAt := at
	mk.Status = domain.StatusResolved
	mk.Resolution = &res
	mk.ResolvedAt = &resolvedAt
	mk.UpdatedAt = at
	r.m.st.markets[id] = mk
	return mk, nil
}

type memBets struct{ m *Memory }

func (r memBets) FindPosition(_ context.Context, userID, marketID string, side domain.Side) (domain.Bet, error) {
	defer r.m.lock()()
	for _, b := range r.m.st.bets {
		if b.UserID == userID && b.MarketID == marketID && b.Side == side {
			return b, nil
		}
	}
	return domain.Bet{}, fmt.Errorf("bet %s/%s/%s: %w", userID, marketID, side, domain.ErrNotFound)
}

func (r memBets) Insert(_ context.Context, b domain.Bet) (domain.Bet, error) {
	defer r.m.lock()()
	for _, existing := range r.m.st.bets {
		if existing.ID == b.ID || (existing.UserID == b.UserID && existing.MarketID == b.MarketID && existing.Side == b.Side) {
			return domain.Bet{}, fmt.Errorf("bet %s: %w", b.ID, domain.ErrConflict)
		}
	}
	r.m.st.bets[b.ID] = b
	r.m.st.stamp(b.ID)
	return b, nil
}

func (r memBets) UpdateAmount(_ context.Context, id string, amount decimal.Decimal) (domain.Bet, error) {
	defer r.m.lock()()
	b, ok := r.m.st.bets[id]
	if !ok {
		return domain.Bet{}, fmt.Errorf("bet %s: %w", id, domain.ErrNotFound)
	}
	b.Amount = amount
	b.UpdatedAt = now()
	r.m.st.bets[id] = b
	return b, nil
}

func (r memBets) ListByMarketSide(_ context.Context, marketID string, side domain.Side) ([]domain.Bet, error) {
	defer r.m.lock()()
	var out []domain.Bet
	for _, b := range r.m.st.bets {
		if b.MarketID == marketID && b.Side == side {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.m.st.seq[out[i].ID] < r.m.st.seq[out[j].ID] })
	return out, nil
}

func (r memBets) ListByMarket(_ context.Context, marketID string) ([]domain.Bet, error) {
	defer r.m.lock()()
	out := []domain.Bet{}
	for _, b := range r.m.st.bets {
		if b.MarketID != marketID {
			continue
		}
		if u, ok := r.m.st.users[b.UserID]; ok {
			ref := u.Ref()
			b.User = &ref
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.m.st.newestFirst(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

func (r memBets) ListByUser(_ context.Context, userID string, f BetFilter) ([]domain.Bet, error) {
	defer r.m.lock()()
	out := []domain.Bet{}
	for _, b := range r.m.st.bets {
		if b.UserID != userID || (f.MarketID != "" && b.MarketID != f.MarketID) {
			continue
		}
		if mk, ok := r.m.st.markets[b.MarketID]; ok {
			ref := mk.Ref()
			b.Market = &ref
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.m.st.newestFirst(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

type memPayouts struct{ m *Memory }

func (r memPayouts) Insert(_ context.Context, p domain.Payout) (domain.Payout, error) {
	defer r.m.lock()()
	for _, existing := range r.m.st.payouts {
		if existing.ID == p.ID || existing.BetID == p.BetID {
			return domain.Payout{}, fmt.Errorf("payout for bet %s: %w", p.BetID, domain.ErrConflict)
		}
	}
	r.m.st.payouts[p.ID] = p
	r.m.st.stamp(p.ID)
	return p, nil
}

func (r memPayouts) GetForUpdate(_ context.Context, id string) (domain.Payout, error) {
	defer r.m.lock()()
	p, ok := r.m.st.payouts[id]
	if !ok {
		return domain.Payout{}, fmt.Errorf("payout %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (r memPayouts) MarkPaid(_ context.Context, id string, at time.Time) (domain.Payout, error) {
	defer r.m.lock()()
	p, ok := r.m.st.payouts[id]
	if !ok {
		return domain.Payout{}, fmt.Errorf("payout %s: %w", id, domain.ErrNotFound)
	}
	paidAt := at
	p.Status = domain.PayoutPaid
	p.PaidAt = &paidAt
	r.m.st.payouts[id] = p
	return p, nil
}

func (r memPayouts) ListByMarket(_ context.Context, marketID string, status domain.PayoutStatus) ([]domain.Payout, error) {
	defer r.m.lock()()
	var out []domain.Payout
	for _, p := range r.m.st.payouts {
		if p.MarketID != marketID || (status != "" && p.Status != status) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return r.m.st.seq[out[i].ID] < r.m.st.seq[out[j].ID] })
	return out, nil
}

type memEntries struct{ m *Memory }

func (r memEntries) Insert(_ context.Context, e domain.LedgerEntry) (domain.LedgerEntry, error) {
	defer r.m.lock()()
	r.m.st.entries = append(r.m.st.entries, e)
	return e, nil
}

func (r memEntries) ListByUser(_ context.Context, userID string) ([]domain.LedgerEntry, error) {
	defer r.m.lock()()
	out := []domain.LedgerEntry{}
	for _, e := range r.m.st.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}
