package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
)

// querier é satisfeito por *sql.DB e *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Postgres implementa Store sobre database/sql + lib/pq
// Locks de linha valem apenas dentro de WithinTx
// Linhas referenciadas por FK (users, bets) são travadas FOR NO KEY UPDATE,
// que não conflita com o FOR KEY SHARE das checagens de FK de outras transações
type Postgres struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db, q: db} }

func (p *Postgres) Users() UserRepository     { return pgUsers{p.q} }
func (p *Postgres) Markets() MarketRepository { return pgMarkets{p.q} }
func (p *Postgres) Bets() BetRepository       { return pgBets{p.q} }
func (p *Postgres) Payouts() PayoutRepository { return pgPayouts{p.q} }
func (p *Postgres) Entries() EntryRepository  { return pgEntries{p.q} }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *Postgres) Close() error                   { return p.db.Close() }

// WithinTx abre uma transação e faz commit se fn não retornar erro
func (p *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if p.tx != nil {
		return fn(ctx, p)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &Postgres{db: p.db, q: tx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit tx", err)
	}
	return nil
}

// storeErr traduz sql.ErrNoRows e violações de unicidade; o resto vira ErrStore
func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStore, err)
}

const userColumns = `id, username, email, points_balance, role, version, created_at, updated_at`

func scanUser(rs rowScanner) (domain.User, error) {
	var u domain.User
	var role string
	err := rs.Scan(&u.ID, &u.Username, &u.Email, &u.PointsBalance, &role, &u.Version, &u.CreatedAt, &u.UpdatedAt)
	u.Role = domain.Role(role)
	return u, err
}

type pgUsers struct{ q querier }

func (r pgUsers) Get(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return domain.User{}, storeErr("get user "+id, err)
	}
	return u, nil
}

func (r pgUsers) GetForUpdate(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1 FOR NO KEY UPDATE`, id))
	if err != nil {
		return domain.User{}, storeErr("lock user "+id, err)
	}
	return u, nil
}

func (r pgUsers) Insert(ctx context.Context, u domain.User) (domain.User, error) {
	out, err := scanUser(r.q.QueryRowContext(ctx, `
		INSERT INTO users(id, username, email, points_balance, role, version, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+userColumns,
		u.ID, u.Username, u.Email, u.PointsBalance, string(u.Role), u.Version, u.CreatedAt, u.UpdatedAt))
	if err != nil {
		return domain.User{}, storeErr("insert user", err)
	}
	return out, nil
}

// UpdateBalance é condicional à versão lida; sem linha afetada significa escrita concorrente
func (r pgUsers) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, expectedVersion int64) (domain.User, error) {
	out, err := scanUser(r.q.QueryRowContext(ctx, `
		UPDATE users SET points_balance=$1, version=version+1, updated_at=NOW()
		WHERE id=$2 AND version=$3
		RETURNING `+userColumns, balance, id, expectedVersion))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("update balance %s: %w", id, domain.ErrVersionConflict)
	}
	if err != nil {
		return domain.User{}, storeErr("update balance "+id, err)
	}
	return out, nil
}

const marketColumns = `m.id, m.title, m.description, m.status, m.resolution, m.created_by, m.created_at, m.updated_at, m.resolved_at`

func scanMarket(rs rowScanner, withCreator bool) (domain.Market, error) {
	var m domain.Market
	var status string
	var resolution sql.NullString
	var resolvedAt sql.NullTime
	var cID, cName, cEmail sql.NullString

	dest := []any{&m.ID, &m.Title, &m.Description, &status, &resolution, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt, &resolvedAt}
	if withCreator {
		dest = append(dest, &cID, &cName, &cEmail)
	}
	if err := rs.Scan(dest...); err != nil {
		return domain.Market{}, err
	}

	m.Status = domain.MarketStatus(status)
	if resolution.Valid {
		side := domain.Side(resolution.String)
		m.Resolution = &side
	}
	if resolvedAt.Valid {
		at := resolvedAt.Time
		m.ResolvedAt = &at
	}
	if cID.Valid {
		m.Creator = &domain.UserRef{ID: cID.String, Username: cName.String, Email: cEmail.String}
	}
	return m, nil
}

type pgMarkets struct{ q querier }

const marketWithCreator = `SELECT ` + marketColumns + `, u.id, u.username, u.email
	FROM markets m LEFT JOIN users u ON u.id = m.created_by`

func (r pgMarkets) Get(ctx context.Context, id string) (domain.Market, error) {
	m, err := scanMarket(r.q.QueryRowContext(ctx, marketWithCreator+` WHERE m.id=$1`, id), true)
	if err != nil {
		return domain.Market{}, storeErr("get market "+id, err)
	}
	return m, nil
}

func (r pgMarkets) GetForShare(ctx context.Context, id string) (domain.Market, error) {
	m, err := scanMarket(r.q.QueryRowContext(ctx, `SELECT `+marketColumns+` FROM markets m WHERE m.id=$1 FOR SHARE`, id), false)
	if err != nil {
		return domain.Market{}, storeErr("share-lock market "+id, err)
	}
	return m, nil
}

func (r pgMarkets) GetForUpdate(ctx context.Context, id string) (domain.Market, error) {
	m, err := scanMarket(r.q.QueryRowContext(ctx, `SELECT `+marketColumns+` FROM markets m WHERE m.id=$1 FOR UPDATE`, id), false)
	if err != nil {
		return domain.Market{}, storeErr("lock market "+id, err)
	}
	return m, nil
}

func (r pgMarkets) List(ctx context.Context, f MarketFilter) ([]domain.Market, error) {
	query := marketWithCreator
	var args []any
	if f.Status != "" {
		query += ` WHERE m.status=$1`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY m.created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list markets", err)
	}
	defer rows.Close()

	out := []domain.Market{}
	for rows.Next() {
		m, err := scanMarket(rows, true)
		if err != nil {
			return nil, storeErr("scan market", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list markets", err)
	}
	return out, nil
}

func (r pgMarkets) Insert(ctx context.Context, m domain.Market) (domain.Market, error) {
	out, err := scanMarket(r.q.QueryRowContext(ctx, `
		INSERT INTO markets AS m (id, title, description, status, created_by, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+marketColumns,
		m.ID, m.Title, m.Description, string(m.Status), m.CreatedBy, m.CreatedAt, m.UpdatedAt), false)
	if err != nil {
		return domain.Market{}, storeErr("insert market", err)
	}
	return out, nil
}

func (r pgMarkets) Resolve(ctx context.Context, id string, resolution domain.Side, at time.Time) (domain.Market, error) {
	out, err := scanMarket(r.q.QueryRowContext(ctx, `
		UPDATE markets AS m SET status='resolved', resolution=$2, resolved_at=$3, updated_at=$3
		WHERE m.id=$1 AND m.status='open'
		RETURNING `+marketColumns, id, string(resolution), at), false)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Market{}, fmt.Errorf("resolve market %s: %w", id, domain.ErrAlreadyResolved)
	}
	if err != nil {
		return domain.Market{}, storeErr("resolve market "+id, err)
	}
	return out, nil
}

const betColumns = `b.id, b.user_id, b.market_id, b.side, b.amount, b.created_at, b.updated_at`

func scanBet(rs rowScanner, extra ...any) (domain.Bet, error) {
	var b domain.Bet
	var side string
	dest := append([]any{&b.ID, &b.UserID, &b.MarketID, &side, &b.Amount, &b.CreatedAt, &b.UpdatedAt}, extra...)
	err := rs.Scan(dest...)
	b.Side = domain.Side(side)
	return b, err
}

type pgBets struct{ q querier }

func (r pgBets) FindPosition(ctx context.Context, userID, marketID string, side domain.Side) (domain.Bet, error) {
	b, err := scanBet(r.q.QueryRowContext(ctx, `
		SELECT `+betColumns+` FROM bets b
		WHERE b.user_id=$1 AND b.market_id=$2 AND b.side=$3
		FOR NO KEY UPDATE`, userID, marketID, string(side)))
	if err != nil {
		return domain.Bet{}, storeErr("find position", err)
	}
	return b, nil
}

func (r pgBets) Insert(ctx context.Context, b domain.Bet) (domain.Bet, error) {
	out, err := scanBet(r.q.QueryRowContext(ctx, `
		INSERT INTO bets AS b (id, user_id, market_id, side, amount, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+betColumns,
		b.ID, b.UserID, b.MarketID, string(b.Side), b.Amount, b.CreatedAt, b.UpdatedAt))
	if err != nil {
		return domain.Bet{}, storeErr("insert bet", err)
	}
	return out, nil
}

func (r pgBets) UpdateAmount(ctx context.Context, id string, amount decimal.Decimal) (domain.Bet, error) {
	out, err := scanBet(r.q.QueryRowContext(ctx, `
		UPDATE bets AS b SET amount=$2, updated_at=NOW()
		WHERE b.id=$1
		RETURNING `+betColumns, id, amount))
	if err != nil {
		return domain.Bet{}, storeErr("update bet "+id, err)
	}
	return out, nil
}

func (r pgBets) ListByMarketSide(ctx context.Context, marketID string, side domain.Side) ([]domain.Bet, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+betColumns+` FROM bets b
		WHERE b.market_id=$1 AND b.side=$2
		ORDER BY b.created_at`, marketID, string(side))
	if err != nil {
		return nil, storeErr("list bets by side", err)
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, storeErr("scan bet", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list bets by side", err)
	}
	return out, nil
}

func (r pgBets) ListByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+betColumns+`, u.id, u.username, u.email
		FROM bets b JOIN users u ON u.id = b.user_id
		WHERE b.market_id=$1
		ORDER BY b.created_at DESC`, marketID)
	if err != nil {
		return nil, storeErr("list market bets", err)
	}
	defer rows.Close()

	out := []domain.Bet{}
	for rows.Next() {
		var ref domain.UserRef
		b, err := scanBet(rows, &ref.ID, &ref.Username, &ref.Email)
		if err != nil {
			return nil, storeErr("scan bet", err)
		}
		b.User = &ref
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list market bets", err)
	}
	return out, nil
}

func (r pgBets) ListByUser(ctx context.Context, userID string, f BetFilter) ([]domain.Bet, error) {
	query := `
		SELECT ` + betColumns + `, m.id, m.title, m.status, m.resolution
		FROM bets b JOIN markets m ON m.id = b.market_id
		WHERE b.user_id=$1`
	args := []any{userID}
	if f.MarketID != "" {
		query += ` AND b.market_id=$2`
		args = append(args, f.MarketID)
	}
	query += ` ORDER BY b.created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list user bets", err)
	}
	defer rows.Close()

	out := []domain.Bet{}
	for rows.Next() {
		var ref domain.MarketRef
		var status string
		var resolution sql.NullString
		b, err := scanBet(rows, &ref.ID, &ref.Title, &status, &resolution)
		if err != nil {
			return nil, storeErr("scan bet", err)
		}
		ref.Status = domain.MarketStatus(status)
		if resolution.Valid {
			side := domain.Side(resolution.String)
			ref.Resolution = &side
		}
		b.Market = &ref
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list user bets", err)
	}
	return out, nil
}

const payoutColumns = `id, market_id, bet_id, user_id, stake, share, amount, status, created_at, paid_at`

func scanPayout(rs rowScanner) (domain.Payout, error) {
	var p domain.Payout
	var status string
	var paidAt sql.NullTime
	if err := rs.Scan(&p.ID, &p.MarketID, &p.BetID, &p.UserID, &p.Stake, &p.Share, &p.Amount, &status, &p.CreatedAt, &paidAt); err != nil {
		return domain.Payout{}, err
	}
	p.Status = domain.PayoutStatus(status)
	if paidAt.Valid {
		at := paidAt.Time
		p.PaidAt = &at
	}
	return p, nil
}

type pgPayouts struct{ q querier }

func (r pgPayouts) Insert(ctx context.Context, p domain.Payout) (domain.Payout, error) {
	out, err := scanPayout(r.q.QueryRowContext(ctx, `
		INSERT INTO payouts(id, market_id, bet_id, user_id, stake, share, amount, status, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+payoutColumns,
		p.ID, p.MarketID, p.BetID, p.UserID, p.Stake, p.Share, p.Amount, string(p.Status), p.CreatedAt))
	if err != nil {
		return domain.Payout{}, storeErr("insert payout", err)
	}
	return out, nil
}

func (r pgPayouts) GetForUpdate(ctx context.Context, id string) (domain.Payout, error) {
	out, err := scanPayout(r.q.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return domain.Payout{}, storeErr("lock payout "+id, err)
	}
	return out, nil
}

func (r pgPayouts) MarkPaid(ctx context.Context, id string, at time.Time) (domain.Payout, error) {
	out, err := scanPayout(r.q.QueryRowContext(ctx, `
		UPDATE payouts SET status='paid', paid_at=$2
		WHERE id=$1
		RETURNING `+payoutColumns, id, at))
	if err != nil {
		return domain.Payout{}, storeErr("mark payout paid "+id, err)
	}
	return out, nil
}

func (r pgPayouts) ListByMarket(ctx context.Context, marketID string, status domain.PayoutStatus) ([]domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE market_id=$1`
	args := []any{marketID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list payouts", err)
	}
	defer rows.Close()

	var out []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, storeErr("scan payout", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list payouts", err)
	}
	return out, nil
}

type pgEntries struct{ q querier }

func (r pgEntries) Insert(ctx context.Context, e domain.LedgerEntry) (domain.LedgerEntry, error) {
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO points_ledger(id, user_id, delta, balance_after, reason, reference, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.UserID, e.Delta, e.BalanceAfter, string(e.Reason), e.Reference, e.CreatedAt); err != nil {
		return domain.LedgerEntry{}, storeErr("insert ledger entry", err)
	}
	return e, nil
}

func (r pgEntries) ListByUser(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, delta, balance_after, reason, reference, created_at
		FROM points_ledger WHERE user_id=$1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, storeErr("list ledger entries", err)
	}
	defer rows.Close()

	out := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		var reason string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.BalanceAfter, &reason, &e.Reference, &e.CreatedAt); err != nil {
			return nil, storeErr("scan ledger entry", err)
		}
		e.Reason = domain.EntryReason(reason)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list ledger entries", err)
	}
	return out, nil
}
