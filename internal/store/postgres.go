package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lecfantasy/league-engine/internal/model"
)

// PostgreSQL error codes the store translates.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"

	moneyCheckConstraint = "money_non_negative"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Uniqueness of ownerships and lineup slots is enforced by primary keys,
// non-negative balances by a CHECK constraint.
type PostgresStore struct {
	pgQueries
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgQueries: pgQueries{q: pool}, pool: pool}
}

// WithTx runs fn in a READ COMMITTED transaction. Rows that fn mutates
// are locked explicitly with LockAccount / LockOffer.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgTx{pgQueries{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapPgErr(err))
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgQueries implements Reader over any querier.
type pgQueries struct {
	q querier
}

// pgTx implements Tx inside an open transaction.
type pgTx struct {
	pgQueries
}

func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicate)
		case pgCheckViolation:
			if pgErr.ConstraintName == moneyCheckConstraint {
				return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrNegativeBalance)
			}
		}
	}
	return err
}

// --- Reader ---

// parseAmount decodes a NUMERIC column read as text.
func parseAmount(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("scan %s %q: %w", column, s, err)
	}
	return d, nil
}

const accountCols = `user_id, league_id, money::TEXT, joined_at`

func scanAccount(row pgx.Row) (*model.BudgetAccount, error) {
	var a model.BudgetAccount
	var money string
	err := row.Scan(&a.UserID, &a.LeagueID, &money, &a.JoinedAt)
	if err != nil {
		return nil, err
	}
	if a.Money, err = parseAmount("money", money); err != nil {
		return nil, err
	}
	return &a, nil
}

func (p pgQueries) GetAccount(ctx context.Context, userID, leagueID string) (*model.BudgetAccount, error) {
	a, err := scanAccount(p.q.QueryRow(ctx,
		`SELECT `+accountCols+` FROM user_leagues WHERE user_id = $1 AND league_id = $2`,
		userID, leagueID))
	if err != nil {
		return nil, fmt.Errorf("get account %s/%s: %w", leagueID, userID, mapPgErr(err))
	}
	return a, nil
}

const ownershipCols = `user_id, league_id, player_id, team, role, purchase_price::TEXT, purchase_date`

func scanOwnership(row pgx.Row) (*model.Ownership, error) {
	var o model.Ownership
	var role, price string
	err := row.Scan(&o.UserID, &o.LeagueID, &o.PlayerID, &o.Team, &role, &price, &o.PurchaseDate)
	if err != nil {
		return nil, err
	}
	o.Role = model.Role(role)
	if o.PurchasePrice, err = parseAmount("purchase_price", price); err != nil {
		return nil, err
	}
	return &o, nil
}

func (p pgQueries) GetOwnership(ctx context.Context, userID, leagueID, playerID string) (*model.Ownership, error) {
	o, err := scanOwnership(p.q.QueryRow(ctx,
		`SELECT `+ownershipCols+` FROM user_players
		 WHERE user_id = $1 AND league_id = $2 AND player_id = $3`,
		userID, leagueID, playerID))
	if err != nil {
		return nil, fmt.Errorf("get ownership %s/%s/%s: %w", leagueID, userID, playerID, mapPgErr(err))
	}
	return o, nil
}

func (p pgQueries) ListOwnerships(ctx context.Context, userID, leagueID string) ([]model.Ownership, error) {
	rows, err := p.q.Query(ctx,
		`SELECT `+ownershipCols+` FROM user_players
		 WHERE user_id = $1 AND league_id = $2
		 ORDER BY purchase_date, seq`, userID, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Ownership
	for rows.Next() {
		o, err := scanOwnership(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, rows.Err()
}

func (p pgQueries) ListLineup(ctx context.Context, userID, leagueID string, matchday int) ([]model.LineupSlot, error) {
	rows, err := p.q.Query(ctx,
		`SELECT user_id, league_id, position, matchday, player_id
		 FROM lineup_players
		 WHERE user_id = $1 AND league_id = $2 AND matchday = $3
		 ORDER BY array_position(ARRAY['top','jungle','mid','adc','support'], position)`,
		userID, leagueID, matchday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.LineupSlot
	for rows.Next() {
		var s model.LineupSlot
		var pos string
		if err := rows.Scan(&s.UserID, &s.LeagueID, &pos, &s.Matchday, &s.PlayerID); err != nil {
			return nil, err
		}
		s.Position = model.Role(pos)
		result = append(result, s)
	}
	return result, rows.Err()
}

const offerCols = `id, player_id, league_id, seller_user_id, buyer_user_id,
	price::TEXT, status, created_at, expires_at, resolved_at`

func scanOffer(row pgx.Row) (*model.Offer, error) {
	var o model.Offer
	var price, status string
	err := row.Scan(&o.ID, &o.PlayerID, &o.LeagueID, &o.SellerUserID, &o.BuyerUserID,
		&price, &status, &o.CreatedAt, &o.ExpiresAt, &o.ResolvedAt)
	if err != nil {
		return nil, err
	}
	if o.Price, err = parseAmount("price", price); err != nil {
		return nil, err
	}
	o.Status = model.OfferStatus(status)
	return &o, nil
}

func (p pgQueries) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	o, err := scanOffer(p.q.QueryRow(ctx, `SELECT `+offerCols+` FROM player_offers WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get offer %s: %w", id, mapPgErr(err))
	}
	return o, nil
}

func (p pgQueries) ListOffers(ctx context.Context, q OfferQuery) ([]model.Offer, error) {
	rows, err := p.q.Query(ctx,
		`SELECT `+offerCols+` FROM player_offers
		 WHERE ($1::TEXT = '' OR league_id = $1)
		   AND ($2::TEXT = '' OR seller_user_id = $2 OR buyer_user_id = $2)
		   AND ($3::TEXT = '' OR status = $3)
		 ORDER BY created_at DESC`,
		q.LeagueID, q.UserID, string(q.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, rows.Err()
}

func (p pgQueries) ListTransactions(ctx context.Context, leagueID string) ([]model.Transaction, error) {
	rows, err := p.q.Query(ctx,
		`SELECT id, type, league_id, player_id, player_name, player_team, player_role,
		        price::TEXT, user_id, seller_user_id, buyer_user_id, offer_id, created_at
		 FROM transactions WHERE league_id = $1
		 ORDER BY created_at DESC, seq DESC`, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var typ, role, price string
		if err := rows.Scan(&t.ID, &typ, &t.LeagueID, &t.PlayerID, &t.PlayerName, &t.PlayerTeam, &role,
			&price, &t.UserID, &t.SellerUserID, &t.BuyerUserID, &t.OfferID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = model.TransactionType(typ)
		t.PlayerRole = model.Role(role)
		if t.Price, err = parseAmount("price", price); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// --- Tx ---

func (t *pgTx) CreateAccount(ctx context.Context, a *model.BudgetAccount) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO user_leagues (user_id, league_id, money, joined_at)
		 VALUES ($1, $2, $3::NUMERIC, $4)`,
		a.UserID, a.LeagueID, a.Money.String(), a.JoinedAt)
	if err != nil {
		return fmt.Errorf("create account %s/%s: %w", a.LeagueID, a.UserID, mapPgErr(err))
	}
	return nil
}

func (t *pgTx) LockAccount(ctx context.Context, userID, leagueID string) (*model.BudgetAccount, error) {
	a, err := scanAccount(t.q.QueryRow(ctx,
		`SELECT `+accountCols+` FROM user_leagues
		 WHERE user_id = $1 AND league_id = $2 FOR UPDATE`,
		userID, leagueID))
	if err != nil {
		return nil, fmt.Errorf("lock account %s/%s: %w", leagueID, userID, mapPgErr(err))
	}
	return a, nil
}

func (t *pgTx) SetMoney(ctx context.Context, userID, leagueID string, money decimal.Decimal) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE user_leagues SET money = $3::NUMERIC WHERE user_id = $1 AND league_id = $2`,
		userID, leagueID, money.String())
	if err != nil {
		return fmt.Errorf("set money %s/%s: %w", leagueID, userID, mapPgErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set money %s/%s: %w", leagueID, userID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertOwnership(ctx context.Context, o *model.Ownership) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO user_players (user_id, league_id, player_id, team, role, purchase_price, purchase_date)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7)`,
		o.UserID, o.LeagueID, o.PlayerID, o.Team, string(o.Role), o.PurchasePrice.String(), o.PurchaseDate)
	if err != nil {
		return fmt.Errorf("insert ownership %s/%s/%s: %w", o.LeagueID, o.UserID, o.PlayerID, mapPgErr(err))
	}
	return nil
}

func (t *pgTx) DeleteOwnership(ctx context.Context, userID, leagueID, playerID string) error {
	tag, err := t.q.Exec(ctx,
		`DELETE FROM user_players WHERE user_id = $1 AND league_id = $2 AND player_id = $3`,
		userID, leagueID, playerID)
	if err != nil {
		return fmt.Errorf("delete ownership %s/%s/%s: %w", leagueID, userID, playerID, mapPgErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete ownership %s/%s/%s: %w", leagueID, userID, playerID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) UpsertLineupSlot(ctx context.Context, s *model.LineupSlot) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO lineup_players (user_id, league_id, position, matchday, player_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, league_id, position, matchday)
		 DO UPDATE SET player_id = EXCLUDED.player_id`,
		s.UserID, s.LeagueID, string(s.Position), s.Matchday, s.PlayerID)
	if err != nil {
		return fmt.Errorf("upsert lineup slot: %w", mapPgErr(err))
	}
	return nil
}

func (t *pgTx) DeleteLineupSlotsForPlayer(ctx context.Context, userID, leagueID, playerID string) (int, error) {
	tag, err := t.q.Exec(ctx,
		`DELETE FROM lineup_players WHERE user_id = $1 AND league_id = $2 AND player_id = $3`,
		userID, leagueID, playerID)
	if err != nil {
		return 0, fmt.Errorf("delete lineup slots: %w", mapPgErr(err))
	}
	return int(tag.RowsAffected()), nil
}

func (t *pgTx) InsertOffer(ctx context.Context, o *model.Offer) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO player_offers (id, player_id, league_id, seller_user_id, buyer_user_id,
		                            price, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9)`,
		o.ID, o.PlayerID, o.LeagueID, o.SellerUserID, o.BuyerUserID,
		o.Price.String(), string(o.Status), o.CreatedAt, o.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert offer %s: %w", o.ID, mapPgErr(err))
	}
	return nil
}

func (t *pgTx) LockOffer(ctx context.Context, id string) (*model.Offer, error) {
	o, err := scanOffer(t.q.QueryRow(ctx,
		`SELECT `+offerCols+` FROM player_offers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock offer %s: %w", id, mapPgErr(err))
	}
	return o, nil
}

func (t *pgTx) SetOfferStatus(ctx context.Context, id string, status model.OfferStatus, resolvedAt time.Time) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE player_offers SET status = $2, resolved_at = $3 WHERE id = $1`,
		id, string(status), resolvedAt)
	if err != nil {
		return fmt.Errorf("set offer status %s: %w", id, mapPgErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set offer status %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *pgTx) ExpireOffers(ctx context.Context, now time.Time) (int, error) {
	tag, err := t.q.Exec(ctx,
		`UPDATE player_offers SET status = 'expired', resolved_at = $1
		 WHERE status = 'pending' AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire offers: %w", mapPgErr(err))
	}
	return int(tag.RowsAffected()), nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr *model.Transaction) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO transactions (id, type, league_id, player_id, player_name, player_team, player_role,
		                           price, user_id, seller_user_id, buyer_user_id, offer_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC, $9, $10, $11, $12, $13)`,
		tr.ID, string(tr.Type), tr.LeagueID, tr.PlayerID, tr.PlayerName, tr.PlayerTeam, string(tr.PlayerRole),
		tr.Price.String(), tr.UserID, tr.SellerUserID, tr.BuyerUserID, tr.OfferID, tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tr.ID, mapPgErr(err))
	}
	return nil
}
