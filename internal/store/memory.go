package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lecfantasy/league-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// Transactions are serialized: WithTx holds the write lock, runs fn against
// a private copy of the state and swaps the copy in only on success. fn must
// read through the Tx it is given, not through the MemoryStore itself.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

// NewMemoryStore creates a new, empty in-memory store. Each call returns an
// isolated instance, so parallel tests never share state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

type acctKey struct{ user, league string }

type ownKey struct{ user, league, player string }

type slotKey struct {
	user, league string
	position     model.Role
	matchday     int
}

type ownRow struct {
	model.Ownership
	seq uint64
}

type memState struct {
	accounts map[acctKey]model.BudgetAccount
	owned    map[ownKey]ownRow
	lineup   map[slotKey]model.LineupSlot
	offers   map[string]model.Offer
	txlog    []model.Transaction
	seq      uint64
}

func newMemState() *memState {
	return &memState{
		accounts: make(map[acctKey]model.BudgetAccount),
		owned:    make(map[ownKey]ownRow),
		lineup:   make(map[slotKey]model.LineupSlot),
		offers:   make(map[string]model.Offer),
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		accounts: make(map[acctKey]model.BudgetAccount, len(st.accounts)),
		owned:    make(map[ownKey]ownRow, len(st.owned)),
		lineup:   make(map[slotKey]model.LineupSlot, len(st.lineup)),
		offers:   make(map[string]model.Offer, len(st.offers)),
		txlog:    slices.Clone(st.txlog),
		seq:      st.seq,
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.owned {
		c.owned[k] = v
	}
	for k, v := range st.lineup {
		c.lineup[k] = v
	}
	for k, v := range st.offers {
		c.offers[k] = v
	}
	return c
}

// WithTx runs fn against a snapshot and commits it if fn succeeds.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// --- Reader on the committed state ---

func (s *MemoryStore) GetAccount(ctx context.Context, userID, leagueID string) (*model.BudgetAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{st: s.state}).GetAccount(ctx, userID, leagueID)
}

func (s *MemoryStore) GetOwnership(ctx context.Context, userID, leagueID, playerID string) (*model.Ownership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{st: s.state}).GetOwnership(ctx, userID, leagueID, playerID)
}

func (s *MemoryStore) ListOwnerships(ctx context.Context, userID, leagueID string) ([]model.Ownership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{st: s.state}).ListOwnerships(ctx, userID, leagueID)
}

func (s *MemoryStore) ListLineup(ctx context.Context, userID, leagueID string, matchday int) ([]model.LineupSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{st: s.state}).ListLineup(ctx, userID, leagueID, matchday)
}

func (s *MemoryStore) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{st: s.state}).GetOffer(ctx, id)
}

func (s *MemoryStore) ListOffers(ctx context.Context, q OfferQuery) ([]model.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{st: s.state}).ListOffers(ctx, q)
}

func (s *MemoryStore) ListTransactions(ctx context.Context, leagueID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memTx{st: s.state}).ListTransactions(ctx, leagueID)
}

// memTx reads and writes one memState. The caller provides locking.
type memTx struct {
	st *memState
}

func (t *memTx) GetAccount(_ context.Context, userID, leagueID string) (*model.BudgetAccount, error) {
	a, ok := t.st.accounts[acctKey{userID, leagueID}]
	if !ok {
		return nil, fmt.Errorf("account %s/%s: %w", leagueID, userID, ErrNotFound)
	}
	return &a, nil
}

func (t *memTx) GetOwnership(_ context.Context, userID, leagueID, playerID string) (*model.Ownership, error) {
	row, ok := t.st.owned[ownKey{userID, leagueID, playerID}]
	if !ok {
		return nil, fmt.Errorf("ownership %s/%s/%s: %w", leagueID, userID, playerID, ErrNotFound)
	}
	o := row.Ownership
	return &o, nil
}

func (t *memTx) ListOwnerships(_ context.Context, userID, leagueID string) ([]model.Ownership, error) {
	var rows []ownRow
	for k, row := range t.st.owned {
		if k.user == userID && k.league == leagueID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	result := make([]model.Ownership, len(rows))
	for i, row := range rows {
		result[i] = row.Ownership
	}
	return result, nil
}

func (t *memTx) ListLineup(_ context.Context, userID, leagueID string, matchday int) ([]model.LineupSlot, error) {
	var result []model.LineupSlot
	for k, slot := range t.st.lineup {
		if k.user == userID && k.league == leagueID && k.matchday == matchday {
			result = append(result, slot)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position.Index() < result[j].Position.Index()
	})
	return result, nil
}

func (t *memTx) GetOffer(_ context.Context, id string) (*model.Offer, error) {
	o, ok := t.st.offers[id]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", id, ErrNotFound)
	}
	return &o, nil
}

func (t *memTx) ListOffers(_ context.Context, q OfferQuery) ([]model.Offer, error) {
	var result []model.Offer
	for _, o := range t.st.offers {
		if q.LeagueID != "" && o.LeagueID != q.LeagueID {
			continue
		}
		if q.UserID != "" && o.SellerUserID != q.UserID && o.BuyerUserID != q.UserID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (t *memTx) ListTransactions(_ context.Context, leagueID string) ([]model.Transaction, error) {
	var result []model.Transaction
	// Appended in commit order; walk backwards for newest first.
	for i := len(t.st.txlog) - 1; i >= 0; i-- {
		if t.st.txlog[i].LeagueID == leagueID {
			result = append(result, t.st.txlog[i])
		}
	}
	return result, nil
}

func (t *memTx) CreateAccount(_ context.Context, acct *model.BudgetAccount) error {
	k := acctKey{acct.UserID, acct.LeagueID}
	if _, ok := t.st.accounts[k]; ok {
		return fmt.Errorf("account %s/%s: %w", acct.LeagueID, acct.UserID, ErrDuplicate)
	}
	if acct.Money.IsNegative() {
		return ErrNegativeBalance
	}
	t.st.accounts[k] = *acct
	return nil
}

func (t *memTx) LockAccount(ctx context.Context, userID, leagueID string) (*model.BudgetAccount, error) {
	return t.GetAccount(ctx, userID, leagueID)
}

func (t *memTx) SetMoney(_ context.Context, userID, leagueID string, money decimal.Decimal) error {
	k := acctKey{userID, leagueID}
	a, ok := t.st.accounts[k]
	if !ok {
		return fmt.Errorf("account %s/%s: %w", leagueID, userID, ErrNotFound)
	}
	if money.IsNegative() {
		return fmt.Errorf("account %s/%s to %s: %w", leagueID, userID, money, ErrNegativeBalance)
	}
	a.Money = money
	t.st.accounts[k] = a
	return nil
}

func (t *memTx) InsertOwnership(_ context.Context, o *model.Ownership) error {
	k := ownKey{o.UserID, o.LeagueID, o.PlayerID}
	if _, ok := t.st.owned[k]; ok {
		return fmt.Errorf("ownership %s/%s/%s: %w", o.LeagueID, o.UserID, o.PlayerID, ErrDuplicate)
	}
	t.st.seq++
	t.st.owned[k] = ownRow{Ownership: *o, seq: t.st.seq}
	return nil
}

func (t *memTx) DeleteOwnership(_ context.Context, userID, leagueID, playerID string) error {
	k := ownKey{userID, leagueID, playerID}
	if _, ok := t.st.owned[k]; !ok {
		return fmt.Errorf("ownership %s/%s/%s: %w", leagueID, userID, playerID, ErrNotFound)
	}
	delete(t.st.owned, k)
	return nil
}

func (t *memTx) UpsertLineupSlot(_ context.Context, slot *model.LineupSlot) error {
	t.st.lineup[slotKey{slot.UserID, slot.LeagueID, slot.Position, slot.Matchday}] = *slot
	return nil
}

func (t *memTx) DeleteLineupSlotsForPlayer(_ context.Context, userID, leagueID, playerID string) (int, error) {
	n := 0
	for k, slot := range t.st.lineup {
		if k.user == userID && k.league == leagueID && slot.PlayerID == playerID {
			delete(t.st.lineup, k)
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertOffer(_ context.Context, o *model.Offer) error {
	if _, ok := t.st.offers[o.ID]; ok {
		return fmt.Errorf("offer %s: %w", o.ID, ErrDuplicate)
	}
	t.st.offers[o.ID] = *o
	return nil
}

func (t *memTx) LockOffer(ctx context.Context, id string) (*model.Offer, error) {
	return t.GetOffer(ctx, id)
}

func (t *memTx) SetOfferStatus(_ context.Context, id string, status model.OfferStatus, resolvedAt time.Time) error {
	o, ok := t.st.offers[id]
	if !ok {
		return fmt.Errorf("offer %s: %w", id, ErrNotFound)
	}
	o.Status = status
	at := resolvedAt
	o.ResolvedAt = &at
	t.st.offers[id] = o
	return nil
}

func (t *memTx) ExpireOffers(_ context.Context, now time.Time) (int, error) {
	n := 0
	for id, o := range t.st.offers {
		if o.ExpiredAt(now) {
			o.Status = model.OfferExpired
			at := now
			o.ResolvedAt = &at
			t.st.offers[id] = o
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr *model.Transaction) error {
	t.st.txlog = append(t.st.txlog, *tr)
	return nil
}
