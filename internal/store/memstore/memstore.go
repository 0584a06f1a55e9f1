// Package memstore is an in-process store.Store. Transactions are serialized
// and run against a private copy of the data that replaces the committed copy
// only when the transaction function succeeds.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"core_bank/internal/domain"
	"core_bank/internal/store"
)

type dataset struct {
	users     map[uint]domain.User
	clients   map[uint]domain.Client
	accounts  map[uint]domain.Account
	cards     map[uint]domain.CreditCard
	movements []domain.Movement
	seq       map[string]uint
}

func newDataset() *dataset {
	return &dataset{
		users:    map[uint]domain.User{},
		clients:  map[uint]domain.Client{},
		accounts: map[uint]domain.Account{},
		cards:    map[uint]domain.CreditCard{},
		seq:      map[string]uint{},
	}
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		users:     make(map[uint]domain.User, len(d.users)),
		clients:   make(map[uint]domain.Client, len(d.clients)),
		accounts:  make(map[uint]domain.Account, len(d.accounts)),
		cards:     make(map[uint]domain.CreditCard, len(d.cards)),
		movements: append([]domain.Movement(nil), d.movements...),
		seq:       make(map[string]uint, len(d.seq)),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.clients {
		c.clients[k] = v
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.cards {
		c.cards[k] = v
	}
	for k, v := range d.seq {
		c.seq[k] = v
	}
	return c
}

func (d *dataset) next(table string) uint {
	d.seq[table]++
	return d.seq[table]
}

// Store is safe for concurrent use.
type Store struct {
	sem  chan struct{} // one transaction at a time
	mu   sync.RWMutex  // guards data
	data *dataset
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{sem: make(chan struct{}, 1), data: newDataset()}
}

func (s *Store) snapshot() *dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Transact waits for exclusive access until ctx is done, then runs fn on a
// private copy. The copy becomes the committed state only if fn returns nil
// and ctx is still live.
func (s *Store) Transact(ctx context.Context, fn func(tx store.Tx) error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", store.ErrLockTimeout, ctx.Err())
	}
	defer func() { <-s.sem }()

	work := s.snapshot().clone()
	if err := fn(&tx{d: work}); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", store.ErrLockTimeout, ctx.Err())
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (*domain.User, error) {
	return (&tx{d: s.snapshot()}).UserByUsername(username)
}

func (s *Store) UserByID(_ context.Context, id uint) (*domain.User, error) {
	return (&tx{d: s.snapshot()}).UserByID(id)
}

func (s *Store) AccountByUser(_ context.Context, userID uint) (*domain.Account, error) {
	for _, a := range s.snapshot().accounts {
		if a.UserID == userID {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreditCardByUser(_ context.Context, userID uint) (*domain.CreditCard, error) {
	for _, c := range s.snapshot().cards {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) Movements(_ context.Context, accountID uint, offset, limit int) ([]domain.Movement, int64, error) {
	var matched []domain.Movement
	all := s.snapshot().movements
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if (m.FromAccountID != nil && *m.FromAccountID == accountID) || (m.ToAccountID != nil && *m.ToAccountID == accountID) {
			matched = append(matched, m)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return []domain.Movement{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *Store) CountUsers(_ context.Context) (int64, error) {
	return int64(len(s.snapshot().users)), nil
}

type tx struct {
	d *dataset
}

func (t *tx) UserByUsername(username string) (*domain.User, error) {
	for _, u := range t.d.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) UserByID(id uint) (*domain.User, error) {
	u, ok := t.d.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (t *tx) CreateUser(u *domain.User) error {
	for _, existing := range t.d.users {
		if existing.Username == u.Username || (u.Email != "" && existing.Email == u.Email) {
			return store.ErrDuplicate
		}
	}
	u.ID = t.d.next("users")
	row := *u
	row.Account, row.CreditCard, row.Client = nil, nil, nil
	t.d.users[u.ID] = row
	return nil
}

func (t *tx) CreateClient(c *domain.Client) error {
	if _, ok := t.d.users[c.UserID]; !ok {
		return fmt.Errorf("memstore: client references missing user %d", c.UserID)
	}
	for _, existing := range t.d.clients {
		if existing.NationalID == c.NationalID || existing.UserID == c.UserID {
			return store.ErrDuplicate
		}
	}
	c.ID = t.d.next("clients")
	t.d.clients[c.ID] = *c
	return nil
}

func (t *tx) CreateAccount(a *domain.Account) error {
	if _, ok := t.d.users[a.UserID]; !ok {
		return fmt.Errorf("memstore: account references missing user %d", a.UserID)
	}
	for _, existing := range t.d.accounts {
		if existing.UserID == a.UserID {
			return store.ErrDuplicate
		}
	}
	a.ID = t.d.next("accounts")
	t.d.accounts[a.ID] = *a
	return nil
}

func (t *tx) CreateCreditCard(c *domain.CreditCard) error {
	if _, ok := t.d.users[c.UserID]; !ok {
		return fmt.Errorf("memstore: credit card references missing user %d", c.UserID)
	}
	for _, existing := range t.d.cards {
		if existing.UserID == c.UserID {
			return store.ErrDuplicate
		}
	}
	c.ID = t.d.next("credit_cards")
	t.d.cards[c.ID] = *c
	return nil
}

func (t *tx) AccountIDByUser(userID uint) (uint, error) {
	for id, a := range t.d.accounts {
		if a.UserID == userID {
			return id, nil
		}
	}
	return 0, store.ErrNotFound
}

func (t *tx) LockAccounts(ids ...uint) (map[uint]*domain.Account, error) {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := make(map[uint]*domain.Account, len(sorted))
	for _, id := range sorted {
		a, ok := t.d.accounts[id]
		if !ok {
			return nil, store.ErrNotFound
		}
		out[id] = &a
	}
	return out, nil
}

func (t *tx) UpdateAccountBalance(id uint, balance decimal.Decimal) error {
	a, ok := t.d.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Balance = balance
	t.d.accounts[id] = a
	return nil
}

func (t *tx) LockCreditCardByUser(userID uint) (*domain.CreditCard, error) {
	for _, c := range t.d.cards {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) UpdateCreditCardDebt(id uint, debt decimal.Decimal) error {
	c, ok := t.d.cards[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Debt = debt
	t.d.cards[id] = c
	return nil
}

func (t *tx) RecordMovement(m *domain.Movement) error {
	m.ID = t.d.next("movements")
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	t.d.movements = append(t.d.movements, *m)
	return nil
}
