// internal/store/memory/memory.go
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
)

type buyerKey struct {
	listing uuid.UUID
	account models.AccountID
}

type allowanceKey struct {
	owner   models.AccountID
	spender models.AccountID
}

type dataset struct {
	users        map[uuid.UUID]*models.User
	listings     map[uuid.UUID]*models.Listing
	buyers       map[buyerKey]*models.BuyerRecord
	supply       *models.LedgerSupply
	balances     map[models.AccountID]models.Amount
	allowances   map[allowanceKey]models.Amount
	events       []models.Event
	transactions []models.Transaction
	reports      []models.ReportEntry
	audits       []models.AuditLog
	payments     map[string]struct{}
}

func newDataset() *dataset {
	return &dataset{
		users:      make(map[uuid.UUID]*models.User),
		listings:   make(map[uuid.UUID]*models.Listing),
		buyers:     make(map[buyerKey]*models.BuyerRecord),
		balances:   make(map[models.AccountID]models.Amount),
		allowances: make(map[allowanceKey]models.Amount),
		payments:   make(map[string]struct{}),
	}
}

// clone copies the containers. Stored values are never mutated in place, so
// sharing pointers between the copies is safe.
func (d *dataset) clone() *dataset {
	out := &dataset{
		users:        make(map[uuid.UUID]*models.User, len(d.users)),
		listings:     make(map[uuid.UUID]*models.Listing, len(d.listings)),
		buyers:       make(map[buyerKey]*models.BuyerRecord, len(d.buyers)),
		supply:       d.supply,
		balances:     make(map[models.AccountID]models.Amount, len(d.balances)),
		allowances:   make(map[allowanceKey]models.Amount, len(d.allowances)),
		events:       d.events[:len(d.events):len(d.events)],
		transactions: d.transactions[:len(d.transactions):len(d.transactions)],
		reports:      d.reports[:len(d.reports):len(d.reports)],
		audits:       d.audits[:len(d.audits):len(d.audits)],
		payments:     make(map[string]struct{}, len(d.payments)),
	}
	for k, v := range d.users {
		out.users[k] = v
	}
	for k, v := range d.listings {
		out.listings[k] = v
	}
	for k, v := range d.buyers {
		out.buyers[k] = v
	}
	for k, v := range d.balances {
		out.balances[k] = v
	}
	for k, v := range d.allowances {
		out.allowances[k] = v
	}
	for k := range d.payments {
		out.payments[k] = struct{}{}
	}
	return out
}

// Store is an in-memory store.Store. Transactions are serialized and applied
// copy-on-write: fn works on a private copy that replaces the shared data
// only when fn succeeds.
type Store struct {
	mu   *sync.Mutex
	data *dataset
	inTx bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, data: newDataset()}
}

func (s *Store) Tx(ctx context.Context, fn func(store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	child := &Store{mu: s.mu, data: s.data.clone(), inTx: true}
	if err := fn(child); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = child.data
	return nil
}

// read runs fn against the current data.
func (s *Store) read(fn func(d *dataset) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.data)
}

// write runs fn in its own transaction unless already inside one.
func (s *Store) write(fn func(d *dataset) error) error {
	if s.inTx {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data.clone()
	if err := fn(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func cloneUser(u *models.User) *models.User {
	out := *u
	out.ProfileData = u.ProfileData.Clone()
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		out.LastLoginAt = &t
	}
	return &out
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.EnsureID()
	return s.write(func(d *dataset) error {
		for _, existing := range d.users {
			if strings.EqualFold(existing.Email, u.Email) || existing.Username == u.Username {
				return store.ErrAlreadyExists
			}
		}
		if _, ok := d.users[u.ID]; ok {
			return store.ErrAlreadyExists
		}
		d.users[u.ID] = cloneUser(u)
		return nil
	})
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	return s.write(func(d *dataset) error {
		if _, ok := d.users[u.ID]; !ok {
			return store.ErrNotFound
		}
		u.UpdatedAt = time.Now().UTC()
		d.users[u.ID] = cloneUser(u)
		return nil
	})
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var out *models.User
	err := s.read(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return store.ErrNotFound
		}
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (s *Store) findUser(match func(*models.User) bool) (*models.User, error) {
	var out *models.User
	err := s.read(func(d *dataset) error {
		for _, u := range d.users {
			if match(u) {
				out = cloneUser(u)
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.Username == username })
}

func (s *Store) CreateListing(ctx context.Context, l *models.Listing) error {
	l.EnsureID()
	return s.write(func(d *dataset) error {
		if _, ok := d.listings[l.ID]; ok {
			return store.ErrAlreadyExists
		}
		d.listings[l.ID] = l.Clone()
		return nil
	})
}

func (s *Store) UpdateListing(ctx context.Context, l *models.Listing) error {
	return s.write(func(d *dataset) error {
		if _, ok := d.listings[l.ID]; !ok {
			return store.ErrNotFound
		}
		l.UpdatedAt = time.Now().UTC()
		d.listings[l.ID] = l.Clone()
		return nil
	})
}

func (s *Store) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var out *models.Listing
	err := s.read(func(d *dataset) error {
		l, ok := d.listings[id]
		if !ok {
			return store.ErrNotFound
		}
		out = l.Clone()
		return nil
	})
	return out, err
}

func (s *Store) ListListingsByOwner(ctx context.Context, owner models.AccountID, offset, limit int) ([]*models.Listing, int64, error) {
	var (
		out   []*models.Listing
		total int64
	)
	err := s.read(func(d *dataset) error {
		var all []*models.Listing
		for _, l := range d.listings {
			if l.Owner == owner {
				all = append(all, l)
			}
		}
		sort.Slice(all, func(i, j int) bool {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		})
		total = int64(len(all))
		if offset > len(all) {
			offset = len(all)
		}
		end := len(all)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		for _, l := range all[offset:end] {
			out = append(out, l.Clone())
		}
		return nil
	})
	return out, total, err
}

func (s *Store) GetBuyer(ctx context.Context, listingID uuid.UUID, account models.AccountID) (*models.BuyerRecord, error) {
	var out *models.BuyerRecord
	err := s.read(func(d *dataset) error {
		b, ok := d.buyers[buyerKey{listingID, account}]
		if !ok {
			return store.ErrNotFound
		}
		out = b.Clone()
		return nil
	})
	return out, err
}

func (s *Store) SaveBuyer(ctx context.Context, b *models.BuyerRecord) error {
	return s.write(func(d *dataset) error {
		now := time.Now().UTC()
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.UpdatedAt = now
		d.buyers[buyerKey{b.ListingID, b.Account}] = b.Clone()
		return nil
	})
}

func (s *Store) GetBuyerByReceipt(ctx context.Context, code string) (*models.BuyerRecord, error) {
	var out *models.BuyerRecord
	err := s.read(func(d *dataset) error {
		for _, b := range d.buyers {
			if code != "" && b.ReceiptCode == code {
				out = b.Clone()
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *Store) GetSupply(ctx context.Context) (*models.LedgerSupply, error) {
	var out *models.LedgerSupply
	err := s.read(func(d *dataset) error {
		if d.supply == nil {
			return store.ErrNotFound
		}
		cp := *d.supply
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) SaveSupply(ctx context.Context, supply *models.LedgerSupply) error {
	return s.write(func(d *dataset) error {
		if d.supply != nil {
			return store.ErrAlreadyExists
		}
		if supply.CreatedAt.IsZero() {
			supply.CreatedAt = time.Now().UTC()
		}
		cp := *supply
		d.supply = &cp
		return nil
	})
}

func (s *Store) GetBalance(ctx context.Context, account models.AccountID) (models.Amount, error) {
	var out models.Amount
	err := s.read(func(d *dataset) error {
		out = d.balances[account]
		return nil
	})
	return out, err
}

func (s *Store) SetBalance(ctx context.Context, account models.AccountID, amount models.Amount) error {
	return s.write(func(d *dataset) error {
		d.balances[account] = amount
		return nil
	})
}

func (s *Store) ListBalances(ctx context.Context) ([]models.LedgerBalance, error) {
	var out []models.LedgerBalance
	err := s.read(func(d *dataset) error {
		for account, balance := range d.balances {
			out = append(out, models.LedgerBalance{Account: account, Balance: balance})
		}
		sort.Slice(out, func(i, j int) bool {
			return models.CompareAccounts(out[i].Account, out[j].Account) < 0
		})
		return nil
	})
	return out, err
}

func (s *Store) GetAllowance(ctx context.Context, owner, spender models.AccountID) (models.Amount, error) {
	var out models.Amount
	err := s.read(func(d *dataset) error {
		out = d.allowances[allowanceKey{owner, spender}]
		return nil
	})
	return out, err
}

func (s *Store) SetAllowance(ctx context.Context, owner, spender models.AccountID, amount models.Amount) error {
	return s.write(func(d *dataset) error {
		d.allowances[allowanceKey{owner, spender}] = amount
		return nil
	})
}

func (s *Store) AppendEvent(ctx context.Context, e *models.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return s.write(func(d *dataset) error {
		cp := *e
		cp.Payload = e.Payload.Clone()
		d.events = append(d.events, cp)
		return nil
	})
}

func (s *Store) ListEvents(ctx context.Context, listingID *uuid.UUID, limit int) ([]models.Event, error) {
	var out []models.Event
	err := s.read(func(d *dataset) error {
		for i := len(d.events) - 1; i >= 0; i-- {
			e := d.events[i]
			if listingID != nil && (e.ListingID == nil || *e.ListingID != *listingID) {
				continue
			}
			e.Payload = e.Payload.Clone()
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	t.EnsureID()
	return s.write(func(d *dataset) error {
		d.transactions = append(d.transactions, *t)
		return nil
	})
}

func (s *Store) ListTransactions(ctx context.Context, listingID uuid.UUID) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.read(func(d *dataset) error {
		for _, t := range d.transactions {
			if t.ListingID == listingID {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) CreateReportEntry(ctx context.Context, r *models.ReportEntry) error {
	r.EnsureID()
	return s.write(func(d *dataset) error {
		d.reports = append(d.reports, *r)
		return nil
	})
}

// ReportEntries returns every recorded report, oldest first.
func (s *Store) ReportEntries() []models.ReportEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ReportEntry(nil), s.data.reports...)
}

func (s *Store) CreateAuditLog(ctx context.Context, a *models.AuditLog) error {
	a.EnsureID()
	return s.write(func(d *dataset) error {
		cp := *a
		cp.NewValues = a.NewValues.Clone()
		d.audits = append(d.audits, cp)
		return nil
	})
}

// AuditLogs returns every recorded audit entry, oldest first.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditLog(nil), s.data.audits...)
}

func (s *Store) MarkPaymentUsed(ctx context.Context, rail, reference string) error {
	key := rail + ":" + reference
	return s.write(func(d *dataset) error {
		if _, ok := d.payments[key]; ok {
			return store.ErrAlreadyExists
		}
		d.payments[key] = struct{}{}
		return nil
	})
}
