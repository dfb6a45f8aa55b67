// Package memstore is an in-process implementation of store.Store. Writes
// staged in a transaction are version-checked again and applied atomically on
// commit, so it honours the same optimistic contract as the Postgres store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
)

type Store struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
	tasks    map[uuid.UUID]*models.Task
	entries  []*models.CreditEntry
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]*models.Account),
		tasks:    make(map[uuid.UUID]*models.Task),
	}
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{
		s:        s,
		accounts: make(map[uuid.UUID]stagedAccount),
		tasks:    make(map[uuid.UUID]stagedTask),
	}, nil
}

func (s *Store) CreateAccount(_ context.Context, a *models.Account, signup *models.CreditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, a.Email) || strings.EqualFold(existing.Username, a.Username) {
			return fmt.Errorf("%w: email or username", store.ErrDuplicate)
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Version = 1
	s.accounts[a.ID] = cloneAccount(a)
	if signup != nil {
		signup.AccountID = a.ID
		e := *signup
		s.entries = append(s.entries, &e)
	}
	return nil
}

func (s *Store) GetAccountByLogin(_ context.Context, emailOrUsername string) (*models.Account, error) {
	key := strings.ToLower(strings.TrimSpace(emailOrUsername))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == key || strings.ToLower(a.Username) == key {
			return cloneAccount(a), nil
		}
	}
	return nil, fmt.Errorf("%w: account", store.ErrNotFound)
}

// DeleteAccount removes the account together with its tasks and ledger rows.
func (s *Store) DeleteAccount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("%w: account", store.ErrNotFound)
	}
	delete(s.accounts, id)
	for tid, t := range s.tasks {
		if t.OwnerID == id {
			delete(s.tasks, tid)
		}
	}
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.AccountID != id {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

func (s *Store) CreateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[t.OwnerID]; !ok {
		return fmt.Errorf("%w: owner account", store.ErrNotFound)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Version = 1
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *Store) GetTask(_ context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: task", store.ErrNotFound)
	}
	return cloneTask(t), nil
}

func (s *Store) ListTasks(_ context.Context, ownerID uuid.UUID, limit int) ([]*models.Task, error) {
	s.mu.Lock()
	var list []*models.Task
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			list = append(list, cloneTask(t))
		}
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Store) ListCreditEntries(_ context.Context, accountID uuid.UUID, limit int) ([]*models.CreditEntry, error) {
	s.mu.Lock()
	var list []*models.CreditEntry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			cp := *e
			list = append(list, &cp)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Store) ListOverdueRunning(_ context.Context, cutoff time.Time, limit int) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Task
	for _, t := range s.tasks {
		if t.Status != models.TaskStatusRunning {
			continue
		}
		if due, ok := t.DueAt(); ok && due.Before(cutoff) {
			list = append(list, cloneTask(t))
		}
		if limit > 0 && len(list) == limit {
			break
		}
	}
	return list, nil
}

type stagedAccount struct {
	expected int64
	value    *models.Account
}

type stagedTask struct {
	expected int64
	value    *models.Task
}

type tx struct {
	s        *Store
	accounts map[uuid.UUID]stagedAccount
	tasks    map[uuid.UUID]stagedTask
	entries  []*models.CreditEntry
	done     bool
}

func (t *tx) LoadAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	if st, ok := t.accounts[id]; ok {
		return cloneAccount(st.value), nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	a, ok := t.s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account", store.ErrNotFound)
	}
	return cloneAccount(a), nil
}

func (t *tx) LoadTask(_ context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	if st, ok := t.tasks[id]; ok && st.value.OwnerID == ownerID {
		return cloneTask(st.value), nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	task, ok := t.s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: task", store.ErrNotFound)
	}
	return cloneTask(task), nil
}

func (t *tx) SaveAccount(_ context.Context, a *models.Account) error {
	if t.done {
		return fmt.Errorf("save account: transaction already closed")
	}
	expected := a.Version
	if st, ok := t.accounts[a.ID]; ok {
		if st.value.Version != a.Version {
			return store.ErrConcurrencyConflict
		}
		expected = st.expected
	} else {
		t.s.mu.Lock()
		cur, ok := t.s.accounts[a.ID]
		t.s.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: account", store.ErrNotFound)
		}
		if cur.Version != a.Version {
			return store.ErrConcurrencyConflict
		}
	}
	a.Version++
	t.accounts[a.ID] = stagedAccount{expected: expected, value: cloneAccount(a)}
	return nil
}

func (t *tx) SaveTask(_ context.Context, task *models.Task) error {
	if t.done {
		return fmt.Errorf("save task: transaction already closed")
	}
	expected := task.Version
	if st, ok := t.tasks[task.ID]; ok {
		if st.value.Version != task.Version {
			return store.ErrConcurrencyConflict
		}
		expected = st.expected
	} else {
		t.s.mu.Lock()
		cur, ok := t.s.tasks[task.ID]
		t.s.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: task", store.ErrNotFound)
		}
		if cur.Version != task.Version {
			return store.ErrConcurrencyConflict
		}
	}
	task.Version++
	t.tasks[task.ID] = stagedTask{expected: expected, value: cloneTask(task)}
	return nil
}

func (t *tx) AppendCreditEntry(_ context.Context, e *models.CreditEntry) error {
	cp := *e
	t.entries = append(t.entries, &cp)
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("commit: transaction already closed")
	}
	t.done = true
	if err := ctx.Err(); err != nil {
		return err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, st := range t.accounts {
		cur, ok := t.s.accounts[id]
		if !ok {
			return fmt.Errorf("%w: account", store.ErrNotFound)
		}
		if cur.Version != st.expected {
			return store.ErrConcurrencyConflict
		}
	}
	for id, st := range t.tasks {
		cur, ok := t.s.tasks[id]
		if !ok {
			return fmt.Errorf("%w: task", store.ErrNotFound)
		}
		if cur.Version != st.expected {
			return store.ErrConcurrencyConflict
		}
	}
	for id, st := range t.accounts {
		t.s.accounts[id] = st.value
	}
	for id, st := range t.tasks {
		t.s.tasks[id] = st.value
	}
	t.s.entries = append(t.s.entries, t.entries...)
	return nil
}

func (t *tx) Rollback(context.Context) error {
	t.done = true
	t.accounts = nil
	t.tasks = nil
	t.entries = nil
	return nil
}

func cloneAccount(a *models.Account) *models.Account {
	cp := *a
	if a.LastAutoGrantAt != nil {
		v := *a.LastAutoGrantAt
		cp.LastAutoGrantAt = &v
	}
	return &cp
}

func cloneTask(t *models.Task) *models.Task {
	cp := *t
	cp.ChargedCost = cloneInt(t.ChargedCost)
	cp.ExecutionSeconds = cloneInt(t.ExecutionSeconds)
	cp.StartedAt = cloneTime(t.StartedAt)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	if t.OutcomeSeed != nil {
		v := *t.OutcomeSeed
		cp.OutcomeSeed = &v
	}
	return &cp
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
