package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"financas/internal/core"
	"financas/internal/storage"
)

// Store keeps records and templates in process memory. It returns copies so
// callers cannot mutate stored state, and mirrors the SQLite rule that a
// recurring template has at most one instance per calendar month.
type Store struct {
	mu        sync.RWMutex
	records   map[string]core.LedgerRecord
	templates map[string]core.RecurringTemplate
	now       func() time.Time
}

func New() *Store {
	return &Store{
		records:   make(map[string]core.LedgerRecord),
		templates: make(map[string]core.RecurringTemplate),
		now:       time.Now,
	}
}

// Create stores the record, assigning an id when it has none.
func (s *Store) Create(_ context.Context, r core.LedgerRecord) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := s.records[r.ID]; exists {
		return "", fmt.Errorf("record %s: %w", r.ID, core.ErrConflict)
	}
	if r.RecurringTemplateID != "" {
		month := r.Date.Period()
		for _, existing := range s.records {
			if existing.RecurringTemplateID == r.RecurringTemplateID && existing.Date.Period() == month {
				return "", fmt.Errorf("template %s in %s: %w", r.RecurringTemplateID, month, core.ErrConflict)
			}
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	s.records[r.ID] = r
	return r.ID, nil
}

func (s *Store) Get(_ context.Context, id string) (core.LedgerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return core.LedgerRecord{}, core.NotFound("record", id)
	}
	return r, nil
}

func (s *Store) List(_ context.Context, f storage.Filter) ([]core.LedgerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.LedgerRecord
	for _, r := range s.records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	storage.SortRecords(out)
	return out, nil
}

func (s *Store) Update(_ context.Context, id string, p storage.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return core.NotFound("record", id)
	}
	p.Apply(&r)
	if err := r.Validate(); err != nil {
		return err
	}
	s.records[id] = r
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return core.NotFound("record", id)
	}
	delete(s.records, id)
	return nil
}

func (s *Store) DeleteMany(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateTemplate(_ context.Context, t core.RecurringTemplate) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, exists := s.templates[t.ID]; exists {
		return "", fmt.Errorf("template %s: %w", t.ID, core.ErrConflict)
	}
	s.templates[t.ID] = t
	return t.ID, nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (core.RecurringTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return core.RecurringTemplate{}, core.NotFound("template", id)
	}
	return t, nil
}

func (s *Store) ListTemplates(_ context.Context, activeOnly bool) ([]core.RecurringTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.RecurringTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		if activeOnly && !t.Active {
			continue
		}
		out = append(out, t)
	}
	sortTemplates(out)
	return out, nil
}

func (s *Store) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return core.NotFound("template", id)
	}
	delete(s.templates, id)
	return nil
}

// Close is a no-op; it lets the memory store satisfy storage.Store.
func (s *Store) Close() error { return nil }

func sortTemplates(ts []core.RecurringTemplate) {
	slices.SortFunc(ts, func(a, b core.RecurringTemplate) int {
		return strings.Compare(a.ID, b.ID)
	})
}
