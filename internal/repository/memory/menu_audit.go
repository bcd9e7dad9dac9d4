package memory

import (
	"context"

	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/google/uuid"
)

// AddMenuItem seeds the menu used by FindItem.
func (s *Store) AddMenuItem(m model.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Modifiers = append([]model.MenuModifier(nil), m.Modifiers...)
	s.menu[m.ID] = m
}

func (s *Store) FindItem(_ context.Context, restaurantID, itemID uuid.UUID) (*model.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.menu[itemID]
	if !ok || m.RestaurantID != restaurantID {
		return nil, repository.ErrNotFound
	}
	m.Modifiers = append([]model.MenuModifier(nil), m.Modifiers...)
	return &m, nil
}

// Create appends an audit entry.
func (s *Store) Create(_ context.Context, e *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.audit {
		if have.ID == e.ID {
			return repository.ErrDuplicate
		}
	}
	s.audit = append(s.audit, *e)
	return nil
}

func (s *Store) ListByEntity(_ context.Context, entityID uuid.UUID) ([]model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AuditEntry
	for _, e := range s.audit {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

var (
	_ repository.Store           = (*Store)(nil)
	_ repository.MenuRepository  = (*Store)(nil)
	_ repository.AuditRepository = (*Store)(nil)
)
