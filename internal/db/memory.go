package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evalIA/property-import-service/internal/models"
)

// MemoryStore keeps properties in memory. Used when no database is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	properties map[string]*models.Property
	now        func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		properties: make(map[string]*models.Property),
		now:        time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, input models.PropertyInput) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := &models.Property{
		ID:        uuid.New().String(),
		Fields:    copyInput(input),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.properties[p.ID] = p
	return clone(p), nil
}

// Update sets the given fields; fields absent from input are left unchanged
func (s *MemoryStore) Update(ctx context.Context, id string, input models.PropertyInput) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range input {
		p.Fields[k] = v
	}
	p.UpdatedAt = s.now()
	return clone(p), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

// GetAll lists properties, newest first
func (s *MemoryStore) GetAll(ctx context.Context) ([]models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Property, 0, len(s.properties))
	for _, p := range s.properties {
		out = append(out, *clone(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func clone(p *models.Property) *models.Property {
	c := *p
	c.Fields = copyInput(p.Fields)
	return &c
}
