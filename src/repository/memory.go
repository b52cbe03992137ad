package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type (
	MemoryStore struct {
		mu          sync.RWMutex
		collections map[string]map[string]*Document
		now         func() time.Time
		newID       func() string
	}
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*Document),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// List orders documents by creation time, then id.
func (m *MemoryStore) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.collections[collection]))
	for _, d := range m.collections[collection] {
		docs = append(docs, clone(d))
	}
	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i].CreatedAt, docs[j].CreatedAt
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	doc := clone(d)
	return &doc, nil
}

func (m *MemoryStore) Create(_ context.Context, collection string, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	id := m.newID()
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]*Document)
	}
	m.collections[collection][id] = &Document{
		ID:        id,
		Fields:    copyFields(fields),
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	return id, nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		d.Fields[k] = v
	}
	now := m.now()
	d.UpdatedAt = &now
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func clone(d *Document) Document {
	out := Document{ID: d.ID, Fields: copyFields(d.Fields)}
	if d.CreatedAt != nil {
		t := *d.CreatedAt
		out.CreatedAt = &t
	}
	if d.UpdatedAt != nil {
		t := *d.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
