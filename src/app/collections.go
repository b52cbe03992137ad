package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"labeladmin/src/repository"
)

var (
	ErrReadOnly = errors.New("collection is read-only")
	ErrNoStatus = errors.New("collection has no status")
)

// CollectionService runs every create, read, update and delete for the
// collections of a schema against one document store.
type CollectionService struct {
	store  repository.DocumentStore
	schema *Schema
}

func NewCollectionService(store repository.DocumentStore, schema *Schema) *CollectionService {
	return &CollectionService{store: store, schema: schema}
}

func (s *CollectionService) Schema() *Schema { return s.schema }

func (s *CollectionService) List(ctx context.Context, c *Collection) ([]Record, error) {
	docs, err := s.store.List(ctx, c.Name)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, c.Present(d))
	}
	return records, nil
}

func (s *CollectionService) Get(ctx context.Context, c *Collection, id string) (Record, error) {
	doc, err := s.store.Get(ctx, c.Name, id)
	if err != nil {
		return nil, err
	}
	return c.Present(*doc), nil
}

// Create validates body and stores it, returning the new id.
func (s *CollectionService) Create(ctx context.Context, c *Collection, body map[string]any) (string, error) {
	if !c.Writable {
		return "", ErrReadOnly
	}
	fields, err := c.document(body)
	if err != nil {
		return "", err
	}
	return s.store.Create(ctx, c.Name, fields)
}

// Update takes the id from body["id"] and rewrites every schema field.
// An unknown id yields repository.ErrNotFound.
func (s *CollectionService) Update(ctx context.Context, c *Collection, body map[string]any) error {
	if !c.Writable {
		return ErrReadOnly
	}
	id, err := requireID(c, body)
	if err != nil {
		return err
	}
	fields, err := c.document(body)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, c.Name, id, fields)
}

func (s *CollectionService) Delete(ctx context.Context, c *Collection, id string) error {
	if !c.Writable {
		return ErrReadOnly
	}
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Message: c.IDRequiredMessage()}
	}
	return s.store.Delete(ctx, c.Name, id)
}

// UpdateStatus changes only the status field. Values outside the allowed set
// are rejected before the store is touched.
func (s *CollectionService) UpdateStatus(ctx context.Context, c *Collection, body map[string]any) error {
	if c.Status == nil {
		return ErrNoStatus
	}
	id, err := requireID(c, body)
	if err != nil {
		return err
	}
	status, _ := body[c.Status.Field].(string)
	if !c.allowsStatus(status) {
		return &ValidationError{Message: "Valid status is required"}
	}
	return s.store.Update(ctx, c.Name, id, map[string]any{c.Status.Field: status})
}

func (c *Collection) allowsStatus(status string) bool {
	for _, v := range c.Status.Values {
		if v == status {
			return true
		}
	}
	return false
}

// Counts returns the number of documents per collection, for the home page.
func (s *CollectionService) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(s.schema.Collections))
	for _, c := range s.schema.Collections {
		docs, err := s.store.List(ctx, c.Name)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", c.Name, err)
		}
		counts[c.Name] = len(docs)
	}
	return counts, nil
}

func requireID(c *Collection, body map[string]any) (string, error) {
	id, _ := body["id"].(string)
	if strings.TrimSpace(id) == "" {
		return "", &ValidationError{Message: c.IDRequiredMessage()}
	}
	return id, nil
}
