// Package repository persists collection documents. Every backend keeps a
// document as a bag of fields plus an identifier and two timestamps it stamps
// itself on write.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	cfg "labeladmin/src/configuration"
)

const (
	DriverMemory    = "memory"
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
)

var ErrNotFound = errors.New("document not found")

type (
	Document struct {
		ID        string
		Fields    map[string]any
		CreatedAt *time.Time
		UpdatedAt *time.Time
	}

	// DocumentStore is last-writer-wins: Update merges fields into the stored
	// document without any version check. Delete of a missing id succeeds.
	DocumentStore interface {
		List(ctx context.Context, collection string) ([]Document, error)
		Get(ctx context.Context, collection, id string) (*Document, error)
		Create(ctx context.Context, collection string, fields map[string]any) (string, error)
		Update(ctx context.Context, collection, id string, fields map[string]any) error
		Delete(ctx context.Context, collection, id string) error
		Close() error
	}
)

// Open returns the backend selected by config.Driver.
func Open(ctx context.Context, config cfg.StoreProperties) (DocumentStore, error) {
	switch config.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		return OpenSQL(ctx, config.Driver, config.DSN)
	case DriverFirestore:
		return OpenFirestore(ctx, config.ProjectID)
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.Driver)
	}
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
