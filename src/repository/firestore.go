package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// FirestoreStore maps each collection onto a Firestore collection of the same
// name. Timestamps are written as server timestamps and ids are Firestore's
// auto ids. List returns documents in id order.
type FirestoreStore struct {
	client *firestore.Client
}

func OpenFirestore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (f *FirestoreStore) List(ctx context.Context, collection string) ([]Document, error) {
	iter := f.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	docs := []Document{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		docs = append(docs, fromSnapshot(snap))
	}
	return docs, nil
}

func (f *FirestoreStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc := fromSnapshot(snap)
	return &doc, nil
}

func (f *FirestoreStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data := copyFields(fields)
	data[fieldCreatedAt] = firestore.ServerTimestamp
	data[fieldUpdatedAt] = firestore.ServerTimestamp

	ref, _, err := f.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return ref.ID, nil
}

// Update fails with ErrNotFound when the document does not exist.
func (f *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields)+1)
	for k, v := range fields {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	updates = append(updates, firestore.Update{Path: fieldUpdatedAt, Value: firestore.ServerTimestamp})

	_, err := f.client.Collection(collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := f.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}

func fromSnapshot(snap *firestore.DocumentSnapshot) Document {
	fields := snap.Data()
	doc := Document{
		ID:        snap.Ref.ID,
		CreatedAt: timestampField(fields[fieldCreatedAt]),
		UpdatedAt: timestampField(fields[fieldUpdatedAt]),
	}
	delete(fields, fieldCreatedAt)
	delete(fields, fieldUpdatedAt)
	doc.Fields = fields
	return doc
}

func timestampField(v any) *time.Time {
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	t = t.UTC()
	return &t
}
