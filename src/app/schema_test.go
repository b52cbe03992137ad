package app

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labeladmin/src/repository"
)

func mustSchema(t *testing.T) *Schema {
	t.Helper()
	schema, err := LoadSchema()
	require.NoError(t, err)
	return schema
}

func mustCollection(t *testing.T, schema *Schema, name string) *Collection {
	t.Helper()
	c, ok := schema.Collection(name)
	require.True(t, ok, name)
	return c
}

func TestLoadSchema(t *testing.T) {
	schema := mustSchema(t)
	names := make([]string, 0, len(schema.Collections))
	for _, c := range schema.Collections {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"artists", "products", "tours", "updates", "orders", "contacts", "subscribers", "submissions"}, names)

	products := mustCollection(t, schema, "products")
	assert.True(t, products.Writable)
	assert.Equal(t, []string{"/api/products", "/api/store"}, products.Paths)
	assert.Len(t, products.ImageFields(), 1)

	orders := mustCollection(t, schema, "orders")
	assert.False(t, orders.Writable)
	require.NotNil(t, orders.Status)
	assert.Equal(t, []string{"pending", "processing", "shipped", "delivered", "cancelled"}, orders.Status.Values)
}

func TestParseSchemaRejects(t *testing.T) {
	tests := map[string]string{
		"unknown kind":   "collections:\n  - {name: a, label: A, key: a, fields: [{name: x, kind: date}]}\n",
		"duplicate":      "collections:\n  - {name: a, label: A, key: a}\n  - {name: a, label: A, key: a}\n",
		"missing label":  "collections:\n  - {name: a, key: a}\n",
		"unknown check":  "collections:\n  - {name: a, label: A, key: a, rules: [{fields: [x], check: maybe}]}\n",
		"malformed yaml": "collections: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSchema([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestMessages(t *testing.T) {
	schema := mustSchema(t)
	updates := mustCollection(t, schema, "updates")
	assert.Equal(t, "Update ID is required", updates.IDRequiredMessage())
	assert.Equal(t, "Update created successfully", updates.SuccessMessage("created"))
	assert.Equal(t, "Failed to fetch updates. Please try again later.", updates.FetchFailedMessage())
	assert.Equal(t, "Failed to update update. Please try again later.", updates.FailedMessage("update"))

	orders := mustCollection(t, schema, "orders")
	assert.Equal(t, "Failed to update order status. Please try again later.", orders.FailedMessage("update status"))
	assert.Equal(t, "Order status updated successfully", orders.StatusUpdatedMessage())
}

func TestDocumentValidation(t *testing.T) {
	schema := mustSchema(t)
	tests := []struct {
		collection string
		body       map[string]any
		wantErr    string
	}{
		{"artists", map[string]any{"name": "X"}, "Name and slug are required"},
		{"artists", map[string]any{"name": "", "slug": "x"}, "Name and slug are required"},
		{"products", map[string]any{"stock": 1, "price": 2}, "Product name is required"},
		{"products", map[string]any{"name": "Tee", "price": 2.0}, "Stock is required"},
		{"products", map[string]any{"name": "Tee", "stock": nil, "price": 2.0}, "Stock is required"},
		{"products", map[string]any{"name": "Tee", "stock": 0.0}, "Price is required"},
		{"products", map[string]any{"name": "Tee", "stock": "ten", "price": 2.0}, "stock must be a number"},
		{"tours", map[string]any{"city": "Oslo", "date": "2024-06-01"}, "City, date, and venue are required"},
		{"updates", map[string]any{"title": "New single"}, "Date and title are required"},
		{"artists", map[string]any{"name": "X", "slug": "x", "socials": "@x"}, "socials must be a list"},
		{"artists", map[string]any{"name": 7.0, "slug": "x"}, "name must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.collection+"/"+tt.wantErr, func(t *testing.T) {
			_, err := mustCollection(t, schema, tt.collection).document(tt.body)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantErr, vErr.Message)
		})
	}
}

func TestDocumentCoercion(t *testing.T) {
	schema := mustSchema(t)

	got, err := mustCollection(t, schema, "products").document(map[string]any{
		"name":   "  Tee  ",
		"stock":  " 12 ",
		"price":  true,
		"images": nil,
	})
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(map[string]any{
		"name":        "Tee",
		"description": "",
		"stock":       float64(12),
		"price":       float64(1),
		"images":      []any{},
	}, got))

	got, err = mustCollection(t, schema, "updates").document(map[string]any{
		"date":        "2024-06-01",
		"title":       "Tour announced ",
		"imageUrl":    " data:image/jpeg;base64,AAAA",
		"isAvailable": "yes",
	})
	require.NoError(t, err)
	assert.Equal(t, "Tour announced", got["title"])
	assert.Equal(t, " data:image/jpeg;base64,AAAA", got["imageUrl"], "image payloads are stored verbatim")
	assert.Equal(t, true, got["isAvailable"])
	assert.Equal(t, "", got["url"])
}

func TestPresent(t *testing.T) {
	schema := mustSchema(t)
	created := time.Date(2024, 5, 1, 9, 30, 0, 123456789, time.UTC)

	rec := mustCollection(t, schema, "orders").Present(repository.Document{
		ID:        "o1",
		Fields:    map[string]any{"total": "42.5", "items": []any{map[string]any{"name": "Tee"}}},
		CreatedAt: &created,
	})
	assert.Empty(t, cmp.Diff(Record{
		"id": "o1",
		"customerInfo": map[string]any{
			"name": "", "email": "", "phone": "", "address": "", "city": "",
		},
		"items":         []any{map[string]any{"name": "Tee"}},
		"paymentMethod": nil,
		"subtotal":      float64(0),
		"shippingFee":   float64(0),
		"total":         42.5,
		"status":        "pending",
		"createdAt":     "2024-05-01T09:30:00.123Z",
		"updatedAt":     nil,
	}, rec))

	rec = mustCollection(t, schema, "updates").Present(repository.Document{ID: "u1", Fields: map[string]any{"isAvailable": 1.0}})
	assert.Equal(t, true, rec["isAvailable"])
	assert.Equal(t, "", rec["title"])
}
