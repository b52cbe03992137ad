package app

import (
	_ "embed"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"labeladmin/src/repository"
)

const (
	KindString = "string"
	KindNumber = "number"
	KindBool   = "bool"
	KindList   = "list"
	KindObject = "object"
	KindAny    = "any"

	checkTruthy  = "truthy"
	checkDefined = "defined"

	isoMillis = "2006-01-02T15:04:05.000Z"
)

//go:embed collections.yaml
var collectionsYAML []byte

type (
	Schema struct {
		Collections []*Collection `yaml:"collections"`
	}

	// Collection describes one document collection: how it is named on the
	// wire and on the pages, which fields it has and how writes are validated.
	Collection struct {
		Name     string      `yaml:"name"`
		Label    string      `yaml:"label"`
		Key      string      `yaml:"key"`
		Title    string      `yaml:"title"`
		Page     string      `yaml:"page"`
		Paths    []string    `yaml:"paths"`
		Writable bool        `yaml:"writable"`
		Status   *StatusRule `yaml:"status"`
		Rules    []Rule      `yaml:"rules"`
		Fields   []Field     `yaml:"fields"`
	}

	Rule struct {
		Fields  []string `yaml:"fields"`
		Check   string   `yaml:"check"`
		Message string   `yaml:"message"`
	}

	StatusRule struct {
		Field  string   `yaml:"field"`
		Values []string `yaml:"values"`
	}

	// Field is one document field. Item names the keys of object list
	// items, in display order.
	Field struct {
		Name    string   `yaml:"name"`
		Label   string   `yaml:"label"`
		Kind    string   `yaml:"kind"`
		Trim    bool     `yaml:"trim"`
		Image   bool     `yaml:"image"`
		Default any      `yaml:"default"`
		Item    []string `yaml:"item"`
	}

	// Record is a document as presented to clients: id, every schema field
	// with its default filled in, and the two timestamps.
	Record map[string]any

	// ValidationError carries a message meant for the user as is.
	ValidationError struct {
		Message string
	}
)

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// LoadSchema parses the embedded collection table.
func LoadSchema() (*Schema, error) {
	return ParseSchema(collectionsYAML)
}

func ParseSchema(data []byte) (*Schema, error) {
	schema := &Schema{}
	if err := yaml.Unmarshal(data, schema); err != nil {
		return nil, fmt.Errorf("parse collection schema: %w", err)
	}
	seen := map[string]bool{}
	for _, c := range schema.Collections {
		if c.Name == "" || c.Label == "" || c.Key == "" {
			return nil, fmt.Errorf("collection %q: name, label and key are required", c.Name)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("collection %q defined twice", c.Name)
		}
		seen[c.Name] = true
		for _, f := range c.Fields {
			switch f.Kind {
			case KindString, KindNumber, KindBool, KindList, KindObject, KindAny:
			default:
				return nil, fmt.Errorf("collection %q field %q: unknown kind %q", c.Name, f.Name, f.Kind)
			}
		}
		for _, r := range c.Rules {
			if r.Check != "" && r.Check != checkTruthy && r.Check != checkDefined {
				return nil, fmt.Errorf("collection %q: unknown rule check %q", c.Name, r.Check)
			}
		}
	}
	return schema, nil
}

func (s *Schema) Collection(name string) (*Collection, bool) {
	for _, c := range s.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (c *Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ImageFields lists the fields whose values are normalized image payloads.
func (c *Collection) ImageFields() []Field {
	var out []Field
	for _, f := range c.Fields {
		if f.Image {
			out = append(out, f)
		}
	}
	return out
}

func (c *Collection) lower() string { return strings.ToLower(c.Label) }

func (c *Collection) IDRequiredMessage() string {
	return c.Label + " ID is required"
}

func (c *Collection) SuccessMessage(verb string) string {
	return fmt.Sprintf("%s %s successfully", c.Label, verb)
}

func (c *Collection) FetchFailedMessage() string {
	return fmt.Sprintf("Failed to fetch %s. Please try again later.", c.Key)
}

// FailedMessage reads "Failed to <verb> <label>", except that a verb of the
// form "<verb> <noun>" yields "Failed to <verb> <label> <noun>".
func (c *Collection) FailedMessage(verb string) string {
	object := c.lower()
	if v, noun, ok := strings.Cut(verb, " "); ok {
		verb, object = v, object+" "+noun
	}
	return fmt.Sprintf("Failed to %s %s. Please try again later.", verb, object)
}

func (c *Collection) StatusUpdatedMessage() string {
	return c.Label + " status updated successfully"
}

// validate applies the rules in order and returns the first failure.
func (c *Collection) validate(body map[string]any) error {
	for _, r := range c.Rules {
		for _, name := range r.Fields {
			v, present := body[name]
			ok := truthy(v)
			if r.Check == checkDefined {
				ok = present && v != nil
			}
			if !ok {
				return &ValidationError{Message: r.Message}
			}
		}
	}
	return nil
}

// document builds the stored field set for a create or full update.
func (c *Collection) document(body map[string]any) (map[string]any, error) {
	if err := c.validate(body); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(c.Fields))
	for _, f := range c.Fields {
		v, err := f.coerce(body[f.Name])
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func (f Field) coerce(v any) (any, error) {
	switch f.Kind {
	case KindString:
		if !truthy(v) {
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, invalid("%s must be a string", f.Name)
		}
		if f.Trim {
			s = strings.TrimSpace(s)
		}
		return s, nil
	case KindNumber:
		n, ok := toNumber(v)
		if !ok {
			return nil, invalid("%s must be a number", f.Name)
		}
		return n, nil
	case KindBool:
		return truthy(v), nil
	case KindList:
		if !truthy(v) {
			return []any{}, nil
		}
		list, ok := v.([]any)
		if !ok {
			return nil, invalid("%s must be a list", f.Name)
		}
		return list, nil
	default:
		if v == nil {
			return f.Default, nil
		}
		return v, nil
	}
}

// present fills defaults for absent or empty values the way the dashboard
// has always read its documents.
func (f Field) present(v any) any {
	switch f.Kind {
	case KindString:
		if s, ok := v.(string); ok && s != "" {
			return s
		}
		if d, ok := f.Default.(string); ok {
			return d
		}
		return ""
	case KindNumber:
		if v == nil {
			return float64(0)
		}
		if n, ok := toNumber(v); ok {
			return n
		}
		return float64(0)
	case KindBool:
		return truthy(v)
	case KindList:
		if list, ok := v.([]any); ok {
			return list
		}
		return []any{}
	case KindObject:
		if truthy(v) {
			return v
		}
		return f.Default
	default:
		if v == nil {
			return f.Default
		}
		return v
	}
}

// Present turns a stored document into the client-facing record.
func (c *Collection) Present(doc repository.Document) Record {
	rec := Record{"id": doc.ID}
	for _, f := range c.Fields {
		rec[f.Name] = f.present(doc.Fields[f.Name])
	}
	rec["createdAt"] = isoTime(doc.CreatedAt)
	rec["updatedAt"] = isoTime(doc.UpdatedAt)
	return rec
}

func isoTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(isoMillis)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return true
	}
}

// toNumber accepts numbers, numeric strings (blank reads as zero) and booleans.
func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
