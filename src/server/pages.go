package server

import (
	"embed"
	"fmt"
	"html/template"
	"mime/multipart"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"labeladmin/src/app"
	"labeladmin/src/imaging"
)

const (
	brandContextKey = "brand"
	imagePrefix     = "data:image/jpeg;base64,"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type (
	navItem struct {
		Title  string
		Page   string
		Count  int
		Active bool
	}

	cellView struct {
		Text   string
		Items  []string
		Images []template.URL
	}

	rowView struct {
		ID     string
		Cells  []cellView
		Status string
		Added  string
	}

	inputView struct {
		Name     string
		Label    string
		Kind     string
		Value    string
		Checked  bool
		Image    bool
		Multiple bool
		Images   []storedImage
	}

	// storedImage is one value already saved in an image field. Preview is
	// empty when the value cannot be shown inline; it is kept all the same.
	storedImage struct {
		Value   string
		Preview template.URL
	}

	formView struct {
		ID     string
		Inputs []inputView
	}

	homeView struct {
		Brand string
		Nav   []navItem
	}

	collectionView struct {
		Brand      string
		Nav        []navItem
		Collection *app.Collection
		Columns    []string
		Rows       []rowView
		Form       *formView
		Statuses   []string
		Notice     string
		Errors     []string
	}
)

// Span is the number of table columns: the fields, "Added" and the action
// column when rows can be edited or have a status.
func (v collectionView) Span() int {
	n := len(v.Columns) + 1
	if v.Collection.Writable || len(v.Statuses) > 0 {
		n++
	}
	return n
}

func loadTemplates() (*template.Template, error) {
	t, err := template.New("").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

func withBrand(brand string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(brandContextKey, brand)
		c.Next()
	}
}

func brandOf(c *gin.Context) string {
	return c.GetString(brandContextKey)
}

func navigation(schema *app.Schema, active string, counts map[string]int) []navItem {
	nav := make([]navItem, 0, len(schema.Collections))
	for _, c := range schema.Collections {
		nav = append(nav, navItem{Title: c.Title, Page: c.Page, Count: counts[c.Name], Active: c.Page == active})
	}
	return nav
}

func columns(c *app.Collection) []string {
	cols := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		cols = append(cols, f.Label)
	}
	return cols
}

func rows(c *app.Collection, records []app.Record) []rowView {
	out := make([]rowView, 0, len(records))
	for _, rec := range records {
		row := rowView{ID: fmt.Sprint(rec["id"])}
		for _, f := range c.Fields {
			row.Cells = append(row.Cells, cell(f, rec[f.Name]))
		}
		if c.Status != nil {
			row.Status, _ = rec[c.Status.Field].(string)
		}
		if added, ok := rec["createdAt"].(string); ok {
			row.Added = added
		}
		out = append(out, row)
	}
	return out
}

func cell(f app.Field, v any) cellView {
	if f.Image {
		return cellView{Images: previews(v)}
	}
	switch x := v.(type) {
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			items = append(items, listItem(f, item, " · "))
		}
		return cellView{Items: items}
	default:
		return cellView{Text: display(v)}
	}
}

// listItem shows an object item by the keys named in f.Item.
func listItem(f app.Field, item any, sep string) string {
	m, ok := item.(map[string]any)
	if !ok || len(f.Item) == 0 {
		return display(item)
	}
	parts := make([]string, 0, len(f.Item))
	for _, k := range f.Item {
		parts = append(parts, display(m[k]))
	}
	return strings.Join(parts, sep)
}

// parseItem is the inverse of listItem for a form line "a | b".
func parseItem(f app.Field, line string) any {
	if len(f.Item) == 0 {
		return line
	}
	parts := strings.SplitN(line, "|", len(f.Item))
	m := make(map[string]any, len(f.Item))
	for i, k := range f.Item {
		m[k] = ""
		if i < len(parts) {
			m[k] = strings.TrimSpace(parts[i])
		}
	}
	return m
}

// display renders a stored value as plain text. Objects show their non-empty
// values ordered by key.
func display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := display(x[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " · ")
	default:
		return fmt.Sprint(x)
	}
}

// imageValues lists the non-empty strings stored in an image field.
func imageValues(v any) []string {
	var raw []string
	switch x := v.(type) {
	case string:
		raw = []string{x}
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// previews keeps only values safe to place in an img src: normalized
// payloads and http(s) links.
func previews(v any) []template.URL {
	raw := imageValues(v)
	out := make([]template.URL, 0, len(raw))
	for _, s := range raw {
		if strings.HasPrefix(s, imagePrefix) || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
			out = append(out, template.URL(s))
		}
	}
	return out
}

// form builds the create form, or the edit form when rec is not nil.
func form(c *app.Collection, rec app.Record) *formView {
	if !c.Writable {
		return nil
	}
	fv := &formView{}
	if rec != nil {
		fv.ID = fmt.Sprint(rec["id"])
	}
	for _, f := range c.Fields {
		in := inputView{Name: f.Name, Label: f.Label, Kind: f.Kind, Image: f.Image, Multiple: f.Image && f.Kind == app.KindList}
		if rec != nil {
			v := rec[f.Name]
			switch {
			case f.Image:
				for _, stored := range imageValues(v) {
					img := storedImage{Value: stored}
					if p := previews(stored); len(p) == 1 {
						img.Preview = p[0]
					}
					in.Images = append(in.Images, img)
				}
			case f.Kind == app.KindBool:
				in.Checked, _ = v.(bool)
			case f.Kind == app.KindList:
				list, _ := v.([]any)
				items := make([]string, 0, len(list))
				for _, item := range list {
					items = append(items, listItem(f, item, " | "))
				}
				in.Value = strings.Join(items, "\n")
			default:
				in.Value = display(v)
			}
		}
		fv.Inputs = append(fv.Inputs, in)
	}
	return fv
}

// formBody turns a submitted page form into the same body the JSON API
// takes. Uploaded files are normalized; a file that fails is reported and
// skipped without affecting the other fields or files.
func formBody(c *gin.Context, col *app.Collection, normalizer *imaging.Normalizer) (map[string]any, []string) {
	body := map[string]any{}
	if id := c.PostForm("id"); id != "" {
		body["id"] = id
	}
	var fileErrors []string
	for _, f := range col.Fields {
		switch {
		case f.Image:
			payloads, errs := formImages(c, f, normalizer)
			fileErrors = append(fileErrors, errs...)
			if f.Kind == app.KindList {
				body[f.Name] = toAny(payloads)
			} else if len(payloads) > 0 {
				body[f.Name] = payloads[len(payloads)-1]
			}
		case f.Kind == app.KindBool:
			_, checked := c.GetPostForm(f.Name)
			body[f.Name] = checked
		case f.Kind == app.KindList:
			items := []any{}
			for _, line := range lines(c.PostForm(f.Name)) {
				items = append(items, parseItem(f, line))
			}
			body[f.Name] = items
		default:
			if v, ok := c.GetPostForm(f.Name); ok {
				body[f.Name] = v
			}
		}
	}
	return body, fileErrors
}

// formImages keeps the current payloads the user did not remove and appends
// the newly uploaded files.
func formImages(c *gin.Context, f app.Field, normalizer *imaging.Normalizer) ([]string, []string) {
	removed := map[string]bool{}
	for _, idx := range c.PostFormArray(f.Name + "_remove") {
		removed[idx] = true
	}
	var payloads []string
	for i, p := range c.PostFormArray(f.Name + "_current") {
		if removed[strconv.Itoa(i)] || p == "" {
			continue
		}
		payloads = append(payloads, p)
	}

	var files []*multipart.FileHeader
	if mf, err := c.MultipartForm(); err == nil {
		for _, fh := range mf.File[f.Name] {
			if fh.Filename != "" && fh.Size != 0 {
				files = append(files, fh)
			}
		}
	}
	var errs []string
	for _, o := range normalizer.Batch(fileSources(files)) {
		if o.Err != nil {
			errs = append(errs, imageErrorMessage(normalizer, o.Name, o.Err))
			continue
		}
		payloads = append(payloads, o.Image.Payload)
	}
	return payloads, errs
}

func lines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func toAny(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
