package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labeladmin/src/app"
	"labeladmin/src/imaging"
	"labeladmin/src/repository"
)

const (
	actionSave   = "save"
	actionDelete = "delete"
	actionStatus = "status"
)

// PageHandler renders the dashboard pages. Every write goes through the same
// CollectionService the JSON API uses.
type PageHandler struct {
	collections *app.CollectionService
	normalizer  *imaging.Normalizer
	logger      *zap.Logger
}

func NewPageHandler(collections *app.CollectionService, normalizer *imaging.Normalizer, logger *zap.Logger) *PageHandler {
	return &PageHandler{collections: collections, normalizer: normalizer, logger: logger}
}

func (p *PageHandler) Home(c *gin.Context) {
	counts, err := p.collections.Counts(c.Request.Context())
	if err != nil {
		p.logger.Error("count collections", zap.Error(err))
	}
	c.HTML(http.StatusOK, "home.tmpl", homeView{
		Brand: brandOf(c),
		Nav:   navigation(p.collections.Schema(), "", counts),
	})
}

// Show renders the table of col, with the edit form filled when ?edit=<id>
// names an existing record.
func (p *PageHandler) Show(col *app.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		view := p.view(c, col)
		view.Notice = c.Query("notice")
		if id := c.Query("edit"); id != "" && col.Writable {
			rec, err := p.collections.Get(c.Request.Context(), col, id)
			if err != nil {
				view.Errors = append(view.Errors, col.Label+" not found")
			} else {
				view.Form = form(col, rec)
			}
		}
		p.render(c, http.StatusOK, view)
	}
}

// Submit handles the page forms: save (create or update), delete and status.
func (p *PageHandler) Submit(col *app.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var (
			notice     string
			err        error
			fileErrors []string
			body       map[string]any
		)
		switch c.PostForm("_action") {
		case actionSave:
			body, fileErrors = formBody(c, col, p.normalizer)
			if _, editing := body["id"]; editing {
				err = p.collections.Update(ctx, col, body)
				notice = col.SuccessMessage("updated")
			} else {
				_, err = p.collections.Create(ctx, col, body)
				notice = col.SuccessMessage("created")
			}
		case actionDelete:
			err = p.collections.Delete(ctx, col, c.PostForm("id"))
			notice = col.SuccessMessage("deleted")
		case actionStatus:
			body = map[string]any{"id": c.PostForm("id")}
			if col.Status != nil {
				body[col.Status.Field] = c.PostForm(col.Status.Field)
			}
			err = p.collections.UpdateStatus(ctx, col, body)
			notice = col.StatusUpdatedMessage()
		default:
			c.String(http.StatusBadRequest, "unknown action")
			return
		}

		if err == nil && len(fileErrors) == 0 {
			c.Redirect(http.StatusSeeOther, col.Page+"?notice="+url.QueryEscape(notice))
			return
		}

		view := p.view(c, col)
		view.Errors = fileErrors
		status := http.StatusOK
		if err != nil {
			notice = ""
			status = p.failure(col, err, &view)
			if c.PostForm("_action") == actionSave {
				view.Form = form(col, formRecord(body))
			}
		}
		view.Notice = notice
		p.render(c, status, view)
	}
}

func (p *PageHandler) failure(col *app.Collection, err error, view *collectionView) int {
	var vErr *app.ValidationError
	switch {
	case errors.As(err, &vErr):
		view.Errors = append([]string{vErr.Message}, view.Errors...)
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		view.Errors = append([]string{col.Label + " not found"}, view.Errors...)
		return http.StatusNotFound
	case errors.Is(err, app.ErrReadOnly), errors.Is(err, app.ErrNoStatus):
		view.Errors = append([]string{err.Error()}, view.Errors...)
		return http.StatusMethodNotAllowed
	default:
		p.logger.Error("page write failed", zap.String("collection", col.Name), zap.Error(err))
		view.Errors = append([]string{"Something went wrong. Please try again."}, view.Errors...)
		return http.StatusInternalServerError
	}
}

func (p *PageHandler) view(c *gin.Context, col *app.Collection) collectionView {
	view := collectionView{
		Brand:      brandOf(c),
		Collection: col,
		Columns:    columns(col),
		Form:       form(col, nil),
	}
	if col.Status != nil {
		view.Statuses = col.Status.Values
	}
	view.Nav = navigation(p.collections.Schema(), col.Page, nil)

	records, err := p.collections.List(c.Request.Context(), col)
	if err != nil {
		p.logger.Error("fetch failed", zap.String("collection", col.Name), zap.Error(err))
		view.Errors = append(view.Errors, col.FetchFailedMessage())
		return view
	}
	view.Rows = rows(col, records)
	return view
}

func (p *PageHandler) render(c *gin.Context, status int, view collectionView) {
	c.HTML(status, "collection.tmpl", view)
}

// formRecord lets a rejected submission be shown again as typed.
func formRecord(body map[string]any) app.Record {
	rec := app.Record{}
	for k, v := range body {
		rec[k] = v
	}
	if _, ok := rec["id"]; !ok {
		rec["id"] = ""
	}
	return rec
}
