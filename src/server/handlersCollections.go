package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labeladmin/src/app"
	"labeladmin/src/repository"
)

type CollectionHandler struct {
	collections *app.CollectionService
	logger      *zap.Logger
}

func NewCollectionHandler(collections *app.CollectionService, logger *zap.Logger) *CollectionHandler {
	return &CollectionHandler{collections: collections, logger: logger}
}

// Register mounts the JSON endpoints of c on each of its API paths.
func (h *CollectionHandler) Register(r gin.IRoutes, c *app.Collection) {
	for _, path := range c.Paths {
		r.GET(path, h.list(c))
		switch {
		case c.Writable:
			r.POST(path, h.create(c))
			r.PUT(path, h.update(c))
			r.DELETE(path, h.remove(c))
		case c.Status != nil:
			r.PUT(path, h.updateStatus(c))
		}
	}
}

func (h *CollectionHandler) list(col *app.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := h.collections.List(c.Request.Context(), col)
		if err != nil {
			h.logger.Error("fetch failed", zap.String("collection", col.Name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": col.FetchFailedMessage()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, col.Key: records})
	}
}

func (h *CollectionHandler) create(col *app.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := bindBody(c)
		if !ok {
			return
		}
		id, err := h.collections.Create(c.Request.Context(), col, body)
		if err != nil {
			h.fail(c, col, "create", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": col.SuccessMessage("created"), "id": id})
	}
}

func (h *CollectionHandler) update(col *app.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := bindBody(c)
		if !ok {
			return
		}
		if err := h.collections.Update(c.Request.Context(), col, body); err != nil {
			h.fail(c, col, "update", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": col.SuccessMessage("updated")})
	}
}

func (h *CollectionHandler) remove(col *app.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.GetQuery("id")
		if err := h.collections.Delete(c.Request.Context(), col, id); err != nil {
			h.fail(c, col, "delete", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": col.SuccessMessage("deleted")})
	}
}

func (h *CollectionHandler) updateStatus(col *app.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := bindBody(c)
		if !ok {
			return
		}
		if err := h.collections.UpdateStatus(c.Request.Context(), col, body); err != nil {
			h.fail(c, col, "update status", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": col.StatusUpdatedMessage()})
	}
}

// fail maps service errors: validation to 400, unknown id to 404, anything
// else to a logged 500 with a generic message.
func (h *CollectionHandler) fail(c *gin.Context, col *app.Collection, verb string, err error) {
	var vErr *app.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": col.Label + " not found"})
	default:
		h.logger.Error(verb+" failed", zap.String("collection", col.Name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": col.FailedMessage(verb)})
	}
}

func bindBody(c *gin.Context) (map[string]any, bool) {
	body := map[string]any{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return nil, false
	}
	return body, true
}
