package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labeladmin/src/app"
)

type (
	ExportHandler struct {
		exporter *app.Exporter
		schema   *app.Schema
		logger   *zap.Logger
	}

	DeleteExportBody struct {
		Collection string `json:"collection"`
		Name       string `json:"name"`
	}
)

const (
	collectionQueryParam = "collection"
)

func NewExportHandler(exporter *app.Exporter, schema *app.Schema, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		exporter: exporter,
		schema:   schema,
		logger:   logger,
	}
}

func (e *ExportHandler) collection(c *gin.Context, name string) (*app.Collection, bool) {
	col, ok := e.schema.Collection(name)
	if !ok {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "error", "error": fmt.Sprintf("unknown collection %q", name)})
		return nil, false
	}
	return col, true
}

func (e *ExportHandler) List(c *gin.Context) {
	name, ok := c.GetQuery(collectionQueryParam)
	if !ok {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "error", "error": "no collection in query"})
		return
	}
	col, ok := e.collection(c, name)
	if !ok {
		return
	}
	exports, err := e.exporter.List(c.Request.Context(), col)
	if err != nil {
		e.logger.Error("list exports", zap.String("collection", col.Name), zap.Error(err))
		c.IndentedJSON(http.StatusInternalServerError,
			gin.H{"message": "error", "error": "can not fetch exports from s3"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "payload": exports})
}

func (e *ExportHandler) Create(c *gin.Context) {
	col, ok := e.collection(c, c.Param(collectionQueryParam))
	if !ok {
		return
	}
	export, err := e.exporter.Export(c.Request.Context(), col)
	if err != nil {
		e.logger.Error("export collection", zap.String("collection", col.Name), zap.Error(err))
		c.IndentedJSON(http.StatusInternalServerError,
			gin.H{"message": "error", "error": "can not upload export to s3"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "payload": export})
}

func (e *ExportHandler) Delete(c *gin.Context) {
	var requestBody DeleteExportBody
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "error", "error": msgInvalidJSON})
		return
	}
	col, ok := e.collection(c, requestBody.Collection)
	if !ok {
		return
	}
	err := e.exporter.Remove(c.Request.Context(), col, requestBody.Name)
	if errors.Is(err, app.ErrInvalidExportName) {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "error", "error": err.Error()})
		return
	}
	if err != nil {
		e.logger.Error("delete export", zap.String("collection", col.Name), zap.Error(err))
		c.IndentedJSON(http.StatusInternalServerError,
			gin.H{"message": "error", "error": "can not delete export from s3"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
