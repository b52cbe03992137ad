package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labeladmin/src/imaging"
)

const imagesFormField = "images"

type (
	ImageHandler struct {
		normalizer *imaging.Normalizer
		logger     *zap.Logger
	}

	NormalizedImage struct {
		Name string `json:"name"`
		imaging.Image
	}

	ImageError struct {
		Name  string `json:"name"`
		Error string `json:"error"`
	}
)

func NewImageHandler(normalizer *imaging.Normalizer, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{normalizer: normalizer, logger: logger}
}

// Normalize accepts one or more files in the "images" multipart field and
// returns a payload or an error per file.
func (h *ImageHandler) Normalize(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File[imagesFormField]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No images provided"})
		return
	}

	outcomes := h.normalizer.Batch(fileSources(form.File[imagesFormField]))
	images := make([]NormalizedImage, 0, len(outcomes))
	failures := make([]ImageError, 0)
	for _, o := range outcomes {
		if o.Err != nil {
			h.logger.Info("image rejected", zap.String("name", o.Name), zap.Error(o.Err))
			failures = append(failures, ImageError{Name: o.Name, Error: imageErrorMessage(h.normalizer, o.Name, o.Err)})
			continue
		}
		images = append(images, NormalizedImage{Name: o.Name, Image: *o.Image})
	}
	c.JSON(http.StatusOK, gin.H{"success": len(failures) == 0, "images": images, "errors": failures})
}

func fileSources(files []*multipart.FileHeader) []imaging.Source {
	sources := make([]imaging.Source, 0, len(files))
	for _, fh := range files {
		fh := fh
		sources = append(sources, imaging.Source{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return sources
}

func imageErrorMessage(n *imaging.Normalizer, name string, err error) string {
	if errors.Is(err, imaging.ErrFileTooLarge) {
		return fmt.Sprintf("Image %s is too large (max %dMB)", name, n.MaxSourceBytes()>>20)
	}
	return fmt.Sprintf("Failed to process image %s", name)
}
