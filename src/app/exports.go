package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	exportExtension = "json"
	exportLayout    = "20060102T150405.000Z"
)

var ErrInvalidExportName = errors.New("invalid export name")

type (
	// Export is one JSON snapshot of a collection kept in object storage.
	Export struct {
		Key          string    `json:"key"`
		URL          string    `json:"url"`
		Size         int64     `json:"size"`
		LastModified time.Time `json:"lastModified"`
	}

	exportFile struct {
		Collection string   `json:"collection"`
		ExportedAt string   `json:"exportedAt"`
		Records    []Record `json:"records"`
	}

	Exporter struct {
		collections *CollectionService
		storage     *MinioS3Client
		now         func() time.Time
	}
)

func NewExporter(collections *CollectionService, storage *MinioS3Client) *Exporter {
	return &Exporter{
		collections: collections,
		storage:     storage,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Export writes every record of c, presented the same way the API lists
// them, to <collection>/<timestamp>.json and returns a download link.
func (e *Exporter) Export(ctx context.Context, c *Collection) (*Export, error) {
	records, err := e.collections.List(ctx, c)
	if err != nil {
		return nil, err
	}
	now := e.now()
	body, err := json.MarshalIndent(exportFile{
		Collection: c.Name,
		ExportedAt: now.Format(isoMillis),
		Records:    records,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export of %s: %w", c.Name, err)
	}

	key := path.Join(c.Name, now.Format(exportLayout)+"."+exportExtension)
	if err := e.storage.UploadFile(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return nil, err
	}
	link, err := e.storage.PresignedURL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Export{Key: key, URL: link.String(), Size: int64(len(body)), LastModified: now}, nil
}

func (e *Exporter) List(ctx context.Context, c *Collection) ([]Export, error) {
	return e.storage.ListObjects(ctx, c.Name+"/", []string{exportExtension})
}

// Remove deletes one export of c. name is the file name without directory.
func (e *Exporter) Remove(ctx context.Context, c *Collection, name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || !strings.HasSuffix(name, "."+exportExtension) {
		return ErrInvalidExportName
	}
	return e.storage.DeleteFile(ctx, path.Join(c.Name, name))
}
