package use_case

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/loveuconvert/imageconvert/internal/apperr"
	"github.com/loveuconvert/imageconvert/internal/entities"
	"github.com/loveuconvert/imageconvert/internal/transform"
)

type Transformer interface {
	UploadBytes(ctx context.Context, data []byte, opts transform.UploadOptions) (transform.UploadResult, error)
	UploadURL(ctx context.Context, src string, opts transform.UploadOptions) (transform.UploadResult, error)
	BuildURL(publicID string, opts transform.URLOptions) string
}

type RecordStore interface {
	Put(id, originalName string)
}

type useCase struct {
	transformer Transformer
	records     RecordStore
	folder      string
}

func New(transformer Transformer, records RecordStore, folder string) *useCase {
	return &useCase{
		transformer: transformer,
		records:     records,
		folder:      folder,
	}
}

// Convert fans a batch of files and URLs out to the external service and
// waits for every item to settle before aggregating. Items fail
// independently; nothing short-circuits the batch.
func (c *useCase) Convert(ctx context.Context, files []entities.FileUpload, urls []string, format string) (entities.ConvertResult, error) {
	var res entities.ConvertResult

	if len(files) == 0 && len(urls) == 0 {
		return res, apperr.Validationf("No files provided for conversion")
	}

	type item struct {
		id   string
		name string
		data []byte // nil for URL items
		src  string
	}

	items := make([]item, 0, len(files)+len(urls))
	for _, f := range files {
		items = append(items, item{id: uuid.NewString(), name: f.Name, data: f.Data})
	}
	for _, u := range urls {
		name := u
		if i := strings.LastIndex(u, "/"); i >= 0 && i < len(u)-1 {
			name = u[i+1:]
		}
		items = append(items, item{id: uuid.NewString(), name: name, src: u})
	}

	// Records go in before dispatch so the sweeper sees them even if the
	// external call hangs.
	for _, it := range items {
		c.records.Put(it.id, it.name)
	}

	outcomes := make([]entities.ConversionOutcome, len(items))

	var wg sync.WaitGroup
	for i, it := range items {
		wg.Add(1)
		go func(i int, it item) {
			defer wg.Done()

			opts := transform.UploadOptions{
				ResourceType: "auto",
				PublicID:     publicID(it.id),
				Folder:       c.folder,
			}

			var up transform.UploadResult
			var err error
			if it.data != nil {
				up, err = c.transformer.UploadBytes(ctx, it.data, opts)
			} else {
				up, err = c.transformer.UploadURL(ctx, it.src, opts)
			}
			if err != nil {
				outcomes[i] = entities.ConversionOutcome{FileID: it.id, Error: err.Error()}
				return
			}

			outcomes[i] = entities.ConversionOutcome{
				FileID:       it.id,
				Success:      true,
				OriginalURL:  up.SecureURL,
				ConvertedURL: c.transformer.BuildURL(up.PublicID, urlOptions(format)),
			}
		}(i, it)
	}
	wg.Wait()

	var details []string
	for _, o := range outcomes {
		if !o.Success {
			details = append(details, o.Error)
		}
	}
	if len(details) > 0 {
		// Succeeded items are left orphaned at the external service; no
		// rollback is attempted.
		msg := fmt.Sprintf("Failed to convert %d file(s)", len(details))
		return res, apperr.ExternalFailure(msg, details)
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}

	res.Converted = len(items)
	res.DownloadURL = downloadURL(ids, format)
	return res, nil
}

// DownloadTarget recomputes the external delivery URL from id and format.
// Pure function; the record store is deliberately not consulted.
func (c *useCase) DownloadTarget(fileID, format string) string {
	return c.transformer.BuildURL(publicID(fileID), urlOptions(format))
}

func publicID(id string) string {
	return "conversions/" + id
}

func urlOptions(format string) transform.URLOptions {
	return transform.URLOptions{
		Format:      format,
		Quality:     "auto",
		FetchFormat: "auto",
	}
}

func downloadURL(ids []string, format string) string {
	if len(ids) > 1 {
		return fmt.Sprintf("/api/download/zip/%s/%s", strings.Join(ids, ","), format)
	}
	return fmt.Sprintf("/api/download/single/%s/%s", ids[0], format)
}
