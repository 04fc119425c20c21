package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/loveuconvert/imageconvert/internal/apperr"
	"github.com/loveuconvert/imageconvert/internal/config"
	"github.com/loveuconvert/imageconvert/internal/entities"
)

const supportedFormats = "oneof=jpg jpeg png gif webp bmp svg tiff ico"

type Gateway interface {
	Convert(ctx context.Context, files []entities.FileUpload, urls []string, format string) (entities.ConvertResult, error)
	DownloadTarget(fileID, format string) string
}

type Handler struct {
	gateway   Gateway
	cfg       *config.Config
	validator *validator.Validate

	allowedMIMEs map[string]struct{}
}

func New(gateway Gateway, cfg *config.Config) *Handler {
	allowed := make(map[string]struct{}, len(cfg.Upload.AllowedMimeTypes))
	for _, m := range cfg.Upload.AllowedMimeTypes {
		allowed[m] = struct{}{}
	}

	return &Handler{
		gateway:      gateway,
		cfg:          cfg,
		validator:    validator.New(),
		allowedMIMEs: allowed,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	if err := r.ParseMultipartForm(h.cfg.Upload.MaxMultipartMemoryMB << 20); err != nil {
		writeMultipartError(w, err)
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = "png"
	}
	if err := h.validator.Var(format, supportedFormats); err != nil {
		writeJSONError(w, fmt.Sprintf("unsupported target format: %s", format), http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) > h.cfg.Upload.MaxFiles {
		writeJSONError(w, fmt.Sprintf("Too many files. Maximum is %d files per request.", h.cfg.Upload.MaxFiles), http.StatusBadRequest)
		return
	}

	maxFileSize := h.cfg.Upload.MaxFileSizeMB << 20
	files := make([]entities.FileUpload, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxFileSize {
			writeJSONError(w, "File too large. Maximum size is 2GB.", http.StatusBadRequest)
			return
		}

		f, err := fh.Open()
		if err != nil {
			writeJSONError(w, "an error occurred while reading the file: "+err.Error(), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeJSONError(w, "an error occurred while reading the file: "+err.Error(), http.StatusBadRequest)
			return
		}

		// Sniff the real type; the client-declared header is not trusted.
		mime := mimetype.Detect(data)
		if _, ok := h.allowedMIMEs[mime.String()]; !ok {
			writeJSONError(w, fmt.Sprintf("Invalid file type: %s", mime.String()), http.StatusBadRequest)
			return
		}

		files = append(files, entities.FileUpload{Name: fh.Filename, Data: data})
	}

	urls, err := parseURLField(r.MultipartForm.Value["urls"])
	if err != nil {
		writeJSONError(w, "invalid urls field: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.gateway.Convert(r.Context(), files, urls, format)
	if err != nil {
		h.writeConvertError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		Success:        true,
		DownloadURL:    result.DownloadURL,
		ConvertedFiles: result.Converted,
		Format:         format,
	})
}

func (h *Handler) writeConvertError(w http.ResponseWriter, err error) {
	status := apperr.StatusCode(err)
	if status == http.StatusInternalServerError {
		// Full detail stays server-side; the client gets an opaque message.
		log.Printf("[convert] %v", err)
		sentry.CaptureException(err)
		writeJSONError(w, "Internal server error during conversion", status)
		return
	}

	resp := ErrorResponse{Success: false, Error: err.Error()}
	var e *apperr.Error
	if errors.As(err, &e) {
		resp.Error = e.Message
		resp.Details = e.Details
	}
	writeJSON(w, status, resp)
}

func (h *Handler) DownloadSingle(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")
	format := chi.URLParam(r, "format")

	// No existence check against the record store: the target is a pure
	// function of id and format, stale ids resolve to whatever the external
	// service serves for an unknown asset.
	http.Redirect(w, r, h.gateway.DownloadTarget(fileID, format), http.StatusFound)
}

func (h *Handler) DownloadZip(w http.ResponseWriter, r *http.Request) {
	fileIDs := chi.URLParam(r, "fileIds")
	format := chi.URLParam(r, "format")

	// TODO: build a real archive of all ids; this redirects to the first
	// id only, so multi-file batches lose everything after it.
	ids := splitIDs(fileIDs)
	if len(ids) == 0 {
		writeJSONError(w, "no file ids provided", http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, h.gateway.DownloadTarget(ids[0], format), http.StatusFound)
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, "Endpoint not found", http.StatusNotFound)
}
