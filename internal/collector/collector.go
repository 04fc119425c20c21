// Package collector builds and submits conversion worklists: the client-side
// half of the converter. Items are gathered from local files or image URLs,
// validated up front, and shipped to the gateway as one multipart batch.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const maxFileSize = 2 << 30 // 2 GiB

var (
	ErrEmptyWorklist       = errors.New("no files selected for conversion")
	ErrConversionInFlight  = errors.New("a conversion is already in progress")
	ErrNoCompletedDownload = errors.New("no completed conversion to download")
)

var imageURLExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
	".bmp": {}, ".svg": {}, ".tiff": {}, ".ico": {},
}

type SourceKind string

const (
	SourceDevice SourceKind = "device"
	SourceURL    SourceKind = "url"
)

// WorkItem is one queued image awaiting conversion.
type WorkItem struct {
	ID          string
	Kind        SourceKind
	Path        string // set for device items
	URL         string // set for url items
	DisplayName string
	SizeBytes   int64
}

// detectType reports the MIME type of a local file by sniffing its content;
// the extension is not trusted.
func detectType(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return mt.String(), nil
}

type Collector struct {
	serverURL  string
	httpClient *http.Client

	mu          sync.Mutex
	items       []WorkItem
	seq         int64
	downloadURL string

	converting atomic.Bool
}

func New(serverURL string) *Collector {
	return &Collector{
		serverURL: strings.TrimRight(serverURL, "/"),
		// No overall timeout: a conversion is bounded by ctx, and large
		// uploads legitimately take a while.
		httpClient: &http.Client{},
	}
}

// Add validates and queues a local file. Rejected files never make it onto
// the worklist.
func (c *Collector) Add(filePath string) error {
	st, err := os.Stat(filePath)
	if err != nil {
		return err
	}
	if st.Size() > maxFileSize {
		return fmt.Errorf("%s is too large, maximum size is 2GB", st.Name())
	}

	mime, err := detectType(filePath)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(mime, "image/") {
		return fmt.Errorf("%s is not a valid image file", st.Name())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, WorkItem{
		ID:          c.nextID(),
		Kind:        SourceDevice,
		Path:        filePath,
		DisplayName: filepath.Base(filePath),
		SizeBytes:   st.Size(),
	})
	return nil
}

// AddURL validates and queues a remote image reference. The string must be
// a well-formed URL whose path carries a recognized image extension.
func (c *Collector) AddURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid image URL: %s", raw)
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if _, ok := imageURLExts[ext]; !ok {
		return fmt.Errorf("invalid image URL: %s", raw)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "image"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, WorkItem{
		ID:          c.nextID(),
		Kind:        SourceURL,
		URL:         raw,
		DisplayName: name,
	})
	return nil
}

// Remove drops the item with the given id; absent ids are a no-op.
func (c *Collector) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.items {
		if it.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Items returns the worklist in insertion order.
func (c *Collector) Items() []WorkItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]WorkItem, len(c.items))
	copy(out, c.items)
	return out
}

// DownloadURL returns the ready download target, empty until a submission
// succeeds.
func (c *Collector) DownloadURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloadURL
}

// Submit sends the worklist as one conversion batch. Exactly one submission
// may be in flight; concurrent calls fail with ErrConversionInFlight. On any
// failure the worklist is preserved so the caller can retry.
func (c *Collector) Submit(ctx context.Context, format string) error {
	if !c.converting.CompareAndSwap(false, true) {
		return ErrConversionInFlight
	}
	defer c.converting.Store(false)

	c.mu.Lock()
	items := make([]WorkItem, len(c.items))
	copy(items, c.items)
	c.mu.Unlock()

	if len(items) == 0 {
		return ErrEmptyWorklist
	}

	body, contentType, err := buildPayload(items, format)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/convert", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("conversion request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success     bool   `json:"success"`
		DownloadURL string `json:"downloadUrl"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("server error: %d", resp.StatusCode)
	}
	if !result.Success {
		if result.Error != "" {
			return fmt.Errorf("conversion failed: %s", result.Error)
		}
		return fmt.Errorf("server error: %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.downloadURL = c.serverURL + result.DownloadURL
	c.mu.Unlock()
	return nil
}

// Download fetches the converted result to dst and clears the worklist.
func (c *Collector) Download(ctx context.Context, dst string) error {
	c.mu.Lock()
	target := c.downloadURL
	c.mu.Unlock()

	if target == "" {
		return ErrNoCompletedDownload
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %d", resp.StatusCode)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return err
	}

	c.mu.Lock()
	c.items = nil
	c.downloadURL = ""
	c.mu.Unlock()
	return nil
}

// nextID builds a locally-unique id from timestamp plus a sequence
// tie-break for batch adds. Caller holds mu.
func (c *Collector) nextID() string {
	c.seq++
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), c.seq)
}

func buildPayload(items []WorkItem, format string) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	var urls []string
	for _, it := range items {
		switch it.Kind {
		case SourceDevice:
			part, err := w.CreateFormFile("files", it.DisplayName)
			if err != nil {
				return nil, "", err
			}
			f, err := os.Open(it.Path)
			if err != nil {
				return nil, "", err
			}
			_, err = io.Copy(part, f)
			f.Close()
			if err != nil {
				return nil, "", err
			}
		case SourceURL:
			urls = append(urls, it.URL)
		}
	}

	if len(urls) > 0 {
		raw, err := json.Marshal(urls)
		if err != nil {
			return nil, "", err
		}
		if err := w.WriteField("urls", string(raw)); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("format", format); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &body, w.FormDataContentType(), nil
}
