// Package transform talks to the external image transformation service.
// The service contract is small: ingest an image by bytes or by URL and hand
// back a stable public identifier, plus a derived delivery URL computable
// from identifier and desired format. Any service offering those two
// operations is substitutable.
package transform

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/loveuconvert/imageconvert/internal/config"
)

type UploadOptions struct {
	ResourceType string // "auto" lets the service detect
	PublicID     string
	Folder       string
}

type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
}

type URLOptions struct {
	Format      string
	Quality     string
	FetchFormat string
}

type Client struct {
	cloudName    string
	apiKey       string
	apiSecret    string
	uploadBase   string
	deliveryBase string

	httpClient *http.Client
}

func NewClient(cfg *config.TransformConfig) *Client {
	return &Client{
		cloudName:    cfg.CloudName,
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		uploadBase:   strings.TrimRight(cfg.UploadBaseURL, "/"),
		deliveryBase: strings.TrimRight(cfg.DeliveryBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout * time.Second,
		},
	}
}

// UploadBytes ingests raw image bytes.
func (c *Client) UploadBytes(ctx context.Context, data []byte, opts UploadOptions) (UploadResult, error) {
	return c.upload(ctx, opts, func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("file", "upload")
		if err != nil {
			return err
		}
		_, err = part.Write(data)
		return err
	})
}

// UploadURL ingests by reference; the service fetches the image itself.
func (c *Client) UploadURL(ctx context.Context, src string, opts UploadOptions) (UploadResult, error) {
	return c.upload(ctx, opts, func(w *multipart.Writer) error {
		return w.WriteField("file", src)
	})
}

func (c *Client) upload(ctx context.Context, opts UploadOptions, writeFile func(*multipart.Writer) error) (UploadResult, error) {
	var res UploadResult

	resourceType := opts.ResourceType
	if resourceType == "" {
		resourceType = "auto"
	}

	params := map[string]string{
		"public_id": opts.PublicID,
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
	}
	if opts.Folder != "" {
		params["folder"] = opts.Folder
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range params {
		if err := w.WriteField(k, v); err != nil {
			return res, err
		}
	}
	if err := w.WriteField("api_key", c.apiKey); err != nil {
		return res, err
	}
	if err := w.WriteField("signature", c.sign(params)); err != nil {
		return res, err
	}
	if err := writeFile(w); err != nil {
		return res, err
	}
	if err := w.Close(); err != nil {
		return res, err
	}

	endpoint := fmt.Sprintf("%s/v1_1/%s/%s/upload", c.uploadBase, c.cloudName, resourceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return res, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return res, fmt.Errorf("transform upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res, fmt.Errorf("transform upload: %s", readServiceError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return res, fmt.Errorf("transform upload: decode response: %w", err)
	}
	return res, nil
}

// sign computes the request signature: SHA-1 over the alphabetically sorted
// parameters concatenated with the API secret.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}

// BuildURL derives the delivery URL for a stored asset. Pure function of
// publicID and options; it never contacts the service.
func (c *Client) BuildURL(publicID string, opts URLOptions) string {
	var segs []string
	if opts.FetchFormat != "" {
		segs = append(segs, "f_"+opts.FetchFormat)
	}
	if opts.Quality != "" {
		segs = append(segs, "q_"+opts.Quality)
	}

	p := fmt.Sprintf("%s/%s/image/upload", c.deliveryBase, c.cloudName)
	if len(segs) > 0 {
		p += "/" + strings.Join(segs, ",")
	}
	p += "/" + publicID
	if opts.Format != "" {
		p += "." + opts.Format
	}
	return p
}

type serviceError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func readServiceError(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err == nil {
		var se serviceError
		if json.Unmarshal(raw, &se) == nil && se.Error.Message != "" {
			return se.Error.Message
		}
	}
	return fmt.Sprintf("unexpected status %d", resp.StatusCode)
}
