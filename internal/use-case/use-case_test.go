package use_case

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/loveuconvert/imageconvert/internal/apperr"
	"github.com/loveuconvert/imageconvert/internal/entities"
	"github.com/loveuconvert/imageconvert/internal/transform"
)

type fakeTransformer struct {
	mu        sync.Mutex
	uploaded  []string // public ids, in completion order
	failBytes bool
	failURLs  bool
}

func (f *fakeTransformer) UploadBytes(ctx context.Context, data []byte, opts transform.UploadOptions) (transform.UploadResult, error) {
	if f.failBytes {
		return transform.UploadResult{}, errors.New("upstream rejected bytes")
	}
	f.record(opts.PublicID)
	return transform.UploadResult{PublicID: opts.PublicID, SecureURL: "https://cdn.example.com/" + opts.PublicID}, nil
}

func (f *fakeTransformer) UploadURL(ctx context.Context, src string, opts transform.UploadOptions) (transform.UploadResult, error) {
	if f.failURLs {
		return transform.UploadResult{}, errors.New("upstream rejected url")
	}
	f.record(opts.PublicID)
	return transform.UploadResult{PublicID: opts.PublicID, SecureURL: "https://cdn.example.com/" + opts.PublicID}, nil
}

func (f *fakeTransformer) BuildURL(publicID string, opts transform.URLOptions) string {
	return "https://cdn.example.com/" + publicID + "." + opts.Format
}

func (f *fakeTransformer) record(id string) {
	f.mu.Lock()
	f.uploaded = append(f.uploaded, id)
	f.mu.Unlock()
}

type fakeStore struct {
	mu  sync.Mutex
	ids []string
}

func (s *fakeStore) Put(id, originalName string) {
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()
}

func file(name string) entities.FileUpload {
	return entities.FileUpload{Name: name, Data: []byte("img")}
}

func TestConvertEmptyBatch(t *testing.T) {
	uc := New(&fakeTransformer{}, &fakeStore{}, "webp-converter")

	_, err := uc.Convert(context.Background(), nil, nil, "png")
	if !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestConvertSingleFile(t *testing.T) {
	tr := &fakeTransformer{}
	st := &fakeStore{}
	uc := New(tr, st, "webp-converter")

	res, err := uc.Convert(context.Background(), []entities.FileUpload{file("a.jpg")}, nil, "webp")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Converted != 1 {
		t.Errorf("Converted = %d, want 1", res.Converted)
	}
	if !strings.HasPrefix(res.DownloadURL, "/api/download/single/") {
		t.Errorf("DownloadURL = %q, want single-file form", res.DownloadURL)
	}
	if !strings.HasSuffix(res.DownloadURL, "/webp") {
		t.Errorf("DownloadURL = %q, want trailing format", res.DownloadURL)
	}
	if len(st.ids) != 1 {
		t.Errorf("recorded %d ids, want 1", len(st.ids))
	}
}

func TestConvertMultipleItems(t *testing.T) {
	uc := New(&fakeTransformer{}, &fakeStore{}, "webp-converter")

	files := []entities.FileUpload{file("a.jpg"), file("b.jpg")}
	urls := []string{"https://example.com/c.png"}

	res, err := uc.Convert(context.Background(), files, urls, "png")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Converted != 3 {
		t.Errorf("Converted = %d, want 3", res.Converted)
	}
	if !strings.HasPrefix(res.DownloadURL, "/api/download/zip/") {
		t.Errorf("DownloadURL = %q, want multi-file form", res.DownloadURL)
	}
	// Comma-joined ids between the prefix and the format.
	trimmed := strings.TrimPrefix(res.DownloadURL, "/api/download/zip/")
	idPart := strings.TrimSuffix(trimmed, "/png")
	if got := len(strings.Split(idPart, ",")); got != 3 {
		t.Errorf("download URL carries %d ids, want 3", got)
	}
}

func TestConvertPartialFailure(t *testing.T) {
	// URL items fail, file items succeed; the batch must still settle fully
	// and report exactly the failures.
	uc := New(&fakeTransformer{failURLs: true}, &fakeStore{}, "webp-converter")

	files := []entities.FileUpload{file("a.jpg")}
	urls := []string{"https://example.com/b.png", "https://example.com/c.png"}

	_, err := uc.Convert(context.Background(), files, urls, "png")
	if err == nil {
		t.Fatal("expected batch failure")
	}

	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != apperr.External {
		t.Fatalf("got %v, want external error", err)
	}
	if len(e.Details) != 2 {
		t.Errorf("details = %d entries, want 2 (one per failed item)", len(e.Details))
	}
	if !strings.Contains(e.Message, "2 file(s)") {
		t.Errorf("message %q does not carry the failure count", e.Message)
	}
}

func TestConvertConcurrentBatchesUniqueIDs(t *testing.T) {
	st := &fakeStore{}
	uc := New(&fakeTransformer{}, st, "webp-converter")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Convert(context.Background(), []entities.FileUpload{file("x.jpg"), file("y.jpg")}, nil, "png")
			if err != nil {
				t.Errorf("Convert: %v", err)
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]struct{}, len(st.ids))
	for _, id := range st.ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s across concurrent batches", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != 20 {
		t.Errorf("got %d ids, want 20", len(seen))
	}
}

func TestDownloadTargetIdempotent(t *testing.T) {
	uc := New(&fakeTransformer{}, &fakeStore{}, "webp-converter")

	a := uc.DownloadTarget("some-id", "webp")
	b := uc.DownloadTarget("some-id", "webp")
	if a != b {
		t.Errorf("DownloadTarget not idempotent: %q vs %q", a, b)
	}
	if !strings.Contains(a, "conversions/some-id") {
		t.Errorf("target %q missing namespaced id", a)
	}
}
