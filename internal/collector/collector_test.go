package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func writeTempPNG(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "pic.png")
	if err := os.WriteFile(p, pngMagic, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestAddValidImage(t *testing.T) {
	c := New("http://localhost:3000")

	if err := c.Add(writeTempPNG(t)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("worklist has %d items, want 1", len(items))
	}
	if items[0].Kind != SourceDevice || items[0].DisplayName != "pic.png" {
		t.Errorf("item = %+v", items[0])
	}
}

func TestAddRejectsNonImage(t *testing.T) {
	c := New("http://localhost:3000")

	p := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(p, []byte("just some text"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := c.Add(p); err == nil {
		t.Fatal("expected rejection for non-image file")
	}
	if len(c.Items()) != 0 {
		t.Error("rejected file landed on the worklist")
	}
}

func TestAddRejectsOversized(t *testing.T) {
	c := New("http://localhost:3000")

	p := filepath.Join(t.TempDir(), "huge.png")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	// Sparse file: size over the limit without writing 2 GiB.
	if err := f.Truncate(maxFileSize + 1); err != nil {
		f.Close()
		t.Skipf("cannot create sparse file: %v", err)
	}
	f.Close()

	if err := c.Add(p); err == nil {
		t.Fatal("expected rejection for oversized file")
	}
	if len(c.Items()) != 0 {
		t.Error("oversized file landed on the worklist")
	}
}

func TestAddURLValidation(t *testing.T) {
	cases := []struct {
		raw string
		ok  bool
	}{
		{"https://example.com/cat.jpg", true},
		{"https://example.com/cat.JPEG", true},
		{"https://example.com/a/b/c.webp", true},
		{"https://example.com/cat.svg", true},
		{"https://example.com/cat", false},
		{"https://example.com/cat.pdf", false},
		{"not a url at all", false},
		{"/relative/cat.png", false},
	}

	for _, tc := range cases {
		c := New("http://localhost:3000")
		err := c.AddURL(tc.raw)
		if tc.ok && err != nil {
			t.Errorf("AddURL(%q) = %v, want accepted", tc.raw, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("AddURL(%q) accepted, want rejected", tc.raw)
		}
	}
}

func TestRemovePreservesOrder(t *testing.T) {
	c := New("http://localhost:3000")

	for _, u := range []string{"https://e.com/a.png", "https://e.com/b.png", "https://e.com/c.png"} {
		if err := c.AddURL(u); err != nil {
			t.Fatal(err)
		}
	}

	items := c.Items()
	c.Remove(items[1].ID)

	got := c.Items()
	if len(got) != 2 {
		t.Fatalf("worklist has %d items, want 2", len(got))
	}
	if got[0].DisplayName != "a.png" || got[1].DisplayName != "c.png" {
		t.Errorf("order after removal: %s, %s", got[0].DisplayName, got[1].DisplayName)
	}

	// Absent id is a no-op.
	c.Remove("no-such-id")
	if len(c.Items()) != 2 {
		t.Error("removing an absent id changed the worklist")
	}
}

func TestSubmitEmptyWorklist(t *testing.T) {
	c := New("http://localhost:3000")

	if err := c.Submit(context.Background(), "png"); err != ErrEmptyWorklist {
		t.Fatalf("got %v, want ErrEmptyWorklist", err)
	}
}

func TestSubmitSuccessAndDownloadClears(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/convert":
			if err := r.ParseMultipartForm(8 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			var urls []string
			if raw := r.FormValue("urls"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &urls); err != nil {
					t.Errorf("urls field not JSON: %v", err)
				}
			}
			if len(r.MultipartForm.File["files"]) != 1 || len(urls) != 1 {
				t.Errorf("got %d files and %d urls", len(r.MultipartForm.File["files"]), len(urls))
			}
			if f := r.FormValue("format"); f != "webp" {
				t.Errorf("format = %q", f)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success":     true,
				"downloadUrl": "/api/download/single/id-1/webp",
			})
		case "/api/download/single/id-1/webp":
			_, _ = w.Write([]byte("converted-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Add(writeTempPNG(t)); err != nil {
		t.Fatal(err)
	}
	if err := c.AddURL("https://example.com/dog.jpg"); err != nil {
		t.Fatal(err)
	}

	if err := c.Submit(context.Background(), "webp"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.DownloadURL() == "" {
		t.Fatal("no download URL after successful submit")
	}

	dst := filepath.Join(t.TempDir(), "out.webp")
	if err := c.Download(context.Background(), dst); err != nil {
		t.Fatalf("Download: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "converted-bytes" {
		t.Errorf("downloaded %q", data)
	}

	// Completed download clears the whole worklist.
	if len(c.Items()) != 0 || c.DownloadURL() != "" {
		t.Error("worklist not cleared after download")
	}
}

func TestSubmitFailurePreservesWorklist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Failed to convert 1 file(s)",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.AddURL("https://example.com/dog.jpg"); err != nil {
		t.Fatal(err)
	}

	if err := c.Submit(context.Background(), "png"); err == nil {
		t.Fatal("expected submit failure")
	}
	if len(c.Items()) != 1 {
		t.Error("worklist not preserved after failed submit")
	}
	if c.DownloadURL() != "" {
		t.Error("download URL set after failed submit")
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":     true,
			"downloadUrl": "/api/download/single/id-1/png",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.AddURL("https://example.com/dog.jpg"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	firstDone := make(chan error, 1)
	go func() {
		defer wg.Done()
		firstDone <- c.Submit(context.Background(), "png")
	}()

	// Give the first submission time to take the guard.
	time.Sleep(50 * time.Millisecond)

	if err := c.Submit(context.Background(), "png"); err != ErrConversionInFlight {
		t.Errorf("concurrent submit got %v, want ErrConversionInFlight", err)
	}

	close(release)
	wg.Wait()
	if err := <-firstDone; err != nil {
		t.Errorf("first submit failed: %v", err)
	}
}
