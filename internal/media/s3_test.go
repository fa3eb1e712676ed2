package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestNewS3Store_Validation(t *testing.T) {
	valid := S3Config{BucketName: "b", AccessKeyID: "k", SecretAccessKey: "s", Endpoint: "http://localhost:9000"}

	tests := []struct {
		name   string
		mutate func(*S3Config)
	}{
		{"missing bucket", func(c *S3Config) { c.BucketName = "" }},
		{"missing access key", func(c *S3Config) { c.AccessKeyID = "" }},
		{"missing secret", func(c *S3Config) { c.SecretAccessKey = "" }},
		{"missing endpoint", func(c *S3Config) { c.Endpoint = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewS3Store(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := NewS3Store(valid); err != nil {
		t.Errorf("valid config: %v", err)
	}
}

func TestS3Store_URL(t *testing.T) {
	s, _ := NewS3Store(S3Config{BucketName: "media", AccessKeyID: "k", SecretAccessKey: "s", Endpoint: "http://minio:9000/"})
	if got := s.URL("memories/2026/01/a.jpg"); got != "http://minio:9000/media/memories/2026/01/a.jpg" {
		t.Errorf("URL = %q", got)
	}

	cdn, _ := NewS3Store(S3Config{BucketName: "media", AccessKeyID: "k", SecretAccessKey: "s",
		Endpoint: "http://minio:9000", PublicBaseURL: "https://cdn.example.edu/"})
	if got := cdn.URL("memories/2026/01/a.jpg"); got != "https://cdn.example.edu/memories/2026/01/a.jpg" {
		t.Errorf("URL = %q", got)
	}
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

func TestS3Store_PutDelete(t *testing.T) {
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{r.Method, r.URL.Path, string(body)})
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewS3Store(S3Config{BucketName: "media", AccessKeyID: "k", SecretAccessKey: "s", Endpoint: srv.URL, Region: "us-east-1"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Put(ctx, "memories/2026/01/a.mp3", "audio/mpeg", []byte("audio")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Delete(ctx, "memories/2026/01/a.mp3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reqs) != 2 {
		t.Fatalf("got %d requests", len(reqs))
	}
	if reqs[0].method != http.MethodPut || reqs[0].path != "/media/memories/2026/01/a.mp3" {
		t.Errorf("put request = %+v", reqs[0])
	}
	if reqs[1].method != http.MethodDelete || reqs[1].path != "/media/memories/2026/01/a.mp3" {
		t.Errorf("delete request = %+v", reqs[1])
	}
}

func TestS3Store_PutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
	}))
	defer srv.Close()

	s, _ := NewS3Store(S3Config{BucketName: "media", AccessKeyID: "k", SecretAccessKey: "s", Endpoint: srv.URL, Region: "us-east-1"})
	if err := s.Put(context.Background(), "k.jpg", "image/jpeg", []byte("x")); err == nil {
		t.Error("expected error from 403 response")
	}
}
