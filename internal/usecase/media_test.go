package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFetchDownloadsAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("pngbytes"))
	}))
	defer srv.Close()

	f := NewMediaFetcher(5*time.Second, zerolog.Nop())
	m, err := f.Fetch(context.Background(), srv.URL+"/photos/pic.png?size=large")
	if err != nil {
		t.Fatal(err)
	}
	if string(m.Bytes) != "pngbytes" {
		t.Fatalf("bytes = %q", m.Bytes)
	}
	if m.ContentType != "image/png" {
		t.Fatalf("content type = %q", m.ContentType)
	}
	if m.Name != "pic.png" {
		t.Fatalf("name = %q", m.Name)
	}
	if !m.Binary() {
		t.Fatal("downloaded media must be binary")
	}
}

func TestFetchRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewMediaFetcher(5*time.Second, zerolog.Nop())
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("404 fetch succeeded")
	}
}

func TestFetchCapsSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		big := make([]byte, maxMediaSize+1)
		w.Write(big)
	}))
	defer srv.Close()

	f := NewMediaFetcher(30*time.Second, zerolog.Nop())
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("oversized attachment accepted")
	}
}
