package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

func TestDoDefaultsToGET(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	resp, err := NewClient(0).Do(context.Background(), Request{URL: upstream.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != http.StatusOK || resp.Body != "ok" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestDoForwardsMethodHeadersBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("X-Token") != "abc" {
			t.Errorf("header missing")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"k":1}` {
			t.Errorf("body = %q", body)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer upstream.Close()

	resp, err := NewClient(0).Do(context.Background(), Request{
		URL:     upstream.URL,
		Method:  "post",
		Headers: map[string]string{"X-Token": "abc"},
		Body:    `{"k":1}`,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != http.StatusAccepted {
		t.Errorf("status = %d", resp.Status)
	}
}

func TestDoDecodesGzip(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("compressed payload"))
		_ = gz.Close()
	}))
	defer upstream.Close()

	resp, err := NewClient(0).Do(context.Background(), Request{URL: upstream.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Body != "compressed payload" {
		t.Errorf("body = %q", resp.Body)
	}
	if _, ok := resp.Headers["Content-Encoding"]; ok {
		t.Error("Content-Encoding leaked into decoded response")
	}
}

func TestDoDecodesBrotli(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte("brotli payload"))
		_ = bw.Close()
	}))
	defer upstream.Close()

	resp, err := NewClient(0).Do(context.Background(), Request{URL: upstream.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Body != "brotli payload" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestDoPassesThroughClientErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer upstream.Close()

	resp, err := NewClient(0).Do(context.Background(), Request{URL: upstream.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	// Non-retryable client errors surface as regular responses.
	if resp.Status != http.StatusNotFound {
		t.Errorf("status = %d", resp.Status)
	}
}

func TestDoRejectsInvalidURLs(t *testing.T) {
	client := NewClient(0)
	for _, target := range []string{"", "not a url", "ftp://example.com/file", "//missing-scheme"} {
		if _, err := client.Do(context.Background(), Request{URL: target}); err == nil {
			t.Errorf("Do(%q) succeeded", target)
		}
	}
}
