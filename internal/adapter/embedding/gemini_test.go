package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"sopqa/internal/domain"
)

func newTestEmbedder(t *testing.T, handler http.Handler) *GeminiEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("TEST_GEMINI_KEY", "test-key")
	e, err := NewGeminiEmbedder("TEST_GEMINI_KEY", "models/embedding-001", srv.URL, 2, 3)
	if err != nil {
		t.Fatalf("NewGeminiEmbedder: %v", err)
	}
	return e
}

func embedReply(w http.ResponseWriter, count, dim int) {
	type values struct {
		Values []float32 `json:"values"`
	}
	resp := struct {
		Embeddings []values `json:"embeddings"`
	}{}
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		vec[i%dim] = 1
		resp.Embeddings = append(resp.Embeddings, values{Values: vec})
	}
	json.NewEncoder(w).Encode(resp)
}

func TestGeminiEmbedderBatches(t *testing.T) {
	var calls int32
	e := newTestEmbedder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		var req geminiEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Requests) > 2 {
			t.Errorf("batch of %d exceeds configured size 2", len(req.Requests))
		}
		embedReply(w, len(req.Requests), 4)
	}))

	vectors, err := e.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 5 {
		t.Fatalf("got %d vectors, want 5", len(vectors))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("API calls = %d, want 3 (batches of 2,2,1)", got)
	}
}

func TestGeminiEmbedderNoTexts(t *testing.T) {
	e := newTestEmbedder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no API call expected for empty input")
	}))

	vectors, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("got %d vectors, want 0", len(vectors))
	}
}

func TestGeminiEmbedderAuthFailureNotRetried(t *testing.T) {
	var calls int32
	e := newTestEmbedder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := e.Embed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrAuthFailure) {
		t.Fatalf("err = %v, want ErrAuthFailure", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("API calls = %d, want 1 (no retry on auth failure)", got)
	}
}

func TestGeminiEmbedderRetriesRateLimit(t *testing.T) {
	var calls int32
	e := newTestEmbedder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		embedReply(w, 1, 4)
	}))

	vectors, err := e.Embed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Embed after retries: %v", err)
	}
	if len(vectors) != 1 {
		t.Errorf("got %d vectors, want 1", len(vectors))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("API calls = %d, want 3", got)
	}
}

func TestGeminiEmbedderCountMismatch(t *testing.T) {
	e := newTestEmbedder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		embedReply(w, 1, 4) // two texts requested
	}))

	_, err := e.Embed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("err = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestGeminiEmbedderMissingKey(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "")
	if _, err := NewGeminiEmbedder("TEST_GEMINI_KEY", "models/embedding-001", "", 0, 3); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
