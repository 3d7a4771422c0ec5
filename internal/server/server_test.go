package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"sopqa/internal/adapter/chunker"
	"sopqa/internal/adapter/embedding"
	"sopqa/internal/adapter/llm"
	"sopqa/internal/adapter/loader"
	"sopqa/internal/adapter/store"
	"sopqa/internal/metrics"
	"sopqa/internal/usecase"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	docsDir := t.TempDir()
	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	pipeline := usecase.NewPipeline(
		chunker.NewTextChunker(200, 40),
		embedding.NewMockEmbedder(64),
		st,
		llm.NewMockClient(),
		usecase.Options{TopK: 3, Metrics: m},
	)
	ld := loader.NewFSLoader([]string{"**/*.txt", "**/*.md"}, nil)

	return New(pipeline, ld, docsDir, "127.0.0.1:0", m, registry), docsDir
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, handler http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return rec
}

func TestStatusLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	var st statusResponse
	if rec := getJSON(t, handler, "/api/status", &st); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if st.State != "EMPTY" {
		t.Errorf("initial state = %q, want EMPTY", st.State)
	}

	rec := postJSON(t, handler, "/api/ingest", map[string]any{
		"documents": []map[string]string{
			{"id": "a.txt", "text": "The fire extinguisher hangs next to the exit door."},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest = %d: %s", rec.Code, rec.Body.String())
	}
	var ing ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ing); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	if ing.DocumentsProcessed != 1 || ing.PassagesCreated < 1 {
		t.Errorf("ingest response = %+v", ing)
	}

	getJSON(t, handler, "/api/status", &st)
	if st.State != "READY" || st.Documents != 1 {
		t.Errorf("post-ingest status = %+v", st)
	}
}

func TestAskEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/api/ask", askRequest{Question: "Where is the extinguisher?"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ask before ingest = %d, want 503", rec.Code)
	}
	var apiErr errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if apiErr.Kind != "index_not_ready" {
		t.Errorf("error kind = %q, want index_not_ready", apiErr.Kind)
	}

	postJSON(t, handler, "/api/ingest", map[string]any{
		"documents": []map[string]string{
			{"id": "a.txt", "text": "The fire extinguisher hangs next to the exit door."},
		},
	})

	rec = postJSON(t, handler, "/api/ask", askRequest{Question: "Where is the fire extinguisher?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("ask = %d: %s", rec.Code, rec.Body.String())
	}
	var ans askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatalf("decode ask response: %v", err)
	}
	if ans.Answer == "" {
		t.Error("empty answer")
	}
	if len(ans.Sources) == 0 || ans.Sources[0] != "a.txt" {
		t.Errorf("sources = %v, want [a.txt]", ans.Sources)
	}
}

func TestAskRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", rec.Code)
	}

	postJSON(t, handler, "/api/ingest", map[string]any{
		"documents": []map[string]string{{"id": "a.txt", "text": "some text here"}},
	})
	if rec := postJSON(t, handler, "/api/ask", askRequest{Question: "   "}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank question = %d, want 400", rec.Code)
	}
}

func TestIngestFromDocumentsDir(t *testing.T) {
	srv, docsDir := newTestServer(t)
	handler := srv.Handler()

	files := map[string]string{
		"one.txt":  "First aid kits are restocked every Monday.",
		"two.md":   "# Visitors\nAll visitors must sign in at reception.",
		"skip.bin": "binary noise",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(docsDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest = %d: %s", rec.Code, rec.Body.String())
	}
	var ing ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ing); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	if ing.DocumentsProcessed != 2 {
		t.Errorf("DocumentsProcessed = %d, want 2 (.bin excluded)", ing.DocumentsProcessed)
	}

	var srcs map[string][]string
	getJSON(t, handler, "/api/sources", &srcs)
	if len(srcs["sources"]) != 2 {
		t.Errorf("sources = %v, want 2 entries", srcs["sources"])
	}
}

func TestIngestEmptyDirRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty dir ingest = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	postJSON(t, handler, "/api/ingest", map[string]any{
		"documents": []map[string]string{{"id": "a.txt", "text": "some text here"}},
	})

	rec := getJSON(t, handler, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"sopqa_ingest_runs_total",
		"sopqa_pipeline_state 2",
		"sopqa_http_requests_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
