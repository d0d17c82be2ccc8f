package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kessan/internal/answer"
	"github.com/hyperjump/kessan/internal/chunker"
	"github.com/hyperjump/kessan/internal/config"
	"github.com/hyperjump/kessan/internal/embedding"
	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/extract"
	"github.com/hyperjump/kessan/internal/indexer"
	"github.com/hyperjump/kessan/internal/keyword"
	"github.com/hyperjump/kessan/internal/llm"
	"github.com/hyperjump/kessan/internal/models"
	"github.com/hyperjump/kessan/internal/search"
	"github.com/hyperjump/kessan/internal/storage"
	"github.com/hyperjump/kessan/internal/vector"
)

const testDims = 128

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeGenerator struct {
	reply  string
	prompt string
}

func (g *fakeGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, nil
}

type testServer struct {
	srv     *Server
	handler http.Handler
	gen     *fakeGenerator
	cfg     *config.Config
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	cfg := config.Default()
	overlap := 5
	cfg.Chunking = config.ChunkingConfig{Strategy: "sliding", Size: 20, Overlap: &overlap, MaxUnits: 40}
	cfg.Storage.DatabasePath = ":memory:"
	cfg.Storage.BleveIndexPath = ""
	cfg.Storage.VectorIndexPath = ""

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	emb := embedding.NewHashEmbedder(testDims)
	vecIdx, err := vector.NewMemoryIndex(testDims)
	if err != nil {
		t.Fatal(err)
	}
	kwIdx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIdx.Close() })

	chunkOpts, err := cfg.ChunkerOptions()
	if err != nil {
		t.Fatal(err)
	}
	ch, err := chunker.New(chunkOpts)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(store, emb, vecIdx, kwIdx, ch, extract.NewExtractor(), cfg.IndexerConfig())
	engine := search.NewEngine(store, emb, vecIdx, kwIdx, cfg.SearchConfig())

	gen := &fakeGenerator{reply: "Data center revenue was $22.6 billion."}
	reg, err := llm.NewRegistry(nil, "gpt", llm.WithGeneratorFactory(func(llm.Name, llm.Config) llm.Generator { return gen }))
	if err != nil {
		t.Fatal(err)
	}
	composer := answer.NewComposer(engine, reg, store)

	opts = append([]Option{WithVectorIndex(vecIdx)}, opts...)
	srv := NewServer(engine, idx, composer, store, cfg, opts...)
	return &testServer{srv: srv, handler: srv.Routes(), gen: gen, cfg: cfg}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func (ts *testServer) ingest(t *testing.T, id, content string) {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/documents", models.DocumentInput{ID: id, Content: content})
	if w.Code != http.StatusCreated {
		t.Fatalf("ingest %s: %d %s", id, w.Code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		w := ts.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
			t.Errorf("%s: %d %s", path, w.Code, w.Body.String())
		}
	}
}

func TestDocumentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest(t, "NVIDIA_Q1_2024", "Data center revenue was 22,563 million in the first quarter, up 427 percent from a year ago.")

	w := ts.do(t, http.MethodGet, "/api/v1/documents/NVIDIA_Q1_2024", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	var doc models.Document
	decodeBody(t, w, &doc)
	if doc.Period != "Q1-2024" || doc.ChunkCount == 0 {
		t.Errorf("doc = %+v", doc)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/documents?limit=10", nil)
	var list struct {
		Documents []models.Document `json:"documents"`
	}
	decodeBody(t, w, &list)
	if len(list.Documents) != 1 {
		t.Errorf("list = %+v", list)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/documents/NVIDIA_Q1_2024/chunks", nil)
	var art models.ChunkArtifact
	decodeBody(t, w, &art)
	if len(art.Chunks) != doc.ChunkCount || art.Chunks[0].ID != "NVIDIA_Q1_2024_chunk_0" {
		t.Errorf("artifact = %+v", art)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/status", nil)
	var status map[string]interface{}
	decodeBody(t, w, &status)
	if status["documents"].(float64) != 1 || status["vector_index_size"].(float64) != float64(doc.ChunkCount) {
		t.Errorf("status = %v", status)
	}

	if w = ts.do(t, http.MethodDelete, "/api/v1/documents/NVIDIA_Q1_2024", nil); w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	w = ts.do(t, http.MethodGet, "/api/v1/documents/NVIDIA_Q1_2024", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: %d", w.Code)
	}
	var e errorResponse
	decodeBody(t, w, &e)
	if e.Kind != errs.KindNotFound {
		t.Errorf("kind = %q", e.Kind)
	}
	if w = ts.do(t, http.MethodDelete, "/api/v1/documents/NVIDIA_Q1_2024", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: %d", w.Code)
	}
}

func TestIngestText_validation(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body interface{}
	}{
		{"missing content", models.DocumentInput{ID: "x"}},
		{"blank content", models.DocumentInput{ID: "x", Content: "   "}},
		{"malformed json", "{not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/documents", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, body %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)
	upload := func(name, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
		_ = mw.Close()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, r)
		return w
	}

	w := upload("NVIDIA_Q2_2024.txt", "Gaming revenue was 2,880 million.")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	var doc models.Document
	decodeBody(t, w, &doc)
	if doc.ID != "NVIDIA_Q2_2024" || doc.Period != "Q2-2024" || doc.Source != "NVIDIA_Q2_2024.txt" {
		t.Errorf("doc = %+v", doc)
	}

	if w := upload("tool.exe", "MZ"); w.Code != http.StatusBadRequest {
		t.Errorf("unsupported upload: %d", w.Code)
	}
}

func TestImportChunks(t *testing.T) {
	ts := newTestServer(t)
	body := `{"chunks":[{"id":"a","content":"Revenue was 26,044 million."},{"id":"b","content":"Net income was 14,881 million."}]}`
	w := ts.do(t, http.MethodPost, "/api/v1/documents/NVDA_FY2024/chunks?title=NVDA%20FY2024", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("import: %d %s", w.Code, w.Body.String())
	}
	var doc models.Document
	decodeBody(t, w, &doc)
	if doc.ChunkCount != 2 || doc.Period != "FY2024" {
		t.Errorf("doc = %+v", doc)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/documents/NVDA_FY2024/chunks", `{"items":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("artifact without chunks: %d", w.Code)
	}
}

func TestChunkPreview(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/chunk", chunkRequest{Text: "a b c d e", Strategy: "fixed", Size: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", w.Code, w.Body.String())
	}
	var resp chunkResponse
	decodeBody(t, w, &resp)
	if resp.Strategy != "fixed" || resp.Count != 3 || resp.Chunks[2].Content != "e" || resp.Chunks[0].ID != "preview_chunk_0" {
		t.Errorf("resp = %+v", resp)
	}
	if n, _ := ts.srv.storage.CountChunks(context.Background()); n != 0 {
		t.Error("preview must not store chunks")
	}

	w = ts.do(t, http.MethodPost, "/api/v1/chunk", chunkRequest{Text: "a b", Strategy: "paragraph"})
	var e errorResponse
	decodeBody(t, w, &e)
	if w.Code != http.StatusBadRequest || e.Kind != errs.KindUnknownStrategy {
		t.Errorf("unknown strategy: %d %+v", w.Code, e)
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest(t, "NVIDIA_Q1_2024", "Data center revenue was 22,563 million in the first quarter.")
	ts.ingest(t, "NVIDIA_Q2_2024", "Gaming revenue was 2,880 million in the second quarter.")

	w := ts.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "gaming revenue", Limit: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("search: %d %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	decodeBody(t, w, &resp)
	if resp.Total != 1 || resp.Mode != models.ModeHybrid || resp.Results[0].Chunk.DocumentID != "NVIDIA_Q2_2024" {
		t.Errorf("resp = %+v", resp)
	}

	if w := ts.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty query: %d", w.Code)
	}
}

func TestAsk(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest(t, "NVIDIA_Q1_2024", "Data center revenue was 22,563 million in the first quarter.")

	w := ts.do(t, http.MethodPost, "/api/v1/ask", models.AskRequest{Question: "What was data center revenue?"})
	if w.Code != http.StatusOK {
		t.Fatalf("ask: %d %s", w.Code, w.Body.String())
	}
	var ans models.Answer
	decodeBody(t, w, &ans)
	if ans.Text != ts.gen.reply || ans.Insufficient || len(ans.Sources) == 0 || ans.Provider != "gpt" {
		t.Errorf("answer = %+v", ans)
	}
	if !strings.Contains(ts.gen.prompt, "22,563") {
		t.Errorf("prompt missing context: %q", ts.gen.prompt)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/ask", models.AskRequest{Question: "What was data center revenue?", Period: "Q4-2030"})
	decodeBody(t, w, &ans)
	if !ans.Insufficient || ans.Text != answer.InsufficientAnswer {
		t.Errorf("answer without context = %+v", ans)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/ask", models.AskRequest{Question: "q", Provider: "mistral"})
	var e errorResponse
	decodeBody(t, w, &e)
	if w.Code != http.StatusBadRequest || e.Kind != errs.KindUnknownProvider {
		t.Errorf("unknown provider: %d %+v", w.Code, e)
	}

	if w := ts.do(t, http.MethodPost, "/api/v1/ask", models.AskRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing question: %d", w.Code)
	}
}

func TestSummarize(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest(t, "NVIDIA_Q1_2024", "Data center revenue was 22,563 million in the first quarter.")
	ts.gen.reply = "Strong quarter."

	w := ts.do(t, http.MethodPost, "/api/v1/summarize", models.SummarizeRequest{DocumentID: "NVIDIA_Q1_2024"})
	if w.Code != http.StatusOK {
		t.Fatalf("summarize: %d %s", w.Code, w.Body.String())
	}
	var sum models.Summary
	decodeBody(t, w, &sum)
	if sum.Text != "Strong quarter." || !strings.Contains(ts.gen.prompt, "22,563") {
		t.Errorf("summary = %+v, prompt %q", sum, ts.gen.prompt)
	}

	if w := ts.do(t, http.MethodPost, "/api/v1/summarize", models.SummarizeRequest{DocumentID: "missing"}); w.Code != http.StatusNotFound {
		t.Errorf("missing document: %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/api/v1/summarize", models.SummarizeRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty request: %d", w.Code)
	}
}

func TestWatchDirectories(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	mock := &mockWatchService{dirs: []string{"/tmp/inbox"}}
	ts := newTestServer(t, WithWatch(mock, configPath))

	w := ts.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	var out struct {
		Directories []string `json:"directories"`
	}
	decodeBody(t, w, &out)
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/inbox" {
		t.Errorf("directories: got %v", out.Directories)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]interface{}{"path": dir, "sync": false})
	if w.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", w.Code, w.Body.String())
	}
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Watch.Directories) != 2 {
		t.Errorf("persisted directories = %v", saved.Watch.Directories)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": filepath.Join(dir, "missing")})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing directory: %d", w.Code)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	if w.Code != http.StatusOK || len(mock.dirs) != 1 {
		t.Errorf("remove: %d dirs %v", w.Code, mock.dirs)
	}
}

func TestWatchDirectories_notEnabled(t *testing.T) {
	ts := newTestServer(t)
	if w := ts.do(t, http.MethodGet, "/api/v1/watch/directories", nil); w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.Validation("bad"), http.StatusBadRequest},
		{errs.UnknownProvider("x"), http.StatusBadRequest},
		{errs.InvalidConfiguration("no key"), http.StatusBadRequest},
		{errs.NotFound("gone"), http.StatusNotFound},
		{errs.Upstream("gpt", context.DeadlineExceeded), http.StatusBadGateway},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
