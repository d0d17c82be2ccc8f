package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/llm"
	"github.com/hyperjump/kessan/internal/models"
)

type fakeRetriever struct {
	results []models.ScoredChunk
	err     error
	got     *models.SearchQuery
}

func (f *fakeRetriever) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	return &models.SearchResponse{Results: f.results, Total: len(f.results)}, nil
}

type fakeGenerator struct {
	calls  int
	system string
	prompt string
	reply  string
	err    error
}

func (g *fakeGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	g.calls++
	g.system, g.prompt = system, prompt
	return g.reply, g.err
}

type fakeChunks map[string][]models.Chunk

func (f fakeChunks) GetChunksByDocumentID(ctx context.Context, docID string) ([]models.Chunk, error) {
	return f[docID], nil
}

func newComposer(t *testing.T, r Retriever, gen *fakeGenerator, chunks ChunkSource, opts ...Option) *Composer {
	t.Helper()
	reg, err := llm.NewRegistry(nil, "gpt", llm.WithGeneratorFactory(func(llm.Name, llm.Config) llm.Generator { return gen }))
	if err != nil {
		t.Fatal(err)
	}
	return NewComposer(r, reg, chunks, opts...)
}

func hit(content string) models.ScoredChunk {
	return models.ScoredChunk{Chunk: models.Chunk{Content: content}}
}

func TestBuildContext(t *testing.T) {
	got := BuildContext([]models.ScoredChunk{hit("Revenue grew."), hit("  "), hit("Costs fell.")})
	if got != "Revenue grew.\n\nCosts fell." {
		t.Errorf("BuildContext = %q", got)
	}
	if BuildContext(nil) != "" {
		t.Error("empty results should give empty context")
	}
}

func TestAsk_ComposesPromptInRetrievalOrder(t *testing.T) {
	r := &fakeRetriever{results: []models.ScoredChunk{hit("B second"), hit("A first")}}
	gen := &fakeGenerator{reply: "Revenue grew 12%."}
	c := newComposer(t, r, gen, nil)

	ans, err := c.Ask(context.Background(), models.AskRequest{Question: "How did revenue change?", Period: "Q1-2024"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "Revenue grew 12%." || ans.Insufficient {
		t.Errorf("answer = %+v", ans)
	}
	if ans.Provider != "gpt" || len(ans.Sources) != 2 {
		t.Errorf("provider/sources = %s/%d", ans.Provider, len(ans.Sources))
	}
	if gen.system != llm.AnswerSystemPrompt {
		t.Errorf("system prompt = %q", gen.system)
	}
	want := "Context:\nB second\n\nA first\n\nQuestion: How did revenue change?\nAnswer based on the above context:"
	if gen.prompt != want {
		t.Errorf("prompt = %q, want %q", gen.prompt, want)
	}
	if r.got == nil || r.got.Filter.Value == nil || *r.got.Filter.Value != "Q1-2024" {
		t.Errorf("period filter not forwarded: %+v", r.got)
	}
}

func TestAsk_EmptyContextSkipsProvider(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	c := newComposer(t, &fakeRetriever{}, gen, nil)

	ans, err := c.Ask(context.Background(), models.AskRequest{Question: "What was EBITDA?"})
	if err != nil {
		t.Fatal(err)
	}
	if !ans.Insufficient || ans.Text != InsufficientAnswer {
		t.Errorf("answer = %+v", ans)
	}
	if gen.calls != 0 {
		t.Errorf("provider called %d times", gen.calls)
	}
}

func TestAsk_Errors(t *testing.T) {
	gen := &fakeGenerator{}
	c := newComposer(t, &fakeRetriever{}, gen, nil)
	_, err := c.Ask(context.Background(), models.AskRequest{Question: "q", Provider: "llama"})
	if !errors.Is(err, errs.ErrUnknownProvider) {
		t.Errorf("expected unknown provider, got %v", err)
	}

	upstream := errs.Upstream("gpt", errors.New("rate limited"))
	c = newComposer(t, &fakeRetriever{results: []models.ScoredChunk{hit("x")}}, &fakeGenerator{err: upstream}, nil)
	_, err = c.Ask(context.Background(), models.AskRequest{Question: "q"})
	if !errors.Is(err, errs.ErrUpstreamService) {
		t.Errorf("expected upstream error, got %v", err)
	}

	c = newComposer(t, &fakeRetriever{err: errs.Validation("query cannot be empty")}, gen, nil)
	_, err = c.Ask(context.Background(), models.AskRequest{})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	chunks := fakeChunks{"nvda": {{Content: "Part one."}, {Content: "Part two."}}}
	gen := &fakeGenerator{reply: "A summary."}
	c := newComposer(t, &fakeRetriever{}, gen, chunks)
	ctx := context.Background()

	sum, err := c.Summarize(ctx, models.SummarizeRequest{DocumentID: "nvda", Provider: "claude"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Text != "A summary." || sum.Provider != "claude" || sum.DocumentID != "nvda" {
		t.Errorf("summary = %+v", sum)
	}
	if gen.system != llm.SummarizeSystemPrompt {
		t.Errorf("system prompt = %q", gen.system)
	}
	if gen.prompt != "Summarize the following report:\n\nPart one.\n\nPart two." {
		t.Errorf("prompt = %q", gen.prompt)
	}

	if _, err := c.Summarize(ctx, models.SummarizeRequest{DocumentID: "missing"}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := c.Summarize(ctx, models.SummarizeRequest{}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSummarize_Truncates(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c := newComposer(t, &fakeRetriever{}, gen, nil, WithMaxSummaryChars(10))
	if _, err := c.Summarize(context.Background(), models.SummarizeRequest{Text: strings.Repeat("x", 50)}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(gen.prompt, strings.Repeat("x", 10)+"...") {
		t.Errorf("text not truncated: %q", gen.prompt)
	}
}
