package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kessan/internal/models"
)

const (
	fieldContent = "content"
	fieldTitle   = "title"
)

// BleveIndex implements KeywordIndex using Bleve. Chunk metadata is indexed
// verbatim so filters are exact term matches.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	// Dynamic fields (metadata) are matched exactly.
	im.DefaultAnalyzer = keywordanalyzer.Name

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer lowercases without stemming so ticker-like tokens
	// ("H100", "GAAP") match as written.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldContent, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldTitle, textFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path
// creates an in-memory index. Remove the directory after mapping changes.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks indexes chunks in one batch under their chunk ids.
func (b *BleveIndex) IndexChunks(ctx context.Context, title string, chunks []models.Chunk) error {
	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := map[string]interface{}{
			fieldContent: c.Content,
			fieldTitle:   title,
		}
		for k, v := range c.Metadata {
			if k == fieldContent || k == fieldTitle {
				continue
			}
			doc[k] = v
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search runs a content match (plus an optional boosted title match),
// restricted by opts.Filter, and returns up to limit hits by score.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	var o SearchOptions
	if opts != nil {
		o = *opts
	}
	q := b.textQuery(query, fieldContent, o)
	if o.TitleBoost > 1 {
		tq := b.textQuery(query, fieldTitle, o)
		if bq, ok := tq.(blevequery.BoostableQuery); ok {
			bq.SetBoost(o.TitleBoost)
		}
		q = bleve.NewDisjunctionQuery(q, tq)
	}
	if o.Filter.Active() {
		tq := bleve.NewTermQuery(*o.Filter.Value)
		tq.SetField(o.Filter.Key)
		q = bleve.NewConjunctionQuery(q, tq)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

func (b *BleveIndex) textQuery(query, field string, o SearchOptions) blevequery.Query {
	if !o.FuzzyEnabled {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		return mq
	}
	fuzziness := o.Fuzziness
	if fuzziness <= 0 {
		fuzziness = 1
	}
	terms := tokenizeQuery(query)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery splits query into lowercase terms without surrounding punctuation.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, `.,;:!?"'()[]`)
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

// DeleteChunks removes chunks by id in one batch.
func (b *BleveIndex) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve delete failed: %w", err)
	}
	return nil
}

// TermFrequencies returns every analyzed content term with the number of
// chunks that contain it.
func (b *BleveIndex) TermFrequencies() (map[string]int, error) {
	dict, err := b.index.FieldDict(fieldContent)
	if err != nil {
		return nil, fmt.Errorf("failed to read term dictionary: %w", err)
	}
	defer dict.Close()
	freqs := make(map[string]int)
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read term dictionary: %w", err)
		}
		if entry == nil {
			break
		}
		freqs[entry.Term] = int(entry.Count)
	}
	return freqs, nil
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
