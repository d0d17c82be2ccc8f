// Package cli formats command output for the kessan binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kessan/internal/models"
	"github.com/hyperjump/kessan/internal/search"
	"github.com/hyperjump/kessan/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	separator     = "─────────────────────────────────────────────────────────"
	snippetLength = 240
)

// ParseOutputFormat accepts "text" or "json"; anything else is an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text or json)", s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (mode: %s)\n", response.Total, response.QueryTime, response.Mode)
	if response.Corrected != "" {
		fmt.Fprintf(w, "Showing results for %q\n", response.Corrected)
	}
	if response.Skipped > 0 {
		fmt.Fprintf(w, "%d candidates skipped (missing chunks)\n", response.Skipped)
	}
	fmt.Fprintln(w)
	for _, result := range response.Results {
		writeResult(w, result, response.Query)
	}
	return nil
}

func writeResult(w io.Writer, result models.ScoredChunk, query string) {
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "Rank: %d | Score: %.4f (Semantic: %.4f, Keyword: %.4f)\n",
		result.Rank, result.Score, result.SemanticScore, result.KeywordScore)
	fmt.Fprintf(w, "Chunk: %s\n", result.Chunk.ID)
	if title := result.Chunk.Metadata[models.MetaTitle]; title != "" {
		fmt.Fprintf(w, "Title: %s\n", title)
	}
	if period := result.Chunk.Metadata[models.MetaPeriod]; period != "" {
		fmt.Fprintf(w, "Period: %s\n", period)
	}
	fmt.Fprintf(w, "\n%s\n\n", search.Highlight(result.Chunk.Content, query, snippetLength))
}

// WriteAnswer writes a composed answer and its sources.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n\n", answer.Text)
	if answer.Insufficient {
		return nil
	}
	fmt.Fprintf(w, "Provider: %s | %dms\n", answer.Provider, answer.Elapsed)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		for _, src := range answer.Sources {
			fmt.Fprintf(w, "  [%d] %s (%.3f) %s\n", src.Rank, src.Chunk.ID, src.Score, TruncateWords(src.Chunk.Content, 12))
		}
	}
	return nil
}

// WriteSummary writes a document summary.
func WriteSummary(w io.Writer, summary *models.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, summary)
	}
	if summary.DocumentID != "" {
		fmt.Fprintf(w, "Summary of %s (%s)\n\n", summary.DocumentID, summary.Provider)
	}
	fmt.Fprintln(w, summary.Text)
	return nil
}

// WriteDocuments writes a document listing.
func WriteDocuments(w io.Writer, docs []*models.Document, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []*models.Document{}
		}
		return WriteJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents indexed")
		return nil
	}
	for _, doc := range docs {
		period := doc.Period
		if period == "" {
			period = "-"
		}
		fmt.Fprintf(w, "%-32s %-10s %4d chunks  %s\n", utils.Truncate(doc.ID, 32), period, doc.ChunkCount, doc.Title)
	}
	return nil
}

// WriteChunks writes a chunk artifact, one block per chunk in text mode.
func WriteChunks(w io.Writer, artifact *models.ChunkArtifact, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, artifact)
	}
	for _, c := range artifact.Chunks {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "%s (%d words)\n%s\n", c.ID, len(strings.Fields(c.Content)), c.Content)
	}
	fmt.Fprintf(w, "\n%d chunks\n", len(artifact.Chunks))
	return nil
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
