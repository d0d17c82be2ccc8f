// Package extract turns filing documents (PDF, spreadsheets, word
// processor files, HTML) into plain text for chunking.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/kessan/internal/errs"
)

type extractFunc func(content []byte) (string, error)

// formats maps a lowercase extension (with dot) to its extractor.
var formats = map[string]extractFunc{
	".pdf":  extractPDF,
	".xlsx": extractExcel,
	".xlsm": extractExcel,
	".docx": extractDOCX,
	".pptx": extractPPTX,
	".ods":  extractODS,
	".odt":  catExtractor(".odt"),
	".rtf":  catExtractor(".rtf"),
	".htm":  extractHTML,
	".html": extractHTML,
	".txt":  extractPlain,
	".md":   extractPlain,
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether files with extension ext (".pdf") can be extracted.
func Supported(ext string) bool {
	_, ok := formats[strings.ToLower(ext)]
	return ok
}

// Extensions lists the supported extensions in sorted order.
func Extensions() []string {
	out := make([]string, 0, len(formats))
	for ext := range formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return "", errs.Validation("unsupported file type %q", ext).WithDetail("path", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension,
// which includes the leading dot. Results are trimmed; an unsupported
// extension is a Validation error.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := formats[strings.ToLower(ext)]
	if !ok {
		return "", errs.Validation("unsupported file type %q", ext)
	}
	text, err := fn(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
