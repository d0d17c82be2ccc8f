package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/extract"
	"github.com/hyperjump/kessan/internal/fileid"
	"github.com/hyperjump/kessan/internal/models"
)

// Document metadata recorded for file ingests.
const (
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
	metaKeyChecksum    = "checksum"
)

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	Path     string           `json:"path"`
	Document *models.Document `json:"document,omitempty"`
	Skipped  bool             `json:"skipped,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// DirectoryReport summarizes a directory ingest.
type DirectoryReport struct {
	Indexed int          `json:"indexed"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
	Files   []FileResult `json:"files"`
}

// IngestFile extracts and ingests the file at path under the id derived
// from its name. A file whose path, mtime and size (or content checksum)
// match the stored document is left alone and reported as skipped.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*models.Document, bool, error) {
	abs, err := absPath(path)
	if err != nil {
		return nil, false, err
	}
	ext := strings.ToLower(filepath.Ext(abs))
	if !extract.Supported(ext) {
		return nil, false, errs.Validation("unsupported file type %q", ext)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, errs.Validation("not a regular file: %s", abs)
	}

	docID := fileid.FileDocID(abs)
	stored, _ := idx.storage.GetDocument(ctx, docID)
	if unchanged(stored, abs, info, "") {
		idx.logger.Debug("skipping unchanged file", zap.String("path", abs))
		return stored, true, nil
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, false, fmt.Errorf("read file: %w", err)
	}
	checksum := fileid.Checksum(content)
	if unchanged(stored, abs, nil, checksum) {
		idx.logger.Debug("skipping file with unchanged content", zap.String("path", abs))
		return stored, true, nil
	}

	doc, err := idx.ingestContent(ctx, docID, filepath.Base(abs), content, map[string]string{
		metaKeySourcePath:  abs,
		metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
		metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		metaKeyChecksum:    checksum,
	})
	if err != nil {
		return nil, false, err
	}
	idx.logger.Debug("file indexed", zap.String("path", abs), zap.String("doc_id", docID))
	return doc, false, nil
}

// IngestBytes extracts and ingests an uploaded file named name. The
// document id and period derive from name as for IngestFile.
func (idx *Indexer) IngestBytes(ctx context.Context, name string, content []byte) (*models.Document, error) {
	name = filepath.Base(name)
	if !extract.Supported(filepath.Ext(name)) {
		return nil, errs.Validation("unsupported file type %q", filepath.Ext(name))
	}
	return idx.ingestContent(ctx, fileid.FileDocID(name), name, content, map[string]string{
		metaKeyChecksum: fileid.Checksum(content),
	})
}

func (idx *Indexer) ingestContent(ctx context.Context, docID, name string, content []byte, meta map[string]string) (*models.Document, error) {
	text, err := idx.extractBytes(content, strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	return idx.IngestText(ctx, &models.DocumentInput{
		ID:       docID,
		Title:    strings.TrimSuffix(name, filepath.Ext(name)),
		Source:   name,
		Content:  text,
		Metadata: meta,
	})
}

// unchanged reports whether stored was ingested from abs with the same
// mtime and size (when info is set) or the same checksum.
func unchanged(stored *models.Document, abs string, info os.FileInfo, checksum string) bool {
	if stored == nil || stored.Metadata[metaKeySourcePath] != abs {
		return false
	}
	if info != nil {
		return stored.Metadata[metaKeySourceMtime] == strconv.FormatInt(info.ModTime().UnixNano(), 10) &&
			stored.Metadata[metaKeySourceSize] == strconv.FormatInt(info.Size(), 10)
	}
	return checksum != "" && stored.Metadata[metaKeyChecksum] == checksum
}

func (idx *Indexer) extractBytes(content []byte, ext string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.ExtractBytes(content, ext)
	}
	if ext != ".txt" && ext != ".md" {
		return "", errs.Validation("no extractor configured for %q", ext)
	}
	return string(content), nil
}

// ListFiles returns the supported files under root that match the include
// globs and none of the exclude globs, sorted.
func (idx *Indexer) ListFiles(root string) ([]string, error) {
	abs, err := absPath(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, errs.Validation("not a directory: %s", abs)
	}

	fsys := os.DirFS(abs)
	include := idx.config.Include
	if len(include) == 0 {
		include = []string{"**/*"}
	}
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidConfiguration, err, "bad include pattern %q", pattern)
		}
		for _, rel := range matches {
			if seen[rel] || !extract.Supported(filepath.Ext(rel)) {
				continue
			}
			excluded, err := idx.excluded(rel)
			if err != nil {
				return nil, err
			}
			if excluded {
				continue
			}
			seen[rel] = true
			files = append(files, filepath.Join(abs, filepath.FromSlash(rel)))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (idx *Indexer) excluded(rel string) (bool, error) {
	for _, pattern := range idx.config.Exclude {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, errs.Wrap(errs.KindInvalidConfiguration, err, "bad exclude pattern %q", pattern)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Matches reports whether path, relative to root, would be picked up by
// ListFiles.
func (idx *Indexer) Matches(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") || !extract.Supported(filepath.Ext(rel)) {
		return false
	}
	rel = filepath.ToSlash(rel)
	if ex, err := idx.excluded(rel); err != nil || ex {
		return false
	}
	if len(idx.config.Include) == 0 {
		return true
	}
	for _, pattern := range idx.config.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// IngestDirectory ingests every file ListFiles returns. A failing file is
// recorded in the report and does not stop the run.
func (idx *Indexer) IngestDirectory(ctx context.Context, root string) (*DirectoryReport, error) {
	files, err := idx.ListFiles(root)
	if err != nil {
		return nil, err
	}
	report := &DirectoryReport{Files: make([]FileResult, 0, len(files))}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := FileResult{Path: path}
		doc, skipped, err := idx.IngestFile(ctx, path)
		switch {
		case err != nil:
			res.Error = err.Error()
			report.Failed++
			idx.logger.Warn("failed to ingest file", zap.String("path", path), zap.Error(err))
		case skipped:
			res.Skipped = true
			report.Skipped++
		default:
			res.Document = doc
			report.Indexed++
		}
		report.Files = append(report.Files, res)
		if idx.progress != nil {
			idx.progress(path)
		}
	}
	idx.logger.Info("directory ingested",
		zap.String("root", root),
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// DeletePath removes the document ingested from path. A path that was never
// ingested is not an error, and neither is a document with the same id that
// was ingested from another path.
func (idx *Indexer) DeletePath(ctx context.Context, path string) error {
	abs, err := absPath(path)
	if err != nil {
		return err
	}
	docID := fileid.FileDocID(abs)
	stored, err := idx.storage.GetDocument(ctx, docID)
	if errs.IsKind(err, errs.KindNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if stored.Metadata[metaKeySourcePath] != abs {
		idx.logger.Debug("document ingested from another path, not deleted",
			zap.String("doc_id", docID),
			zap.String("path", abs),
			zap.String("source_path", stored.Metadata[metaKeySourcePath]))
		return nil
	}
	err = idx.DeleteDocument(ctx, docID)
	if errs.IsKind(err, errs.KindNotFound) {
		return nil
	}
	return err
}
