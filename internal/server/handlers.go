package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/artifact"
	"github.com/hyperjump/kessan/internal/chunker"
	"github.com/hyperjump/kessan/internal/config"
	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/indexer"
	"github.com/hyperjump/kessan/internal/models"
	"github.com/hyperjump/kessan/internal/storage"
)

const defaultPageSize = 50

// decode reads a JSON body into v and validates its struct tags.
func (s *Server) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.KindValidation, err, "invalid request body")
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errs.Validation("%s failed %s", fe.Field(), fe.Tag()).WithDetail("field", fe.Field())
		}
		return errs.Wrap(errs.KindValidation, err, "invalid request")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	resp := map[string]interface{}{
		"documents": docCount,
		"chunks":    chunkCount,
	}
	if s.vectorIndex != nil {
		resp["vector_index_size"] = s.vectorIndex.Size()
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"chunk_strategy":       cfg.Chunking.Strategy,
		"chunk_size":           cfg.Chunking.Size,
		"chunk_overlap":        cfg.Chunking.OverlapOrDefault(),
		"chunk_max_units":      cfg.Chunking.MaxUnits,
		"embedding_provider":   cfg.Embedding.Provider,
		"embedding_dimensions": cfg.Embedding.Dimensions,
		"semantic_weight":      cfg.Search.SemanticWeight,
		"keyword_weight":       cfg.Search.KeywordWeight,
		"default_provider":     cfg.LLM.DefaultProvider,
		"vector_index_type":    cfg.Storage.VectorIndexType,
		"database_path":        cfg.Storage.DatabasePath,
	}
	if diskBytes, err := storage.DiskUsageBytes(
		cfg.Storage.DatabasePath,
		cfg.Storage.BleveIndexPath,
		cfg.Storage.VectorIndexPath,
	); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 500 {
		limit = defaultPageSize
	}
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "offset": offset, "limit": limit})
}

func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := s.decode(r, &input); err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Debug("ingest text request", zap.String("id", input.ID), zap.String("title", input.Title))
	doc, err := s.indexer.IngestText(r.Context(), &input)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondErr(w, errs.Wrap(errs.KindValidation, err, "invalid multipart upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondErr(w, errs.Wrap(errs.KindValidation, err, "file field is required"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondErr(w, errs.Wrap(errs.KindValidation, err, "failed to read upload"))
		return
	}
	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
	doc, err := s.indexer.IngestBytes(r.Context(), header.Filename, content)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.storage.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.indexer.DeleteDocument(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleExportChunks(w http.ResponseWriter, r *http.Request) {
	art, err := s.indexer.ExportArtifact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, art)
}

func (s *Server) handleImportChunks(w http.ResponseWriter, r *http.Request) {
	art, err := artifact.Decode(r.Body)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	q := r.URL.Query()
	doc, err := s.indexer.ImportArtifact(r.Context(), indexer.ArtifactInput{
		DocumentID: chi.URLParam(r, "id"),
		Title:      q.Get("title"),
		Source:     q.Get("source"),
		Period:     q.Get("period"),
	}, art)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

type chunkRequest struct {
	Text         string `json:"text" validate:"required"`
	DocumentID   string `json:"document_id,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
	Size         int    `json:"size,omitempty" validate:"min=0"`
	Overlap      int    `json:"overlap,omitempty" validate:"min=0"`
	MaxUnits     int    `json:"max_units,omitempty" validate:"min=0"`
	SentenceUnit string `json:"sentence_unit,omitempty"`
}

type chunkResponse struct {
	Strategy string                 `json:"strategy"`
	Count    int                    `json:"count"`
	Chunks   []models.ArtifactChunk `json:"chunks"`
}

// handleChunkPreview chunks text with the configured options, overridden
// by any set in the request, without storing anything.
func (s *Server) handleChunkPreview(w http.ResponseWriter, r *http.Request) {
	var req chunkRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	cfg := s.config.WithChunking(config.ChunkingOverrides{
		Strategy:     req.Strategy,
		Size:         req.Size,
		Overlap:      req.Overlap,
		MaxUnits:     req.MaxUnits,
		SentenceUnit: req.SentenceUnit,
	})
	opts, err := cfg.ChunkerOptions()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	c, err := chunker.New(opts, chunker.WithLogger(s.logger))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	docID := req.DocumentID
	if docID == "" {
		docID = "preview"
	}
	chunks, err := c.Chunk(docID, chunker.Normalize(req.Text), nil)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	art := artifact.FromChunks(chunks)
	s.respondJSON(w, http.StatusOK, chunkResponse{Strategy: opts.Strategy.String(), Count: len(art.Chunks), Chunks: art.Chunks})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := s.decode(r, &query); err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Debug("ask request", zap.String("question", req.Question), zap.String("provider", req.Provider))
	ans, err := s.composer.Ask(r.Context(), req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req models.SummarizeRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	sum, err := s.composer.Summarize(r.Context(), req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sum)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchRequest struct {
	Path string `json:"path" validate:"required"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondErr(w, err)
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.respondErr(w, err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body watchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.respondErr(w, err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindInvalidConfiguration, errs.KindUnknownStrategy,
		errs.KindUnknownProvider, errs.KindDegenerateVector:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUpstreamService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Kind    errs.Kind              `json:"kind,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondJSON(w, status, errorResponse{
		Error:   err.Error(),
		Kind:    errs.KindOf(err),
		Details: errs.DetailsOf(err),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}
