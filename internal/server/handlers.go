package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/passage/internal/extract"
	"github.com/hyperjump/passage/internal/models"
	"github.com/hyperjump/passage/internal/retrieval"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.sessions.IDs()
	infos := make([]retrieval.Info, 0, len(ids))
	for _, id := range ids {
		session, err := s.sessions.Get(id)
		if err != nil {
			continue // deleted since IDs was taken
		}
		infos = append(infos, session.Info())
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": infos})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Create()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Debug("session created", zap.String("session", session.ID()))
	s.respondJSON(w, http.StatusCreated, session.Info())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, session.Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Debug("session deleted", zap.String("session", id))
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	input, err := s.readDocument(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.ChunkSize == 0 {
		input.ChunkSize = s.config.Retrieval.ChunkSize
	}
	s.logger.Debug("ingest request",
		zap.String("session", session.ID()),
		zap.String("title", input.Title),
		zap.Int("chunk_size", input.ChunkSize),
	)
	corpus, err := session.Ingest(r.Context(), input.Title, input.Content, input.ChunkSize)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, models.IngestResponse{
		Title:      corpus.Title,
		Chunks:     corpus.Size(),
		Dimensions: corpus.Dimensions,
		IndexType:  corpus.Index.Type(),
	})
}

// readDocument accepts either a JSON DocumentInput or a multipart upload in field "file",
// whose text is extracted by file extension.
func (s *Server) readDocument(r *http.Request) (*models.DocumentInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var input models.DocumentInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return nil, errors.New("invalid request body")
		}
		return &input, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("multipart field \"file\" is required")
	}
	defer file.Close()
	ext := filepath.Ext(header.Filename)
	if !extract.Supported(ext) {
		return nil, fmt.Errorf("%w: unsupported file type %q", models.ErrInvalidArgument, ext)
	}
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	text, err := s.extractor.ExtractBytes(content, ext)
	if err != nil {
		return nil, err
	}
	input := &models.DocumentInput{
		Title:   strings.TrimSpace(r.FormValue("title")),
		Content: text,
	}
	if input.Title == "" {
		input.Title = header.Filename
	}
	if v := r.FormValue("chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid chunk_size %q", v)
		}
		input.ChunkSize = n
	}
	return input, nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	var query models.SearchQuery
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request",
		zap.String("session", session.ID()),
		zap.String("question", query.Question),
		zap.Int("top_k", query.TopK),
	)
	response, err := session.Search(r.Context(), &query, s.config.Retrieval.TopK, s.config.Retrieval.MaxTopK)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	}
	if s.gateway != nil {
		st := s.gateway.CacheStats()
		body["cache"] = map[string]interface{}{
			"entries": st.Entries,
			"hits":    st.Hits,
			"misses":  st.Misses,
		}
	}
	s.respondJSON(w, http.StatusOK, body)
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument),
		errors.Is(err, models.ErrEmptyInput),
		errors.Is(err, models.ErrDimensionMismatch),
		errors.Is(err, models.ErrEmptyIndex):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotReady), errors.Is(err, models.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, models.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
