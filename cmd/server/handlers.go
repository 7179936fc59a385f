package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/propsage/propsage"
	"github.com/propsage/propsage/internal"
)

// Archiver stores raw upload bytes out of band. nil disables archival.
type Archiver interface {
	Archive(ctx context.Context, sessionID string, uploadID uuid.UUID, fileName string, data []byte) (string, error)
}

// Server represents the HTTP server wiring the data core to storage and the
// completion backend.
type Server struct {
	cfg       *propsage.Config
	uploads   propsage.UploadStore
	results   propsage.ResultStore
	convs     propsage.ConversationStore
	queryLogs propsage.QueryLogStore
	analyst   *propsage.Analyst
	loader    *internal.SpreadsheetLoader
	validator *internal.RequestValidator
	archiver  Archiver
	mux       *http.ServeMux
}

// NewServer creates a new Server instance
func NewServer(cfg *propsage.Config, uploads propsage.UploadStore, results propsage.ResultStore,
	convs propsage.ConversationStore, queryLogs propsage.QueryLogStore,
	analyst *propsage.Analyst, archiver Archiver) *Server {
	return &Server{
		cfg:       cfg,
		uploads:   uploads,
		results:   results,
		convs:     convs,
		queryLogs: queryLogs,
		analyst:   analyst,
		loader:    internal.NewSpreadsheetLoader(cfg.Upload),
		validator: internal.NewRequestValidator(),
		archiver:  archiver,
		mux:       http.NewServeMux(),
	}
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/api/v1/uploads", s.handleUploads)
	s.mux.HandleFunc("/api/v1/uploads/", s.handleUploadPreview)
	s.mux.HandleFunc("/api/v1/filters", s.handleFilterApply)
	s.mux.HandleFunc("/api/v1/filters/", s.handleFilterExport)
	s.mux.HandleFunc("/api/v1/charts", s.handleChartGenerate)
	s.mux.HandleFunc("/api/v1/chat", s.handleChat)
	s.mux.HandleFunc("/api/v1/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/api/v1/compare", s.handleCompare)
	s.mux.HandleFunc("/api/v1/conversations", s.handleConversations)
}

// Handler exposes the route mux (used by tests).
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server on the given port
func (s *Server) Start(port string) error {
	zap.S().Infow("starting server", "port", port)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      s.mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	return server.ListenAndServe()
}

// handleUploads handles POST /api/v1/uploads (multipart upload) and
// GET /api/v1/uploads?session_id= (list).
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUploadCreate(w, r)
	case http.MethodGet:
		s.handleUploadList(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleUploadCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes)
	if err := r.ParseMultipartForm(s.cfg.Upload.MaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read file: %v", err))
		return
	}

	columns, rows, err := s.loader.Load(header.Filename, bytes.NewReader(data))
	if err != nil {
		writeCoreError(w, err)
		return
	}

	upload := &propsage.Upload{
		ID:         uuid.New(),
		SessionID:  sessionID,
		FileName:   header.Filename,
		Columns:    columns,
		Rows:       rows,
		RowCount:   len(rows),
		UploadedAt: time.Now().UTC(),
	}

	if s.archiver != nil {
		key, err := s.archiver.Archive(r.Context(), sessionID, upload.ID, header.Filename, data)
		if err != nil {
			// Archival is best effort; the parsed upload still goes through.
			zap.S().Warnw("raw upload archive failed", "upload", upload.ID, "error", err)
		} else {
			upload.ArchiveKey = key
		}
	}

	if err := s.uploads.Save(r.Context(), upload); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("save upload: %v", err))
		return
	}

	writeSuccess(w, http.StatusCreated, upload)
}

func (s *Server) handleUploadList(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	uploads, err := s.uploads.ListBySession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("list uploads: %v", err))
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"uploads": uploads})
}

// handleUploadPreview handles GET /api/v1/uploads/{id}/preview: column
// roles, summary statistics and a head sample of the stored upload.
func (s *Server) handleUploadPreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr, action, err := parseResourcePath(r.URL.Path, "uploads")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if action != "preview" {
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	id, err := parseUUID(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload id: %v", err))
		return
	}

	upload, err := s.uploads.Get(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	dataset := upload.Dataset()
	writeSuccess(w, http.StatusOK, map[string]any{
		"id":        upload.ID,
		"file_name": upload.FileName,
		"columns":   upload.Columns,
		"row_count": upload.RowCount,
		"roles":     propsage.Classify(dataset),
		"summary":   propsage.Summarize(dataset),
		"sample":    dataset.Head(5),
	})
}

// handleFilterApply handles POST /api/v1/filters: apply criteria to a stored
// upload and persist the narrowed result.
func (s *Server) handleFilterApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if err := s.validator.ValidateFilterRequest(body); err != nil {
		writeCoreError(w, err)
		return
	}
	var req propsage.FilterRequest
	if err := unmarshalStrict(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	upload, err := s.uploads.Get(r.Context(), req.UploadID)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	filtered, trace := propsage.Filter(upload.Dataset(), req.Criteria)

	result := &propsage.FilteredResult{
		ID:        uuid.New(),
		UploadID:  upload.ID,
		QueryID:   uuid.NewString(),
		Criteria:  req.Criteria,
		Columns:   filtered.Columns(),
		Rows:      filtered.Rows(),
		RowCount:  filtered.Len(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.results.Save(r.Context(), result); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("save result: %v", err))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"result_id": result.ID,
		"query_id":  result.QueryID,
		"row_count": result.RowCount,
		"trace":     trace,
		"data":      result.Rows,
	})
}

// handleFilterExport handles GET /api/v1/filters/{id}/export: CSV download
// of a persisted filtered result.
func (s *Server) handleFilterExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr, action, err := parseResourcePath(r.URL.Path, "filters")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if action != "export" {
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	id, err := parseUUID(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid result id: %v", err))
		return
	}

	result, err := s.results.Get(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	csvBytes, err := propsage.ExportCSV(result.Columns, result.Rows)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "filtered_"+result.QueryID+".csv"))
	w.WriteHeader(http.StatusOK)
	w.Write(csvBytes)
}

// handleChartGenerate handles POST /api/v1/charts. A typed chart failure
// keeps the wire contract of an {error} body.
func (s *Server) handleChartGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if err := s.validator.ValidateChartRequest(body); err != nil {
		writeCoreError(w, err)
		return
	}
	var req propsage.ChartGenerateRequest
	if err := unmarshalStrict(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	upload, err := s.uploads.Get(r.Context(), req.UploadID)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	payload, err := propsage.BuildChart(upload.Dataset(), req.ChartRequest)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, propsage.ChartErrorPayload(err))
		return
	}
	writeSuccess(w, http.StatusOK, payload)
}

// handleChat handles POST /api/v1/chat: extract data context from the
// session's latest upload, answer through the completion backend, persist
// the turn and the query analytics record.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if err := s.validator.ValidateChatRequest(body); err != nil {
		writeCoreError(w, err)
		return
	}
	var req propsage.ChatRequest
	if err := unmarshalStrict(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	start := time.Now()

	// Chat degrades gracefully without an upload: no chart or table.
	var chart *propsage.ChartSeries
	var table []propsage.Record
	upload, err := s.uploads.LatestBySession(r.Context(), req.SessionID)
	if err == nil {
		chart, table = propsage.Extract(upload.Dataset(), req.Message)
	} else if !propsage.IsErrorType(err, propsage.ErrorTypeNotFound) {
		zap.S().Warnw("latest upload lookup failed", "session", req.SessionID, "error", err)
	}

	chatContext := req.Context
	if req.Location != "" {
		if chatContext != "" {
			chatContext += "\n"
		}
		chatContext += "Location of interest: " + req.Location
	}

	answer, err := s.analyst.Chat(r.Context(), req.Message, chatContext)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	now := time.Now().UTC()
	conv := &propsage.Conversation{
		ID:          uuid.New(),
		SessionID:   req.SessionID,
		UserMessage: req.Message,
		BotResponse: answer,
		Location:    req.Location,
		Chart:       chart,
		CreatedAt:   now,
	}
	if err := s.convs.Save(r.Context(), conv); err != nil {
		zap.S().Errorw("save conversation failed", "session", req.SessionID, "error", err)
	}
	entry := &propsage.QueryLog{
		ID:           uuid.New(),
		QueryText:    req.Message,
		QueryType:    propsage.QueryTypeOf(req.Message),
		Location:     req.Location,
		ResponseTime: time.Since(start).Seconds(),
		CreatedAt:    now,
	}
	if err := s.queryLogs.Save(r.Context(), entry); err != nil {
		zap.S().Errorw("save query log failed", "error", err)
	}

	writeSuccess(w, http.StatusOK, propsage.ChatResponse{
		Response:  answer,
		Location:  req.Location,
		Chart:     chart,
		Table:     table,
		Timestamp: now,
	})
}

// handleAnalyze handles POST /api/v1/analyze: a location-focused market
// analysis steered by the user's question, persisted like a chat turn.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if err := s.validator.ValidateAnalyzeRequest(body); err != nil {
		writeCoreError(w, err)
		return
	}
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
		Location  string `json:"location"`
	}
	if err := unmarshalStrict(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	start := time.Now()
	analysis, err := s.analyst.AnalyzeLocation(r.Context(), req.Location, req.Message)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	now := time.Now().UTC()
	conv := &propsage.Conversation{
		ID:          uuid.New(),
		SessionID:   req.SessionID,
		UserMessage: req.Message,
		BotResponse: analysis,
		Location:    req.Location,
		CreatedAt:   now,
	}
	if err := s.convs.Save(r.Context(), conv); err != nil {
		zap.S().Errorw("save conversation failed", "session", req.SessionID, "error", err)
	}
	entry := &propsage.QueryLog{
		ID:           uuid.New(),
		QueryText:    req.Message,
		QueryType:    propsage.QueryTypeAnalysis,
		Location:     req.Location,
		ResponseTime: time.Since(start).Seconds(),
		CreatedAt:    now,
	}
	if err := s.queryLogs.Save(r.Context(), entry); err != nil {
		zap.S().Errorw("save query log failed", "error", err)
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"location":  req.Location,
		"analysis":  analysis,
		"timestamp": now,
	})
}

// handleCompare handles POST /api/v1/compare.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if err := s.validator.ValidateCompareRequest(body); err != nil {
		writeCoreError(w, err)
		return
	}
	var req struct {
		Locations []string `json:"locations"`
	}
	if err := unmarshalStrict(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	comparison, err := s.analyst.CompareLocations(r.Context(), req.Locations)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"locations":  req.Locations,
		"comparison": comparison,
	})
}

// handleConversations handles GET /api/v1/conversations?session_id=&limit=.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	convs, err := s.convs.ListBySession(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("list conversations: %v", err))
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"conversations": convs})
}

// unmarshalStrict decodes JSON rejecting trailing garbage.
func unmarshalStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}
