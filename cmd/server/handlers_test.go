package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsage/propsage"
)

type memUploadStore struct {
	uploads []*propsage.Upload
}

func (s *memUploadStore) Save(_ context.Context, upload *propsage.Upload) error {
	s.uploads = append(s.uploads, upload)
	return nil
}

func (s *memUploadStore) Get(_ context.Context, id uuid.UUID) (*propsage.Upload, error) {
	for _, u := range s.uploads {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, propsage.NewError(propsage.ErrorTypeNotFound, propsage.ErrCodeUploadNotFound, "upload not found")
}

func (s *memUploadStore) LatestBySession(_ context.Context, sessionID string) (*propsage.Upload, error) {
	for i := len(s.uploads) - 1; i >= 0; i-- {
		if s.uploads[i].SessionID == sessionID {
			return s.uploads[i], nil
		}
	}
	return nil, propsage.NewError(propsage.ErrorTypeNotFound, propsage.ErrCodeUploadNotFound, "upload not found")
}

func (s *memUploadStore) ListBySession(_ context.Context, sessionID string) ([]*propsage.Upload, error) {
	var out []*propsage.Upload
	for _, u := range s.uploads {
		if u.SessionID == sessionID {
			out = append(out, u)
		}
	}
	return out, nil
}

type memResultStore struct {
	results []*propsage.FilteredResult
}

func (s *memResultStore) Save(_ context.Context, result *propsage.FilteredResult) error {
	s.results = append(s.results, result)
	return nil
}

func (s *memResultStore) Get(_ context.Context, id uuid.UUID) (*propsage.FilteredResult, error) {
	for _, r := range s.results {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, propsage.NewError(propsage.ErrorTypeNotFound, propsage.ErrCodeResultNotFound, "filtered result not found")
}

type memConversationStore struct {
	convs []*propsage.Conversation
}

func (s *memConversationStore) Save(_ context.Context, conv *propsage.Conversation) error {
	s.convs = append(s.convs, conv)
	return nil
}

func (s *memConversationStore) ListBySession(_ context.Context, sessionID string, _ int) ([]*propsage.Conversation, error) {
	var out []*propsage.Conversation
	for _, c := range s.convs {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memQueryLogStore struct {
	entries []*propsage.QueryLog
}

func (s *memQueryLogStore) Save(_ context.Context, entry *propsage.QueryLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, _ string) (string, error) {
	return f.reply, f.err
}

type testEnv struct {
	server    *Server
	uploads   *memUploadStore
	results   *memResultStore
	convs     *memConversationStore
	queryLogs *memQueryLogStore
}

func newTestEnv(completer propsage.Completer) *testEnv {
	env := &testEnv{
		uploads:   &memUploadStore{},
		results:   &memResultStore{},
		convs:     &memConversationStore{},
		queryLogs: &memQueryLogStore{},
	}
	env.server = NewServer(propsage.DefaultConfig(),
		env.uploads, env.results, env.convs, env.queryLogs,
		propsage.NewAnalyst(completer), nil)
	env.server.RegisterRoutes()
	return env
}

func (env *testEnv) seedUpload(sessionID string) *propsage.Upload {
	upload := &propsage.Upload{
		ID:        uuid.New(),
		SessionID: sessionID,
		FileName:  "listings.csv",
		Columns:   []string{"location", "price", "demand"},
		Rows: []propsage.Record{
			{"location": "Austin", "price": 100.0, "demand": 5.0},
			{"location": "Denver", "price": 200.0, "demand": 7.0},
			{"location": "Knoxville", "price": 150.0, "demand": 6.0},
		},
		RowCount:   3,
		UploadedAt: time.Now().UTC(),
	}
	env.uploads.uploads = append(env.uploads.uploads, upload)
	return upload
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandleUploadCreateAndList(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "ok"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("session_id", "sess-1"))
	fw, err := mw.CreateFormFile("file", "listings.csv")
	require.NoError(t, err)
	fw.Write([]byte("location,price\nAustin,100\nDenver,200\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "listings.csv", body["file_name"])
	assert.Equal(t, 2.0, body["row_count"])
	require.Len(t, env.uploads.uploads, 1)

	listRec := env.do(t, http.MethodGet, "/api/v1/uploads?session_id=sess-1", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	listBody := decodeBody(t, listRec)
	assert.Len(t, listBody["uploads"], 1)
}

func TestHandleUploadCreateMissingSession(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "ok"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "x.csv")
	fw.Write([]byte("a\n1\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadPreview(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "ok"})
	upload := env.seedUpload("sess-1")

	rec := env.do(t, http.MethodGet, "/api/v1/uploads/"+upload.ID.String()+"/preview", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, 3.0, body["row_count"])
	roles := body["roles"].(map[string]any)
	assert.Equal(t, []any{"location"}, roles["location"])
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 3.0, summary["total_records"])
	assert.Len(t, body["sample"], 3)
}

func TestHandleUploadPreviewNotFound(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "ok"})

	rec := env.do(t, http.MethodGet, "/api/v1/uploads/"+uuid.NewString()+"/preview", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFilterApplyAndExport(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "ok"})
	upload := env.seedUpload("sess-1")

	rec := env.do(t, http.MethodPost, "/api/v1/filters", map[string]any{
		"data_upload_id":  upload.ID.String(),
		"filter_criteria": map[string]any{"location": "Austin"},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, 1.0, body["row_count"])
	require.Len(t, env.results.results, 1)

	resultID := env.results.results[0].ID
	exportRec := env.do(t, http.MethodGet, "/api/v1/filters/"+resultID.String()+"/export", nil)
	require.Equal(t, http.StatusOK, exportRec.Code)
	assert.Equal(t, "text/csv", exportRec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(exportRec.Body.String(), "location,price,demand\n"))
	assert.Contains(t, exportRec.Body.String(), "Austin")
	assert.NotContains(t, exportRec.Body.String(), "Denver")
}

func TestHandleFilterApplyValidation(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "ok"})

	rec := env.do(t, http.MethodPost, "/api/v1/filters", map[string]any{
		"data_upload_id": "not-a-uuid",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChartGenerate(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "ok"})
	upload := env.seedUpload("sess-1")

	rec := env.do(t, http.MethodPost, "/api/v1/charts", map[string]any{
		"data_upload_id": upload.ID.String(),
		"chart_type":     "bar",
		"x_column":       "location",
		"y_column":       "price",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "bar", body["type"])
	assert.Len(t, body["labels"], 3)
}

func TestHandleChartGenerateUnknownColumn(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "ok"})
	upload := env.seedUpload("sess-1")

	rec := env.do(t, http.MethodPost, "/api/v1/charts", map[string]any{
		"data_upload_id": upload.ID.String(),
		"chart_type":     "bar",
		"x_column":       "missing",
		"y_column":       "price",
	})

	// Chart failures keep the {error} wire shape.
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "missing")
}

func TestHandleChat(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "Austin is strong."})
	env.seedUpload("sess-1")

	rec := env.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"message":    "analyze the austin market",
		"session_id": "sess-1",
		"location":   "Austin",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Austin is strong.", body["response"])
	// The extractor narrowed to Austin and attached chart plus table.
	require.NotNil(t, body["chart"])
	assert.Len(t, body["table"], 1)

	require.Len(t, env.convs.convs, 1)
	assert.Equal(t, "analyze the austin market", env.convs.convs[0].UserMessage)
	require.Len(t, env.queryLogs.entries, 1)
	assert.Equal(t, propsage.QueryTypeAnalysis, env.queryLogs.entries[0].QueryType)
}

func TestHandleChatWithoutUpload(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "hello"})

	rec := env.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"message":    "hi there friend",
		"session_id": "sess-empty",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "hello", body["response"])
	_, hasChart := body["chart"]
	assert.False(t, hasChart)
}

func TestHandleChatCompleterFailure(t *testing.T) {
	env := newTestEnv(&fakeCompleter{err: errors.New("backend down")})

	rec := env.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"message":    "hi",
		"session_id": "sess-1",
	})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleAnalyze(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "Austin: solid fundamentals."})

	rec := env.do(t, http.MethodPost, "/api/v1/analyze", map[string]any{
		"message":    "is it a good time to buy?",
		"session_id": "sess-1",
		"location":   "Austin",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Austin", body["location"])
	assert.Equal(t, "Austin: solid fundamentals.", body["analysis"])

	require.Len(t, env.convs.convs, 1)
	assert.Equal(t, "is it a good time to buy?", env.convs.convs[0].UserMessage)
	assert.Equal(t, "Austin", env.convs.convs[0].Location)
	require.Len(t, env.queryLogs.entries, 1)
	assert.Equal(t, propsage.QueryTypeAnalysis, env.queryLogs.entries[0].QueryType)
}

func TestHandleAnalyzeMissingLocation(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "x"})

	rec := env.do(t, http.MethodPost, "/api/v1/analyze", map[string]any{
		"message":    "analysis please",
		"session_id": "sess-1",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.convs.convs)
}

func TestHandleAnalyzeCompleterFailure(t *testing.T) {
	env := newTestEnv(&fakeCompleter{err: errors.New("backend down")})

	rec := env.do(t, http.MethodPost, "/api/v1/analyze", map[string]any{
		"message":    "is it a good time to buy?",
		"session_id": "sess-1",
		"location":   "Austin",
	})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, env.convs.convs)
}

func TestHandleCompare(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "Austin beats Denver."})

	rec := env.do(t, http.MethodPost, "/api/v1/compare", map[string]any{
		"locations": []string{"Austin", "Denver"},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Austin beats Denver.", body["comparison"])
}

func TestHandleCompareTooFewLocations(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "x"})

	rec := env.do(t, http.MethodPost, "/api/v1/compare", map[string]any{
		"locations": []string{"Austin"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleConversations(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "ok"})
	env.convs.convs = append(env.convs.convs, &propsage.Conversation{
		ID: uuid.New(), SessionID: "sess-1", UserMessage: "hi", BotResponse: "hello",
		CreatedAt: time.Now().UTC(),
	})

	rec := env.do(t, http.MethodGet, "/api/v1/conversations?session_id=sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["conversations"], 1)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(&fakeCompleter{reply: "ok"})

	rec := env.do(t, http.MethodDelete, "/api/v1/chat", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
