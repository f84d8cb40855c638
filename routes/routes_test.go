package routes

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

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/store"
	"lab-dashboard/models"
	"lab-dashboard/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeChat struct {
	resp    *models.ChatResponse
	err     error
	noCache bool
	req     models.ChatRequest
}

func (f *fakeChat) Chat(_ context.Context, req models.ChatRequest, noCache bool) (*models.ChatResponse, error) {
	f.req = req
	f.noCache = noCache
	return f.resp, f.err
}

type fakeDocs struct {
	uploaded map[string][]byte
	ingest   *models.UploadResponse
	err      error
	bypass   bool
	resets   int
}

func (f *fakeDocs) Ingest(_ context.Context, filename string, content []byte) (*models.UploadResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.uploaded == nil {
		f.uploaded = map[string][]byte{}
	}
	f.uploaded[filename] = content
	return f.ingest, nil
}

func (f *fakeDocs) ListDocuments(_ context.Context, bypass bool) ([]models.DocumentSummary, error) {
	f.bypass = bypass
	return []models.DocumentSummary{{ID: "a", Title: "心拍変動", Status: models.StatusReady}}, nil
}

func (f *fakeDocs) Document(_ context.Context, id string) (*models.Document, error) {
	if id != "a" {
		return nil, store.ErrNotFound
	}
	return &models.Document{ID: "a", Title: "心拍変動", Content: "本文"}, nil
}

func (f *fakeDocs) ResetCorpus(context.Context) error {
	f.resets++
	return nil
}

type fakeExporter struct{}

func (fakeExporter) Export(_ context.Context, format string) (*services.ExportFile, error) {
	return &services.ExportFile{Name: "documents.json", ContentType: "application/json; charset=utf-8", Data: []byte(`{"format":"` + format + `"}`)}, nil
}

type fakeSummarizer struct {
	err error
}

func (f fakeSummarizer) Process(_ context.Context, req models.SummarizeRequest) (*models.SummarizeResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.SummarizeResponse{Result: "要約", Mode: "summarize", ChunkCount: 1}, nil
}

func newRouter(chat *fakeChat, docs *fakeDocs, summarizer fakeSummarizer) *gin.Engine {
	r := gin.New()
	SetupRoutes(r, Deps{
		Chat:        chat,
		Documents:   docs,
		Exporter:    fakeExporter{},
		Summarizer:  summarizer,
		MaxFileSize: 1024,
		Health: func(context.Context) map[string]string {
			return map[string]string{"redis": "ok", "mongo": "disabled"}
		},
	})
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestChatEndpoint(t *testing.T) {
	chat := &fakeChat{resp: &models.ChatResponse{Response: "回答", Sources: []models.Source{}, SearchMethod: "keyword"}}
	r := newRouter(chat, &fakeDocs{}, fakeSummarizer{})

	req := postJSON("/chat", `{"message":"小野さんの研究は？","searchMode":"semantic"}`)
	req.Header.Set("X-No-Cache", "1")
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.True(t, chat.noCache)
	assert.Equal(t, "semantic", chat.req.SearchMode)

	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "回答", resp.Response)
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	r := newRouter(&fakeChat{}, &fakeDocs{}, fakeSummarizer{})

	w := serve(r, postJSON("/chat", `{"message":""}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatEndpointOracleErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
		want string
	}{
		{ai.ErrMissingCredentials, http.StatusServiceUnavailable, "oracle_not_configured"},
		{&ai.OracleError{Kind: ai.KindAuth, Err: errors.New("bad key")}, http.StatusBadGateway, "oracle_auth_failed"},
		{&ai.OracleError{Kind: ai.KindQuota, Err: errors.New("quota")}, http.StatusTooManyRequests, "oracle_quota_exceeded"},
		{&ai.OracleError{Kind: ai.KindUnavailable, Err: errors.New("open")}, http.StatusServiceUnavailable, "oracle_unavailable"},
		{&ai.OracleError{Kind: ai.KindOther, Err: errors.New("boom")}, http.StatusBadGateway, "oracle_error"},
		{errors.New("unexpected"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		r := newRouter(&fakeChat{err: tc.err}, &fakeDocs{}, fakeSummarizer{})
		w := serve(r, postJSON("/chat", `{"message":"脳波"}`))
		assert.Equal(t, tc.code, w.Code, tc.want)
		assert.Contains(t, w.Body.String(), tc.want)
	}
}

func uploadRequest(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadEndpoint(t *testing.T) {
	docs := &fakeDocs{ingest: &models.UploadResponse{DocumentID: "doc-1", Status: models.StatusReady}}
	r := newRouter(&fakeChat{}, docs, fakeSummarizer{})

	w := serve(r, uploadRequest(t, "file", "田中_卒論.pdf", []byte("%PDF-1.7")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("%PDF-1.7"), docs.uploaded["田中_卒論.pdf"])
	assert.Contains(t, w.Body.String(), `"documentId":"doc-1"`)

	w = serve(r, uploadRequest(t, "pdf", "legacy.pdf", []byte("%PDF-1.4")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadEndpointErrors(t *testing.T) {
	r := newRouter(&fakeChat{}, &fakeDocs{err: services.ErrUnsupportedFile}, fakeSummarizer{})
	w := serve(r, uploadRequest(t, "file", "slides.pptx", []byte("PK")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_file_type")

	r = newRouter(&fakeChat{}, &fakeDocs{}, fakeSummarizer{})
	w = serve(r, uploadRequest(t, "file", "big.txt", bytes.Repeat([]byte("a"), 2048)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/upload", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentEndpoints(t *testing.T) {
	docs := &fakeDocs{}
	r := newRouter(&fakeChat{}, docs, fakeSummarizer{})

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Cache-Control", "no-cache")
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, docs.bypass)
	assert.Contains(t, w.Body.String(), "心拍変動")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/documents/a", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(r, httptest.NewRequest(http.MethodGet, "/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/documents/reset", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, docs.resets)
}

func TestExportEndpoint(t *testing.T) {
	r := newRouter(&fakeChat{}, &fakeDocs{}, fakeSummarizer{})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/documents/export?format=json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "documents.json")
	assert.JSONEq(t, `{"format":"json"}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/documents/export?format=csv", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummarizeEndpoint(t *testing.T) {
	r := newRouter(&fakeChat{}, &fakeDocs{}, fakeSummarizer{})
	w := serve(r, postJSON("/summarize", `{"text":"長い文章"}`))
	assert.Equal(t, http.StatusOK, w.Code)

	r = newRouter(&fakeChat{}, &fakeDocs{}, fakeSummarizer{err: services.ErrEmptyText})
	w = serve(r, postJSON("/summarize", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = newRouter(&fakeChat{}, &fakeDocs{}, fakeSummarizer{err: ai.ErrMissingCredentials})
	w = serve(r, postJSON("/summarize", `{"text":"x"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	r := newRouter(&fakeChat{}, &fakeDocs{}, fakeSummarizer{})
	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
