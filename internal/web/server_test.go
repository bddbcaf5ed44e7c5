package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/contractcheck/internal/analysis"
	"github.com/mfenderov/contractcheck/internal/extract"
)

type fakeAnalyzer struct {
	result *analysis.Result
	err    error

	calls   int
	path    string
	content string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, path string) (*analysis.Result, error) {
	f.calls++
	f.path = path
	data, err := os.ReadFile(path)
	if err == nil {
		f.content = string(data)
	}
	return f.result, f.err
}

func setupServer(t *testing.T, analyzer *fakeAnalyzer, maxUpload int64) (*Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	workDir := t.TempDir()
	s, err := NewServer(analyzer, Config{WorkDir: workDir, MaxUploadBytes: maxUpload})
	require.NoError(t, err)
	return s, workDir
}

func uploadRequest(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func successResult() *analysis.Result {
	return &analysis.Result{
		ID:     "id-1",
		Status: analysis.StatusSuccess,
		Text:   "- **Major Risks**: unlimited late fee",
		Answer: "- **Major Risks**: unlimited late fee",
	}
}

func failureResult() *analysis.Result {
	return &analysis.Result{
		ID:     "id-2",
		Status: analysis.StatusFailure,
		Kind:   extract.KindNoText,
		Text:   "Error: No text found in TXT.",
	}
}

func TestNewServer_RequiresAnalyzer(t *testing.T) {
	_, err := NewServer(nil, Config{})
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	s, _ := setupServer(t, &fakeAnalyzer{}, 200<<20)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `accept=".pdf,.docx,.txt,.png,.jpg"`)
	assert.Contains(t, body, "Smart Contract Compliance Checker")
	assert.Contains(t, body, "Limit 200MB per file")
	assert.NotContains(t, body, `id="report"`)
}

func TestAnalyzeForm_Success(t *testing.T) {
	analyzer := &fakeAnalyzer{result: successResult()}
	s, workDir := setupServer(t, analyzer, 0)

	rec := serve(s, uploadRequest(t, "/analyze", "lease.txt", "The tenant pays rent."))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, analyzer.calls)
	assert.Equal(t, filepath.Join(workDir, "temp_file.txt"), analyzer.path)
	assert.Equal(t, "The tenant pays rent.", analyzer.content)
	assert.NoFileExists(t, analyzer.path)

	body := rec.Body.String()
	assert.Contains(t, body, `id="report"`)
	assert.Contains(t, body, "<strong>Major Risks</strong>")
	assert.Contains(t, body, "lease.txt")
}

func TestAnalyzeForm_FailureStyledAsFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{result: failureResult()}
	s, _ := setupServer(t, analyzer, 0)

	rec := serve(s, uploadRequest(t, "/analyze", "empty.txt", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<div class="notice failure" id="failure">Error: No text found in TXT.</div>`)
	assert.NotContains(t, body, `id="report"`)
	assert.NoFileExists(t, analyzer.path)
}

func TestAnalyzeForm_AnalyzerError(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("API error (status 401)")}
	s, _ := setupServer(t, analyzer, 0)

	rec := serve(s, uploadRequest(t, "/analyze", "scan.png", "not really a png"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "An error occurred: API error (status 401)")
	assert.True(t, strings.HasSuffix(analyzer.path, "temp_file.png"))
	assert.NoFileExists(t, analyzer.path, "temp file must be removed on error")
}

func TestAnalyzeForm_MissingFile(t *testing.T) {
	analyzer := &fakeAnalyzer{result: successResult()}
	s, _ := setupServer(t, analyzer, 0)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := serve(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "An error occurred: file is required")
	assert.Zero(t, analyzer.calls)
}

func TestAnalyzeForm_TooLarge(t *testing.T) {
	analyzer := &fakeAnalyzer{result: successResult()}
	s, _ := setupServer(t, analyzer, 64)

	rec := serve(s, uploadRequest(t, "/analyze", "big.txt", strings.Repeat("x", 1024)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, analyzer.calls)
}

func TestUpload_TooLargeWithoutContentLength(t *testing.T) {
	tests := []struct {
		target string
	}{
		{"/analyze"},
		{"/api/analyze"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			analyzer := &fakeAnalyzer{result: successResult()}
			s, workDir := setupServer(t, analyzer, 64)

			req := uploadRequest(t, tt.target, "big.txt", strings.Repeat("x", 1024))
			req.ContentLength = -1 // chunked
			rec := serve(s, req)

			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
			assert.Zero(t, analyzer.calls)
			assertNoTempFiles(t, workDir)
			if tt.target == "/api/analyze" {
				env := decodeEnvelope(t, rec)
				require.NotNil(t, env.Error)
				assert.Equal(t, "FILE_TOO_LARGE", env.Error.Code)
			}
		})
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	leftovers, err := filepath.Glob(filepath.Join(dir, "temp_file.*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

type envelope struct {
	Success bool             `json:"success"`
	Data    *analysis.Result `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestAnalyzeAPI(t *testing.T) {
	tests := []struct {
		name        string
		analyzer    *fakeAnalyzer
		wantStatus  int
		wantSuccess bool
		wantCode    string
	}{
		{"success", &fakeAnalyzer{result: successResult()}, http.StatusOK, true, ""},
		{"extraction failure", &fakeAnalyzer{result: failureResult()}, http.StatusUnprocessableEntity, false, "NO_TEXT"},
		{"analyzer error", &fakeAnalyzer{err: errors.New("boom")}, http.StatusInternalServerError, false, "ANALYSIS_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := setupServer(t, tt.analyzer, 0)

			rec := serve(s, uploadRequest(t, "/api/analyze", "contract.docx", "data"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.Equal(t, tt.wantSuccess, env.Success)
			if tt.wantSuccess {
				require.NotNil(t, env.Data)
				assert.Equal(t, "- **Major Risks**: unlimited late fee", env.Data.Text)
				assert.Nil(t, env.Error)
			} else {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantCode, env.Error.Code)
				assert.NotEmpty(t, env.Error.Message)
			}
			assert.NoFileExists(t, tt.analyzer.path)
		})
	}
}

func TestAnalyzeAPI_MissingFile(t *testing.T) {
	s, _ := setupServer(t, &fakeAnalyzer{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
	rec := serve(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "INVALID_FILE", env.Error.Code)
}

func TestHealth(t *testing.T) {
	s, _ := setupServer(t, &fakeAnalyzer{}, 0)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGzip(t *testing.T) {
	s, _ := setupServer(t, &fakeAnalyzer{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := serve(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestFormatUploadLimit(t *testing.T) {
	assert.Equal(t, "", formatUploadLimit(0))
	assert.Equal(t, "1MB", formatUploadLimit(10))
	assert.Equal(t, "200MB", formatUploadLimit(200<<20))
}
