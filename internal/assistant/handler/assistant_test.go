package handler

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studykit/studyrag/internal/assistant/biz"
	"github.com/studykit/studyrag/pkg/extract"
	"github.com/studykit/studyrag/pkg/utils/json"
)

type fakeService struct {
	uploadJobID string
	uploadErr   error
	askResult   *biz.AskResult
	askErr      error
	job         biz.Job
	jobFound    bool

	gotFilename     string
	gotQuestion     string
	gotLevel        biz.Level
	gotAllowGeneral bool
}

func (f *fakeService) SubmitUpload(_ context.Context, filename string, _ []byte) (string, error) {
	f.gotFilename = filename
	return f.uploadJobID, f.uploadErr
}

func (f *fakeService) Ask(_ context.Context, question string, level biz.Level, allowGeneral bool) (*biz.AskResult, error) {
	f.gotQuestion = question
	f.gotLevel = level
	f.gotAllowGeneral = allowGeneral
	return f.askResult, f.askErr
}

func (f *fakeService) Job(string) (biz.Job, bool) { return f.job, f.jobFound }

func (f *fakeService) Stats() map[string]any { return map[string]any{"index_chunks": 3} }

func (f *fakeService) Close() {}

func newTestRouter(svc biz.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := NewAssistantHandler(svc)
	engine.POST("/upload", h.Upload)
	engine.POST("/ask", h.Ask)
	engine.GET("/jobs/:id", h.Job)
	engine.GET("/stats", h.Stats)
	engine.GET("/healthz", h.Healthz)
	return engine
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadAccepted(t *testing.T) {
	svc := &fakeService{uploadJobID: "01JOB"}
	router := newTestRouter(svc)

	body, contentType := multipartBody(t, "notes.txt", "some study notes.")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "notes.txt", svc.gotFilename)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "01JOB", resp["job_id"])
	assert.NotEmpty(t, resp["message"])
}

func TestUploadMissingFile(t *testing.T) {
	router := newTestRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadUnsupportedFormat(t *testing.T) {
	svc := &fakeService{uploadErr: extract.ErrUnsupportedFormat}
	router := newTestRouter(svc)

	body, contentType := multipartBody(t, "virus.exe", "nope")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file format")
}

func TestAskGrounded(t *testing.T) {
	svc := &fakeService{askResult: &biz.AskResult{Kind: biz.AnswerGrounded, Answer: "cells divide"}}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/ask",
		strings.NewReader(`{"question":"what is mitosis?","level":"beginner","allow_general":true}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "what is mitosis?", svc.gotQuestion)
	assert.Equal(t, biz.LevelBeginner, svc.gotLevel)
	assert.True(t, svc.gotAllowGeneral)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cells divide", resp["answer"])
}

func TestAskHandledMiss(t *testing.T) {
	svc := &fakeService{askResult: &biz.AskResult{Kind: biz.AnswerNone, Message: biz.NoMaterialMessage}}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"anything"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, biz.LevelIntermediate, svc.gotLevel)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp["answer"])
	assert.Equal(t, biz.NoMaterialMessage, resp["message"])
}

func TestAskValidation(t *testing.T) {
	router := newTestRouter(&fakeService{})

	tests := []struct {
		name string
		body string
	}{
		{"missing question", `{"level":"beginner"}`},
		{"invalid level", `{"question":"q","level":"expert"}`},
		{"malformed json", `{"question":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAskServiceError(t *testing.T) {
	svc := &fakeService{askErr: errors.New("embedding model unavailable")}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "embedding model unavailable")
}

func TestJobLookup(t *testing.T) {
	svc := &fakeService{
		job:      biz.Job{ID: "01JOB", State: biz.JobCompleted, Chunks: 4},
		jobFound: true,
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/jobs/01JOB", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "completed")
}

func TestJobNotFound(t *testing.T) {
	router := newTestRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAndHealthz(t *testing.T) {
	router := newTestRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "index_chunks")

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
