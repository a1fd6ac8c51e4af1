// Package handler provides HTTP handlers for the study assistant service.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studykit/studyrag/internal/assistant/biz"
	"github.com/studykit/studyrag/pkg/extract"
)

// MaxUploadBytes bounds how much of an uploaded file is read into memory.
const MaxUploadBytes = 32 << 20

// AssistantHandler handles upload, ask, job and stats requests.
type AssistantHandler struct {
	service biz.Service
}

// NewAssistantHandler creates a handler bound to the service.
func NewAssistantHandler(service biz.Service) *AssistantHandler {
	return &AssistantHandler{service: service}
}

// ErrorResponse carries a request failure. Details is present when there is
// more to say than the headline.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Upload accepts a multipart document and schedules background indexing.
// The 202 response means "accepted", not "indexed"; poll the job for
// completion.
func (h *AssistantHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing file field", Details: err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to open upload", Details: err.Error()})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read upload", Details: err.Error()})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "uploaded file is empty"})
		return
	}
	if len(data) > MaxUploadBytes {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file too large"})
		return
	}

	jobID, err := h.service.SubmitUpload(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unsupported file format", Details: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to accept upload", Details: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "File accepted, indexing in background",
		"job_id":  jobID,
	})
}

// AskRequest is the ask request body.
type AskRequest struct {
	Question     string `json:"question"`
	Level        string `json:"level"`
	AllowGeneral bool   `json:"allow_general"`
}

// Ask answers a question from indexed material. A handled miss returns 200
// with a message field instead of an answer.
func (h *AssistantHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	if req.Question == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question is required"})
		return
	}
	level, err := biz.ParseLevel(req.Level)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid level", Details: err.Error()})
		return
	}

	result, err := h.service.Ask(c.Request.Context(), req.Question, level, req.AllowGeneral)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to answer question", Details: err.Error()})
		return
	}

	if result.Kind == biz.AnswerNone {
		c.JSON(http.StatusOK, gin.H{"message": result.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": result.Answer})
}

// Job reports the status of a background indexing job.
func (h *AssistantHandler) Job(c *gin.Context) {
	job, ok := h.service.Job(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Stats reports index, job and request counters.
func (h *AssistantHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats())
}

// Healthz is the liveness probe.
func (h *AssistantHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
