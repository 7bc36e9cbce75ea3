package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docinsight/internal/app"
	"docinsight/internal/model"
	"docinsight/internal/transport/http/response"
)

type DocumentService interface {
	Upload(ctx context.Context, input app.UploadInput) (*model.Document, error)
	List(ctx context.Context, userID uint) ([]model.Document, error)
	Get(ctx context.Context, userID, documentID uint) (*app.DocumentDetail, error)
	Delete(ctx context.Context, userID, documentID uint) error
	Reanalyze(ctx context.Context, userID, documentID uint) (*model.Document, error)
}

type DocumentHandler struct {
	documents DocumentService
	maxBytes  int64
}

func NewDocumentHandler(documents DocumentService, maxBytes int64) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = app.DefaultMaxUploadBytes
	}
	return &DocumentHandler{documents: documents, maxBytes: maxBytes}
}

// Upload accepts a multipart form with "file" and optional "title" and "author".
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > h.maxBytes {
		writeServiceError(c, app.ErrFileTooLarge, "upload document failed")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to open uploaded file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to read uploaded file")
		return
	}

	doc, err := h.documents.Upload(c.Request.Context(), app.UploadInput{
		UserID:      userID,
		Title:       c.PostForm("title"),
		Author:      c.PostForm("author"),
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeServiceError(c, err, "upload document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docs, err := h.documents.List(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.documents.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		writeServiceError(c, err, "get document failed")
		return
	}
	response.OK(c, detail)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), userID, documentID); err != nil {
		writeServiceError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": documentID})
}

// Analyze queues an unfinished document for another analysis run.
func (h *DocumentHandler) Analyze(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.documents.Reanalyze(c.Request.Context(), userID, documentID)
	if err != nil {
		writeServiceError(c, err, "queue analysis failed")
		return
	}
	c.JSON(http.StatusAccepted, response.APIResponse{Code: response.CodeOK, Message: "queued", Data: doc})
}
