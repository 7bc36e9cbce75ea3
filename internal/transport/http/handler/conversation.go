package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"docinsight/internal/app"
	"docinsight/internal/model"
	"docinsight/internal/transport/http/response"
)

type ConversationService interface {
	CreateConversation(ctx context.Context, input app.CreateConversationInput) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID, documentID uint) ([]model.Conversation, error)
	ListMessages(ctx context.Context, userID, conversationID uint) ([]model.Message, error)
	Ask(ctx context.Context, input app.AskInput) (*app.AskResult, error)
}

type ConversationHandler struct {
	conversations ConversationService
}

type CreateConversationRequest struct {
	DocumentID uint   `json:"document_id" binding:"required,gt=0"`
	Title      string `json:"title" binding:"max=128"`
}

type AskRequest struct {
	Question string `json:"question" binding:"required,max=4000"`
}

func NewConversationHandler(conversations ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	conversation, err := h.conversations.CreateConversation(c.Request.Context(), app.CreateConversationInput{
		UserID:     userID,
		DocumentID: req.DocumentID,
		Title:      req.Title,
	})
	if err != nil {
		writeServiceError(c, err, "create conversation failed")
		return
	}
	response.OK(c, conversation)
}

func (h *ConversationHandler) ListByDocument(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	conversations, err := h.conversations.ListConversations(c.Request.Context(), userID, documentID)
	if err != nil {
		writeServiceError(c, err, "list conversations failed")
		return
	}
	response.OK(c, conversations)
}

func (h *ConversationHandler) ListMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	messages, err := h.conversations.ListMessages(c.Request.Context(), userID, conversationID)
	if err != nil {
		writeServiceError(c, err, "list messages failed")
		return
	}
	response.OK(c, messages)
}

func (h *ConversationHandler) Ask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.conversations.Ask(c.Request.Context(), app.AskInput{
		UserID:         userID,
		ConversationID: conversationID,
		Question:       req.Question,
	})
	if err != nil {
		writeServiceError(c, err, "ask failed")
		return
	}
	response.OK(c, result)
}
