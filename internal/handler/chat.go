package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shopadvisor/internal/model"
	"shopadvisor/internal/service"
)

// ChatHandler handles direct REST chat requests
type ChatHandler struct {
	advisor *service.Advisor
}

// NewChatHandler creates a new chat handler
func NewChatHandler(advisor *service.Advisor) *ChatHandler {
	return &ChatHandler{advisor: advisor}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// A missing conversation id starts a fresh conversation.
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	start := time.Now()
	payload, err := h.advisor.HandleTurn(c.Request.Context(), model.Utterance{
		Text:           req.Message,
		ConversationID: req.ConversationID,
		ReceivedAt:     start,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{
		ConversationID: req.ConversationID,
		Answer:         payload,
		Took:           time.Since(start).Milliseconds(),
	})
}
