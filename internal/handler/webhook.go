package handler

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopadvisor/internal/model"
	"shopadvisor/internal/service"
	"shopadvisor/internal/telegram"
	"shopadvisor/internal/utils"
)

const (
	msgResultsHeader = "پیشنهادهای موجود:"
	msgNoMatches     = "فعلاً موردی مطابق معیارها موجود نیست. می‌تونی بودجه یا ویژگی‌ها را تغییر بدهی تا دوباره بگردم."
	msgUpstreamDown  = "متأسفم، الان امکان جستجو نیست. لطفاً چند دقیقه دیگر دوباره تلاش کن."
	msgViewLink      = "مشاهده و خرید"
)

// WebhookHandler handles inbound Telegram updates
type WebhookHandler struct {
	advisor *service.Advisor
	bot     *telegram.Client
	log     *zap.Logger
}

// NewWebhookHandler creates a new Telegram webhook handler
func NewWebhookHandler(advisor *service.Advisor, bot *telegram.Client, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{advisor: advisor, bot: bot, log: log}
}

// Handle handles POST /telegram/webhook. Telegram retries non-200 responses,
// so processing failures are logged and acknowledged rather than surfaced.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update: " + err.Error()})
		return
	}

	if update.Message == nil || strings.TrimSpace(update.Message.Text) == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	chatID := update.Message.Chat.ID
	payload, err := h.advisor.HandleTurn(c.Request.Context(), model.Utterance{
		Text:           update.Message.Text,
		ConversationID: "tg:" + strconv.FormatInt(chatID, 10),
		ReceivedAt:     time.Now(),
	})
	if err != nil {
		h.log.Error("webhook turn failed",
			zap.Int64("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if err := h.bot.SendMessage(c.Request.Context(), chatID, renderAnswer(payload)); err != nil {
		h.log.Error("telegram send failed",
			zap.Int64("chat_id", chatID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// renderAnswer converts the channel-neutral payload into Telegram HTML,
// applying the Persian thousands separator to displayed prices.
func renderAnswer(payload model.AnswerPayload) string {
	switch payload.Kind {
	case model.AnswerClarification:
		return html.EscapeString(payload.Question)
	case model.AnswerNoMatches:
		return msgNoMatches
	case model.AnswerUpstreamUnavailable:
		return msgUpstreamDown
	}

	var b strings.Builder
	b.WriteString(msgResultsHeader)
	for _, line := range payload.Lines {
		b.WriteString("\n\n• <b>")
		b.WriteString(html.EscapeString(line.Name))
		b.WriteString("</b>\n")
		b.WriteString(utils.PersianThousands(line.DisplayPrice))
		if line.URL != "" {
			b.WriteString(fmt.Sprintf("\n<a href=\"%s\">%s</a>", html.EscapeString(line.URL), msgViewLink))
		}
	}
	if payload.TotalMatches > len(payload.Lines) {
		b.WriteString(fmt.Sprintf("\n\n(%d مورد دیگر هم پیدا شد)", payload.TotalMatches-len(payload.Lines)))
	}
	return b.String()
}
