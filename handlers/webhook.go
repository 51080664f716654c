package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"courtside/models"
	"courtside/services/dialogue"
)

// eventTimeout bounds the processing of one inbound message, including the
// backend and interpreter calls it may trigger.
const eventTimeout = 30 * time.Second

// WebhookHandler terminates the WhatsApp Cloud webhook: the GET verification
// handshake and the POST message deliveries.
type WebhookHandler struct {
	Dialogue    dialogue.DialogueService
	VerifyToken string
	AppSecret   string
	Logger      *zap.Logger
}

// NewWebhookHandler wires the webhook endpoints to the dialogue service.
func NewWebhookHandler(svc dialogue.DialogueService, verifyToken, appSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		Dialogue:    svc,
		VerifyToken: verifyToken,
		AppSecret:   appSecret,
		Logger:      logger,
	}
}

// Verify answers Meta's subscription handshake.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	h.Logger.Warn("webhook verification rejected", zap.String("mode", mode))
	c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
}

// Receive handles one webhook delivery. The payload signature is checked
// before anything is parsed; every contained message then runs through the
// dialogue pipeline.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	if !h.validSignature(body, c.GetHeader("X-Hub-Signature-256")) {
		h.Logger.Warn("webhook delivery with invalid signature",
			zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	events := normalizeEvents(body)
	outcomes := make([]string, 0, len(events))
	for _, ev := range events {
		ctx, cancel := context.WithTimeout(c.Request.Context(), eventTimeout)
		res, err := h.Dialogue.HandleEvent(ctx, ev)
		cancel()
		if err != nil {
			h.Logger.Error("event processing failed",
				zap.String("userId", ev.UserID), zap.String("messageId", ev.MessageID),
				zap.Error(err))
			continue
		}
		outcomes = append(outcomes, res.Outcome)
	}

	c.JSON(http.StatusOK, gin.H{"processed": len(outcomes), "outcomes": outcomes})
}

// validSignature checks the X-Hub-Signature-256 HMAC. An empty configured
// secret disables the check (local development).
func (h *WebhookHandler) validSignature(body []byte, header string) bool {
	if h.AppSecret == "" {
		return true
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.AppSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}

type whatsappMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

type whatsappPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []whatsappMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// normalizeEvents flattens a webhook delivery into inbound events. Button and
// list replies surface their title as the message text; unsupported message
// types are skipped.
func normalizeEvents(body []byte) []models.InboundEvent {
	var payload whatsappPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	var events []models.InboundEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				text := ""
				switch {
				case msg.Text != nil:
					text = msg.Text.Body
				case msg.Interactive != nil && msg.Interactive.ButtonReply != nil:
					text = msg.Interactive.ButtonReply.Title
				case msg.Interactive != nil && msg.Interactive.ListReply != nil:
					text = msg.Interactive.ListReply.Title
				default:
					continue
				}

				ts, _ := strconv.ParseInt(msg.Timestamp, 10, 64)
				events = append(events, models.InboundEvent{
					Channel:   "whatsapp",
					UserID:    msg.From,
					Text:      text,
					MessageID: msg.ID,
					Timestamp: ts,
					Raw:       body,
				})
			}
		}
	}
	return events
}
