// Package notifier renders outbound actions into WhatsApp Cloud API calls.
// It is the only package that knows the Graph message formats; everything
// upstream speaks models.OutboundAction.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"courtside/models"
)

const defaultGraphURL = "https://graph.facebook.com/v19.0"

// WhatsApp button titles are capped by the Graph API.
const maxButtonTitle = 20

// WhatsAppSender delivers outbound actions through the WhatsApp Cloud API.
type WhatsAppSender struct {
	BaseURL string
	Token   string
	PhoneID string
	HTTP    *http.Client
	Logger  *zap.Logger
}

// NewWhatsAppSender returns a sender for the given phone-number id.
func NewWhatsAppSender(token, phoneID string, logger *zap.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		BaseURL: defaultGraphURL,
		Token:   token,
		PhoneID: phoneID,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Logger:  logger,
	}
}

// Send renders and posts one message. Interactive actions degrade gracefully:
// more options than WhatsApp allows as buttons become a list.
func (w *WhatsAppSender) Send(ctx context.Context, action models.OutboundAction) error {
	payload, err := w.render(action)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/messages", w.BaseURL, w.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp api returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (w *WhatsAppSender) render(action models.OutboundAction) ([]byte, error) {
	base := map[string]any{
		"messaging_product": "whatsapp",
		"to":                action.To,
	}

	switch action.Type {
	case models.ActionText:
		base["type"] = "text"
		base["text"] = map[string]any{"body": action.Body}

	case models.ActionEscalate:
		// The user still gets the body as plain text; the escalation itself
		// is handled out of band by whoever consumes the logs/queue.
		w.Logger.Warn("conversation escalated to staff",
			zap.String("to", action.To), zap.String("reason", action.Reason))
		base["type"] = "text"
		base["text"] = map[string]any{"body": action.Body}

	case models.ActionButtons:
		if len(action.Options) > 3 {
			return w.renderList(base, action)
		}
		buttons := make([]map[string]any, 0, len(action.Options))
		for i, opt := range action.Options {
			buttons = append(buttons, map[string]any{
				"type": "reply",
				"reply": map[string]any{
					"id":    fmt.Sprintf("opt_%d", i),
					"title": truncate(opt, maxButtonTitle),
				},
			})
		}
		base["type"] = "interactive"
		base["interactive"] = map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": action.Body},
			"action": map[string]any{"buttons": buttons},
		}

	case models.ActionList:
		return w.renderList(base, action)

	case models.ActionLocation:
		base["type"] = "location"
		base["location"] = map[string]any{
			"latitude":  action.Lat,
			"longitude": action.Lon,
			"name":      action.Name,
			"address":   action.Address,
		}

	default:
		return nil, fmt.Errorf("unsupported outbound action type %q", action.Type)
	}

	return json.Marshal(base)
}

func (w *WhatsAppSender) renderList(base map[string]any, action models.OutboundAction) ([]byte, error) {
	sections := action.Sections
	if len(sections) == 0 {
		sections = []models.ListSection{{Title: "Opciones", Rows: action.Options}}
	}

	rendered := make([]map[string]any, 0, len(sections))
	row := 0
	for _, sec := range sections {
		rows := make([]map[string]any, 0, len(sec.Rows))
		for _, r := range sec.Rows {
			rows = append(rows, map[string]any{
				"id":    fmt.Sprintf("row_%d", row),
				"title": truncate(r, 24),
			})
			row++
		}
		rendered = append(rendered, map[string]any{"title": sec.Title, "rows": rows})
	}

	label := action.ButtonLabel
	if label == "" {
		label = "Elegir"
	}

	base["type"] = "interactive"
	base["interactive"] = map[string]any{
		"type":   "list",
		"body":   map[string]any{"text": action.Body},
		"action": map[string]any{"button": label, "sections": rendered},
	}
	return json.Marshal(base)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
