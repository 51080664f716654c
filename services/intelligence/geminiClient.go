package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"courtside/models"
)

const interpretPrompt = `Eres el asistente de reservas de un club deportivo.
Analiza el mensaje del usuario y responde SOLO con un objeto JSON:
{"intent": "book|greeting|info|history|affirm|deny|unknown",
 "confidence": 0.0-1.0,
 "entities": {"sport": "", "date": "YYYY-MM-DD", "time": "HH:MM", "duration": 0, "name": "", "lastName": ""}}
Deja vacio cualquier campo que el mensaje no mencione.`

const replyPrompt = `Eres el asistente de reservas de un club deportivo.
Responde al usuario en espanol, breve y amable. Si pregunta por reservas,
invitale a indicar deporte, dia y hora.`

// GeminiClient is the model-backed interpreter variant.
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	maxIterations int
	logger        *zap.Logger
}

// NewGeminiClient connects the Gemini model used for entity extraction and
// free-form replies.
func NewGeminiClient(ctx context.Context, apiKey, modelName string, maxIterations int, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &GeminiClient{
		client:        client,
		model:         client.GenerativeModel(modelName),
		maxIterations: maxIterations,
		logger:        logger,
	}, nil
}

// Close releases the underlying API connection.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// Interpret asks the model for a structured intent+entities JSON object.
func (g *GeminiClient) Interpret(ctx context.Context, text string, transcript []models.Turn) (*models.Interpretation, error) {
	prompt := fmt.Sprintf("%s\n\nConversacion previa:\n%s\nMensaje: %s",
		interpretPrompt, renderTranscript(transcript), text)

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var interp models.Interpretation
	if err := json.Unmarshal([]byte(stripFences(raw)), &interp); err != nil {
		return nil, fmt.Errorf("gemini returned unparseable interpretation: %w", err)
	}
	if interp.Intent == "" {
		interp.Intent = models.IntentUnknown
	}
	return &interp, nil
}

// Reply produces a free-form answer. The loop is bounded: if the model keeps
// returning empty candidates it gives up after maxIterations instead of
// spinning.
func (g *GeminiClient) Reply(ctx context.Context, text string, transcript []models.Turn) (string, error) {
	chat := g.model.StartChat()
	chat.History = historyFromTranscript(transcript)

	prompt := fmt.Sprintf("%s\n\n%s", replyPrompt, text)
	var lastErr error
	for i := 0; i < g.maxIterations; i++ {
		resp, err := chat.SendMessage(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = fmt.Errorf("gemini generate error: %w", err)
			g.logger.Warn("gemini reply attempt failed", zap.Int("iteration", i+1), zap.Error(err))
			continue
		}
		if text := collectText(resp); text != "" {
			return text, nil
		}
		lastErr = fmt.Errorf("gemini returned no text candidates")
	}
	return "", fmt.Errorf("no reply after %d iterations: %w", g.maxIterations, lastErr)
}

func (g *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate error: %w", err)
	}
	text := collectText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned no text candidates")
	}
	return text, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	return strings.TrimSpace(sb.String())
}

func renderTranscript(transcript []models.Turn) string {
	if len(transcript) == 0 {
		return "(ninguna)\n"
	}
	var sb strings.Builder
	for _, turn := range transcript {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func historyFromTranscript(transcript []models.Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(transcript))
	for _, turn := range transcript {
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return history
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
