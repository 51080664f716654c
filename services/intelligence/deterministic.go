package intelligence

import (
	"context"
	"time"

	"courtside/models"
)

// Deterministic is the resolver-backed interpreter variant, used when no
// model is configured. Interpretations come from the heuristic tier; free-
// form replies fall back to a fixed re-prompt.
type Deterministic struct {
	heuristic *Heuristic
}

// NewDeterministic wraps the heuristic as a full Interpreter.
func NewDeterministic(h *Heuristic) *Deterministic {
	return &Deterministic{heuristic: h}
}

func (d *Deterministic) Interpret(ctx context.Context, text string, transcript []models.Turn) (*models.Interpretation, error) {
	interp := d.heuristic.Classify(text, time.Now().In(d.heuristic.Location))
	if interp.Intent == models.IntentUnknown {
		// Without a model there is nothing further to extract; report low
		// confidence so the orchestrator can degrade gracefully.
		interp.Confidence = 0
	}
	return interp, nil
}

func (d *Deterministic) Reply(ctx context.Context, text string, transcript []models.Turn) (string, error) {
	return "No te he entendido. ¿Quieres reservar una pista? Dime deporte, día y hora.", nil
}
