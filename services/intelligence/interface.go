// Package intelligence provides the two-tier message interpreter: a fast
// deterministic heuristic pre-pass, and a polymorphic fallback interpreter
// whose variant (deterministic resolver or external model) is selected by
// configuration. The dialogue state machine never depends on which variant
// is active.
package intelligence

import (
	"context"

	"courtside/models"
)

// Interpreter is the fallback capability used when the heuristic pre-pass
// cannot classify a message. Implementations are fallible and possibly
// non-deterministic; callers must bound them with a context deadline.
type Interpreter interface {
	// Interpret extracts intent and entities from one user message.
	Interpret(ctx context.Context, text string, transcript []models.Turn) (*models.Interpretation, error)

	// Reply produces a free-form answer for messages that do not advance the
	// booking flow.
	Reply(ctx context.Context, text string, transcript []models.Turn) (string, error)
}
