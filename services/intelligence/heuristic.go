package intelligence

import (
	"strings"
	"time"

	"courtside/models"
	"courtside/services/resolver"
)

var affirmatives = map[string]bool{
	"si": true, "vale": true, "ok": true, "okay": true, "confirmo": true,
	"confirmar": true, "claro": true, "perfecto": true, "de acuerdo": true,
}

var negatives = map[string]bool{
	"no": true, "nop": true, "no gracias": true, "mejor no": true,
}

var greetings = []string{"hola", "buenas", "buenos dias", "buenas tardes", "buenas noches", "hey"}

var infoKeywords = []string{"horario", "direccion", "donde esta", "ubicacion", "telefono", "precio", "cuanto cuesta"}

var bookingKeywords = []string{"reserv", "pista", "cancha", "jugar"}

// Heuristic is the deterministic pre-pass: it recognizes literal reset,
// greeting, yes/no, escalation and date-ish text without any model call.
// Matches carry confidence 1.0.
type Heuristic struct {
	Sports             []string
	MaxDuration        int
	EscalationKeywords []string
	Location           *time.Location
}

// NewHeuristic builds the pre-pass classifier.
func NewHeuristic(sports []string, maxDuration int, escalationKeywords []string, loc *time.Location) *Heuristic {
	return &Heuristic{
		Sports:             sports,
		MaxDuration:        maxDuration,
		EscalationKeywords: escalationKeywords,
		Location:           loc,
	}
}

// IsReset reports whether the message is the literal reset command.
func (h *Heuristic) IsReset(text string) bool {
	return resolver.Normalize(text) == "reset"
}

// Classify runs the deterministic tier against one message. The reference
// time anchors relative date expressions.
func (h *Heuristic) Classify(text string, now time.Time) *models.Interpretation {
	norm := resolver.Normalize(text)

	if norm == "reset" {
		return &models.Interpretation{Intent: models.IntentReset, Confidence: 1}
	}

	for _, kw := range h.EscalationKeywords {
		if strings.Contains(norm, resolver.Normalize(kw)) {
			return &models.Interpretation{Intent: models.IntentEscalate, Confidence: 1}
		}
	}

	if affirmatives[norm] || strings.HasPrefix(norm, "si ") || strings.HasPrefix(norm, "si,") {
		return &models.Interpretation{Intent: models.IntentAffirm, Confidence: 1}
	}
	if negatives[norm] || strings.HasPrefix(norm, "no ") || strings.HasPrefix(norm, "no,") {
		return &models.Interpretation{Intent: models.IntentDeny, Confidence: 1}
	}

	if strings.Contains(norm, "mis reservas") {
		return &models.Interpretation{Intent: models.IntentHistory, Confidence: 1}
	}

	entities := h.extractEntities(text, now)
	hasEntities := entities != models.Entities{}

	if !hasEntities {
		for _, g := range greetings {
			if norm == g || strings.HasPrefix(norm, g+" ") {
				return &models.Interpretation{Intent: models.IntentGreeting, Confidence: 1}
			}
		}
		for _, kw := range infoKeywords {
			if strings.Contains(norm, kw) {
				return &models.Interpretation{Intent: models.IntentInfo, Confidence: 1}
			}
		}
	}

	for _, kw := range bookingKeywords {
		if strings.Contains(norm, kw) {
			return &models.Interpretation{Intent: models.IntentBook, Confidence: 1, Entities: entities}
		}
	}
	if hasEntities {
		return &models.Interpretation{Intent: models.IntentBook, Confidence: 1, Entities: entities}
	}

	return &models.Interpretation{Intent: models.IntentUnknown, Entities: entities}
}

func (h *Heuristic) extractEntities(text string, now time.Time) models.Entities {
	var e models.Entities
	if sport, ok := resolver.ResolveSport(text, h.Sports); ok {
		e.Sport = sport
	}
	if date, ok := resolver.ResolveDate(text, now.In(h.Location)); ok {
		e.Date = date
	}
	if t, ok := resolver.ResolveTime(text); ok {
		e.Time = t
	}
	if d, clamped, ok := resolver.ResolveDuration(text, h.MaxDuration); ok {
		e.Duration = d
		e.DurationClamped = clamped
	}
	return e
}
