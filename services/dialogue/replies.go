package dialogue

import (
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"courtside/models"
)

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// humanDate renders 2006-01-02 as "2 de enero". Unparseable input passes
// through unchanged.
func humanDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%d de %s", t.Day(), spanishMonths[t.Month()-1])
}

func textAction(to, body string) models.OutboundAction {
	return models.OutboundAction{Type: models.ActionText, To: to, Body: body}
}

func buttonsAction(to, body string, options []string) models.OutboundAction {
	return models.OutboundAction{Type: models.ActionButtons, To: to, Body: body, Options: options}
}

func escalateAction(to, body, reason string) models.OutboundAction {
	return models.OutboundAction{Type: models.ActionEscalate, To: to, Body: body, Reason: reason}
}

func (s *DefaultDialogueService) greetingReply(to string) models.OutboundAction {
	return textAction(to, fmt.Sprintf(
		"¡Hola! Soy el asistente de %s. Puedo ayudarte a reservar una pista. ¿Qué deporte quieres jugar y cuándo?",
		s.Config.ClubName))
}

func (s *DefaultDialogueService) infoReply(to string) models.OutboundAction {
	return models.OutboundAction{
		Type:    models.ActionLocation,
		To:      to,
		Body:    fmt.Sprintf("Aquí tienes la ubicación de %s.", s.Config.ClubName),
		Lat:     s.Config.ClubLat,
		Lon:     s.Config.ClubLon,
		Name:    s.Config.ClubName,
		Address: s.Config.ClubAddress,
	}
}

func (s *DefaultDialogueService) historyReply(to string, bookings []models.ConfirmedBooking) models.OutboundAction {
	if len(bookings) == 0 {
		return textAction(to, "No tienes reservas recientes.")
	}
	rows := make([]string, 0, len(bookings))
	for _, b := range bookings {
		rows = append(rows, fmt.Sprintf("%s · %s %s · %s",
			capitalize(b.Sport), humanDate(b.Date), b.Time, b.Court))
	}
	return models.OutboundAction{
		Type:        models.ActionList,
		To:          to,
		Body:        "Estas son tus reservas:",
		ButtonLabel: "Ver reservas",
		Sections:    []models.ListSection{{Title: "Reservas confirmadas", Rows: rows}},
	}
}

// capitalize upper-cases the first rune; names often start with an accented
// letter, so byte slicing is not safe here.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func askSportReply(to string, sports []string) models.OutboundAction {
	return buttonsAction(to, "¿Qué deporte quieres reservar?", sports)
}

func askDateReply(to string) models.OutboundAction {
	return textAction(to, "¿Para qué día quieres la reserva? Por ejemplo: \"mañana\" o \"el 15 de junio\".")
}

func askNameReply(to string) models.OutboundAction {
	return textAction(to, "Para completar la reserva necesito tu nombre y apellido. ¿Me los dices?")
}

func offerTimesReply(to, sport, date string, starts []string) models.OutboundAction {
	body := fmt.Sprintf("Para %s el %s tengo estas horas disponibles:", sport, humanDate(date))
	return buttonsAction(to, body, starts)
}

func offerAlternativesReply(to string, starts []string) models.OutboundAction {
	return buttonsAction(to, "Esa hora no está disponible. ¿Te viene bien alguna de estas?", starts)
}

func noAvailabilityReply(to, sport, date string) models.OutboundAction {
	return textAction(to, fmt.Sprintf(
		"Lo siento, no queda disponibilidad de %s para el %s. ¿Quieres probar otro día?",
		sport, humanDate(date)))
}

func confirmReply(to string, p *models.PendingConfirmation) models.OutboundAction {
	body := fmt.Sprintf("¿Confirmo la reserva de %s el %s a las %s", p.Sport, humanDate(p.Date), p.Time)
	if len(p.Times) > 1 {
		body += fmt.Sprintf(" (%d horas)", len(p.Times))
	}
	body += fmt.Sprintf(" en %s?", p.Court)
	return buttonsAction(to, body, []string{"Sí", "No"})
}

func bookedReply(to string, p *models.PendingConfirmation) models.OutboundAction {
	return textAction(to, fmt.Sprintf(
		"¡Reserva confirmada! %s el %s a las %s en %s. ¡Que lo disfrutes!",
		capitalize(p.Sport), humanDate(p.Date), p.Time, p.Court))
}

func slotTakenReply(to string, starts []string) models.OutboundAction {
	if len(starts) == 0 {
		return textAction(to, "Vaya, esa hora se acaba de ocupar y no quedan más huecos ese día. ¿Probamos otra fecha?")
	}
	return buttonsAction(to, "Vaya, esa hora se acaba de ocupar. ¿Te viene bien alguna de estas?", starts)
}

func clampNotice(max int) string {
	return fmt.Sprintf("Solo puedo reservar un máximo de %d horas seguidas, así que he ajustado la duración. ", max)
}

func backendDownReply(to string) models.OutboundAction {
	return textAction(to, "Ahora mismo no puedo consultar la disponibilidad. Inténtalo de nuevo en unos minutos, por favor.")
}

func bookingFailedReply(to string) models.OutboundAction {
	return textAction(to, "No he podido completar la reserva. Inténtalo de nuevo en unos minutos, por favor.")
}

func resetReply(to string) models.OutboundAction {
	return textAction(to, "He borrado tus datos y reservas guardadas. Empezamos de cero: ¿en qué puedo ayudarte?")
}

func escalationOffer(to, reason string) models.OutboundAction {
	return escalateAction(to,
		"No estoy seguro de haberte entendido bien. Voy a avisar a una persona del club para que te atienda.",
		reason)
}

func fallbackReply(to string) models.OutboundAction {
	return textAction(to, "Perdona, no te he entendido. ¿Puedes repetirlo con otras palabras?")
}
