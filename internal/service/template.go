package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
)

const (
	dateLayout = "02/01/2006"
	timeLayout = "15:04"
)

// Default message bodies per notification type, used when the rule has
// no template configured.
const (
	defaultConfirmationText = "Olá {{name}}! Você tem um horário marcado para {{date}} às {{time}}.\n\n" +
		"Responda:\n1 - Confirmar\n2 - Cancelar\n3 - Remarcar"
	defaultReminderText = "Olá {{name}}! Lembrete: seu horário é {{date}} às {{time}}. Até logo!"
	defaultFollowUpText = "Olá {{name}}! Obrigado pela sua visita. Esperamos você novamente em breve!"
	defaultGenericText  = "Olá {{name}}! Você tem um horário marcado para {{date}} às {{time}}."
)

// RenderMessage produces the outbound message body for a notification.
// Templates are opaque strings; only the {{name}}, {{date}} and
// {{time}} placeholders are substituted.
func RenderMessage(template *string, typ model.NotificationType, appt *model.Appointment) string {
	text := defaultText(typ)
	if template != nil && strings.TrimSpace(*template) != "" {
		text = *template
	}

	return strings.NewReplacer(
		"{{name}}", appt.CustomerName,
		"{{date}}", appt.StartsAt.Format(dateLayout),
		"{{time}}", appt.StartsAt.Format(timeLayout),
	).Replace(text)
}

func defaultText(typ model.NotificationType) string {
	switch typ {
	case model.TypeConfirmation:
		return defaultConfirmationText
	case model.TypeReminder:
		return defaultReminderText
	case model.TypeFollowUp:
		return defaultFollowUpText
	default:
		return defaultGenericText
	}
}

// FormatSlotList renders the numbered slot menu offered to a customer
// during rescheduling.
func FormatSlotList(date time.Time, slots []time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Horários disponíveis para %s:\n", date.Format(dateLayout))
	for i, slot := range slots {
		fmt.Fprintf(&b, "%d - %s\n", i+1, slot.Format(timeLayout))
	}
	b.WriteString("\nResponda com o número do horário desejado.")
	return b.String()
}
