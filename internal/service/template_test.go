package service

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/appointment-notifier/internal/domain/model"
)

func testAppointment() *model.Appointment {
	return &model.Appointment{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		CustomerName:   "Maria",
		CustomerPhone:  "5511999990000",
		StartsAt:       time.Date(2026, 3, 20, 14, 30, 0, 0, time.UTC),
		Status:         model.AppointmentScheduled,
	}
}

func TestRenderMessageDefaults(t *testing.T) {
	appt := testAppointment()

	confirmation := RenderMessage(nil, model.TypeConfirmation, appt)
	for _, want := range []string{"Maria", "20/03/2026", "14:30", "1 - Confirmar", "2 - Cancelar", "3 - Remarcar"} {
		if !strings.Contains(confirmation, want) {
			t.Errorf("confirmation message missing %q:\n%s", want, confirmation)
		}
	}

	reminder := RenderMessage(nil, model.TypeReminder, appt)
	if strings.Contains(reminder, "Confirmar") {
		t.Errorf("reminder message should not ask for a reply:\n%s", reminder)
	}
	if !strings.Contains(reminder, "20/03/2026") {
		t.Errorf("reminder message missing date:\n%s", reminder)
	}

	followUp := RenderMessage(nil, model.TypeFollowUp, appt)
	if !strings.Contains(followUp, "Maria") {
		t.Errorf("follow-up message missing customer name:\n%s", followUp)
	}
}

func TestRenderMessageCustomTemplate(t *testing.T) {
	appt := testAppointment()
	tpl := "Oi {{name}}, confirma {{date}} {{time}}?"

	got := RenderMessage(&tpl, model.TypeConfirmation, appt)
	want := "Oi Maria, confirma 20/03/2026 14:30?"
	if got != want {
		t.Errorf("RenderMessage = %q, want %q", got, want)
	}
}

func TestRenderMessageBlankTemplateFallsBack(t *testing.T) {
	appt := testAppointment()
	tpl := "   "

	got := RenderMessage(&tpl, model.TypeReminder, appt)
	if !strings.Contains(got, "Lembrete") {
		t.Errorf("blank template should fall back to the default text, got %q", got)
	}
}

func TestFormatSlotList(t *testing.T) {
	day := time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC)
	slots := []time.Time{day.Add(9 * time.Hour), day.Add(14*time.Hour + 30*time.Minute)}

	got := FormatSlotList(day, slots)
	for _, want := range []string{"25/03/2026", "1 - 09:00", "2 - 14:30", "número do horário"} {
		if !strings.Contains(got, want) {
			t.Errorf("slot list missing %q:\n%s", want, got)
		}
	}
}
