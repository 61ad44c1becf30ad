package service

import (
	"strconv"
	"strings"
	"time"
)

// Intent is the interpreted meaning of a free-text customer reply.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentConfirm
	IntentCancel
	IntentReschedule
)

// Customers answer in Portuguese or English, often with a bare menu
// number. Matching happens on the normalized (lowercased,
// accent-stripped, punctuation-trimmed) reply.
var (
	confirmWords = map[string]struct{}{
		"1": {}, "sim": {}, "s": {}, "yes": {}, "y": {}, "ok": {},
		"confirmo": {}, "confirmar": {}, "confirma": {}, "confirmado": {},
	}
	cancelWords = map[string]struct{}{
		"2": {}, "nao": {}, "n": {}, "no": {},
		"cancelar": {}, "cancela": {}, "cancelo": {}, "cancel": {},
	}
	rescheduleWords = map[string]struct{}{
		"3": {}, "remarcar": {}, "reagendar": {}, "reagendamento": {},
		"remarca": {}, "mudar": {}, "reschedule": {},
	}
)

var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

func normalizeReply(body string) string {
	s := strings.ToLower(strings.TrimSpace(body))
	s = accentReplacer.Replace(s)
	return strings.Trim(s, " .,!?;:\"'")
}

// ClassifyIntent maps a reply body onto the conversation intents.
// Anything not recognized is IntentUnknown, which never changes state.
func ClassifyIntent(body string) Intent {
	s := normalizeReply(body)
	if _, ok := confirmWords[s]; ok {
		return IntentConfirm
	}
	if _, ok := cancelWords[s]; ok {
		return IntentCancel
	}
	if _, ok := rescheduleWords[s]; ok {
		return IntentReschedule
	}
	return IntentUnknown
}

var dateLayouts = []string{"02/01/2006", "02-01-2006", "2006-01-02"}

// ParseDate extracts a calendar date from a reply. Accepted forms:
// dd/mm/yyyy, dd-mm-yyyy, yyyy-mm-dd and dd/mm (resolved to the next
// occurrence relative to now). The result is midnight UTC of that day.
func ParseDate(body string, now time.Time) (time.Time, bool) {
	s := normalizeReply(body)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	// dd/mm without a year: the customer means the next such date.
	if t, err := time.Parse("02/01", s); err == nil {
		candidate := time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if !candidate.After(today) {
			candidate = candidate.AddDate(1, 0, 0)
		}
		return candidate, true
	}

	return time.Time{}, false
}

// ParseSlotChoice resolves a reply against the offered slot list:
// either a 1-based position ("2") or a time of day ("14:30", "14h30",
// "14h"). Returns false when nothing matches.
func ParseSlotChoice(body string, slots []time.Time) (time.Time, bool) {
	s := normalizeReply(body)
	if len(slots) == 0 {
		return time.Time{}, false
	}

	if idx, err := strconv.Atoi(s); err == nil {
		if idx >= 1 && idx <= len(slots) {
			return slots[idx-1], true
		}
		return time.Time{}, false
	}

	// "14h30" / "14h" → "14:30" / "14:00".
	if strings.Contains(s, "h") {
		s = strings.Replace(s, "h", ":", 1)
		if strings.HasSuffix(s, ":") {
			s += "00"
		}
	}

	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, false
	}
	for _, slot := range slots {
		if slot.Hour() == t.Hour() && slot.Minute() == t.Minute() {
			return slot, true
		}
	}
	return time.Time{}, false
}
