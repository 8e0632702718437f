package app

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"
)

const (
	icsDateTimeLayout = "20060102T150405"
	icsUIDDomain      = "agenda.culturaviva.org.br"

	// Cultural events carry no end time in the feed; exports assume two hours.
	defaultEventDuration = 2 * time.Hour
)

func exportFilename(base, categoria, ext string) string {
	if categoria != "" {
		return fmt.Sprintf("%s_%s.%s", base, categoria, ext)
	}
	return fmt.Sprintf("%s.%s", base, ext)
}

func eventUID(ev EventRecord) string {
	return fmt.Sprintf("%s-%s@%s", ev.Date, Slugify(ev.Title), icsUIDDomain)
}

// writeVEvent writes one timed VEVENT for a catalog record. Events with an
// unparseable date are skipped.
func writeVEvent(w http.ResponseWriter, ev EventRecord) bool {
	start, err := time.Parse(DateLayout, ev.Date)
	if err != nil {
		return false
	}
	end := start.Add(defaultEventDuration)

	fmt.Fprintln(w, "BEGIN:VEVENT")
	fmt.Fprintf(w, "UID:%s\n", eventUID(ev))
	fmt.Fprintf(w, "DTSTAMP:%s\n", time.Now().UTC().Format("20060102T150405Z"))
	fmt.Fprintf(w, "DTSTART;TZID=%s:%s\n", ICSTimezone, start.Format(icsDateTimeLayout))
	fmt.Fprintf(w, "DTEND;TZID=%s:%s\n", ICSTimezone, end.Format(icsDateTimeLayout))
	fmt.Fprintf(w, "SUMMARY:%s\n", ev.Title)
	fmt.Fprintf(w, "DESCRIPTION:%s · %d/%d inscritos\n", CategoryLabel(ev.Category), ev.Enrolled, ev.Capacity)
	fmt.Fprintf(w, "LOCATION:%s\n", ev.Location)
	fmt.Fprintf(w, "CATEGORIES:%s\n", CategoryLabel(ev.Category))
	return true
}

// GenerateICS generates an iCalendar (ICS) file with an optional reminder
// Query param: lembrete (minutes before the event start)
func GenerateICS(w http.ResponseWriter, r *http.Request, categoria string, events []EventRecord) {
	reminderMinutes := 0
	if v := r.URL.Query().Get("lembrete"); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m > 0 {
			reminderMinutes = m
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename("agenda_cultural", categoria, "ics")))

	calName := "Agenda Cultural"
	if categoria != "" {
		calName += " " + CategoryLabel(categoria)
	}

	fmt.Fprintln(w, "BEGIN:VCALENDAR")
	fmt.Fprintln(w, "VERSION:2.0")
	fmt.Fprintf(w, "PRODID:%s\n", ICSProductID)
	fmt.Fprintf(w, "X-WR-CALNAME:%s\n", calName)
	fmt.Fprintf(w, "X-WR-TIMEZONE:%s\n", ICSTimezone)
	fmt.Fprintln(w, "CALSCALE:GREGORIAN")

	for _, ev := range events {
		if !writeVEvent(w, ev) {
			continue
		}
		if reminderMinutes > 0 {
			AddReminder(w, reminderMinutes, ev.Title)
		}
		fmt.Fprintln(w, "END:VEVENT")
	}

	fmt.Fprintln(w, "END:VCALENDAR")
}

// AddReminder adds a display alarm firing the given number of minutes
// before the event start.
func AddReminder(w http.ResponseWriter, minutesBefore int, title string) {
	fmt.Fprintln(w, "BEGIN:VALARM")
	fmt.Fprintln(w, "ACTION:DISPLAY")
	fmt.Fprintf(w, "DESCRIPTION:Lembrete: %s\n", title)
	fmt.Fprintf(w, "TRIGGER:-PT%dM\n", minutesBefore)
	fmt.Fprintln(w, "END:VALARM")
}

// GenerateCSV generates a CSV file with the catalog events
func GenerateCSV(w http.ResponseWriter, categoria string, events []EventRecord) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename("agenda_cultural", categoria, "csv")))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Data", "Titulo", "Local", "Categoria", "Inscritos", "Capacidade", "Avaliacao"})
	for _, ev := range events {
		_ = cw.Write([]string{
			ev.Date,
			ev.Title,
			ev.Location,
			CategoryLabel(ev.Category),
			strconv.Itoa(ev.Enrolled),
			strconv.Itoa(ev.Capacity),
			fmt.Sprintf("%.1f", ev.Rating),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("Error writing CSV export: %v", err)
	}
}

// GenerateJSON generates a JSON file with the catalog events
func GenerateJSON(w http.ResponseWriter, categoria string, events []EventRecord) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename("agenda_cultural", categoria, "json")))

	data := map[string]interface{}{
		"categoria": categoria,
		"total":     len(events),
		"eventos":   events,
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON export: %v", err)
		http.Error(w, ErrFailedToGenerateJSON, http.StatusInternalServerError)
	}
}

// GenerateSubscriptionICS generates an iCalendar (ICS) subscription feed.
// Unlike GenerateICS, this is designed for calendar subscriptions:
// - No Content-Disposition attachment header (inline content)
// - No VALARM blocks (most calendar apps ignore them in subscriptions)
// - Includes METHOD:PUBLISH and refresh interval headers
func GenerateSubscriptionICS(w http.ResponseWriter, r *http.Request, categoria string, events []EventRecord) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	// No Content-Disposition header - calendar apps need inline content for subscriptions

	calName := "Agenda Cultural"
	if categoria != "" {
		calName += " " + CategoryLabel(categoria)
	}

	fmt.Fprintln(w, "BEGIN:VCALENDAR")
	fmt.Fprintln(w, "VERSION:2.0")
	fmt.Fprintf(w, "PRODID:%s\n", ICSProductID)
	fmt.Fprintln(w, "METHOD:PUBLISH") // Required for subscriptions
	fmt.Fprintf(w, "X-WR-CALNAME:%s\n", calName)
	fmt.Fprintf(w, "X-WR-TIMEZONE:%s\n", ICSTimezone)
	fmt.Fprintln(w, "CALSCALE:GREGORIAN")
	fmt.Fprintln(w, "X-PUBLISHED-TTL:PT1H") // Suggest refresh every 1 hour

	for _, ev := range events {
		if !writeVEvent(w, ev) {
			continue
		}
		// No VALARM blocks: subscribers set their own reminders
		fmt.Fprintln(w, "END:VEVENT")
	}

	fmt.Fprintln(w, "END:VCALENDAR")
}
