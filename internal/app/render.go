package app

import (
	"fmt"
	"html/template"
	"log"
	"strings"
	"sync"
)

// cardTemplate builds one display fragment per event. Title, location and
// the other feed fields are untrusted text; html/template escapes them.
var cardTemplate = template.Must(template.New("card").Parse(`<article class="event-card">
  <div class="event-icon">{{.Icon}}</div>
  <h3 class="event-title">{{.Title}}</h3>
  <p class="event-date">📅 {{.Date}}</p>
  <p class="event-location">📍 {{.Location}}</p>
  <p class="event-enrollment">👥 {{.Enrollment}}</p>
  <p class="event-rating">⭐ {{.Rating}}</p>
  <span class="event-category">{{.Category}}</span>
</article>`))

type cardData struct {
	Icon       string
	Title      string
	Date       string
	Location   string
	Enrollment string
	Rating     string
	Category   string
}

// Grid is the container region that receives rendered event cards.
// The page handler reads it; the Loader (and admin refresh) writes it.
type Grid struct {
	mu        sync.RWMutex
	fragments []template.HTML
}

func NewGrid() *Grid {
	return &Grid{}
}

// DisplayEvents replaces the grid contents with one fragment per record,
// preserving input order. Safe to call repeatedly: only the fragments of
// the latest call remain.
func (g *Grid) DisplayEvents(events []EventRecord) {
	fragments := make([]template.HTML, 0, len(events))
	for _, ev := range events {
		var b strings.Builder
		data := cardData{
			Icon:       ev.Icon,
			Title:      ev.Title,
			Date:       FormatDate(ev.Date),
			Location:   ev.Location,
			Enrollment: fmt.Sprintf("%d/%d inscritos", ev.Enrolled, ev.Capacity),
			Rating:     fmt.Sprintf("%.1f/5.0", ev.Rating),
			Category:   CategoryLabel(ev.Category),
		}
		if err := cardTemplate.Execute(&b, data); err != nil {
			log.Printf("Error rendering event card %q: %v", ev.Title, err)
			continue
		}
		fragments = append(fragments, template.HTML(b.String()))
	}

	g.mu.Lock()
	g.fragments = fragments
	g.mu.Unlock()

	GridCards.Set(float64(len(fragments)))
}

// Fragments returns the current cards in render order.
func (g *Grid) Fragments() []template.HTML {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]template.HTML, len(g.fragments))
	copy(out, g.fragments)
	return out
}

// Len reports the number of cards currently held.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.fragments)
}
