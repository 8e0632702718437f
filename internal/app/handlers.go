package app

import (
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"
)

var (
	indexTemplate *template.Template
	adminTemplate *template.Template
)

// InitTemplates parses the embedded page templates. Must run after main
// has assigned IndexHTML and AdminHTML.
func InitTemplates() error {
	var err error
	indexTemplate, err = template.New("index").Parse(string(IndexHTML))
	if err != nil {
		return err
	}
	adminTemplate, err = template.New("admin").Parse(string(AdminHTML))
	return err
}

// pageData feeds the page templates.
type pageData struct {
	Fragments []template.HTML
	AdminMode bool
}

// ServeIndex serves the events page with the current grid contents.
func ServeIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	PageViews.Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{Fragments: EventGrid.Fragments(), AdminMode: AdminMode}
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Printf("Error writing index page: %v", err)
	}
}

// ServeAdmin serves the catalog editor page.
func ServeAdmin(w http.ResponseWriter, r *http.Request) {
	if !RequireAdminMode(w) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{Fragments: EventGrid.Fragments(), AdminMode: AdminMode}
	if err := adminTemplate.Execute(w, data); err != nil {
		log.Printf("Error writing admin page: %v", err)
	}
}

// ServeFeed publishes the catalog as the events feed (a JSON array).
func ServeFeed(w http.ResponseWriter, r *http.Request) {
	events := CatalogEvents("")

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(events); err != nil {
		log.Printf("Error encoding events feed: %v", err)
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
	}
}

// GetConfig returns the application configuration
func GetConfig(w http.ResponseWriter, r *http.Request) {
	config := map[string]interface{}{
		"categorias":      CategoryLabels,
		"adminMode":       AdminMode,
		"totalEventos":    len(CatalogEvents("")),
		"registryEnabled": Registry != nil,
	}
	if FeedLoader != nil {
		config["feedURL"] = FeedLoader.URL
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(config); err != nil {
		log.Printf("Error encoding config: %v", err)
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
	}
}

// requireRegistry validates that the participant registry is configured.
func requireRegistry(w http.ResponseWriter) bool {
	if Registry == nil {
		http.Error(w, ErrRegistryUnavailable, http.StatusServiceUnavailable)
		return false
	}
	return true
}

// registryError maps registry sentinel errors to HTTP statuses.
func registryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownUser), errors.Is(err, ErrNotEnrolled), errors.Is(err, ErrInvalidCode):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrAlreadyEnrolled), errors.Is(err, ErrAlreadyRated):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNotPresent):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		log.Printf("Registry error: %v", err)
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
	}
}

// HandleRegisterUser creates a participant or organizer account.
func HandleRegisterUser(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !requireRegistry(w) {
		return
	}

	var req struct {
		Nome  string `json:"nome"`
		Email string `json:"email"`
		Senha string `json:"senha"`
		Tipo  string `json:"tipo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Nome == "" || req.Email == "" || req.Senha == "" {
		http.Error(w, "nome, email and senha are required", http.StatusBadRequest)
		return
	}
	if req.Tipo != "participante" && req.Tipo != "organizador" {
		http.Error(w, "tipo must be participante or organizador", http.StatusBadRequest)
		return
	}

	hash, err := HashPassword(req.Senha)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}

	id, err := Registry.RegisterUser(r.Context(), req.Nome, req.Email, hash, req.Tipo)
	if err != nil {
		registryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "status": "ok"}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// HandleEnrollments routes the enrollment collection: POST enrolls,
// GET lists a participant's enrollments.
func HandleEnrollments(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		HandleMyEnrollments(w, r)
		return
	}
	HandleEnroll(w, r)
}

// HandleMyEnrollments lists a participant's enrollments with their
// confirmation codes, newest first.
// Query param: email
func HandleMyEnrollments(w http.ResponseWriter, r *http.Request) {
	if !requireRegistry(w) {
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	entries, err := Registry.ListEnrollments(r.Context(), email)
	if err != nil {
		registryError(w, err)
		return
	}
	if entries == nil {
		entries = []EnrollmentEntry{}
	}

	// The registry stores only the event title; date and location come
	// from the catalog
	for i := range entries {
		if ev, ok := FindCatalogEvent(entries[i].EventTitle); ok {
			entries[i].Date = ev.Date
			entries[i].Location = ev.Location
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		log.Printf("Error encoding enrollments: %v", err)
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
	}
}

// HandleEnroll enrolls a participant in an event, or queues them on the
// waitlist when the event is full.
func HandleEnroll(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !requireRegistry(w) {
		return
	}

	var req struct {
		Email  string `json:"email"`
		Titulo string `json:"titulo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, ok := FindCatalogEvent(req.Titulo)
	if !ok {
		http.Error(w, ErrEventNotFound, http.StatusNotFound)
		return
	}

	result, err := Registry.Enroll(r.Context(), req.Email, req.Titulo, event.Capacity)
	if err != nil {
		Enrollments.WithLabelValues("error").Inc()
		registryError(w, err)
		return
	}
	Enrollments.WithLabelValues(result.Status).Inc()

	// Keep the published card counts truthful
	if result.Status == EnrollmentConfirmed {
		UpdateCatalogEvent(req.Titulo, func(ev *EventRecord) {
			ev.Enrolled = result.Confirmed
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// HandleCancel cancels a confirmed enrollment and frees the seat.
func HandleCancel(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !requireRegistry(w) {
		return
	}

	var req struct {
		Email  string `json:"email"`
		Titulo string `json:"titulo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	confirmed, err := Registry.Cancel(r.Context(), req.Email, req.Titulo)
	if err != nil {
		registryError(w, err)
		return
	}

	UpdateCatalogEvent(req.Titulo, func(ev *EventRecord) {
		ev.Enrolled = confirmed
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// HandleCheckIn marks attendance using a confirmation code.
func HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !requireRegistry(w) {
		return
	}

	var req struct {
		Codigo string `json:"codigo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := Registry.CheckIn(r.Context(), req.Codigo); err != nil {
		registryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// HandleRatings routes the ratings collection: POST records a rating,
// GET lists an event's ratings.
func HandleRatings(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		HandleEventRatings(w, r)
		return
	}
	HandleRate(w, r)
}

// HandleEventRatings lists an event's ratings and comments with their
// average, newest first.
// Query param: titulo
func HandleEventRatings(w http.ResponseWriter, r *http.Request) {
	if !requireRegistry(w) {
		return
	}

	titulo := r.URL.Query().Get("titulo")
	if _, ok := FindCatalogEvent(titulo); !ok {
		http.Error(w, ErrEventNotFound, http.StatusNotFound)
		return
	}

	entries, err := Registry.ListRatings(r.Context(), titulo)
	if err != nil {
		registryError(w, err)
		return
	}
	if entries == nil {
		entries = []RatingEntry{}
	}

	var sum int
	for _, e := range entries {
		sum += e.Score
	}
	media := 0.0
	if len(entries) > 0 {
		media = float64(sum) / float64(len(entries))
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"media_avaliacao":  media,
		"total_avaliacoes": len(entries),
		"avaliacoes":       entries,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding ratings: %v", err)
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
	}
}

// HandleRate records a 1-5 rating from a checked-in participant.
func HandleRate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !requireRegistry(w) {
		return
	}

	var req struct {
		Email      string `json:"email"`
		Titulo     string `json:"titulo"`
		Nota       int    `json:"nota"`
		Comentario string `json:"comentario"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Nota < 1 || req.Nota > 5 {
		http.Error(w, "nota must be between 1 and 5", http.StatusBadRequest)
		return
	}

	avg, count, err := Registry.Rate(r.Context(), req.Email, req.Titulo, req.Nota, req.Comentario)
	if err != nil {
		registryError(w, err)
		return
	}

	UpdateCatalogEvent(req.Titulo, func(ev *EventRecord) {
		ev.Rating = avg
	})

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{"status": "ok", "media_avaliacao": avg, "total_avaliacoes": count}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// HandleReport returns the aggregated report of one event.
// Query param: titulo
func HandleReport(w http.ResponseWriter, r *http.Request) {
	if !requireRegistry(w) {
		return
	}

	titulo := r.URL.Query().Get("titulo")
	if _, ok := FindCatalogEvent(titulo); !ok {
		http.Error(w, ErrEventNotFound, http.StatusNotFound)
		return
	}

	report, err := Registry.Report(r.Context(), titulo)
	if err != nil {
		registryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		log.Printf("Error encoding report: %v", err)
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
	}
}

// HandleCategoryStats returns per-category totals computed from the catalog.
func HandleCategoryStats(w http.ResponseWriter, r *http.Request) {
	type categoryStat struct {
		Categoria string `json:"categoria"`
		Label     string `json:"label"`
		Eventos   int    `json:"eventos"`
		Inscritos int    `json:"inscritos"`
	}

	byCode := make(map[string]*categoryStat)
	var order []string
	for _, ev := range CatalogEvents("") {
		st, ok := byCode[ev.Category]
		if !ok {
			st = &categoryStat{Categoria: ev.Category, Label: CategoryLabel(ev.Category)}
			byCode[ev.Category] = st
			order = append(order, ev.Category)
		}
		st.Eventos++
		st.Inscritos += ev.Enrolled
	}

	stats := make([]categoryStat, 0, len(order))
	for _, code := range order {
		stats = append(stats, *byCode[code])
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Printf("Error encoding category stats: %v", err)
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
	}
}

// AddEvent adds a new event to the catalog (admin mode only)
func AddEvent(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !RequireAdminMode(w) {
		return
	}

	var req EventRecord
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := time.Parse(DateLayout, req.Date); err != nil {
		http.Error(w, ErrInvalidDateFormat, http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "titulo is required", http.StatusBadRequest)
		return
	}
	if _, ok := CategoryLabels[req.Category]; !ok {
		http.Error(w, ErrInvalidCategory, http.StatusBadRequest)
		return
	}

	CatalogMutex.Lock()
	for _, ev := range Catalog {
		if ev.Title == req.Title {
			CatalogMutex.Unlock()
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(map[string]string{"status": "exists"}); err != nil {
				log.Printf("Error encoding response: %v", err)
			}
			return
		}
	}
	Catalog = append(Catalog, req)
	SortEventsByDate(Catalog)
	CatalogMutex.Unlock()

	// Auto-save to tmp file
	if err := saveTmpCatalog(); err != nil {
		log.Printf("Error saving tmp catalog: %v", err)
		http.Error(w, ErrFailedToSave, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// DeleteEvent removes an event from the catalog (admin mode only)
func DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !RequireAdminMode(w) {
		return
	}

	var req struct {
		Titulo string `json:"titulo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	CatalogMutex.Lock()
	kept := Catalog[:0]
	removed := false
	for _, ev := range Catalog {
		if ev.Title == req.Titulo {
			removed = true
			continue
		}
		kept = append(kept, ev)
	}
	Catalog = kept
	CatalogMutex.Unlock()

	if !removed {
		http.Error(w, ErrEventNotFound, http.StatusNotFound)
		return
	}

	if err := saveTmpCatalog(); err != nil {
		log.Printf("Error saving tmp catalog: %v", err)
		http.Error(w, ErrFailedToSave, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// RescheduleEvent moves an event to a new date (admin mode only)
func RescheduleEvent(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !RequireAdminMode(w) {
		return
	}

	var req struct {
		Titulo   string `json:"titulo"`
		NovaData string `json:"nova_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := time.Parse(DateLayout, req.NovaData); err != nil {
		http.Error(w, ErrInvalidDateFormat, http.StatusBadRequest)
		return
	}

	CatalogMutex.Lock()
	found := false
	for i := range Catalog {
		if Catalog[i].Title == req.Titulo {
			Catalog[i].Date = req.NovaData
			found = true
			break
		}
	}
	if found {
		SortEventsByDate(Catalog)
	}
	CatalogMutex.Unlock()

	if !found {
		http.Error(w, ErrEventNotFound, http.StatusNotFound)
		return
	}

	if err := saveTmpCatalog(); err != nil {
		log.Printf("Error saving tmp catalog: %v", err)
		http.Error(w, ErrFailedToSave, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// HandleCatalogCommit commits temporary changes
func HandleCatalogCommit(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !RequireAdminMode(w) {
		return
	}

	if err := CommitCatalog(); err != nil {
		log.Printf("Error committing catalog: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// HandleCatalogRevert reverts temporary changes
func HandleCatalogRevert(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !RequireAdminMode(w) {
		return
	}

	if err := RevertCatalog(); err != nil {
		log.Printf("Error reverting catalog: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// HandleCatalogStatus returns whether there are unsaved changes
func HandleCatalogStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireAdminMode(w) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	status := map[string]bool{
		"has_changes": HasTmpCatalog(),
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// HandleRefresh re-runs the feed loader synchronously (admin mode only).
// The grid is cleared and repopulated from the published feed.
func HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) || !RequireAdminMode(w) {
		return
	}
	if FeedLoader == nil {
		http.Error(w, ErrInternalServer, http.StatusInternalServerError)
		return
	}

	FeedLoader.LoadEvents(r.Context())

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{"status": "ok", "cards": EventGrid.Len()}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// HandleDownload handles catalog exports in ICS, CSV or JSON format
// Query params: format (required), categoria (optional filter)
func HandleDownload(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	categoria := r.URL.Query().Get("categoria")

	events := CatalogEvents(categoria)

	switch format {
	case "ics":
		GenerateICS(w, r, categoria, events)
	case "csv":
		GenerateCSV(w, categoria, events)
	case "json":
		GenerateJSON(w, categoria, events)
	default:
		http.Error(w, ErrInvalidFormat, http.StatusBadRequest)
	}
}

// HandleSubscribe serves an ICS subscription feed of the catalog.
// Query param: categoria (optional filter)
func HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	categoria := r.URL.Query().Get("categoria")
	GenerateSubscriptionICS(w, r, categoria, CatalogEvents(categoria))
}
