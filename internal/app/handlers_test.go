package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRegistry is a canned EnrollmentStore for handler tests.
type fakeRegistry struct {
	err          error
	registeredID int64
	enrollResult EnrollmentResult
	confirmed    int
	rateAvg      float64
	rateCount    int
	enrollments  []EnrollmentEntry
	ratings      []RatingEntry
	report       EventReport
}

func (f *fakeRegistry) RegisterUser(ctx context.Context, nome, email, senhaHash, tipo string) (int64, error) {
	return f.registeredID, f.err
}

func (f *fakeRegistry) Enroll(ctx context.Context, email, titulo string, capacity int) (EnrollmentResult, error) {
	return f.enrollResult, f.err
}

func (f *fakeRegistry) Cancel(ctx context.Context, email, titulo string) (int, error) {
	return f.confirmed, f.err
}

func (f *fakeRegistry) CheckIn(ctx context.Context, codigo string) error {
	return f.err
}

func (f *fakeRegistry) Rate(ctx context.Context, email, titulo string, nota int, comentario string) (float64, int, error) {
	return f.rateAvg, f.rateCount, f.err
}

func (f *fakeRegistry) ListEnrollments(ctx context.Context, email string) ([]EnrollmentEntry, error) {
	return f.enrollments, f.err
}

func (f *fakeRegistry) ListRatings(ctx context.Context, titulo string) ([]RatingEntry, error) {
	return f.ratings, f.err
}

func (f *fakeRegistry) Report(ctx context.Context, titulo string) (EventReport, error) {
	return f.report, f.err
}

// setupCatalog points the catalog at a temp file and installs the given
// events, restoring everything afterwards.
func setupCatalog(t *testing.T, events []EventRecord) {
	t.Helper()
	prevFile := CatalogFile
	CatalogFile = filepath.Join(t.TempDir(), "events.json")

	CatalogMutex.Lock()
	prevCatalog := Catalog
	Catalog = events
	CatalogMutex.Unlock()

	t.Cleanup(func() {
		CatalogFile = prevFile
		CatalogMutex.Lock()
		Catalog = prevCatalog
		CatalogMutex.Unlock()
	})
}

func setupRegistry(t *testing.T, store EnrollmentStore) {
	t.Helper()
	prev := Registry
	Registry = store
	t.Cleanup(func() { Registry = prev })
}

func setupAdminMode(t *testing.T, enabled bool) {
	t.Helper()
	prev := AdminMode
	AdminMode = enabled
	t.Cleanup(func() { AdminMode = prev })
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestServeFeed(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica", Enrolled: 30, Capacity: 50},
		{Title: "Peça de Teatro", Date: "2025-10-01T20:00:00", Category: "teatro"},
	})

	req := httptest.NewRequest("GET", FeedPath, nil)
	w := httptest.NewRecorder()
	ServeFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("Expected JSON content type, got %s", ct)
	}

	// The feed is a bare JSON array of records
	var events []EventRecord
	if err := json.NewDecoder(w.Body).Decode(&events); err != nil {
		t.Fatalf("Feed should decode as an array: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Title != "Festival de Jazz" {
		t.Errorf("Expected Festival de Jazz first, got %s", events[0].Title)
	}
}

func TestServeIndex(t *testing.T) {
	prev := IndexHTML
	IndexHTML = []byte(`<section id="eventGrid">{{range .Fragments}}{{.}}{{end}}</section>`)
	prevAdmin := AdminHTML
	AdminHTML = []byte(`<main>admin</main>`)
	t.Cleanup(func() { IndexHTML = prev; AdminHTML = prevAdmin })

	if err := InitTemplates(); err != nil {
		t.Fatalf("InitTemplates() failed: %v", err)
	}

	EventGrid.DisplayEvents([]EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica"},
	})
	t.Cleanup(func() { EventGrid.DisplayEvents(nil) })

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	ServeIndex(w, req)

	resp := w.Result()
	body := w.Body.String()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `id="eventGrid"`) {
		t.Error("Page should contain the grid container")
	}
	if !strings.Contains(body, "Festival de Jazz") {
		t.Error("Page should contain the rendered card")
	}
}

func TestServeIndex_NotFound(t *testing.T) {
	req := httptest.NewRequest("GET", "/nao-existe", nil)
	w := httptest.NewRecorder()
	ServeIndex(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", w.Result().StatusCode)
	}
}

func TestGetConfig(t *testing.T) {
	setupCatalog(t, []EventRecord{{Title: "Festival de Jazz", Category: "musica"}})
	setupRegistry(t, nil)

	req := httptest.NewRequest("GET", "/api/config", nil)
	w := httptest.NewRecorder()
	GetConfig(w, req)

	var config map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&config); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if config["registryEnabled"] != false {
		t.Error("registryEnabled should be false without a registry")
	}
	if config["totalEventos"] != float64(1) {
		t.Errorf("Expected totalEventos 1, got %v", config["totalEventos"])
	}
	if _, ok := config["categorias"].(map[string]interface{}); !ok {
		t.Error("Config should include the category map")
	}
}

func TestHandleEnroll_RegistryUnavailable(t *testing.T) {
	setupRegistry(t, nil)

	w := postJSON(t, HandleEnroll, "/api/inscricoes", map[string]string{
		"email": "ana@example.com", "titulo": "Festival de Jazz",
	})
	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without registry, got %d", w.Result().StatusCode)
	}
}

func TestHandleEnroll_EventNotFound(t *testing.T) {
	setupCatalog(t, nil)
	setupRegistry(t, &fakeRegistry{})

	w := postJSON(t, HandleEnroll, "/api/inscricoes", map[string]string{
		"email": "ana@example.com", "titulo": "Evento Fantasma",
	})
	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown event, got %d", w.Result().StatusCode)
	}
}

func TestHandleEnroll_Confirmed(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica", Enrolled: 30, Capacity: 50},
	})
	setupRegistry(t, &fakeRegistry{
		enrollResult: EnrollmentResult{Status: EnrollmentConfirmed, Code: "abc-123", Confirmed: 31},
	})

	w := postJSON(t, HandleEnroll, "/api/inscricoes", map[string]string{
		"email": "ana@example.com", "titulo": "Festival de Jazz",
	})

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Result().StatusCode, w.Body.String())
	}

	var result EnrollmentResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Status != EnrollmentConfirmed {
		t.Errorf("Expected status %q, got %q", EnrollmentConfirmed, result.Status)
	}
	if result.Code != "abc-123" {
		t.Errorf("Expected confirmation code in response, got %q", result.Code)
	}

	// The published card count follows the registry
	ev, ok := FindCatalogEvent("Festival de Jazz")
	if !ok {
		t.Fatal("Event disappeared from catalog")
	}
	if ev.Enrolled != 31 {
		t.Errorf("Expected catalog Enrolled 31, got %d", ev.Enrolled)
	}
}

func TestHandleEnroll_Waitlisted(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica", Enrolled: 50, Capacity: 50},
	})
	setupRegistry(t, &fakeRegistry{
		enrollResult: EnrollmentResult{Status: EnrollmentWaitlisted, Position: 3, Confirmed: 50},
	})

	w := postJSON(t, HandleEnroll, "/api/inscricoes", map[string]string{
		"email": "ana@example.com", "titulo": "Festival de Jazz",
	})

	var result EnrollmentResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Status != EnrollmentWaitlisted {
		t.Errorf("Expected status %q, got %q", EnrollmentWaitlisted, result.Status)
	}
	if result.Position != 3 {
		t.Errorf("Expected waitlist position 3, got %d", result.Position)
	}

	// Full event: card count must not move
	ev, _ := FindCatalogEvent("Festival de Jazz")
	if ev.Enrolled != 50 {
		t.Errorf("Waitlisting should not change Enrolled, got %d", ev.Enrolled)
	}
}

func TestHandleEnroll_AlreadyEnrolled(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica", Capacity: 50},
	})
	setupRegistry(t, &fakeRegistry{err: ErrAlreadyEnrolled})

	w := postJSON(t, HandleEnroll, "/api/inscricoes", map[string]string{
		"email": "ana@example.com", "titulo": "Festival de Jazz",
	})
	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate enrollment, got %d", w.Result().StatusCode)
	}
}

func TestHandleMyEnrollments(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Location: "Praça Central", Category: "musica"},
	})
	setupRegistry(t, &fakeRegistry{
		enrollments: []EnrollmentEntry{
			{EventTitle: "Festival de Jazz", Code: "abc-123", Status: EnrollmentConfirmed, Present: false},
			{EventTitle: "Evento Removido", Code: "def-456", Status: "cancelada", Present: false},
		},
	})

	// Served through the collection route: GET lists, POST enrolls
	req := httptest.NewRequest("GET", "/api/inscricoes?email=ana@example.com", nil)
	w := httptest.NewRecorder()
	HandleEnrollments(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Result().StatusCode, w.Body.String())
	}

	var entries []EnrollmentEntry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatalf("Failed to decode enrollments: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 enrollments, got %d", len(entries))
	}

	// Confirmation codes are recoverable here
	if entries[0].Code != "abc-123" {
		t.Errorf("Expected confirmation code abc-123, got %q", entries[0].Code)
	}

	// Entries for catalog events carry date and location from the card
	if entries[0].Date != "2025-09-12T19:30:00" || entries[0].Location != "Praça Central" {
		t.Errorf("Expected catalog date/location, got %+v", entries[0])
	}
	// Entries for events no longer in the catalog keep empty card fields
	if entries[1].Date != "" || entries[1].Location != "" {
		t.Errorf("Removed event should have no card fields, got %+v", entries[1])
	}
}

func TestHandleMyEnrollments_MissingEmail(t *testing.T) {
	setupRegistry(t, &fakeRegistry{})

	req := httptest.NewRequest("GET", "/api/inscricoes", nil)
	w := httptest.NewRecorder()
	HandleEnrollments(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without email, got %d", w.Result().StatusCode)
	}
}

func TestHandleMyEnrollments_UnknownUser(t *testing.T) {
	setupRegistry(t, &fakeRegistry{err: ErrUnknownUser})

	req := httptest.NewRequest("GET", "/api/inscricoes?email=quem@example.com", nil)
	w := httptest.NewRecorder()
	HandleEnrollments(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown user, got %d", w.Result().StatusCode)
	}
}

func TestHandleMyEnrollments_Empty(t *testing.T) {
	setupRegistry(t, &fakeRegistry{})

	req := httptest.NewRequest("GET", "/api/inscricoes?email=ana@example.com", nil)
	w := httptest.NewRecorder()
	HandleEnrollments(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Result().StatusCode)
	}
	// Empty list encodes as an array, not null
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("Expected empty array, got %q", body)
	}
}

func TestHandleEventRatings(t *testing.T) {
	setupCatalog(t, []EventRecord{{Title: "Festival de Jazz", Category: "musica"}})
	setupRegistry(t, &fakeRegistry{
		ratings: []RatingEntry{
			{Name: "Ana Souza", Score: 5, Comment: "Ótimo!"},
			{Name: "Bruno Lima", Score: 4, Comment: ""},
		},
	})

	req := httptest.NewRequest("GET", "/api/avaliacoes?titulo=Festival+de+Jazz", nil)
	w := httptest.NewRecorder()
	HandleRatings(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Result().StatusCode, w.Body.String())
	}

	var resp struct {
		Media      float64       `json:"media_avaliacao"`
		Total      int           `json:"total_avaliacoes"`
		Avaliacoes []RatingEntry `json:"avaliacoes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode ratings: %v", err)
	}
	if resp.Media != 4.5 {
		t.Errorf("Expected media 4.5, got %v", resp.Media)
	}
	if resp.Total != 2 {
		t.Errorf("Expected total 2, got %d", resp.Total)
	}
	if len(resp.Avaliacoes) != 2 || resp.Avaliacoes[0].Comment != "Ótimo!" {
		t.Errorf("Expected comments in response, got %+v", resp.Avaliacoes)
	}
}

func TestHandleEventRatings_UnknownEvent(t *testing.T) {
	setupCatalog(t, nil)
	setupRegistry(t, &fakeRegistry{})

	req := httptest.NewRequest("GET", "/api/avaliacoes?titulo=Fantasma", nil)
	w := httptest.NewRecorder()
	HandleRatings(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown event, got %d", w.Result().StatusCode)
	}
}

func TestHandleEventRatings_NoRatings(t *testing.T) {
	setupCatalog(t, []EventRecord{{Title: "Festival de Jazz", Category: "musica"}})
	setupRegistry(t, &fakeRegistry{})

	req := httptest.NewRequest("GET", "/api/avaliacoes?titulo=Festival+de+Jazz", nil)
	w := httptest.NewRecorder()
	HandleRatings(w, req)

	var resp struct {
		Media      float64       `json:"media_avaliacao"`
		Total      int           `json:"total_avaliacoes"`
		Avaliacoes []RatingEntry `json:"avaliacoes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode ratings: %v", err)
	}
	if resp.Media != 0 || resp.Total != 0 {
		t.Errorf("Expected zero stats for unrated event, got %+v", resp)
	}
	if resp.Avaliacoes == nil || len(resp.Avaliacoes) != 0 {
		t.Errorf("Expected empty array, got %+v", resp.Avaliacoes)
	}
}

func TestHandleRatings_PostStillRates(t *testing.T) {
	setupCatalog(t, []EventRecord{{Title: "Festival de Jazz", Category: "musica", Rating: 4.0}})
	setupRegistry(t, &fakeRegistry{rateAvg: 4.2, rateCount: 5})

	w := postJSON(t, HandleRatings, "/api/avaliacoes", map[string]interface{}{
		"email": "ana@example.com", "titulo": "Festival de Jazz", "nota": 4,
	})
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("POST through the collection route should rate, got %d: %s", w.Result().StatusCode, w.Body.String())
	}
}

func TestHandleRegisterUser(t *testing.T) {
	setupRegistry(t, &fakeRegistry{registeredID: 7})

	w := postJSON(t, HandleRegisterUser, "/api/usuarios", map[string]string{
		"nome": "Ana Souza", "email": "ana@example.com", "senha": "SenhaForte123", "tipo": "participante",
	})
	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Result().StatusCode, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["id"] != float64(7) {
		t.Errorf("Expected id 7, got %v", resp["id"])
	}
}

func TestHandleRegisterUser_Validation(t *testing.T) {
	setupRegistry(t, &fakeRegistry{})

	tests := []struct {
		name string
		body map[string]string
	}{
		{"Missing fields", map[string]string{"nome": "Ana"}},
		{"Bad tipo", map[string]string{"nome": "Ana", "email": "a@b.c", "senha": "x", "tipo": "visitante"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, HandleRegisterUser, "/api/usuarios", tt.body)
			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Result().StatusCode)
			}
		})
	}
}

func TestHandleRegisterUser_DuplicateEmail(t *testing.T) {
	setupRegistry(t, &fakeRegistry{err: ErrDuplicateEmail})

	w := postJSON(t, HandleRegisterUser, "/api/usuarios", map[string]string{
		"nome": "Ana Souza", "email": "ana@example.com", "senha": "SenhaForte123", "tipo": "participante",
	})
	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate email, got %d", w.Result().StatusCode)
	}
}

func TestHandleCancel(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica", Enrolled: 31, Capacity: 50},
	})
	setupRegistry(t, &fakeRegistry{confirmed: 30})

	w := postJSON(t, HandleCancel, "/api/inscricoes/cancel", map[string]string{
		"email": "ana@example.com", "titulo": "Festival de Jazz",
	})
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Result().StatusCode, w.Body.String())
	}

	ev, _ := FindCatalogEvent("Festival de Jazz")
	if ev.Enrolled != 30 {
		t.Errorf("Cancel should free the seat on the card, got Enrolled %d", ev.Enrolled)
	}
}

func TestHandleCancel_NotEnrolled(t *testing.T) {
	setupCatalog(t, []EventRecord{{Title: "Festival de Jazz", Category: "musica"}})
	setupRegistry(t, &fakeRegistry{err: ErrNotEnrolled})

	w := postJSON(t, HandleCancel, "/api/inscricoes/cancel", map[string]string{
		"email": "ana@example.com", "titulo": "Festival de Jazz",
	})
	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without a confirmed enrollment, got %d", w.Result().StatusCode)
	}
}

func TestHandleCheckIn_InvalidCode(t *testing.T) {
	setupRegistry(t, &fakeRegistry{err: ErrInvalidCode})

	w := postJSON(t, HandleCheckIn, "/api/checkin", map[string]string{"codigo": "nope"})
	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for invalid code, got %d", w.Result().StatusCode)
	}
}

func TestHandleRate(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica", Rating: 4.0},
	})
	setupRegistry(t, &fakeRegistry{rateAvg: 4.5, rateCount: 8})

	w := postJSON(t, HandleRate, "/api/avaliacoes", map[string]interface{}{
		"email": "ana@example.com", "titulo": "Festival de Jazz", "nota": 5, "comentario": "Ótimo!",
	})
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Result().StatusCode, w.Body.String())
	}

	// The card rating follows the new average
	ev, _ := FindCatalogEvent("Festival de Jazz")
	if ev.Rating != 4.5 {
		t.Errorf("Expected catalog Rating 4.5, got %v", ev.Rating)
	}
}

func TestHandleRate_Validation(t *testing.T) {
	setupRegistry(t, &fakeRegistry{})

	for _, nota := range []int{0, 6, -1} {
		w := postJSON(t, HandleRate, "/api/avaliacoes", map[string]interface{}{
			"email": "ana@example.com", "titulo": "Festival de Jazz", "nota": nota,
		})
		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("nota=%d: expected 400, got %d", nota, w.Result().StatusCode)
		}
	}
}

func TestHandleRate_NotPresent(t *testing.T) {
	setupCatalog(t, []EventRecord{{Title: "Festival de Jazz", Category: "musica"}})
	setupRegistry(t, &fakeRegistry{err: ErrNotPresent})

	w := postJSON(t, HandleRate, "/api/avaliacoes", map[string]interface{}{
		"email": "ana@example.com", "titulo": "Festival de Jazz", "nota": 4,
	})
	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 when participant did not attend, got %d", w.Result().StatusCode)
	}
}

func TestHandleReport(t *testing.T) {
	setupCatalog(t, []EventRecord{{Title: "Festival de Jazz", Category: "musica"}})
	setupRegistry(t, &fakeRegistry{
		report: EventReport{Title: "Festival de Jazz", Total: 10, Confirmed: 8, Present: 6, AttendanceRate: 75},
	})

	req := httptest.NewRequest("GET", "/api/report?titulo=Festival+de+Jazz", nil)
	w := httptest.NewRecorder()
	HandleReport(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Result().StatusCode)
	}

	var report EventReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.AttendanceRate != 75 {
		t.Errorf("Expected attendance rate 75, got %v", report.AttendanceRate)
	}
}

func TestHandleReport_UnknownEvent(t *testing.T) {
	setupCatalog(t, nil)
	setupRegistry(t, &fakeRegistry{})

	req := httptest.NewRequest("GET", "/api/report?titulo=Fantasma", nil)
	w := httptest.NewRecorder()
	HandleReport(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown event, got %d", w.Result().StatusCode)
	}
}

func TestHandleCategoryStats(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Category: "musica", Enrolled: 30},
		{Title: "Noite de MPB", Category: "musica", Enrolled: 20},
		{Title: "Peça de Teatro", Category: "teatro", Enrolled: 15},
	})

	req := httptest.NewRequest("GET", "/api/stats/categorias", nil)
	w := httptest.NewRecorder()
	HandleCategoryStats(w, req)

	var stats []struct {
		Categoria string `json:"categoria"`
		Label     string `json:"label"`
		Eventos   int    `json:"eventos"`
		Inscritos int    `json:"inscritos"`
	}
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(stats))
	}
	if stats[0].Categoria != "musica" || stats[0].Eventos != 2 || stats[0].Inscritos != 50 {
		t.Errorf("Unexpected musica stats: %+v", stats[0])
	}
	if stats[0].Label != "Música" {
		t.Errorf("Expected label Música, got %s", stats[0].Label)
	}
}

func TestAddEvent(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Peça de Teatro", Date: "2025-10-01T20:00:00", Category: "teatro"},
	})
	setupAdminMode(t, true)

	w := postJSON(t, AddEvent, "/api/events/add", EventRecord{
		Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica", Capacity: 50,
	})
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Result().StatusCode, w.Body.String())
	}

	// Catalog is kept sorted by date
	events := CatalogEvents("")
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Title != "Festival de Jazz" {
		t.Errorf("Expected Festival de Jazz first after sort, got %s", events[0].Title)
	}

	// Changes land in the tmp file until committed
	if !HasTmpCatalog() {
		t.Error("AddEvent should auto-save to the tmp catalog")
	}
}

func TestAddEvent_Duplicate(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica"},
	})
	setupAdminMode(t, true)

	w := postJSON(t, AddEvent, "/api/events/add", EventRecord{
		Title: "Festival de Jazz", Date: "2025-09-13T19:30:00", Category: "musica",
	})

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "exists" {
		t.Errorf("Expected status exists, got %q", resp["status"])
	}
	if len(CatalogEvents("")) != 1 {
		t.Error("Duplicate add should not grow the catalog")
	}
}

func TestAddEvent_Validation(t *testing.T) {
	setupCatalog(t, nil)
	setupAdminMode(t, true)

	tests := []struct {
		name  string
		event EventRecord
	}{
		{"Bad date", EventRecord{Title: "X", Date: "hoje", Category: "musica"}},
		{"Missing title", EventRecord{Date: "2025-09-12T19:30:00", Category: "musica"}},
		{"Unknown category", EventRecord{Title: "X", Date: "2025-09-12T19:30:00", Category: "circo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, AddEvent, "/api/events/add", tt.event)
			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Result().StatusCode)
			}
		})
	}
}

func TestAddEvent_AdminModeDisabled(t *testing.T) {
	setupCatalog(t, nil)
	setupAdminMode(t, false)

	w := postJSON(t, AddEvent, "/api/events/add", EventRecord{
		Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica",
	})
	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 with admin mode disabled, got %d", w.Result().StatusCode)
	}
}

func TestDeleteEvent(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica"},
	})
	setupAdminMode(t, true)

	w := postJSON(t, DeleteEvent, "/api/events/delete", map[string]string{"titulo": "Festival de Jazz"})
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Result().StatusCode)
	}
	if len(CatalogEvents("")) != 0 {
		t.Error("Event should be removed from catalog")
	}

	w = postJSON(t, DeleteEvent, "/api/events/delete", map[string]string{"titulo": "Festival de Jazz"})
	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for second delete, got %d", w.Result().StatusCode)
	}
}

func TestRescheduleEvent(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica"},
		{Title: "Peça de Teatro", Date: "2025-09-15T20:00:00", Category: "teatro"},
	})
	setupAdminMode(t, true)

	w := postJSON(t, RescheduleEvent, "/api/events/reschedule", map[string]string{
		"titulo": "Festival de Jazz", "nova_data": "2025-09-20T19:30:00",
	})
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Result().StatusCode)
	}

	events := CatalogEvents("")
	// Re-sorted: the theater play now comes first
	if events[0].Title != "Peça de Teatro" {
		t.Errorf("Expected Peça de Teatro first after reschedule, got %s", events[0].Title)
	}
	if events[1].Date != "2025-09-20T19:30:00" {
		t.Errorf("Expected rescheduled date, got %s", events[1].Date)
	}
}

func TestHandleDownload_InvalidFormat(t *testing.T) {
	setupCatalog(t, nil)

	req := httptest.NewRequest("GET", "/api/download?format=xml", nil)
	w := httptest.NewRecorder()
	HandleDownload(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown format, got %d", w.Result().StatusCode)
	}
}

func TestHandleDownload_CategoryFilter(t *testing.T) {
	setupCatalog(t, []EventRecord{
		{Title: "Festival de Jazz", Date: "2025-09-12T19:30:00", Category: "musica"},
		{Title: "Peça de Teatro", Date: "2025-10-01T20:00:00", Category: "teatro"},
	})

	req := httptest.NewRequest("GET", "/api/download?format=csv&categoria=teatro", nil)
	w := httptest.NewRecorder()
	HandleDownload(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "Peça de Teatro") {
		t.Error("Filtered export should contain the teatro event")
	}
	if strings.Contains(body, "Festival de Jazz") {
		t.Error("Filtered export should not contain other categories")
	}
}
