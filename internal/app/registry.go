package app

import (
	"context"
	"errors"
	"time"
)

// Enrollment statuses as stored and reported by the registry.
const (
	EnrollmentConfirmed  = "confirmada"
	EnrollmentWaitlisted = "lista_espera"
)

// Registry sentinel errors, mapped to HTTP statuses by the handlers.
var (
	ErrUnknownUser     = errors.New("unknown user")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrAlreadyEnrolled = errors.New("already enrolled in event")
	ErrNotEnrolled     = errors.New("no confirmed enrollment for event")
	ErrInvalidCode     = errors.New("invalid or used confirmation code")
	ErrNotPresent      = errors.New("participant did not attend event")
	ErrAlreadyRated    = errors.New("event already rated by participant")
)

// EnrollmentResult is the outcome of an enrollment attempt.
type EnrollmentResult struct {
	Status    string `json:"status"`
	Code      string `json:"codigo_confirmacao,omitempty"`
	Position  int    `json:"posicao,omitempty"`
	Confirmed int    `json:"-"`
}

// EnrollmentEntry is one enrollment as seen by its participant. Date and
// Location come from the catalog, not the registry.
type EnrollmentEntry struct {
	EventTitle string    `json:"evento_titulo"`
	Date       string    `json:"data,omitempty"`
	Location   string    `json:"local,omitempty"`
	Code       string    `json:"codigo_confirmacao"`
	Status     string    `json:"status"`
	Present    bool      `json:"presente"`
	CreatedAt  time.Time `json:"criado_em"`
}

// RatingEntry is one participant rating of an event.
type RatingEntry struct {
	Name      string    `json:"nome"`
	Score     int       `json:"nota"`
	Comment   string    `json:"comentario"`
	CreatedAt time.Time `json:"criado_em"`
}

// EventReport aggregates enrollment and rating figures for one event.
type EventReport struct {
	Title          string  `json:"titulo"`
	Total          int     `json:"total_inscricoes"`
	Confirmed      int     `json:"confirmadas"`
	Cancelled      int     `json:"canceladas"`
	Present        int     `json:"presentes"`
	AttendanceRate float64 `json:"taxa_comparecimento"`
	RatingAverage  float64 `json:"media_avaliacao"`
	RatingCount    int     `json:"total_avaliacoes"`
}

// EnrollmentStore is the participant registry behind the enrollment API.
// Implemented by internal/registry on Postgres; nil disables the API.
type EnrollmentStore interface {
	// RegisterUser stores a new user with an already-hashed password and
	// returns its id.
	RegisterUser(ctx context.Context, nome, email, senhaHash, tipo string) (int64, error)
	// Enroll confirms a seat if capacity allows, otherwise queues the
	// participant on the waitlist.
	Enroll(ctx context.Context, email, titulo string, capacity int) (EnrollmentResult, error)
	// Cancel frees a confirmed seat and returns the remaining confirmed count.
	Cancel(ctx context.Context, email, titulo string) (int, error)
	// CheckIn marks attendance by confirmation code.
	CheckIn(ctx context.Context, codigo string) error
	// Rate records a 1-5 rating; the participant must have checked in.
	// Returns the event's new rating average and count.
	Rate(ctx context.Context, email, titulo string, nota int, comentario string) (float64, int, error)
	// ListEnrollments returns all of a participant's enrollments, newest
	// first. This is where a lost confirmation code is recovered.
	ListEnrollments(ctx context.Context, email string) ([]EnrollmentEntry, error)
	// ListRatings returns an event's ratings with comments, newest first.
	ListRatings(ctx context.Context, titulo string) ([]RatingEntry, error)
	// Report aggregates enrollment and rating statistics for one event.
	Report(ctx context.Context, titulo string) (EventReport, error)
}
