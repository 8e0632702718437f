// Package registry persists participants, enrollments, waitlist entries
// and ratings in Postgres. It backs the enrollment API; the service runs
// catalog-only when no registry is configured.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/culturaviva/cv-services/agenda-cultural/internal/app"
)

const schema = `
CREATE TABLE IF NOT EXISTS usuarios (
	id          BIGSERIAL PRIMARY KEY,
	nome        TEXT NOT NULL,
	email       TEXT UNIQUE NOT NULL,
	senha       TEXT NOT NULL,
	tipo        TEXT NOT NULL CHECK (tipo IN ('participante', 'organizador')),
	criado_em   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS inscricoes (
	id            BIGSERIAL PRIMARY KEY,
	usuario_id    BIGINT NOT NULL REFERENCES usuarios(id),
	evento_titulo TEXT NOT NULL,
	codigo        TEXT UNIQUE NOT NULL,
	status        TEXT NOT NULL DEFAULT 'confirmada' CHECK (status IN ('confirmada', 'cancelada', 'presente')),
	presente      BOOLEAN NOT NULL DEFAULT FALSE,
	checkin_em    TIMESTAMPTZ,
	criado_em     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (usuario_id, evento_titulo)
);

CREATE TABLE IF NOT EXISTS avaliacoes (
	id            BIGSERIAL PRIMARY KEY,
	usuario_id    BIGINT NOT NULL REFERENCES usuarios(id),
	evento_titulo TEXT NOT NULL,
	nota          INTEGER NOT NULL CHECK (nota >= 1 AND nota <= 5),
	comentario    TEXT NOT NULL DEFAULT '',
	criado_em     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (usuario_id, evento_titulo)
);

CREATE TABLE IF NOT EXISTS lista_espera (
	id            BIGSERIAL PRIMARY KEY,
	usuario_id    BIGINT NOT NULL REFERENCES usuarios(id),
	evento_titulo TEXT NOT NULL,
	posicao       INTEGER NOT NULL,
	criado_em     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (usuario_id, evento_titulo)
);
`

// Registry implements app.EnrollmentStore on a pgx connection pool.
type Registry struct {
	pool *pgxpool.Pool
}

// Connect opens the pool, verifies the connection and ensures the schema.
func Connect(ctx context.Context, databaseURL string) (*Registry, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach registry database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure registry schema: %w", err)
	}
	return &Registry{pool: pool}, nil
}

// Close releases the pool.
func (r *Registry) Close() {
	r.pool.Close()
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// RegisterUser stores a new user with an already-hashed password.
func (r *Registry) RegisterUser(ctx context.Context, nome, email, senhaHash, tipo string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO usuarios (nome, email, senha, tipo) VALUES ($1, $2, $3, $4) RETURNING id`,
		nome, email, senhaHash, tipo,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, app.ErrDuplicateEmail
		}
		return 0, fmt.Errorf("register user: %w", err)
	}
	return id, nil
}

// queryRower is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// userID resolves an email to the user id.
func (r *Registry) userID(ctx context.Context, q queryRower, email string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM usuarios WHERE email = $1`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, app.ErrUnknownUser
	}
	if err != nil {
		return 0, fmt.Errorf("lookup user: %w", err)
	}
	return id, nil
}

// Enroll confirms a seat if the event still has capacity, otherwise queues
// the participant on the waitlist with the next position.
func (r *Registry) Enroll(ctx context.Context, email, titulo string, capacity int) (app.EnrollmentResult, error) {
	var result app.EnrollmentResult

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin enroll: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	userID, err := r.userID(ctx, tx, email)
	if err != nil {
		return result, err
	}

	var confirmed int
	err = tx.QueryRow(ctx,
		`SELECT count(*) FROM inscricoes WHERE evento_titulo = $1 AND status IN ('confirmada', 'presente')`,
		titulo,
	).Scan(&confirmed)
	if err != nil {
		return result, fmt.Errorf("count enrollments: %w", err)
	}

	if confirmed >= capacity {
		// Event full: queue on the waitlist
		var position int
		err = tx.QueryRow(ctx,
			`INSERT INTO lista_espera (usuario_id, evento_titulo, posicao)
			 VALUES ($1, $2, (SELECT COALESCE(MAX(posicao), 0) + 1 FROM lista_espera WHERE evento_titulo = $2))
			 RETURNING posicao`,
			userID, titulo,
		).Scan(&position)
		if err != nil {
			if isUniqueViolation(err) {
				return result, app.ErrAlreadyEnrolled
			}
			return result, fmt.Errorf("join waitlist: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return result, fmt.Errorf("commit waitlist: %w", err)
		}
		result.Status = app.EnrollmentWaitlisted
		result.Position = position
		result.Confirmed = confirmed
		return result, nil
	}

	codigo := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO inscricoes (usuario_id, evento_titulo, codigo) VALUES ($1, $2, $3)`,
		userID, titulo, codigo,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return result, app.ErrAlreadyEnrolled
		}
		return result, fmt.Errorf("insert enrollment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit enrollment: %w", err)
	}

	result.Status = app.EnrollmentConfirmed
	result.Code = codigo
	result.Confirmed = confirmed + 1
	return result, nil
}

// Cancel frees a confirmed seat and returns the remaining confirmed count.
func (r *Registry) Cancel(ctx context.Context, email, titulo string) (int, error) {
	userID, err := r.userID(ctx, r.pool, email)
	if err != nil {
		return 0, err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE inscricoes SET status = 'cancelada'
		 WHERE usuario_id = $1 AND evento_titulo = $2 AND status = 'confirmada'`,
		userID, titulo,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, app.ErrNotEnrolled
	}

	var confirmed int
	err = r.pool.QueryRow(ctx,
		`SELECT count(*) FROM inscricoes WHERE evento_titulo = $1 AND status IN ('confirmada', 'presente')`,
		titulo,
	).Scan(&confirmed)
	if err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return confirmed, nil
}

// CheckIn marks attendance by confirmation code.
func (r *Registry) CheckIn(ctx context.Context, codigo string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE inscricoes SET presente = TRUE, status = 'presente', checkin_em = now()
		 WHERE codigo = $1 AND status = 'confirmada'`,
		codigo,
	)
	if err != nil {
		return fmt.Errorf("check in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return app.ErrInvalidCode
	}
	return nil
}

// Rate records a rating from a participant who attended the event and
// returns the event's new rating average and count.
func (r *Registry) Rate(ctx context.Context, email, titulo string, nota int, comentario string) (float64, int, error) {
	userID, err := r.userID(ctx, r.pool, email)
	if err != nil {
		return 0, 0, err
	}

	var presente bool
	err = r.pool.QueryRow(ctx,
		`SELECT presente FROM inscricoes WHERE usuario_id = $1 AND evento_titulo = $2`,
		userID, titulo,
	).Scan(&presente)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, app.ErrNotEnrolled
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lookup attendance: %w", err)
	}
	if !presente {
		return 0, 0, app.ErrNotPresent
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO avaliacoes (usuario_id, evento_titulo, nota, comentario) VALUES ($1, $2, $3, $4)`,
		userID, titulo, nota, comentario,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, 0, app.ErrAlreadyRated
		}
		return 0, 0, fmt.Errorf("insert rating: %w", err)
	}

	var avg float64
	var count int
	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(nota), 0), count(*) FROM avaliacoes WHERE evento_titulo = $1`,
		titulo,
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregate ratings: %w", err)
	}
	return avg, count, nil
}

// ListEnrollments returns all of a participant's enrollments, newest first.
func (r *Registry) ListEnrollments(ctx context.Context, email string) ([]app.EnrollmentEntry, error) {
	userID, err := r.userID(ctx, r.pool, email)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT evento_titulo, codigo, status, presente, criado_em
		 FROM inscricoes WHERE usuario_id = $1 ORDER BY criado_em DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var entries []app.EnrollmentEntry
	for rows.Next() {
		var e app.EnrollmentEntry
		if err := rows.Scan(&e.EventTitle, &e.Code, &e.Status, &e.Present, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return entries, nil
}

// ListRatings returns an event's ratings with comments, newest first.
func (r *Registry) ListRatings(ctx context.Context, titulo string) ([]app.RatingEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.nome, a.nota, a.comentario, a.criado_em
		 FROM avaliacoes a
		 JOIN usuarios u ON u.id = a.usuario_id
		 WHERE a.evento_titulo = $1 ORDER BY a.criado_em DESC`,
		titulo,
	)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var entries []app.RatingEntry
	for rows.Next() {
		var e app.RatingEntry
		if err := rows.Scan(&e.Name, &e.Score, &e.Comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return entries, nil
}

// Report aggregates enrollment and rating statistics for one event.
func (r *Registry) Report(ctx context.Context, titulo string) (app.EventReport, error) {
	report := app.EventReport{Title: titulo}

	err := r.pool.QueryRow(ctx,
		`SELECT
			count(*),
			count(*) FILTER (WHERE status IN ('confirmada', 'presente')),
			count(*) FILTER (WHERE status = 'cancelada'),
			count(*) FILTER (WHERE presente)
		 FROM inscricoes WHERE evento_titulo = $1`,
		titulo,
	).Scan(&report.Total, &report.Confirmed, &report.Cancelled, &report.Present)
	if err != nil {
		return report, fmt.Errorf("aggregate enrollments: %w", err)
	}

	if report.Confirmed > 0 {
		report.AttendanceRate = float64(report.Present) / float64(report.Confirmed) * 100
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(nota), 0), count(*) FROM avaliacoes WHERE evento_titulo = $1`,
		titulo,
	).Scan(&report.RatingAverage, &report.RatingCount)
	if err != nil {
		return report, fmt.Errorf("aggregate ratings: %w", err)
	}
	return report, nil
}
