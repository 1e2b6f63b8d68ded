package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/hireops/internal/types"
)

// schema is applied by Migrate. Statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL,
	full_name     TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT 'recruiter',
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	password_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id              BIGSERIAL PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	department      TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	employment_type TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'active',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS candidates (
	id               BIGSERIAL PRIMARY KEY,
	first_name       TEXT NOT NULL,
	last_name        TEXT NOT NULL,
	email            TEXT NOT NULL,
	phone            TEXT NOT NULL DEFAULT '',
	experience_years INTEGER,
	current_company  TEXT NOT NULL DEFAULT '',
	current_position TEXT NOT NULL DEFAULT '',
	skills           TEXT NOT NULL DEFAULT '',
	linkedin_url     TEXT NOT NULL DEFAULT '',
	portfolio_url    TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS applications (
	id           BIGSERIAL PRIMARY KEY,
	job_id       BIGINT NOT NULL REFERENCES jobs(id),
	candidate_id BIGINT NOT NULL REFERENCES candidates(id),
	status       TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	applied_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ,
	UNIQUE (job_id, candidate_id)
);

CREATE TABLE IF NOT EXISTS application_status_history (
	id             BIGSERIAL PRIMARY KEY,
	application_id BIGINT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
	from_status    TEXT NOT NULL DEFAULT '',
	to_status      TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	changed_by     BIGINT NOT NULL DEFAULT 0,
	changed_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_history_application ON application_status_history (application_id, changed_at DESC);
`

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// PostgresRepository is a Repository backed by PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool and applies the schema.
func Connect(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &PostgresRepository{pool: pool}
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Migrate creates the tables if they do not exist.
func (db *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (db *PostgresRepository) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Load implements Repository.
func (db *PostgresRepository) Load(ctx context.Context, ds Dataset) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`TRUNCATE application_status_history, applications, candidates, jobs, users RESTART IDENTITY CASCADE`,
	); err != nil {
		return fmt.Errorf("failed to clear tables: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"users"},
		[]string{"id", "username", "email", "full_name", "role", "is_active", "password_hash"},
		pgx.CopyFromSlice(len(ds.Users), func(i int) ([]any, error) {
			u := ds.Users[i]
			return []any{u.ID, u.Username, u.Email, u.FullName, u.Role, u.IsActive, u.PasswordHash}, nil
		}),
	); err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"jobs"},
		[]string{"id", "title", "description", "department", "location", "employment_type", "status", "created_at"},
		pgx.CopyFromSlice(len(ds.Jobs), func(i int) ([]any, error) {
			j := ds.Jobs[i]
			return []any{j.ID, j.Title, j.Description, j.Department, j.Location, j.EmploymentType, j.EffectiveStatus(), orNow(j.CreatedAt)}, nil
		}),
	); err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"candidates"},
		[]string{"id", "first_name", "last_name", "email", "phone", "experience_years", "current_company",
			"current_position", "skills", "linkedin_url", "portfolio_url", "location", "created_at"},
		pgx.CopyFromSlice(len(ds.Candidates), func(i int) ([]any, error) {
			c := ds.Candidates[i]
			return []any{c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.ExperienceYears, c.CurrentCompany,
				c.CurrentPosition, c.Skills, c.LinkedInURL, c.PortfolioURL, c.Location, orNow(c.CreatedAt)}, nil
		}),
	); err != nil {
		return fmt.Errorf("failed to load candidates: %w", err)
	}

	for _, app := range ds.Applications {
		appliedAt := orNow(app.AppliedAt)
		if _, err := tx.Exec(ctx,
			`INSERT INTO applications (id, job_id, candidate_id, status, source, notes, applied_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			app.ID, app.JobID, app.CandidateID, string(app.Status), app.Source, app.Notes, appliedAt,
		); err != nil {
			return fmt.Errorf("failed to load application %d: %w", app.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO application_status_history (application_id, to_status, reason, changed_at)
			 VALUES ($1, $2, 'seeded', $3)`,
			app.ID, string(app.Status), appliedAt,
		); err != nil {
			return fmt.Errorf("failed to record history for application %d: %w", app.ID, err)
		}
	}

	// Explicit ids bypass the sequences; move them past the loaded rows.
	for _, table := range []string{"users", "jobs", "candidates", "applications"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE(MAX(id), 0) + 1, false) FROM %[1]s`, table,
		)); err != nil {
			return fmt.Errorf("failed to reset %s sequence: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}

// ListJobs implements Repository.
func (db *PostgresRepository) ListJobs(ctx context.Context) ([]types.Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT j.id, j.title, j.description, j.department, j.location, j.employment_type, j.status, j.created_at,
		        (SELECT COUNT(*) FROM applications a WHERE a.job_id = j.id)
		 FROM jobs j ORDER BY j.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		var j types.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Description, &j.Department, &j.Location,
			&j.EmploymentType, &j.Status, &j.CreatedAt, &j.ApplicationsCount); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListCandidates implements Repository.
func (db *PostgresRepository) ListCandidates(ctx context.Context) ([]types.Candidate, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, first_name, last_name, email, phone, experience_years, current_company, current_position,
		        skills, linkedin_url, portfolio_url, location, created_at
		 FROM candidates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []types.Candidate
	for rows.Next() {
		var c types.Candidate
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.ExperienceYears,
			&c.CurrentCompany, &c.CurrentPosition, &c.Skills, &c.LinkedInURL, &c.PortfolioURL,
			&c.Location, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

const applicationColumns = `id, job_id, candidate_id, status, source, notes, applied_at, updated_at`

func scanApplication(row pgx.Row) (types.Application, error) {
	var (
		app    types.Application
		status string
	)
	err := row.Scan(&app.ID, &app.JobID, &app.CandidateID, &status, &app.Source, &app.Notes, &app.AppliedAt, &app.UpdatedAt)
	app.Status = types.Status(status)
	return app, err
}

// ListApplications implements Repository. Nested job and candidate
// records are attached.
func (db *PostgresRepository) ListApplications(ctx context.Context) ([]types.Application, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+applicationColumns+` FROM applications ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []types.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return db.attach(ctx, apps)
}

// GetApplication implements Repository.
func (db *PostgresRepository) GetApplication(ctx context.Context, id int64) (*types.Application, error) {
	app, err := scanApplication(db.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("Application")
		}
		return nil, fmt.Errorf("failed to get application %d: %w", id, err)
	}
	apps, err := db.attach(ctx, []types.Application{app})
	if err != nil {
		return nil, err
	}
	return &apps[0], nil
}

// CreateApplication implements Repository.
func (db *PostgresRepository) CreateApplication(ctx context.Context, req types.CreateApplicationRequest) (*types.Application, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var jobStatus string
	if err := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, req.JobID).Scan(&jobStatus); err != nil || jobStatus != types.JobStatusActive {
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to get job %d: %w", req.JobID, err)
		}
		return nil, &ErrNotFoundDetail{Detail: "Job not found or inactive"}
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM candidates WHERE id = $1)`, req.CandidateID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to get candidate %d: %w", req.CandidateID, err)
	}
	if !exists {
		return nil, notFound("Candidate")
	}

	app, err := scanApplication(tx.QueryRow(ctx,
		`INSERT INTO applications (job_id, candidate_id, status, source, notes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+applicationColumns,
		req.JobID, req.CandidateID, string(types.StatusApplied), req.Source, req.Notes,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: Application already exists for this job-candidate combination", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO application_status_history (application_id, to_status, changed_at) VALUES ($1, $2, $3)`,
		app.ID, string(app.Status), app.AppliedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to record history: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit application: %w", err)
	}
	return db.GetApplication(ctx, app.ID)
}

// UpdateStatus implements Repository.
func (db *PostgresRepository) UpdateStatus(ctx context.Context, id int64, change StatusChange, check func(types.Status) error) (*types.Application, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from string
	if err := tx.QueryRow(ctx, `SELECT status FROM applications WHERE id = $1 FOR UPDATE`, id).Scan(&from); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("Application")
		}
		return nil, fmt.Errorf("failed to lock application %d: %w", id, err)
	}
	if check != nil {
		if err := check(types.Status(from)); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE applications
		 SET status = $1, updated_at = NOW(), notes = CASE WHEN $2::text = '' THEN notes ELSE $2::text END
		 WHERE id = $3`,
		string(change.Status), change.Notes, id,
	); err != nil {
		return nil, fmt.Errorf("failed to update application %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO application_status_history (application_id, from_status, to_status, reason, notes, changed_by)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, from, string(change.Status), change.Reason, change.Notes, change.ChangedBy,
	); err != nil {
		return nil, fmt.Errorf("failed to record history: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}
	return db.GetApplication(ctx, id)
}

// StatusHistory implements Repository.
func (db *PostgresRepository) StatusHistory(ctx context.Context, id int64) ([]types.StatusHistoryEntry, error) {
	var exists bool
	if err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to get application %d: %w", id, err)
	}
	if !exists {
		return nil, notFound("Application")
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, application_id, from_status, to_status, reason, notes, changed_by, changed_at
		 FROM application_status_history WHERE application_id = $1
		 ORDER BY changed_at DESC, id DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []types.StatusHistoryEntry
	for rows.Next() {
		var (
			e        types.StatusHistoryEntry
			from, to string
		)
		if err := rows.Scan(&e.ID, &e.ApplicationID, &from, &to, &e.Reason, &e.Notes, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.FromStatus, e.ToStatus = types.Status(from), types.Status(to)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UserByUsername implements Repository.
func (db *PostgresRepository) UserByUsername(ctx context.Context, username string) (*StoredUser, error) {
	var u StoredUser
	err := db.pool.QueryRow(ctx,
		`SELECT id, username, email, full_name, role, is_active, password_hash FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.IsActive, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	return &u, nil
}

// UserByID implements Repository.
func (db *PostgresRepository) UserByID(ctx context.Context, id int64) (*types.User, error) {
	var u types.User
	err := db.pool.QueryRow(ctx,
		`SELECT id, username, email, full_name, role, is_active FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &u, nil
}

// attach fills the nested job and candidate of each application.
func (db *PostgresRepository) attach(ctx context.Context, apps []types.Application) ([]types.Application, error) {
	jobs, err := db.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := db.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}

	jobByID := make(map[int64]types.Job, len(jobs))
	for _, j := range jobs {
		jobByID[j.ID] = j
	}
	candidateByID := make(map[int64]types.Candidate, len(candidates))
	for _, c := range candidates {
		candidateByID[c.ID] = c
	}

	for i := range apps {
		if j, ok := jobByID[apps[i].JobID]; ok {
			apps[i].Job = &j
		}
		if c, ok := candidateByID[apps[i].CandidateID]; ok {
			apps[i].Candidate = &c
		}
	}
	return apps, nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
