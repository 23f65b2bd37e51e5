package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureUser creates the user if absent and refreshes the password hash and
// admin flag if present. User provisioning re-runs on every startup, so it
// must be idempotent.
func (s *PostgresStore) EnsureUser(ctx context.Context, username, passwordHash string, isAdmin bool) (User, error) {
	const upsert = `
		INSERT INTO users (username, password_hash, is_admin)
		VALUES ($1, $2, $3)
		ON CONFLICT (username)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, is_admin = EXCLUDED.is_admin
		RETURNING id, username, password_hash, is_admin, created_at
	`
	var user User
	err := s.db.QueryRowContext(ctx, upsert, username, passwordHash, isAdmin).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("ensure user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByName(ctx context.Context, username string) (User, error) {
	const query = `SELECT id, username, password_hash, is_admin, created_at FROM users WHERE username = $1`
	var user User
	err := s.db.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) InsertSubmission(ctx context.Context, radarKey, username string, dateModified time.Time, doc []byte) (Submission, error) {
	const insert = `
		INSERT INTO submissions (radar_key, username, date_modified, document)
		VALUES ($1, $2, $3, $4)
		RETURNING id, radar_key, username, date_modified, document, created_at
	`
	var sub Submission
	err := s.db.QueryRowContext(ctx, insert, radarKey, username, dateModified, doc).
		Scan(&sub.ID, &sub.RadarKey, &sub.Username, &sub.DateModified, &sub.Document, &sub.CreatedAt)
	if err != nil {
		return Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

// LatestSubmission returns the user's most recent submission for a
// radargram, or ErrNotFound if they have never submitted one.
func (s *PostgresStore) LatestSubmission(ctx context.Context, username, radarKey string) (Submission, error) {
	const query = `
		SELECT id, radar_key, username, date_modified, document, created_at
		FROM submissions
		WHERE username = $1 AND radar_key = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var sub Submission
	err := s.db.QueryRowContext(ctx, query, username, radarKey).
		Scan(&sub.ID, &sub.RadarKey, &sub.Username, &sub.DateModified, &sub.Document, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		return Submission{}, fmt.Errorf("latest submission: %w", err)
	}
	return sub, nil
}

// UserSubmissionCounts maps radar key to the number of submissions the user
// made for it.
func (s *PostgresStore) UserSubmissionCounts(ctx context.Context, username string) (map[string]int, error) {
	const query = `SELECT radar_key, COUNT(*) FROM submissions WHERE username = $1 GROUP BY radar_key`
	rows, err := s.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("user submission counts: %w", err)
	}
	defer rows.Close()
	return scanCounts(rows)
}

// SubmitterCounts maps radar key to its number of distinct submitting users.
func (s *PostgresStore) SubmitterCounts(ctx context.Context) (map[string]int, error) {
	const query = `SELECT radar_key, COUNT(DISTINCT username) FROM submissions GROUP BY radar_key`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("submitter counts: %w", err)
	}
	defer rows.Close()
	return scanCounts(rows)
}

func (s *PostgresStore) SubmitterCount(ctx context.Context, radarKey string) (int, error) {
	const query = `SELECT COUNT(DISTINCT username) FROM submissions WHERE radar_key = $1`
	var n int
	if err := s.db.QueryRowContext(ctx, query, radarKey).Scan(&n); err != nil {
		return 0, fmt.Errorf("submitter count: %w", err)
	}
	return n, nil
}

// ListLatestSubmissions returns every user's most recent submission per
// radargram, for aggregated interpretation exports.
func (s *PostgresStore) ListLatestSubmissions(ctx context.Context) ([]Submission, error) {
	const query = `
		SELECT DISTINCT ON (username, radar_key)
			id, radar_key, username, date_modified, document, created_at
		FROM submissions
		ORDER BY username, radar_key, created_at DESC
	`
	return s.listSubmissions(ctx, query)
}

// ListAllSubmissions returns every stored submission, oldest first.
func (s *PostgresStore) ListAllSubmissions(ctx context.Context) ([]Submission, error) {
	const query = `
		SELECT id, radar_key, username, date_modified, document, created_at
		FROM submissions
		ORDER BY created_at
	`
	return s.listSubmissions(ctx, query)
}

func (s *PostgresStore) listSubmissions(ctx context.Context, query string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.RadarKey, &sub.Username, &sub.DateModified, &sub.Document, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanCounts(rows *sql.Rows) (map[string]int, error) {
	counts := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
