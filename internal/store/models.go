package store

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Submission is one stored digitizing document. Document holds the full
// JSON payload as submitted; the store never interprets it beyond the
// indexed columns.
type Submission struct {
	ID           string
	RadarKey     string
	Username     string
	DateModified time.Time
	Document     []byte
	CreatedAt    time.Time
}
