// Package inquiries persists contact/booking form submissions in SQLite.
package inquiries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/cutroom/cutroom/internal/uid"
)

// timeFormat is the ISO 8601 format used for timestamps in SQLite.
const timeFormat = "2006-01-02T15:04:05.000Z"

// Inquiry is one contact/booking form submission.
type Inquiry struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Service   string
	Message   string
	CreatedAt time.Time
}

// Store persists inquiries in a SQLite database. Submissions are the only
// durable state this backend owns; video objects live in the object store.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at the given DSN and
// initializes the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing inquiries database: %w", err)
	}
	return s, nil
}

// initDB applies PRAGMAs and creates the schema. Idempotent via IF NOT EXISTS.
func (s *Store) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS inquiries (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL,
			phone      TEXT NOT NULL DEFAULT '',
			service    TEXT NOT NULL DEFAULT '',
			message    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_inquiries_created ON inquiries(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Save persists a new inquiry. The ID and CreatedAt are assigned here and
// written back to the passed record.
func (s *Store) Save(ctx context.Context, inq *Inquiry) error {
	if inq.ID == "" {
		inq.ID = uid.New()
	}
	if inq.CreatedAt.IsZero() {
		inq.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inquiries (id, name, email, phone, service, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inq.ID, inq.Name, inq.Email, inq.Phone, inq.Service, inq.Message,
		inq.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting inquiry: %w", err)
	}
	return nil
}

// Get fetches a single inquiry by ID. Returns (nil, nil) if absent.
func (s *Store) Get(ctx context.Context, id string) (*Inquiry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, service, message, created_at
		FROM inquiries WHERE id = ?`, id)

	inq, err := scanInquiry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying inquiry %q: %w", id, err)
	}
	return inq, nil
}

// Recent returns up to limit inquiries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Inquiry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, service, message, created_at
		FROM inquiries ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing inquiries: %w", err)
	}
	defer rows.Close()

	var out []*Inquiry
	for rows.Next() {
		inq, err := scanInquiry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning inquiry: %w", err)
		}
		out = append(out, inq)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInquiry(sc scanner) (*Inquiry, error) {
	var inq Inquiry
	var created string
	if err := sc.Scan(&inq.ID, &inq.Name, &inq.Email, &inq.Phone, &inq.Service, &inq.Message, &created); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", created, err)
	}
	inq.CreatedAt = t
	return &inq, nil
}
