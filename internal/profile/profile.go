// Package profile provides persistent storage for what Jarvis knows
// about its user: the name to address them by and free-form notes they
// asked it to remember. Unlike conversation history, the profile
// survives restarts.
package profile

import (
	"database/sql"
	"fmt"
	"time"
)

// Store manages profile persistence.
type Store struct {
	db *sql.DB
}

// Open creates a profile store at the given database path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// New creates a profile store using an existing database connection.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS profile (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			note TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetName records the name the user wants to be addressed by.
func (s *Store) SetName(name string) error {
	_, err := s.db.Exec(`
		INSERT INTO profile (key, value, updated_at) VALUES ('name', ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set name: %w", err)
	}
	return nil
}

// Name returns the stored user name, or "" when none has been set.
func (s *Store) Name() (string, error) {
	var name string
	err := s.db.QueryRow(`SELECT value FROM profile WHERE key = 'name'`).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get name: %w", err)
	}
	return name, nil
}

// AddNote appends a fact the user asked Jarvis to remember.
func (s *Store) AddNote(note string) error {
	_, err := s.db.Exec(`INSERT INTO notes (note, created_at) VALUES (?, ?)`,
		note, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("add note: %w", err)
	}
	return nil
}

// Notes returns all stored notes in the order they were added.
func (s *Store) Notes() ([]string, error) {
	rows, err := s.db.Query(`SELECT note FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
