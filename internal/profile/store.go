// Package profile persists each user's held card set.
package profile

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the database connection for held-card persistence.
type Store struct {
	conn *sql.DB
}

// NewStore opens the database and initializes the schema.
func NewStore(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn}

	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS user_cards (
			user_id TEXT NOT NULL,
			card_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, card_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_cards_user_id ON user_cards(user_id)`,
	}

	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// HeldCards returns the user's card ids in the order they were saved.
func (s *Store) HeldCards(userID string) ([]string, error) {
	rows, err := s.conn.Query(
		`SELECT card_id FROM user_cards WHERE user_id = ? ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query held cards: %w", err)
	}
	defer rows.Close()

	var cardIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card id: %w", err)
		}
		cardIDs = append(cardIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating held cards: %w", err)
	}

	return cardIDs, nil
}

// ReplaceHeldCards replaces the user's held card set in a single
// transaction, preserving the supplied order.
func (s *Store) ReplaceHeldCards(userID string, cardIDs []string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM user_cards WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear held cards: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO user_cards (user_id, card_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, cardID := range cardIDs {
		if _, err := stmt.Exec(userID, cardID, i); err != nil {
			return fmt.Errorf("failed to insert card %s: %w", cardID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
