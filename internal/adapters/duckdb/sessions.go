package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/policyradar/policyradar/internal/core/ports"
)

// Sessions persists chat sessions and their messages on the shared store.
type Sessions struct {
	db *sql.DB
}

// NewSessions creates the session and message store over an open Store.
func NewSessions(store *Store) *Sessions {
	return &Sessions{db: store.db}
}

// Create inserts a session. Timestamps default to now when zero.
func (s *Sessions) Create(ctx context.Context, sess ports.Session) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, created_at, last_handle, last_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title      = excluded.title,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Title, sess.CreatedAt, sess.LastHandle, sess.LastMessage, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get returns one session by id.
func (s *Sessions) Get(ctx context.Context, id string) (ports.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, last_handle, last_message, updated_at
		FROM sessions WHERE id = ?`, id)

	var sess ports.Session
	err := row.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.LastHandle, &sess.LastMessage, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return ports.Session{}, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return ports.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// List returns all sessions, most recently updated first.
func (s *Sessions) List(ctx context.Context) ([]ports.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at, last_handle, last_message, updated_at
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []ports.Session{}
	for rows.Next() {
		var sess ports.Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.LastHandle, &sess.LastMessage, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Update upserts the mutable session fields.
func (s *Sessions) Update(ctx context.Context, sess ports.Session) error {
	sess.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			title        = ?,
			last_handle  = ?,
			last_message = ?,
			updated_at   = ?
		WHERE id = ?`,
		sess.Title, sess.LastHandle, sess.LastMessage, sess.UpdatedAt, sess.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session not found: %s", sess.ID)
	}
	return nil
}

// Delete removes a session and its messages.
func (s *Sessions) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session messages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ ports.SessionStore = (*Sessions)(nil)

// Messages persists a session's messages on the shared store.
type Messages struct {
	db *sql.DB
}

// NewMessages creates the message store over an open Store.
func NewMessages(store *Store) *Messages {
	return &Messages{db: store.db}
}

// Append stores one message and returns its id.
func (s *Messages) Append(ctx context.Context, m ports.Message) (int64, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	sourcesJSON, _ := json.Marshal(m.Sources)

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, sources, created_at)
		VALUES (nextval('messages_seq'), ?, ?, ?, ?, ?)
		RETURNING id`,
		m.SessionID, m.Role, m.Content, string(sourcesJSON), m.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	return id, nil
}

// List returns a session's messages in insertion order.
func (s *Messages) List(ctx context.Context, sessionID string) ([]ports.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, sources, created_at
		FROM messages WHERE session_id = ?
		ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := []ports.Message{}
	for rows.Next() {
		var m ports.Message
		var sourcesJSON sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &sourcesJSON, &m.CreatedAt); err != nil {
			return nil, err
		}
		if sourcesJSON.Valid && sourcesJSON.String != "" && sourcesJSON.String != "null" {
			_ = json.Unmarshal([]byte(sourcesJSON.String), &m.Sources)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateContent replaces a message's text, used when a streamed answer is
// finalized.
func (s *Messages) UpdateContent(ctx context.Context, sessionID string, messageID int64, content string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = ? WHERE session_id = ? AND id = ?`,
		content, sessionID, messageID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message not found: %d", messageID)
	}
	return nil
}

var _ ports.MessageStore = (*Messages)(nil)
