// ABOUTME: SQLite persistence for conversations and per-tenant usage counters.
// ABOUTME: Uses modernc.org/sqlite with WAL mode and automatic schema creation.

package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

// ErrConversationNotFound indicates the conversation id is unknown.
var ErrConversationNotFound = errors.New("conversation not found")

// Store persists conversations and usage counters in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the database at path. The schema is created
// if it doesn't exist; parent directories are created if needed.
func NewStore(path string) (*Store, error) {
	logger := slog.Default().With("component", "conversation-store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("conversation store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			session_key TEXT NOT NULL,
			state TEXT NOT NULL,
			assigned_to TEXT,
			confidence REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,

			CHECK (state IN ('active', 'waiting_approval', 'escalated', 'resolved'))
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_tenant
			ON conversations(tenant_id);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_session
			ON conversations(tenant_id, session_key);

		CREATE TABLE IF NOT EXISTS tenant_usage (
			tenant_id TEXT PRIMARY KEY,
			conversations INTEGER NOT NULL DEFAULT 0,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			kb_queries INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateConversation stores a new conversation and bumps the tenant's
// conversation counter.
func (s *Store) CreateConversation(ctx context.Context, c *Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO conversations (
			id, tenant_id, customer_id, session_key, state,
			assigned_to, confidence, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		c.ID,
		c.TenantID,
		c.CustomerID,
		c.SessionKey,
		string(c.State),
		nullString(c.AssignedTo),
		c.Confidence,
		c.CreatedAt.UTC().Format(time.RFC3339),
		c.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	bump := `
		INSERT INTO tenant_usage (tenant_id, conversations, updated_at)
		VALUES (?, 1, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			conversations = conversations + 1,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, bump, c.TenantID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("updating usage counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("conversation created",
		"conversation_id", c.ID,
		"tenant_id", c.TenantID,
		"session_key", c.SessionKey,
	)
	return nil
}

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, tenant_id, customer_id, session_key, state,
		       assigned_to, confidence, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`
	c, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return c, nil
}

// GetBySessionKey returns a tenant's conversation for a session key.
func (s *Store) GetBySessionKey(ctx context.Context, tenantID, sessionKey string) (*Conversation, error) {
	query := `
		SELECT id, tenant_id, customer_id, session_key, state,
		       assigned_to, confidence, created_at, updated_at
		FROM conversations
		WHERE tenant_id = ? AND session_key = ?
	`
	c, err := scanConversation(s.db.QueryRowContext(ctx, query, tenantID, sessionKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, sessionKey)
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return c, nil
}

// ListByTenant returns all of a tenant's conversations, newest first.
func (s *Store) ListByTenant(ctx context.Context, tenantID string) ([]*Conversation, error) {
	query := `
		SELECT id, tenant_id, customer_id, session_key, state,
		       assigned_to, confidence, created_at, updated_at
		FROM conversations
		WHERE tenant_id = ?
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}
	return out, nil
}

// UpdateState moves a conversation to a new state and records who it is
// assigned to. An empty assignedTo clears the assignment.
func (s *Store) UpdateState(ctx context.Context, id string, state State, assignedTo string) error {
	query := `
		UPDATE conversations
		SET state = ?, assigned_to = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		string(state),
		nullString(assignedTo),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating conversation state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}

	s.logger.Debug("conversation state updated",
		"conversation_id", id,
		"state", state,
		"assigned_to", assignedTo,
	)
	return nil
}

// RecordUsage adds token and knowledge-base counters to a tenant's totals.
func (s *Store) RecordUsage(ctx context.Context, tenantID string, inputTokens, outputTokens, kbQueries int) error {
	query := `
		INSERT INTO tenant_usage (tenant_id, input_tokens, output_tokens, kb_queries, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			input_tokens = input_tokens + excluded.input_tokens,
			output_tokens = output_tokens + excluded.output_tokens,
			kb_queries = kb_queries + excluded.kb_queries,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		tenantID,
		inputTokens,
		outputTokens,
		kbQueries,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

// TenantUsage returns a tenant's accumulated usage counters. Tenants with
// no recorded usage get zeroes.
func (s *Store) TenantUsage(ctx context.Context, tenantID string) (tenant.UsageMetrics, error) {
	query := `
		SELECT conversations, input_tokens, output_tokens, kb_queries
		FROM tenant_usage
		WHERE tenant_id = ?
	`
	var m tenant.UsageMetrics
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&m.Conversations,
		&m.InputTokens,
		&m.OutputTokens,
		&m.KnowledgeBaseQueries,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return tenant.UsageMetrics{}, nil
	}
	if err != nil {
		return tenant.UsageMetrics{}, fmt.Errorf("querying usage: %w", err)
	}
	return m, nil
}

// DeleteByTenant removes a tenant's conversations and usage counters.
func (s *Store) DeleteByTenant(ctx context.Context, tenantID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("deleting conversations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tenant_usage WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("deleting usage counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Info("tenant conversations removed", "tenant_id", tenantID)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var (
		c          Conversation
		state      string
		assignedTo sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.CustomerID,
		&c.SessionKey,
		&state,
		&assignedTo,
		&c.Confidence,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.State = State(state)
	c.AssignedTo = assignedTo.String

	if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
