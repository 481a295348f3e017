package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	title        text NOT NULL DEFAULT '',
	messages     jsonb NOT NULL DEFAULT '[]'::jsonb,
	participants text[] NOT NULL DEFAULT '{}',
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS conversations_updated_at_idx ON conversations (updated_at DESC);
CREATE TABLE IF NOT EXISTS chunks (
	conversation_id uuid PRIMARY KEY,
	chunks          jsonb NOT NULL DEFAULT '[]'::jsonb
);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect creates a pgx pool for dsn and verifies it with a ping.
// SQLAlchemy-style scheme suffixes ("postgresql+asyncpg://") are accepted.
func Connect(ctx context.Context, dsn string, opts ...func(*pgxpool.Config)) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(normalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 4
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

func normalizeDSN(dsn string) string {
	s := strings.TrimSpace(dsn)
	for _, driver := range []string{"+asyncpg", "+pgx", "+psycopg2", "+psycopg"} {
		s = strings.Replace(s, "postgresql"+driver+"://", "postgresql://", 1)
		s = strings.Replace(s, "postgres"+driver+"://", "postgres://", 1)
	}
	return s
}

// EnsureSchema creates the conversations and chunks tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]types.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, title, messages, participants, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (types.Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Conversation{}, errs.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, title, messages, participants, created_at, updated_at
		FROM conversations
		WHERE id = $1::uuid`, id)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Conversation{}, errs.ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) Create(ctx context.Context, c types.Conversation) (types.Conversation, error) {
	c = withDefaults(c, time.Now().UTC())
	if _, err := uuid.Parse(c.ID); err != nil {
		return types.Conversation{}, fmt.Errorf("postgres: conversation id %q is not a uuid", c.ID)
	}
	msgs, err := json.Marshal(c.Messages)
	if err != nil {
		return types.Conversation{}, err
	}
	participants := c.Participants
	if participants == nil {
		participants = []string{}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversations (id, title, messages, participants, created_at, updated_at)
		VALUES ($1::uuid, $2, $3::jsonb, $4, $5, $6)`,
		c.ID, c.Title, string(msgs), participants, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return types.Conversation{}, err
	}
	return c, nil
}

func (s *PostgresStore) UpdateMessages(ctx context.Context, id string, messages []types.Message, updatedAt time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return errs.ErrNotFound
	}
	if messages == nil {
		messages = []types.Message{}
	}
	b, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET messages = $2::jsonb, updated_at = $3
		WHERE id = $1::uuid`, id, string(b), updatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveChunks(ctx context.Context, chunks types.ConversationChunks) error {
	b, err := json.Marshal(chunks.Chunks)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO chunks (conversation_id, chunks) VALUES ($1::uuid, $2::jsonb)
		ON CONFLICT (conversation_id) DO UPDATE SET chunks = EXCLUDED.chunks`,
		chunks.ConversationID, string(b))
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanConversation(row pgx.Row) (types.Conversation, error) {
	var (
		c    types.Conversation
		msgs []byte
	)
	if err := row.Scan(&c.ID, &c.Title, &msgs, &c.Participants, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return types.Conversation{}, err
	}
	if len(msgs) > 0 {
		if err := json.Unmarshal(msgs, &c.Messages); err != nil {
			return types.Conversation{}, fmt.Errorf("postgres: decode messages of %s: %w", c.ID, err)
		}
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}
