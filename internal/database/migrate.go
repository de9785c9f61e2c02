package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Timestamps are UTC civil time; columns carry no zone.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id                     UUID PRIMARY KEY,
		initiator_id           UUID NOT NULL,
		receiver_id            UUID NOT NULL,
		last_message_id        UUID,
		last_message_timestamp TIMESTAMP,
		initiator_deleted_at   TIMESTAMP,
		receiver_deleted_at    TIMESTAMP,
		created_at             TIMESTAMP NOT NULL,
		updated_at             TIMESTAMP NOT NULL,
		CONSTRAINT conversations_distinct_participants CHECK (initiator_id <> receiver_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS conversations_pair_idx
		ON conversations (LEAST(initiator_id, receiver_id), GREATEST(initiator_id, receiver_id))`,
	`CREATE TABLE IF NOT EXISTS messages (
		id                  UUID PRIMARY KEY,
		conversation_id     UUID NOT NULL REFERENCES conversations (id),
		sender_id           UUID NOT NULL,
		receiver_id         UUID NOT NULL,
		content             TEXT NOT NULL DEFAULT '',
		message_type        TEXT NOT NULL DEFAULT 'text',
		reply_to_message_id UUID REFERENCES messages (id),
		is_read             BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at          TIMESTAMP,
		created_at          TIMESTAMP NOT NULL,
		updated_at          TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_created_idx ON messages (conversation_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS messages_unread_idx ON messages (receiver_id) WHERE is_read = FALSE AND deleted_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS message_reports (
		id          UUID PRIMARY KEY,
		message_id  UUID NOT NULL REFERENCES messages (id),
		reporter_id UUID NOT NULL,
		reason      TEXT NOT NULL,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contact_requests (
		id              UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations (id),
		sender_id       UUID NOT NULL,
		receiver_id     UUID NOT NULL,
		email_sent      BOOLEAN NOT NULL,
		created_at      TIMESTAMP NOT NULL
	)`,
}

// Migrate creates the messaging tables. The users table belongs to the platform.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
