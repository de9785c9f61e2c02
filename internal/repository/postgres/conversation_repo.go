package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
)

const conversationColumns = `
	id, initiator_id, receiver_id, last_message_id, last_message_timestamp,
	initiator_deleted_at, receiver_deleted_at, created_at, updated_at`

type ConversationRepo struct {
	db DBTX
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return newConversationRepo(pool)
}

func newConversationRepo(db DBTX) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, query,
		conv.ID, conv.InitiatorID, conv.ReceiverID, conv.LastMessageID, conv.LastMessageTimestamp,
		conv.InitiatorDeletedAt, conv.ReceiverDeletedAt, conv.CreatedAt, conv.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConversationExists
	}
	return errors.Wrap(err, "conversationRepo.Create.Exec")
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	conv, err := scanConversation(r.db.QueryRow(ctx, query, id))
	return conv, errors.Wrap(err, "conversationRepo.GetByID.Scan")
}

func (r *ConversationRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1 FOR UPDATE`
	conv, err := scanConversation(r.db.QueryRow(ctx, query, id))
	return conv, errors.Wrap(err, "conversationRepo.GetByIDForUpdate.Scan")
}

func (r *ConversationRepo) GetByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE LEAST(initiator_id, receiver_id) = LEAST($1::uuid, $2::uuid)
			AND GREATEST(initiator_id, receiver_id) = GREATEST($1::uuid, $2::uuid)`
	conv, err := scanConversation(r.db.QueryRow(ctx, query, userA, userB))
	return conv, errors.Wrap(err, "conversationRepo.GetByPair.Scan")
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE (initiator_id = $1 AND initiator_deleted_at IS NULL)
			OR (receiver_id = $1 AND receiver_deleted_at IS NULL)
		ORDER BY COALESCE(last_message_timestamp, created_at) DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "conversationRepo.ListForUser.Query")
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "conversationRepo.ListForUser.Scan")
		}
		convs = append(convs, *conv)
	}
	return convs, errors.Wrap(rows.Err(), "conversationRepo.ListForUser.Rows")
}

func (r *ConversationRepo) Update(ctx context.Context, conv *domain.Conversation) error {
	query := `
		UPDATE conversations
		SET last_message_id = $2, last_message_timestamp = $3,
			initiator_deleted_at = $4, receiver_deleted_at = $5, updated_at = $6
		WHERE id = $1`
	_, err := r.db.Exec(ctx, query,
		conv.ID, conv.LastMessageID, conv.LastMessageTimestamp,
		conv.InitiatorDeletedAt, conv.ReceiverDeletedAt, conv.UpdatedAt,
	)
	return errors.Wrap(err, "conversationRepo.Update.Exec")
}

func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, id, messageID uuid.UUID, at time.Time) (bool, error) {
	// The guard keeps an older message from overwriting a newer pointer; the
	// row still counts as found so repeated calls stay idempotent.
	query := `
		UPDATE conversations
		SET last_message_id = CASE
				WHEN last_message_timestamp IS NULL OR last_message_timestamp <= $3::timestamp THEN $2::uuid
				ELSE last_message_id END,
			last_message_timestamp = GREATEST(COALESCE(last_message_timestamp, $3::timestamp), $3::timestamp),
			updated_at = GREATEST(updated_at, $3::timestamp)
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, messageID, at)
	if err != nil {
		return false, errors.Wrap(err, "conversationRepo.UpdateLastMessage.Exec")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ConversationRepo) SoftDelete(ctx context.Context, id, byUserID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE conversations
		SET initiator_deleted_at = CASE WHEN initiator_id = $2::uuid THEN $3::timestamp ELSE initiator_deleted_at END,
			receiver_deleted_at = CASE WHEN receiver_id = $2::uuid THEN $3::timestamp ELSE receiver_deleted_at END,
			updated_at = $3::timestamp
		WHERE id = $1
			AND ((initiator_id = $2 AND initiator_deleted_at IS NULL)
				OR (receiver_id = $2 AND receiver_deleted_at IS NULL))`
	tag, err := r.db.Exec(ctx, query, id, byUserID, at)
	if err != nil {
		return false, errors.Wrap(err, "conversationRepo.SoftDelete.Exec")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ConversationRepo) CountForUser(ctx context.Context, userID uuid.UUID, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM conversations WHERE initiator_id = $1 OR receiver_id = $1`
	if activeOnly {
		query = `
			SELECT COUNT(*) FROM conversations
			WHERE (initiator_id = $1 AND initiator_deleted_at IS NULL)
				OR (receiver_id = $1 AND receiver_deleted_at IS NULL)`
	}
	var n int
	err := r.db.QueryRow(ctx, query, userID).Scan(&n)
	return n, errors.Wrap(err, "conversationRepo.CountForUser.Scan")
}

func (r *ConversationRepo) UserCanAccess(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1 AND (initiator_id = $2 OR receiver_id = $2))`
	var ok bool
	err := r.db.QueryRow(ctx, query, id, userID).Scan(&ok)
	return ok, errors.Wrap(err, "conversationRepo.UserCanAccess.Scan")
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := row.Scan(
		&conv.ID, &conv.InitiatorID, &conv.ReceiverID, &conv.LastMessageID, &conv.LastMessageTimestamp,
		&conv.InitiatorDeletedAt, &conv.ReceiverDeletedAt, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

var _ repository.ConversationRepository = (*ConversationRepo)(nil)
