package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
)

const messageColumns = `
	id, conversation_id, sender_id, receiver_id, content, message_type,
	reply_to_message_id, is_read, deleted_at, created_at, updated_at`

type MessageRepo struct {
	db DBTX
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return newMessageRepo(pool)
}

func newMessageRepo(db DBTX) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Content, string(msg.Type),
		msg.ReplyToMessageID, msg.IsRead, msg.DeletedAt, msg.CreatedAt, msg.UpdatedAt,
	)
	return errors.Wrap(err, "messageRepo.Create.Exec")
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	return msg, errors.Wrap(err, "messageRepo.GetByID.Scan")
}

func (r *MessageRepo) List(ctx context.Context, conversationID uuid.UUID, params repository.ListMessagesParams) ([]domain.Message, error) {
	where := []string{"conversation_id = $1", "deleted_at IS NULL"}
	args := []any{conversationID}
	if params.Since != nil {
		args = append(args, *params.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if params.Until != nil {
		args = append(args, *params.Until)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM messages
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT %d OFFSET %d`,
		messageColumns, strings.Join(where, " AND "), params.PageSize, (params.Page-1)*params.PageSize)

	return r.queryMessages(ctx, "messageRepo.List", query, args...)
}

func (r *MessageRepo) Count(ctx context.Context, conversationID uuid.UUID) (int, error) {
	return r.count(ctx, "messageRepo.Count",
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND deleted_at IS NULL`, conversationID)
}

func (r *MessageRepo) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE messages SET is_read = TRUE, updated_at = $3
		WHERE id = $1 AND receiver_id = $2 AND is_read = FALSE AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id, userID, at)
	if err != nil {
		return false, errors.Wrap(err, "messageRepo.MarkRead.Exec")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *MessageRepo) MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (int, error) {
	query := `
		UPDATE messages SET is_read = TRUE, updated_at = $3
		WHERE conversation_id = $1 AND receiver_id = $2 AND is_read = FALSE AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, conversationID, userID, at)
	if err != nil {
		return 0, errors.Wrap(err, "messageRepo.MarkAllRead.Exec")
	}
	return int(tag.RowsAffected()), nil
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id, byUserID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE messages SET deleted_at = $3, updated_at = $3
		WHERE id = $1 AND sender_id = $2 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id, byUserID, at)
	if err != nil {
		return false, errors.Wrap(err, "messageRepo.SoftDelete.Exec")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *MessageRepo) UserCanAccess(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	return r.exists(ctx, "messageRepo.UserCanAccess",
		`SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1 AND (sender_id = $2 OR receiver_id = $2) AND deleted_at IS NULL)`,
		id, userID)
}

func (r *MessageRepo) UserOwns(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	return r.exists(ctx, "messageRepo.UserOwns",
		`SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1 AND sender_id = $2)`, id, userID)
}

func (r *MessageRepo) CountUnreadInConversation(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	return r.count(ctx, "messageRepo.CountUnreadInConversation", `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1 AND receiver_id = $2 AND is_read = FALSE AND deleted_at IS NULL`,
		conversationID, userID)
}

func (r *MessageRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, "messageRepo.CountForUser", `
		SELECT COUNT(*) FROM messages
		WHERE (sender_id = $1 OR receiver_id = $1) AND deleted_at IS NULL`, userID)
}

func (r *MessageRepo) CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, "messageRepo.CountUnreadForUser", `
		SELECT COUNT(*) FROM messages
		WHERE receiver_id = $1 AND is_read = FALSE AND deleted_at IS NULL`, userID)
}

func (r *MessageRepo) CountConversationsWithUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, "messageRepo.CountConversationsWithUnread", `
		SELECT COUNT(DISTINCT conversation_id) FROM messages
		WHERE receiver_id = $1 AND is_read = FALSE AND deleted_at IS NULL`, userID)
}

func (r *MessageRepo) ListUnreadForUser(ctx context.Context, userID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE receiver_id = $1 AND is_read = FALSE AND deleted_at IS NULL
		ORDER BY created_at ASC`
	return r.queryMessages(ctx, "messageRepo.ListUnreadForUser", query, userID)
}

func (r *MessageRepo) ListUnread(ctx context.Context) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE is_read = FALSE AND deleted_at IS NULL
		ORDER BY created_at ASC`
	return r.queryMessages(ctx, "messageRepo.ListUnread", query)
}

func (r *MessageRepo) queryMessages(ctx context.Context, op, query string, args ...any) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, op+".Query")
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Wrap(err, op+".Scan")
		}
		messages = append(messages, *msg)
	}
	return messages, errors.Wrap(rows.Err(), op+".Rows")
}

func (r *MessageRepo) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, query, args...).Scan(&n)
	return n, errors.Wrap(err, op+".Scan")
}

func (r *MessageRepo) exists(ctx context.Context, op, query string, args ...any) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, query, args...).Scan(&ok)
	return ok, errors.Wrap(err, op+".Scan")
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	var msgType string
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msgType,
		&msg.ReplyToMessageID, &msg.IsRead, &msg.DeletedAt, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	msg.Type = domain.MessageType(msgType)
	return &msg, nil
}

var _ repository.MessageRepository = (*MessageRepo)(nil)
