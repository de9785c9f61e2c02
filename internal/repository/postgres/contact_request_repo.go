package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/repository"
)

type ContactRequestRepo struct {
	db DBTX
}

func NewContactRequestRepo(pool *pgxpool.Pool) *ContactRequestRepo {
	return &ContactRequestRepo{db: pool}
}

// AcquireContactRequestRepo pins one pooled connection for the lifetime of a
// background task. release must be called exactly once.
func AcquireContactRequestRepo(ctx context.Context, pool *pgxpool.Pool) (*ContactRequestRepo, func(), error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "contactRequestRepo.Acquire")
	}
	return &ContactRequestRepo{db: conn}, conn.Release, nil
}

func (r *ContactRequestRepo) Create(ctx context.Context, req *domain.ContactRequest) error {
	query := `
		INSERT INTO contact_requests (id, conversation_id, sender_id, receiver_id, email_sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query, req.ID, req.ConversationID, req.SenderID, req.ReceiverID, req.EmailSent, req.CreatedAt)
	return errors.Wrap(err, "contactRequestRepo.Create.Exec")
}

var _ repository.ContactRequestRepository = (*ContactRequestRepo)(nil)
