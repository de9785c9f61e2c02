package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/vedran77/dmcore/internal/repository"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repo can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Store implements repository.Transactor on top of a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type txRepos struct {
	conversations *ConversationRepo
	messages      *MessageRepo
}

func (t *txRepos) Conversations() repository.ConversationRepository { return t.conversations }
func (t *txRepos) Messages() repository.MessageRepository           { return t.messages }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepos{
			conversations: newConversationRepo(tx),
			messages:      newMessageRepo(tx),
		})
	})
	return err
}

var _ repository.Transactor = (*Store)(nil)
