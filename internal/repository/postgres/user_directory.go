package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/vedran77/dmcore/internal/domain"
)

const searchLimit = 20

// UserDirectory reads the platform's users table. It satisfies directory.Client.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

func (d *UserDirectory) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.UserSummary, error) {
	var u domain.UserSummary
	err := d.pool.QueryRow(ctx,
		"SELECT id, email, username, display_name FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "userDirectory.GetUserByID.Scan")
	}
	return &u, nil
}

func (d *UserDirectory) SearchUsers(ctx context.Context, term string) ([]domain.UserSummary, error) {
	query := `
		SELECT id, email, username, display_name
		FROM users
		WHERE username ILIKE '%' || $1 || '%' OR display_name ILIKE '%' || $1 || '%'
		ORDER BY username
		LIMIT $2`
	rows, err := d.pool.Query(ctx, query, term, searchLimit)
	if err != nil {
		return nil, errors.Wrap(err, "userDirectory.SearchUsers.Query")
	}
	defer rows.Close()

	var users []domain.UserSummary
	for rows.Next() {
		var u domain.UserSummary
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName); err != nil {
			return nil, errors.Wrap(err, "userDirectory.SearchUsers.Scan")
		}
		users = append(users, u)
	}
	return users, errors.Wrap(rows.Err(), "userDirectory.SearchUsers.Rows")
}
