// Package directory is the messaging core's view of the platform user directory.
package directory

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/domain"
)

// Client resolves platform users. GetUserByID returns (nil, nil) for unknown ids.
type Client interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.UserSummary, error)
	SearchUsers(ctx context.Context, term string) ([]domain.UserSummary, error)
}

// SafeClient turns every directory failure into an absent value.
type SafeClient struct {
	client Client
	log    *zap.Logger
}

func Safe(client Client, log *zap.Logger) *SafeClient {
	return &SafeClient{client: client, log: log.With(zap.String("component", "directory"))}
}

func (c *SafeClient) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.UserSummary, error) {
	u, err := c.client.GetUserByID(ctx, id)
	if err != nil {
		c.log.Warn("user lookup failed", zap.String("user_id", id.String()), zap.Error(err))
		return nil, nil
	}
	return u, nil
}

func (c *SafeClient) SearchUsers(ctx context.Context, term string) ([]domain.UserSummary, error) {
	users, err := c.client.SearchUsers(ctx, term)
	if err != nil {
		c.log.Warn("user search failed", zap.String("term", term), zap.Error(err))
		return []domain.UserSummary{}, nil
	}
	if users == nil {
		users = []domain.UserSummary{}
	}
	return users, nil
}

var _ Client = (*SafeClient)(nil)
