package domain

import (
	"github.com/google/uuid"
)

// UserSummary is what the user directory exposes about a platform user.
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"-"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
}

// Name prefers the display name and falls back to the username.
func (u *UserSummary) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
