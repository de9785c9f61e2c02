package handlers

import (
	"net/http"
	"strings"

	"github.com/vedran77/dmcore/internal/directory"
	"github.com/vedran77/dmcore/internal/domain"
	"github.com/vedran77/dmcore/internal/transport/http/middleware"
	"github.com/vedran77/dmcore/pkg/apperr"
)

// UserHandler lets clients find someone to start a conversation with.
type UserHandler struct {
	dir directory.Client
}

func NewUserHandler(dir directory.Client) *UserHandler {
	return &UserHandler{dir: dir}
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeError(w, http.StatusBadRequest, string(apperr.CodeValidation), "q is required")
		return
	}

	users, err := h.dir.SearchUsers(r.Context(), term)
	if err != nil {
		writeError(w, http.StatusInternalServerError, string(apperr.CodeInfrastructure), "User search is unavailable")
		return
	}

	out := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		if u.ID != userID {
			out = append(out, u)
		}
	}
	writeJSON(w, http.StatusOK, out)
}
