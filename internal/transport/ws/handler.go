package ws

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/vedran77/dmcore/internal/auth"
)

// ServeWS upgrades authenticated requests and runs the session until either
// side closes. Browsers can't set headers on the upgrade, so the token may
// come as ?token=xxx.
func ServeWS(hub *Hub, jwtSecret string, allowedOrigins []string) http.HandlerFunc {
	patterns := OriginPatterns(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			tokenStr = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}

		userID, err := auth.ParseUserID(tokenStr, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: patterns,
		})
		if err != nil {
			hub.log.Warn("accept failed", zap.Error(err))
			return
		}

		client := NewClient(hub, conn, userID)
		if err := hub.join(client); err != nil {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}

// OriginPatterns turns configured origins like "https://app.example.com" into
// the host patterns the upgrader matches against.
func OriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
