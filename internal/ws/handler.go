package ws

import (
	"net/http"

	"nhooyr.io/websocket"
)

// Authenticator resolves the user behind an upgrade request.
type Authenticator func(r *http.Request) (int64, error)

// Handler upgrades authenticated requests and registers them with a Hub.
type Handler struct {
	Hub            *Hub
	Authenticate   Authenticator
	OriginPatterns []string
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.Authenticate(r)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid or missing token"}` + "\n"))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		// Accept has already written the response.
		return
	}

	// Push-only: reading still has to run so control frames are handled.
	ctx := conn.CloseRead(r.Context())

	client := h.Hub.Register(ctx, userID, conn)
	defer h.Hub.Unregister(client)

	<-client.ctx.Done()
}
