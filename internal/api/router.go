package api

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/erazemk/ecoconnect/internal/auth"
	"github.com/erazemk/ecoconnect/internal/lifecycle"
	"github.com/erazemk/ecoconnect/internal/messaging"
	"github.com/erazemk/ecoconnect/internal/ratelimit"
	"github.com/erazemk/ecoconnect/internal/store"
	"github.com/erazemk/ecoconnect/internal/ws"
)

// Limits holds the per-endpoint rate limiters. Nil limiters are disabled.
type Limits struct {
	Login    *ratelimit.Limiter
	Register *ratelimit.Limiter
	Messages *ratelimit.Limiter
	Uploads  *ratelimit.Limiter
}

// Options configures the router.
type Options struct {
	DB     *sql.DB
	Signer *auth.Signer

	// Hub receives live events. Without one the websocket endpoint is not
	// registered and events are dropped.
	Hub *ws.Hub

	Limits           Limits
	TrustProxy       bool
	CORSOrigins      []string
	WSOriginPatterns []string
	Version          string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(opts Options) http.Handler {
	mux := http.NewServeMux()

	var notifier lifecycle.Notifier
	if opts.Hub != nil {
		notifier = opts.Hub
	}
	repo := store.NewRepository(opts.DB)

	authHandler := &AuthHandler{DB: opts.DB, Signer: opts.Signer}
	usersHandler := &UsersHandler{DB: opts.DB}
	itemsHandler := &ItemsHandler{DB: opts.DB, Lifecycle: lifecycle.NewManager(repo, notifier)}
	messagesHandler := &MessagesHandler{DB: opts.DB, Messaging: messaging.NewService(repo, notifier)}
	statsHandler := &StatsHandler{DB: opts.DB}

	authMW := AuthMiddleware(opts.Signer, opts.DB)
	limit := func(l *ratelimit.Limiter, h http.HandlerFunc) http.Handler {
		return RateLimit(l, opts.TrustProxy)(h)
	}
	private := func(h http.HandlerFunc) http.Handler {
		return authMW(h)
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{
			"name":    "ecoconnect",
			"status":  "ok",
			"version": opts.Version,
		})
	})

	// Auth.
	mux.Handle("POST /api/auth/register", limit(opts.Limits.Register, authHandler.Register))
	mux.Handle("POST /api/auth/login", limit(opts.Limits.Login, authHandler.Login))
	mux.Handle("GET /api/auth/me", private(authHandler.Me))
	mux.Handle("PUT /api/auth/profile", private(authHandler.UpdateProfile))
	mux.Handle("PUT /api/auth/password", private(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", private(authHandler.Logout))

	// Users.
	mux.HandleFunc("GET /api/users/{id}", usersHandler.Get)
	mux.HandleFunc("GET /api/users/{id}/avatar", usersHandler.GetAvatar)
	mux.Handle("PUT /api/users/me/avatar", authMW(limit(opts.Limits.Uploads, usersHandler.UploadAvatar)))
	mux.Handle("POST /api/users/{id}/ratings", private(usersHandler.Rate))

	// Items: listing and detail are public, everything else needs a session.
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.Handle("POST /api/items", private(itemsHandler.Create))
	mux.Handle("PUT /api/items/{id}", private(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", private(itemsHandler.Delete))
	mux.Handle("POST /api/items/{id}/reserve", private(itemsHandler.Reserve))
	mux.Handle("POST /api/items/{id}/donate", private(itemsHandler.Donate))
	mux.Handle("POST /api/items/{id}/available", private(itemsHandler.MarkAvailable))
	mux.Handle("POST /api/items/{id}/cancel", private(itemsHandler.Cancel))
	mux.Handle("POST /api/items/{id}/images", authMW(limit(opts.Limits.Uploads, itemsHandler.UploadImage)))
	mux.HandleFunc("GET /api/items/{id}/images/{imageID}", itemsHandler.GetImage)
	mux.Handle("DELETE /api/items/{id}/images/{imageID}", private(itemsHandler.DeleteImage))

	// Messages.
	mux.Handle("GET /api/messages", private(messagesHandler.Inbox))
	mux.Handle("GET /api/items/{id}/messages", private(messagesHandler.Thread))
	mux.Handle("POST /api/items/{id}/messages", authMW(limit(opts.Limits.Messages, messagesHandler.Send)))
	mux.Handle("POST /api/items/{id}/messages/read", private(messagesHandler.MarkRead))
	mux.Handle("GET /api/items/{id}/messages/unread", private(messagesHandler.Unread))

	// Impact.
	mux.HandleFunc("GET /api/stats", statsHandler.Stats)
	mux.HandleFunc("GET /api/impact/estimate", statsHandler.Estimate)

	if opts.Hub != nil {
		mux.Handle("GET /api/ws", &ws.Handler{
			Hub:            opts.Hub,
			Authenticate:   queryTokenAuthenticator(opts.Signer, opts.DB),
			OriginPatterns: opts.WSOriginPatterns,
		})
	}

	return CORSMiddleware(opts.CORSOrigins)(mux)
}

// queryTokenAuthenticator reads the session token from the "token" query
// parameter, since browsers cannot set headers on websocket upgrades.
func queryTokenAuthenticator(signer *auth.Signer, db *sql.DB) ws.Authenticator {
	return func(r *http.Request) (int64, error) {
		token := r.URL.Query().Get("token")
		if token == "" {
			return 0, fmt.Errorf("%w: missing token", errUnauthorized)
		}
		claims, err := authenticate(r.Context(), signer, db, token)
		if err != nil {
			return 0, err
		}
		return claims.UserID, nil
	}
}
