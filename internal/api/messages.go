package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/erazemk/ecoconnect/internal/messaging"
	"github.com/erazemk/ecoconnect/internal/model"
	"github.com/erazemk/ecoconnect/internal/store"
)

// MessagesHandler handles per-item conversations between donors and
// interested users.
type MessagesHandler struct {
	DB        *sql.DB
	Messaging *messaging.Service
}

type sendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
}

// Inbox handles GET /api/messages.
func (h *MessagesHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	convs, err := h.Messaging.Inbox(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if convs == nil {
		convs = []model.ConversationSummary{}
	}
	jsonResponse(w, http.StatusOK, convs)
}

// Thread handles GET /api/items/{id}/messages. The counterpart comes from
// the "with" query parameter and defaults to the donor.
func (h *MessagesHandler) Thread(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	itemID, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var other int64
	if v := r.URL.Query().Get("with"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			jsonError(w, http.StatusBadRequest, "invalid with")
			return
		}
		other = id
	}
	other, ok = h.counterpart(w, r, itemID, claims.UserID, other)
	if !ok {
		return
	}

	msgs, err := h.Messaging.Thread(r.Context(), itemID, claims.UserID, other)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, msgs)
}

// Send handles POST /api/items/{id}/messages.
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	itemID, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	receiver, ok := h.counterpart(w, r, itemID, claims.UserID, req.ReceiverID)
	if !ok {
		return
	}

	msg, err := h.Messaging.Send(r.Context(), itemID, claims.UserID, receiver, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, msg)
}

// MarkRead handles POST /api/items/{id}/messages/read.
func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	itemID, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	n, err := h.Messaging.MarkRead(r.Context(), itemID, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"marked": n})
}

// Unread handles GET /api/items/{id}/messages/unread.
func (h *MessagesHandler) Unread(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	itemID, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	n, err := h.Messaging.UnreadCountFor(r.Context(), itemID, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"unread": n})
}

// counterpart resolves the other party of a conversation. A zero other means
// the item's donor, which the donor themselves must not rely on.
func (h *MessagesHandler) counterpart(w http.ResponseWriter, r *http.Request, itemID, userID, other int64) (int64, bool) {
	if other != 0 {
		return other, true
	}

	item, err := store.GetItem(r.Context(), h.DB, itemID)
	if err != nil {
		writeError(w, r, err)
		return 0, false
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return 0, false
	}
	if item.DonorID == userID {
		jsonError(w, http.StatusBadRequest, "the donor must name the other participant")
		return 0, false
	}
	return item.DonorID, true
}
