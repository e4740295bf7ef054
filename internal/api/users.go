package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/ecoconnect/internal/imaging"
	"github.com/erazemk/ecoconnect/internal/model"
	"github.com/erazemk/ecoconnect/internal/store"
)

// UsersHandler handles public profiles, avatars and ratings.
type UsersHandler struct {
	DB *sql.DB
}

type rateRequest struct {
	ItemID int64 `json:"item_id"`
	Score  int   `json:"score"`
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, user.Public())
}

// UploadAvatar handles PUT /api/users/me/avatar.
func (h *UsersHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	img, ok := readImageUpload(w, r, "avatar", imaging.AvatarMaxDimension)
	if !ok {
		return
	}

	if err := store.SetUserAvatar(r.Context(), h.DB, claims.UserID, img.Data, img.MIME); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("avatar updated", "user_id", claims.UserID, "bytes", len(img.Data))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "avatar uploaded"})
}

// GetAvatar handles GET /api/users/{id}/avatar.
func (h *UsersHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	data, mime, err := store.GetUserAvatar(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no avatar")
		return
	}

	writeImage(w, data, mime)
}

// Rate handles POST /api/users/{id}/ratings. Only the recipient of a donated
// item may rate its donor, once per item.
func (h *UsersHandler) Rate(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	donorID, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Score < model.MinScore || req.Score > model.MaxScore {
		jsonError(w, http.StatusBadRequest, "score must be between 1 and 5")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, req.ItemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil || item.DonorID != donorID {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if item.Status != model.ItemStatusDonated || item.RecipientID == nil || *item.RecipientID != claims.UserID {
		jsonError(w, http.StatusForbidden, "only the recipient of a donated item may rate its donor")
		return
	}

	added, err := store.AddRating(r.Context(), h.DB, model.Rating{
		ItemID:  item.ID,
		RaterID: claims.UserID,
		RateeID: donorID,
		Score:   req.Score,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !added {
		jsonError(w, http.StatusConflict, "item already rated")
		return
	}

	donor, err := store.GetUser(r.Context(), h.DB, donorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if donor == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	slog.Info("donor rated", "donor_id", donorID, "item_id", item.ID, "score", req.Score)
	jsonResponse(w, http.StatusCreated, donor.Public())
}

// readImageUpload reads and normalizes a multipart image field. It writes
// the error response itself and reports whether the caller may continue.
func readImageUpload(w http.ResponseWriter, r *http.Request, field string, maxDim int) (*imaging.ProcessResult, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+64<<10)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return nil, false
	}

	file, _, err := r.FormFile(field)
	if err != nil {
		jsonError(w, http.StatusBadRequest, field+" file required")
		return nil, false
	}
	defer file.Close()

	img, err := imaging.Process(file, maxDim)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil, false
	case errors.Is(err, imaging.ErrUnsupported):
		jsonError(w, http.StatusBadRequest, err.Error())
		return nil, false
	case err != nil:
		writeError(w, r, err)
		return nil, false
	}
	return img, true
}

func writeImage(w http.ResponseWriter, data []byte, mime string) {
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
