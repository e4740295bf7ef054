package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/ecoconnect/internal/imaging"
	"github.com/erazemk/ecoconnect/internal/impact"
	"github.com/erazemk/ecoconnect/internal/lifecycle"
	"github.com/erazemk/ecoconnect/internal/model"
	"github.com/erazemk/ecoconnect/internal/store"
)

// Listing page sizes.
const (
	defaultPageSize = 12
	maxPageSize     = 100
)

// ItemsHandler handles item listing, editing, images and lifecycle transitions.
type ItemsHandler struct {
	DB        *sql.DB
	Lifecycle *lifecycle.Manager
}

type listItemsResponse struct {
	Items      []model.Item     `json:"items"`
	Pagination model.Pagination `json:"pagination"`
}

type itemResponse struct {
	Item   *model.Item   `json:"item"`
	Impact impact.Record `json:"impact"`
}

type reserveRequest struct {
	RecipientID int64 `json:"recipient_id"`
}

// List handles GET /api/items. Only available items are listed unless the
// status filter says otherwise; "all" lists every status.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.ItemFilter{
		Category:  q.Get("category"),
		Condition: q.Get("condition"),
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		Page:      1,
		Limit:     defaultPageSize,
	}

	if f.Category != "" && !model.ValidCategory(f.Category) {
		jsonError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if f.Condition != "" && !model.ValidCondition(f.Condition) {
		jsonError(w, http.StatusBadRequest, "invalid condition")
		return
	}
	switch f.Status {
	case "":
		f.Status = model.ItemStatusAvailable
	case "all":
		f.Status = ""
	default:
		if !model.ValidItemStatus(f.Status) {
			jsonError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}
	if v := q.Get("donor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			jsonError(w, http.StatusBadRequest, "invalid donor_id")
			return
		}
		f.DonorID = id
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			jsonError(w, http.StatusBadRequest, "invalid page")
			return
		}
		f.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = min(limit, maxPageSize)
	}

	items, total, err := store.ListItems(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, listItemsResponse{
		Items:      items,
		Pagination: model.NewPagination(f.Page, f.Limit, total),
	})
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := store.IncrementItemViews(r.Context(), h.DB, id); err != nil {
		slog.Warn("failed to count item view", "item_id", id, "error", err)
	} else {
		item.Views++
	}

	jsonResponse(w, http.StatusOK, itemResponse{
		Item:   item,
		Impact: impact.Breakdown(item.Category, item.Condition, item.Title),
	})
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var fields model.ItemFields
	if err := decodeJSON(w, r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Lifecycle.Create(r.Context(), claims.UserID, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var fields model.ItemFields
	if err := decodeJSON(w, r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Lifecycle.Update(r.Context(), id, claims.UserID, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.Lifecycle.Delete(r.Context(), id, claims.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Reserve handles POST /api/items/{id}/reserve.
func (h *ItemsHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req reserveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RecipientID <= 0 {
		jsonError(w, http.StatusBadRequest, "recipient_id required")
		return
	}

	item, err := h.Lifecycle.Reserve(r.Context(), id, claims.UserID, req.RecipientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Donate handles POST /api/items/{id}/donate.
func (h *ItemsHandler) Donate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Lifecycle.Donate)
}

// MarkAvailable handles POST /api/items/{id}/available.
func (h *ItemsHandler) MarkAvailable(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Lifecycle.MarkAvailable)
}

// Cancel handles POST /api/items/{id}/cancel.
func (h *ItemsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Lifecycle.Cancel)
}

type transitionFunc func(ctx context.Context, itemID, actorID int64) (*model.Item, error)

func (h *ItemsHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := fn(r.Context(), id, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// UploadImage handles POST /api/items/{id}/images.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}
	if item.Status == model.ItemStatusDonated {
		jsonError(w, http.StatusConflict, "item already finalized")
		return
	}

	img, ok := readImageUpload(w, r, "image", imaging.ItemMaxDimension)
	if !ok {
		return
	}

	imageID, err := store.AddItemImage(r.Context(), h.DB, item.ID, img.Data, img.MIME, model.MaxItemImages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if imageID == 0 {
		jsonError(w, http.StatusConflict, "item already has the maximum number of images")
		return
	}

	slog.Info("item image uploaded", "item_id", item.ID, "image_id", imageID, "bytes", len(img.Data))
	jsonResponse(w, http.StatusCreated, map[string]any{
		"id":  imageID,
		"url": model.ImagePath(item.ID, imageID),
	})
}

// GetImage handles GET /api/items/{id}/images/{imageID}.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	imageID, ok := pathID(r, "imageID")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id, imageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "image not found")
		return
	}

	writeImage(w, data, mime)
}

// DeleteImage handles DELETE /api/items/{id}/images/{imageID}.
func (h *ItemsHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}
	if item.Status == model.ItemStatusDonated {
		jsonError(w, http.StatusConflict, "item already finalized")
		return
	}
	imageID, ok := pathID(r, "imageID")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	deleted, err := store.DeleteItemImage(r.Context(), h.DB, item.ID, imageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		jsonError(w, http.StatusNotFound, "image not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image deleted"})
}

// ownedItem loads the path item and checks the caller is its donor.
func (h *ItemsHandler) ownedItem(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return nil, false
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	if item.DonorID != claims.UserID {
		jsonError(w, http.StatusForbidden, "only the donor may change this item")
		return nil, false
	}
	return item, true
}
