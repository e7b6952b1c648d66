package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/salon64/BB-M7011E/internal/models"
)

// CatalogService manages the fixed-price product catalog the kiosk dispenses
// from. Prices are integers in the smallest currency unit; items are soft
// deactivated, never deleted, so old ledger references stay resolvable.
type CatalogService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewCatalogService(db *sql.DB) *CatalogService {
	return &CatalogService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

type CreateItemRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=100"`
	Price     int64  `json:"price" validate:"required,gte=0"`
	BarcodeID string `json:"barcodeId,omitempty" validate:"omitempty,max=32"`
}

type UpdateItemRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Price     *int64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	BarcodeID *string `json:"barcodeId,omitempty" validate:"omitempty,max=32"`
	Active    *bool   `json:"active,omitempty"`
}

// ListItems lists catalog items
// @Summary List items
// @Description List catalog items, optionally only active ones
// @Tags catalog
// @Produce json
// @Param activeOnly query bool false "Only return active items"
// @Success 200 {object} map[string]any
// @Router /items [get]
func (s *CatalogService) ListItems(w http.ResponseWriter, r *http.Request) {
	query := `
		SELECT id, name, price, COALESCE(barcode_id, ''), active, created_at, updated_at
		FROM items ORDER BY name`
	if r.URL.Query().Get("activeOnly") == "true" {
		query = `
		SELECT id, name, price, COALESCE(barcode_id, ''), active, created_at, updated_at
		FROM items WHERE active = TRUE ORDER BY name`
	}

	rows, err := s.db.QueryContext(r.Context(), query)
	if err != nil {
		log.Printf("[CATALOG] Failed to list items: %v", err)
		SendErrorResponse(w, "Failed to fetch items", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.BarcodeID, &item.Active, &item.CreatedAt, &item.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch items", http.StatusInternalServerError, nil)
			return
		}
		items = append(items, item)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"items": items, "count": len(items)})
}

// GetItem returns one catalog item
// @Summary Get item
// @Tags catalog
// @Produce json
// @Param itemId path string true "Item ID"
// @Success 200 {object} models.Item
// @Failure 404 {object} ErrorResponse
// @Router /items/{itemId} [get]
func (s *CatalogService) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	var item models.Item
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, name, price, COALESCE(barcode_id, ''), active, created_at, updated_at
		FROM items WHERE id = $1`, itemID).
		Scan(&item.ID, &item.Name, &item.Price, &item.BarcodeID, &item.Active, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		SendErrorResponse(w, "Item not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CATALOG] Failed to fetch item %s: %v", itemID, err)
		SendErrorResponse(w, "Failed to fetch item", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(item)
}

// CreateItem adds a catalog item
// @Summary Create item
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateItemRequest true "Item details"
// @Success 201 {object} models.Item
// @Failure 400 {object} ErrorResponse
// @Router /items [post]
func (s *CatalogService) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	now := time.Now()
	item := models.Item{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Price:     req.Price,
		BarcodeID: req.BarcodeID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(r.Context(), `
		INSERT INTO items (id, name, price, barcode_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)`,
		item.ID, item.Name, item.Price, item.BarcodeID, now)
	if err != nil {
		log.Printf("[CATALOG] Failed to create item %s: %v", req.Name, err)
		SendErrorResponse(w, "Failed to create item", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[CATALOG] Created item %s (%s) price=%d", item.Name, item.ID, item.Price)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(item)
}

// UpdateItem updates name, price, barcode or active flag
// @Summary Update item
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param itemId path string true "Item ID"
// @Param request body UpdateItemRequest true "Fields to update"
// @Success 200 {object} map[string]any
// @Failure 404 {object} ErrorResponse
// @Router /items/{itemId} [put]
func (s *CatalogService) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	var req UpdateItemRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.Name == nil && req.Price == nil && req.BarcodeID == nil && req.Active == nil {
		SendErrorResponse(w, "No fields to update", http.StatusBadRequest, nil)
		return
	}

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE items SET
			name = COALESCE($1, name),
			price = COALESCE($2, price),
			barcode_id = COALESCE($3, barcode_id),
			active = COALESCE($4, active),
			updated_at = $5
		WHERE id = $6`,
		req.Name, req.Price, req.BarcodeID, req.Active, time.Now(), itemID)
	if err != nil {
		log.Printf("[CATALOG] Failed to update item %s: %v", itemID, err)
		SendErrorResponse(w, "Failed to update item", http.StatusInternalServerError, nil)
		return
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendErrorResponse(w, "Item not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"itemId": itemID, "updated": true})
}
