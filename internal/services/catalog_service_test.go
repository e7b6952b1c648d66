package services

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/salon64/BB-M7011E/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogFixture(t *testing.T) (sqlmock.Sqlmock, chi.Router) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service := NewCatalogService(db)
	router := chi.NewRouter()
	router.Get("/items", service.ListItems)
	router.Get("/items/{itemId}", service.GetItem)
	router.Post("/items", service.CreateItem)
	router.Put("/items/{itemId}", service.UpdateItem)
	return mock, router
}

func itemRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "price", "barcode_id", "active", "created_at", "updated_at"}).
		AddRow(testItemID, "Club-Mate", 120, "7330186000011", true, now, now)
}

func TestCatalogService_ListItems(t *testing.T) {
	t.Run("lists all items", func(t *testing.T) {
		mock, router := newCatalogFixture(t)

		mock.ExpectQuery("SELECT id, name, price, (.+) FROM items ORDER BY name").
			WillReturnRows(itemRows())

		w := doJSON(t, router, "GET", "/items", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Items []models.Item `json:"items"`
			Count int           `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "Club-Mate", resp.Items[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filters on active", func(t *testing.T) {
		mock, router := newCatalogFixture(t)

		mock.ExpectQuery("SELECT id, name, price, (.+) FROM items WHERE active = TRUE ORDER BY name").
			WillReturnRows(itemRows())

		w := doJSON(t, router, "GET", "/items?activeOnly=true", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty catalog returns empty list", func(t *testing.T) {
		mock, router := newCatalogFixture(t)

		mock.ExpectQuery("SELECT id, name, price, (.+) FROM items ORDER BY name").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "barcode_id", "active", "created_at", "updated_at"}))

		w := doJSON(t, router, "GET", "/items", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"items":[],"count":0}`, w.Body.String())
	})
}

func TestCatalogService_GetItem(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock, router := newCatalogFixture(t)

		mock.ExpectQuery("SELECT id, name, price, (.+) FROM items WHERE id = \\$1").
			WithArgs(testItemID).
			WillReturnRows(itemRows())

		w := doJSON(t, router, "GET", "/items/"+testItemID, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var item models.Item
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
		assert.Equal(t, int64(120), item.Price)
	})

	t.Run("not found", func(t *testing.T) {
		mock, router := newCatalogFixture(t)

		mock.ExpectQuery("SELECT id, name, price, (.+) FROM items WHERE id = \\$1").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "barcode_id", "active", "created_at", "updated_at"}))

		w := doJSON(t, router, "GET", "/items/missing", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCatalogService_CreateItem(t *testing.T) {
	t.Run("creates item", func(t *testing.T) {
		mock, router := newCatalogFixture(t)

		mock.ExpectExec("INSERT INTO items").
			WithArgs(sqlmock.AnyArg(), "Club-Mate", int64(120), "7330186000011", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := doJSON(t, router, "POST", "/items", CreateItemRequest{
			Name:      "Club-Mate",
			Price:     120,
			BarcodeID: "7330186000011",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var item models.Item
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
		assert.NotEmpty(t, item.ID)
		assert.True(t, item.Active)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing name rejected", func(t *testing.T) {
		_, router := newCatalogFixture(t)

		w := doJSON(t, router, "POST", "/items", CreateItemRequest{Price: 120})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCatalogService_UpdateItem(t *testing.T) {
	newPrice := int64(150)
	inactive := false

	t.Run("partial update", func(t *testing.T) {
		mock, router := newCatalogFixture(t)

		mock.ExpectExec("UPDATE items SET").
			WithArgs(nil, newPrice, nil, inactive, sqlmock.AnyArg(), testItemID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := doJSON(t, router, "PUT", "/items/"+testItemID, UpdateItemRequest{
			Price:  &newPrice,
			Active: &inactive,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no fields rejected", func(t *testing.T) {
		_, router := newCatalogFixture(t)

		w := doJSON(t, router, "PUT", "/items/"+testItemID, UpdateItemRequest{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown item maps to 404", func(t *testing.T) {
		mock, router := newCatalogFixture(t)

		mock.ExpectExec("UPDATE items SET").
			WithArgs(nil, newPrice, nil, nil, sqlmock.AnyArg(), "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		w := doJSON(t, router, "PUT", "/items/missing", UpdateItemRequest{Price: &newPrice})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
