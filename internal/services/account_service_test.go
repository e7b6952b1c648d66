package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/salon64/BB-M7011E/internal/ledger"
	"github.com/salon64/BB-M7011E/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountFixture(t *testing.T, accounts ...models.Account) (*AccountService, sqlmock.Sqlmock, chi.Router) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := ledger.NewMemory()
	for _, account := range accounts {
		store.PutAccount(account)
	}
	service := NewAccountService(db, ledger.NewEngine(store))

	router := chi.NewRouter()
	router.Post("/accounts", service.CreateAccount)
	router.Put("/accounts/{accountId}/status", service.SetStatus)
	router.Get("/accounts/balance-enquiry", service.BalanceEnquiry)
	router.Get("/accounts/{accountId}/history", service.History)
	return service, mock, router
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestAccountService_CreateAccount(t *testing.T) {
	t.Run("creates with zero balance", func(t *testing.T) {
		_, mock, router := newAccountFixture(t)

		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("1234567890", "Ada Lovelace", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := doJSON(t, router, "POST", "/accounts", CreateAccountRequest{
			AccountID: "1234567890",
			Name:      "Ada Lovelace",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var account models.Account
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
		assert.Equal(t, "1234567890", account.ID)
		assert.Equal(t, int64(0), account.Balance)
		assert.True(t, account.Active)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate account maps to 409", func(t *testing.T) {
		_, mock, router := newAccountFixture(t)

		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("1234567890", "Ada Lovelace", sqlmock.AnyArg()).
			WillReturnError(&pq.Error{Code: "23505"})

		w := doJSON(t, router, "POST", "/accounts", CreateAccountRequest{
			AccountID: "1234567890",
			Name:      "Ada Lovelace",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("short account id rejected", func(t *testing.T) {
		_, _, router := newAccountFixture(t)

		w := doJSON(t, router, "POST", "/accounts", CreateAccountRequest{
			AccountID: "abc",
			Name:      "Ada Lovelace",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAccountService_SetStatus(t *testing.T) {
	active := true
	inactive := false

	t.Run("deactivates account", func(t *testing.T) {
		_, mock, router := newAccountFixture(t)

		mock.ExpectExec("UPDATE accounts SET active").
			WithArgs(false, sqlmock.AnyArg(), "1234567890").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := doJSON(t, router, "PUT", "/accounts/1234567890/status", SetStatusRequest{Active: &inactive})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account maps to 404", func(t *testing.T) {
		_, mock, router := newAccountFixture(t)

		mock.ExpectExec("UPDATE accounts SET active").
			WithArgs(true, sqlmock.AnyArg(), "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		w := doJSON(t, router, "PUT", "/accounts/missing/status", SetStatusRequest{Active: &active})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing active field rejected", func(t *testing.T) {
		_, _, router := newAccountFixture(t)

		w := doJSON(t, router, "PUT", "/accounts/1234567890/status", map[string]any{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAccountService_BalanceEnquiry(t *testing.T) {
	t.Run("returns balance and status", func(t *testing.T) {
		_, mock, router := newAccountFixture(t)

		mock.ExpectQuery("SELECT balance, active FROM accounts WHERE id = \\$1").
			WithArgs("1234567890").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "active"}).AddRow(350, true))

		w := doJSON(t, router, "GET", "/accounts/balance-enquiry?accountId=1234567890", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(350), resp["balance"])
		assert.Equal(t, true, resp["active"])
	})

	t.Run("unknown account maps to 404", func(t *testing.T) {
		_, mock, router := newAccountFixture(t)

		mock.ExpectQuery("SELECT balance, active FROM accounts WHERE id = \\$1").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "active"}))

		w := doJSON(t, router, "GET", "/accounts/balance-enquiry?accountId=missing", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing accountId rejected", func(t *testing.T) {
		_, _, router := newAccountFixture(t)

		w := doJSON(t, router, "GET", "/accounts/balance-enquiry", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAccountService_History(t *testing.T) {
	service, _, router := newAccountFixture(t, models.Account{ID: "1234567890", Balance: 0, Active: true})

	for _, key := range []string{"h1", "h2", "h3"} {
		_, err := service.engine.Credit(context.Background(), "1234567890", 10, key, models.EntryTopup, "")
		require.NoError(t, err)
	}

	t.Run("newest first with limit", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/accounts/1234567890/history?limit=2", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			AccountID string               `json:"accountId"`
			Entries   []models.LedgerEntry `json:"entries"`
			Count     int                  `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
		require.Len(t, resp.Entries, 2)
		assert.Equal(t, "h3", resp.Entries[0].IdempotencyKey)
		assert.Equal(t, "h2", resp.Entries[1].IdempotencyKey)
	})

	t.Run("unknown account maps to 404", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/accounts/missing/history", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
