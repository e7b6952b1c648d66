package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestTerminalAuth(t *testing.T) {
	salt := []byte("0123456789abcdef")
	viper.Set("terminal.key_hash", HashTerminalKey("kiosk-key-1", salt))
	t.Cleanup(func() { viper.Set("terminal.key_hash", "") })

	handler := TerminalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid key passes", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/payments/debit", nil)
		r.Header.Set("X-Terminal-Key", "kiosk-key-1")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/payments/debit", nil)
		r.Header.Set("X-Terminal-Key", "wrong-key")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing key rejected", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/payments/debit", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestVerifyTerminalKey(t *testing.T) {
	salt := []byte("fedcba9876543210")

	t.Run("round trip", func(t *testing.T) {
		stored := HashTerminalKey("secret", salt)
		assert.True(t, verifyTerminalKey("secret", stored))
		assert.False(t, verifyTerminalKey("other", stored))
	})

	t.Run("malformed stored digest", func(t *testing.T) {
		assert.False(t, verifyTerminalKey("secret", ""))
		assert.False(t, verifyTerminalKey("secret", "no-colon"))
		assert.False(t, verifyTerminalKey("secret", "!!!:!!!"))
	})
}
