package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

// Kiosk terminals authenticate with a shared key presented in the
// X-Terminal-Key header. Only an argon2id digest of the key is configured
// (terminal.key_hash, "base64(salt):base64(digest)"), so the key itself
// never lives in config.
func TerminalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Terminal-Key")
		if key == "" {
			http.Error(w, "Terminal key required", http.StatusUnauthorized)
			return
		}

		if !verifyTerminalKey(key, viper.GetString("terminal.key_hash")) {
			http.Error(w, "Invalid terminal key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func verifyTerminalKey(key, stored string) bool {
	parts := strings.SplitN(stored, ":", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	digest, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(key), salt, 1, 64*1024, 4, uint32(len(digest)))
	return subtle.ConstantTimeCompare(computed, digest) == 1
}

// HashTerminalKey produces the configurable digest for a terminal key.
func HashTerminalKey(key string, salt []byte) string {
	digest := argon2.IDKey([]byte(key), salt, 1, 64*1024, 4, 32)
	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(digest)
}
