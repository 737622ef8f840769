package app

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/centralpricelist/pricelist/internal/platform/httpx"
)

// AdminRealm is announced in the Basic auth challenge.
const AdminRealm = "pricelist"

// RequireAdmin guards the API with the shared admin password. The password
// arrives as HTTP Basic auth (any user name) or as a bearer token and is
// compared against a bcrypt hash. An empty hash disables the check.
func RequireAdmin(passwordHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	hash := []byte(strings.TrimSpace(passwordHash))
	return func(next http.Handler) http.Handler {
		if len(hash) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			password, ok := adminPassword(r)
			if ok && bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil {
				next.ServeHTTP(w, r)
				return
			}
			if ok && logger != nil {
				logger.Warn("admin authentication failed",
					slog.String("path", r.URL.Path), slog.String("remote", r.RemoteAddr))
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="`+AdminRealm+`"`)
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "admin password required")
		})
	}
}

func adminPassword(r *http.Request) (string, bool) {
	if _, password, ok := r.BasicAuth(); ok {
		return password, password != ""
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		token = strings.TrimSpace(token)
		return token, token != ""
	}
	return "", false
}

// HashPassword produces the value for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
