package middleware

import (
	"net/http"
	"strings"

	"github.com/kwehner/focalpoint/internal/api/response"
	"golang.org/x/crypto/bcrypt"
)

// Auth validates bearer tokens against configured bcrypt hashes. Clients and
// the analysis service carry distinct credentials: the relay token only opens
// the progress endpoint, so a leaked client key cannot forge progress and a
// leaked relay token cannot submit work.
type Auth struct {
	apiKeyHash     []byte
	relayTokenHash []byte
}

// NewAuth creates Auth middleware from the configured hashes.
func NewAuth(apiKeyHash, relayTokenHash string) *Auth {
	return &Auth{
		apiKeyHash:     []byte(apiKeyHash),
		relayTokenHash: []byte(relayTokenHash),
	}
}

// Authenticate validates the client API key.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return a.require(a.apiKeyHash, next)
}

// AuthenticateRelay validates the analysis service's relay token.
func (a *Auth) AuthenticateRelay(next http.Handler) http.Handler {
	return a.require(a.relayTokenHash, next)
}

func (a *Auth) require(hash []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid credentials", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
