package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// APIKey is a named API key whose value is stored as a bcrypt hash.
type APIKey struct {
	Name string
	Hash string
}

// Config configures the authentication middleware.
type Config struct {
	// SigningKey verifies HMAC-signed bearer tokens.
	SigningKey []byte
	// APIKeys are accepted via the X-API-Key header.
	APIKeys []APIKey
	// AllowAnonymous admits requests with no credentials as the
	// "anonymous" user. Off by default.
	AllowAnonymous bool
}

// Middleware authenticates requests and places the user identity on the
// request context.
type Middleware struct {
	cfg Config
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(cfg Config) *Middleware {
	return &Middleware{cfg: cfg}
}

// Wrap returns a handler that authenticates before delegating.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uc, err := m.authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = fmt.Fprintf(w, `{"error":%q}`, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), uc)))
	})
}

// authenticate resolves the request credentials to a user identity.
func (m *Middleware) authenticate(r *http.Request) (*UserContext, error) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return m.checkAPIKey(key)
	}

	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return nil, fmt.Errorf("unsupported authorization scheme")
		}
		return m.checkBearer(token)
	}

	if m.cfg.AllowAnonymous {
		return &UserContext{UserID: "anonymous", AuthType: "anonymous"}, nil
	}
	return nil, fmt.Errorf("missing credentials")
}

// checkBearer validates an HMAC-signed JWT and extracts the subject.
func (m *Middleware) checkBearer(tokenText string) (*UserContext, error) {
	token, err := jwt.Parse(tokenText, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.cfg.SigningKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	uc := &UserContext{UserID: subject, AuthType: "jwt"}
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if name, ok := claims["name"].(string); ok {
			uc.Name = name
		}
	}
	return uc, nil
}

// checkAPIKey compares the presented key against the configured hashes.
func (m *Middleware) checkAPIKey(key string) (*UserContext, error) {
	for _, k := range m.cfg.APIKeys {
		if bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(key)) == nil {
			return &UserContext{UserID: "apikey:" + k.Name, AuthType: "apikey"}, nil
		}
	}
	return nil, fmt.Errorf("invalid API key")
}
