package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"setlist/internal/logging"
)

// UserIDHeader is set by a trusted gateway to the authenticated caller.
const UserIDHeader = "X-User-Id"

// Claims is the bearer token payload. The caller id is read from uid, or
// from sub when uid is absent.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Authenticator resolves the caller identity of a request.
type Authenticator struct {
	secret      []byte
	trustHeader bool
}

// NewAuthenticator verifies HS256 bearer tokens signed with secret. With
// trustUserHeader set, a request carrying X-User-Id is accepted as-is.
func NewAuthenticator(secret string, trustUserHeader bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), trustHeader: trustUserHeader}
}

// Middleware rejects unauthenticated requests with 401 and stores the caller
// id on the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.identify(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(logging.WithUserID(r.Context(), userID)))
	})
}

func (a *Authenticator) identify(r *http.Request) (string, error) {
	if a.trustHeader {
		if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
			return userID, nil
		}
	}

	raw := parseBearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		return "", errors.New("missing bearer token")
	}
	if len(a.secret) == 0 {
		return "", errors.New("invalid token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", errors.New("invalid token")
	}
	return userID, nil
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
