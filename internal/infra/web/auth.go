package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/terminalpixel/postrchild/internal/config"
)

// AdminClaims is the payload of the token handed out by the login
// endpoint. There is a single admin role; the claims only carry the
// standard expiry fields.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthManager mints and verifies the short-lived admin token. It is
// delivered both as the login response body (for API callers) and as
// an HttpOnly cookie (for the browser pages). Cookie name and
// lifetime come from web config.
type AuthManager struct {
	secret []byte
	cookie string
	ttl    time.Duration
	secure bool
}

func NewAuthManager(cfg *config.WebConfig, secure bool) *AuthManager {
	return &AuthManager{
		secret: []byte(cfg.JWTSecret),
		cookie: cfg.SessionCookie,
		ttl:    cfg.SessionTTL,
		secure: secure,
	}
}

// Mint signs a fresh admin token and sets it as a cookie on w. The
// signed token is also returned for Bearer use.
func (a *AuthManager) Mint(w http.ResponseWriter) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   "admin",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(a.ttl.Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return signed, nil
}

// Clear expires the admin cookie. A Bearer token stays valid until
// its expiry; there is no revocation list.
func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ParseFromRequest accepts the token as an Authorization Bearer
// header or as the admin cookie, in that order.
func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(a.cookie); err == nil {
		return a.parse(c.Value)
	}
	return nil, errors.New("missing token")
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
