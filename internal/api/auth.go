package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"caprev/internal/config"
)

const (
	sessionCookie  = "caprev_session"
	sessionSubject = "admin"
)

// ErrInvalidCredentials is returned by Login for a wrong username or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Authenticator checks the single admin credential and issues signed
// session tokens carried in an httpOnly cookie.
type Authenticator struct {
	username     string
	passwordHash string
	secret       []byte
	ttl          time.Duration
	secure       bool
	now          func() time.Time
}

// NewAuthenticator creates an Authenticator from server settings.
func NewAuthenticator(cfg config.ServerConfig) (*Authenticator, error) {
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("session secret is not configured")
	}
	ttl, err := cfg.SessionDuration()
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		username:     cfg.AdminUsername,
		passwordHash: cfg.AdminPasswordHash,
		secret:       []byte(cfg.SessionSecret),
		ttl:          ttl,
		secure:       cfg.IsProduction(),
		now:          time.Now,
	}, nil
}

// Login verifies the credential and returns a session cookie.
func (a *Authenticator) Login(username, password string) (*http.Cookie, error) {
	if a.passwordHash == "" || username != a.username {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sessionSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("signing session: %w", err)
	}

	return a.cookie(signed, expires, int(a.ttl.Seconds())), nil
}

// Logout returns a cookie that clears the session.
func (a *Authenticator) Logout() *http.Cookie {
	return a.cookie("", time.Unix(0, 0), -1)
}

func (a *Authenticator) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// IsAdmin reports whether the request carries a valid, unexpired session.
func (a *Authenticator) IsAdmin(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return false
	}

	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	tok, err := parser.ParseWithClaims(c.Value, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !tok.Valid {
		return false
	}
	return claims.Subject == sessionSubject
}

// RequireAdmin rejects requests without an admin session.
func (a *Authenticator) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.IsAdmin(r) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}
		next(w, r)
	}
}
