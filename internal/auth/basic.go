// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package auth implements HTTP Basic authentication for the OwnTracks
// endpoints. OwnTracks apps in HTTP mode send Basic credentials on every
// request.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/waypoint/internal/logging"
)

// DefaultRealm is the realm announced in WWW-Authenticate.
const DefaultRealm = "Secure Area"

// DefaultCost is the bcrypt cost used when none is given.
const DefaultCost = 12

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ErrInvalidCredentials is returned for a wrong or missing username/password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// BasicAuthManager checks Basic credentials against one configured account.
type BasicAuthManager struct {
	username     string
	passwordHash []byte
	realm        string
}

// NewBasicAuthManager hashes password once so requests only pay for the
// comparison. cost <= 0 selects DefaultCost.
func NewBasicAuthManager(username, password string, cost int) (*BasicAuthManager, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if cost <= 0 {
		cost = DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &BasicAuthManager{
		username:     username,
		passwordHash: hash,
		realm:        DefaultRealm,
	}, nil
}

// Validate checks a username and password pair.
func (m *BasicAuthManager) Validate(username, password string) error {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passwordMatch := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)) == nil
	if !usernameMatch || !passwordMatch {
		return ErrInvalidCredentials
	}
	return nil
}

// WWWAuthenticate returns the challenge sent with 401 responses.
func (m *BasicAuthManager) WWWAuthenticate() string {
	return fmt.Sprintf(`Basic realm=%q, charset="UTF-8"`, m.realm)
}

// Middleware rejects requests without valid credentials with 401.
func (m *BasicAuthManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			m.unauthorized(w)
			return
		}
		if err := m.Validate(username, password); err != nil {
			logging.Ctx(r.Context()).Warn().Str("username", username).Str("remote_addr", r.RemoteAddr).
				Msg("Basic authentication failed")
			m.unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *BasicAuthManager) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", m.WWWAuthenticate())
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
