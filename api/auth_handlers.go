package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zombar/linkstash/auth"
	"github.com/zombar/linkstash/models"
)

// ctxKey is the private context key type for request-scoped values.
type ctxKey int

const userKey ctxKey = 0

// userFrom returns the authenticated user placed by requireAuth.
func userFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireAuth authenticates the bearer token and loads the owning user.
// Missing token is 401; a present but invalid token is 403, matching the
// behavior clients already depend on.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "Access token is required")
			return
		}

		userID, err := s.auth.Authenticate(token)
		if err != nil {
			respondError(w, http.StatusForbidden, "Invalid or expired token")
			return
		}

		user, err := s.store.GetUserByID(userID)
		if err != nil {
			if isNotFound(err) {
				respondError(w, http.StatusUnauthorized, "User not found")
				return
			}
			respondStoreError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// RegisterRequest is the register/create-account request body.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// handleRegister creates a new account and issues a token pair.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(user); err != nil {
		if isDuplicate(err) {
			respondError(w, http.StatusBadRequest, "User already exists with this email")
			return
		}
		respondStoreError(w, err)
		return
	}

	tokens, err := s.auth.GenerateTokens(user.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "Account created successfully",
		"user":         user,
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin verifies credentials and issues a token pair. Unknown email
// and wrong password produce the same response.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := s.store.GetUserByEmail(req.Email)
	if err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		respondStoreError(w, err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	tokens, err := s.auth.GenerateTokens(user.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Login successful",
		"user":         user,
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

// RefreshRequest is the refresh-token request body.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// handleRefreshToken rotates a token pair. The refresh token is read from
// the body, falling back to the bearer header.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	token := req.RefreshToken
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Refresh token is required")
		return
	}

	userID, err := s.auth.VerifyRefresh(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	if _, err := s.store.GetUserByID(userID); err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		respondStoreError(w, err)
		return
	}

	tokens, err := s.auth.GenerateTokens(userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Token refreshed successfully",
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

// handleLogout is stateless; tokens simply expire.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// handleProfile returns the authenticated user.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user": userFrom(r.Context()),
	})
}
