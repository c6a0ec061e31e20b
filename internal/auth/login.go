package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/evalIA/property-import-service/internal/config"
	"github.com/evalIA/property-import-service/internal/logger"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// compared against when the username is unknown so both paths cost a bcrypt check
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

// LoginHandler authenticates against the configured users
func LoginHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			http.Error(w, `{"error":"username and password are required"}`, http.StatusBadRequest)
			return
		}

		user := cfg.FindUser(req.Username)
		hash := dummyHash
		if user != nil {
			hash = []byte(user.PasswordHash)
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(req.Password)); err != nil || user == nil {
			logger.Info(r.Context(), "auth.login.failed", "username", req.Username)
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}

		// Generate JWT
		token, err := GenerateToken(user.ID, user.Username, user.Name, user.Role)
		if err != nil {
			http.Error(w, `{"error":"failed to generate token"}`, http.StatusInternalServerError)
			return
		}

		logger.Info(logger.WithUser(r.Context(), user.ID), "auth.login.ok")
		json.NewEncoder(w).Encode(LoginResponse{
			Token:    token,
			UserID:   user.ID,
			Username: user.Username,
			Name:     user.Name,
			Role:     user.Role,
		})
	}
}
