package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/middleware"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
	"ewaste-backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 7 * 24 * time.Hour

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string               `json:"token"`
	User  *models.UserResponse `json:"user"`
}

func Login(st store.Tx, issuer *middleware.JWTVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Email = strings.TrimSpace(req.Email)

		log.Printf("🔐 Login attempt for: %s", req.Email)

		user, err := st.GetUserByEmail(r.Context(), req.Email)
		if errors.Is(err, apperr.ErrNotFound) {
			log.Printf("❌ User not found: %s", req.Email)
			utils.RespondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			log.Printf("❌ Invalid password for: %s", req.Email)
			utils.RespondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}

		token, err := issuer.Issue(user, tokenTTL)
		if err != nil {
			log.Printf("❌ Failed to create token: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create token")
			return
		}

		userResponse := user.ToUserResponse()
		log.Printf("✅ Login successful: %s (%s)", user.Email, user.Role)

		utils.RespondSuccess(w, http.StatusOK, LoginResponse{Token: token, User: &userResponse})
	}
}
