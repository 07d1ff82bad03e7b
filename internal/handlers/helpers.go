package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/lifecycle"
	"ewaste-backend/internal/middleware"
	"ewaste-backend/pkg/utils"
)

const maxImageBytes = 10 << 20

// decodeJSON reads the request body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Printf("❌ Invalid request body: %v", err)
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// currentUser returns the caller's claims, answering 401 when there are none.
func currentUser(w http.ResponseWriter, r *http.Request) (middleware.UserClaims, bool) {
	claims, ok := middleware.GetUserFromContext(r)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return claims, ok
}

// readImage reads the "image" file of a multipart request.
func readImage(r *http.Request) (lifecycle.Image, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return lifecycle.Image{}, apperr.Validation("expected a multipart form with an image")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return lifecycle.Image{}, apperr.Validation("image is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return lifecycle.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return lifecycle.Image{}, apperr.Validation("image exceeds %d MB", maxImageBytes>>20)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return lifecycle.Image{Data: data, ContentType: contentType}, nil
}
