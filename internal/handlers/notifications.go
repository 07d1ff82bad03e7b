package handlers

import (
	"log"
	"net/http"
	"strings"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
	"ewaste-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

func GetNotifications(st store.Tx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		notifications, err := st.ListNotifications(r.Context(), claims.UserID)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, notifications)
	}
}

func MarkNotificationRead(st store.Tx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if err := st.MarkNotificationRead(r.Context(), id, claims.UserID); err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, map[string]string{"id": id})
	}
}

type RegisterFCMTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

// RegisterFCMToken saves the device token push notifications are sent to.
func RegisterFCMToken(st store.Tx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req RegisterFCMTokenRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Token = strings.TrimSpace(req.Token)
		if req.Token == "" {
			utils.RespondServiceError(w, apperr.Validation("token is required"))
			return
		}
		if req.DeviceType == "" {
			req.DeviceType = "android"
		}
		if req.DeviceType != "ios" && req.DeviceType != "android" && req.DeviceType != "web" {
			utils.RespondServiceError(w, apperr.Validation("device_type must be ios, android or web"))
			return
		}

		token := &models.FCMToken{UserID: claims.UserID, Token: req.Token, DeviceType: req.DeviceType}
		if err := st.UpsertFCMToken(r.Context(), token); err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		log.Printf("✅ FCM token registered for %s (%s)", claims.UserID, req.DeviceType)
		utils.RespondSuccess(w, http.StatusOK, token)
	}
}
