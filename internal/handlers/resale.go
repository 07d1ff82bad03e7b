package handlers

import (
	"log"
	"net/http"

	"ewaste-backend/internal/models"
	"ewaste-backend/internal/resale"
	"ewaste-backend/internal/store"
	"ewaste-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

func CreateListing(svc *resale.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req models.CreateListingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		log.Printf("📥 REQUEST: POST /api/listings (%s, %d, %s)", req.Model, req.PurchaseYear, req.Condition)

		listing, err := svc.CreateListing(r.Context(), claims.UserID, req)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		log.Printf("📤 RESPONSE: 201 Created - listing %s at %.2f", listing.ID, listing.Price)
		utils.RespondSuccess(w, http.StatusCreated, listing)
	}
}

// GetListings lists available listings, or the caller's own with ?mine=true.
func GetListings(svc *resale.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		filter := store.ListingFilter{Status: models.ListingAvailable}
		if r.URL.Query().Get("mine") == "true" {
			filter = store.ListingFilter{SellerID: claims.UserID}
		}

		listings, err := svc.ListListings(r.Context(), filter)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, listings)
	}
}

func CreateOrder(svc *resale.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req models.CreateOrderRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		listingID := chi.URLParam(r, "id")
		log.Printf("📥 REQUEST: POST /api/listings/%s/order by %s", listingID, claims.UserID)

		order, err := svc.CreateOrder(r.Context(), listingID, claims.UserID, req)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		log.Printf("📤 RESPONSE: 201 Created - order %s, volunteer %s", order.ID, order.VolunteerID)
		utils.RespondSuccess(w, http.StatusCreated, order)
	}
}

func GetVolunteerOrders(svc *resale.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		orders, err := svc.ListOrders(r.Context(), store.OrderFilter{VolunteerID: claims.UserID})
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, orders)
	}
}

func VerifyOrderPickup(svc *resale.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req models.OTPRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		order, err := svc.VerifyPickup(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.OTP)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, order)
	}
}

func CheckOrderDevice(svc *resale.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req models.DeviceCheckRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		order, err := svc.DeviceCheck(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.OK)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, order)
	}
}

func VerifyOrderDelivery(svc *resale.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req models.OTPRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		order, err := svc.VerifyDelivery(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.OTP)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, order)
	}
}

func ConfirmOrderPayment(svc *resale.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		order, err := svc.ConfirmPayment(r.Context(), chi.URLParam(r, "id"), claims.UserID)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		log.Printf("📤 RESPONSE: 200 OK - order %s completed", order.ID)
		utils.RespondSuccess(w, http.StatusOK, order)
	}
}
