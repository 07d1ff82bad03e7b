package handlers

import (
	"log"
	"net/http"

	"ewaste-backend/internal/lifecycle"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/websocket"
	"ewaste-backend/pkg/utils"
)

// AgencyBroadcaster relays live updates to an agency's dashboards.
type AgencyBroadcaster interface {
	BroadcastToAgency(agencyID string, data interface{})
}

func GetAgencyVolunteers(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agencyID, ok := agencyOf(w, r)
		if !ok {
			return
		}

		volunteers, err := svc.Roster(r.Context(), agencyID)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		log.Printf("📤 RESPONSE: 200 OK - %d volunteers in %s", len(volunteers), agencyID)
		utils.RespondSuccess(w, http.StatusOK, volunteers)
	}
}

func UpdateVolunteerLocation(svc *lifecycle.Service, live AgencyBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req models.VolunteerLocationUpdate
		if !decodeJSON(w, r, &req) {
			return
		}

		v, err := svc.UpdateLocation(r.Context(), claims.UserID, req)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		if live != nil {
			live.BroadcastToAgency(v.AgencyID, websocket.LocationBroadcast(v))
		}
		utils.RespondSuccess(w, http.StatusOK, v)
	}
}
