package handlers

import (
	"log"
	"net/http"

	"ewaste-backend/internal/ledger"
	"ewaste-backend/internal/lifecycle"
	"ewaste-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

func GetRewards(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rewards, err := svc.ListRewards(r.Context())
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, rewards)
	}
}

type RedeemResponse struct {
	Points   int             `json:"points"`
	Progress ledger.Progress `json:"progress"`
}

func RedeemReward(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		rewardID := chi.URLParam(r, "id")
		log.Printf("📥 REQUEST: POST /api/rewards/%s/redeem by %s", rewardID, claims.UserID)

		citizen, err := svc.Redeem(r.Context(), claims.UserID, rewardID)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		log.Printf("📤 RESPONSE: 200 OK - %s has %d points left", claims.UserID, citizen.Points)
		utils.RespondSuccess(w, http.StatusOK, RedeemResponse{
			Points:   citizen.Points,
			Progress: ledger.ProgressOf(citizen.Standing),
		})
	}
}
