package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/ledger"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
	"ewaste-backend/pkg/utils"
)

type MeResponse struct {
	User     models.UserResponse `json:"user"`
	Profile  interface{}         `json:"profile,omitempty"`
	Progress *ledger.Progress    `json:"progress,omitempty"`
}

// GetMe returns the caller's account with the role profile and level progress.
func GetMe(st store.Tx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: GET /api/me")

		claims, ok := currentUser(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		resp := MeResponse{}
		user, err := st.GetUser(ctx, claims.UserID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			// Firebase identities may not have a local account row
			resp.User = models.UserResponse{ID: claims.UserID, Email: claims.Email, Role: claims.Role}
			if claims.AgencyID != "" {
				agencyID := claims.AgencyID
				resp.User.AgencyID = &agencyID
			}
		case err != nil:
			utils.RespondServiceError(w, err)
			return
		default:
			resp.User = user.ToUserResponse()
		}

		switch claims.Role {
		case models.RoleCitizen:
			c, err := st.GetCitizen(ctx, claims.UserID)
			if err != nil {
				utils.RespondServiceError(w, err)
				return
			}
			p := ledger.ProgressOf(c.Standing)
			resp.Profile, resp.Progress = c, &p
		case models.RoleVolunteer:
			v, err := st.GetVolunteer(ctx, claims.UserID)
			if err != nil {
				utils.RespondServiceError(w, err)
				return
			}
			v.ResetQuotaIfStale(time.Now())
			p := ledger.ProgressOf(v.Standing)
			resp.Profile, resp.Progress = v, &p
		}

		utils.RespondSuccess(w, http.StatusOK, resp)
	}
}

// GetTransactions lists the caller's ledger, newest first.
func GetTransactions(st store.Tx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		txs, err := st.ListTransactions(r.Context(), claims.UserID)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		log.Printf("📤 RESPONSE: 200 OK - %d transactions for %s", len(txs), claims.UserID)
		utils.RespondSuccess(w, http.StatusOK, txs)
	}
}
