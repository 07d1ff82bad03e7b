package handlers

import (
	"log"
	"net/http"
	"strconv"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/lifecycle"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
	"ewaste-backend/pkg/utils"
)

// CreateReport accepts a multipart form: image, location, and optional waste_type and
// amount.
func CreateReport(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/reports")

		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		img, err := readImage(r)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		req := models.CreateReportRequest{
			Location:  r.FormValue("location"),
			WasteType: r.FormValue("waste_type"),
		}
		if v := r.FormValue("amount"); v != "" {
			amount, err := strconv.ParseFloat(v, 64)
			if err != nil {
				utils.RespondServiceError(w, apperr.Validation("amount must be a number"))
				return
			}
			req.Amount = amount
		}

		report, err := svc.SubmitReport(r.Context(), claims.UserID, req, img)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		log.Printf("📤 RESPONSE: 201 Created - report %s", report.ID)
		utils.RespondSuccess(w, http.StatusCreated, report)
	}
}

// GetReports lists the caller's reports. Agency staff see every report, optionally
// filtered by status.
func GetReports(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		filter := store.ReportFilter{Status: models.ReportStatus(r.URL.Query().Get("status"))}
		if claims.Role != models.RoleAgency {
			filter.UserID = claims.UserID
		}

		reports, err := svc.ListReports(r.Context(), filter)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, reports)
	}
}
