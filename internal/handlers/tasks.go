package handlers

import (
	"log"
	"net/http"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/lifecycle"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
	"ewaste-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// agencyOf returns the caller's agency, answering 403 when the token carries none.
func agencyOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := currentUser(w, r)
	if !ok {
		return "", false
	}
	if claims.AgencyID == "" {
		utils.RespondServiceError(w, apperr.Forbidden("account is not linked to an agency"))
		return "", false
	}
	return claims.AgencyID, true
}

// Agency

func GetCandidates(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agencyID, ok := agencyOf(w, r)
		if !ok {
			return
		}

		reportID := chi.URLParam(r, "id")
		log.Printf("📥 REQUEST: GET /api/agency/reports/%s/candidates", reportID)

		candidates, err := svc.Candidates(r.Context(), agencyID, reportID)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, candidates)
	}
}

func AssignTask(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agencyID, ok := agencyOf(w, r)
		if !ok {
			return
		}

		var req models.AssignTaskRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		log.Printf("📥 REQUEST: POST /api/agency/tasks (report %s, %d volunteers)", req.ReportID, len(req.VolunteerIDs))

		task, err := svc.Assign(r.Context(), agencyID, req)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		log.Printf("📤 RESPONSE: 201 Created - task %s", task.ID)
		utils.RespondSuccess(w, http.StatusCreated, task.ToResponse())
	}
}

func GetAgencyTasks(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agencyID, ok := agencyOf(w, r)
		if !ok {
			return
		}
		listTasks(w, r, svc, store.TaskFilter{AgencyID: agencyID})
	}
}

// Volunteer

func GetVolunteerTasks(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}
		listTasks(w, r, svc, store.TaskFilter{VolunteerID: claims.UserID})
	}
}

func AcceptTask(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		taskID := chi.URLParam(r, "id")
		log.Printf("📥 REQUEST: POST /api/tasks/%s/accept by %s", taskID, claims.UserID)

		task, err := svc.Accept(r.Context(), taskID, claims.UserID)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, task.ToResponse())
	}
}

func UploadVerification(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		taskID := chi.URLParam(r, "id")
		log.Printf("📥 REQUEST: POST /api/tasks/%s/verification by %s", taskID, claims.UserID)

		img, err := readImage(r)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		task, err := svc.UploadVerification(r.Context(), taskID, claims.UserID, img)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, task.ToResponse())
	}
}

// Citizen

func GetCitizenTasks(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}
		listTasks(w, r, svc, store.TaskFilter{CitizenID: claims.UserID})
	}
}

func RateTask(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req models.RateTaskRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		task, err := svc.Rate(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.Rating)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, task.ToResponse())
	}
}

func UploadCitizenPhoto(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		img, err := readImage(r)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		task, err := svc.CitizenPhoto(r.Context(), chi.URLParam(r, "id"), claims.UserID, img)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, task.ToResponse())
	}
}

type ApproveResponse struct {
	Task           models.TaskResponse `json:"task"`
	AlreadySettled bool                `json:"already_settled"`
}

func ApproveTask(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		taskID := chi.URLParam(r, "id")
		log.Printf("📥 REQUEST: POST /api/tasks/%s/approve by %s", taskID, claims.UserID)

		result, err := svc.Approve(r.Context(), taskID, claims.UserID)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}

		if result.AlreadySettled {
			log.Printf("📤 RESPONSE: 200 OK - task %s was already settled", taskID)
		} else {
			log.Printf("📤 RESPONSE: 200 OK - task %s settled", taskID)
		}
		utils.RespondSuccess(w, http.StatusOK, ApproveResponse{
			Task:           result.Task.ToResponse(),
			AlreadySettled: result.AlreadySettled,
		})
	}
}

func RejectTask(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		taskID := chi.URLParam(r, "id")
		log.Printf("📥 REQUEST: POST /api/tasks/%s/reject by %s", taskID, claims.UserID)

		task, err := svc.Reject(r.Context(), taskID, claims.UserID)
		if err != nil {
			utils.RespondServiceError(w, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, task.ToResponse())
	}
}

func listTasks(w http.ResponseWriter, r *http.Request, svc *lifecycle.Service, f store.TaskFilter) {
	tasks, err := svc.ListTasks(r.Context(), f)
	if err != nil {
		utils.RespondServiceError(w, err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, tasks)
}
