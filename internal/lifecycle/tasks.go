package lifecycle

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/ledger"
	"ewaste-backend/internal/matching"
	"ewaste-backend/internal/messaging"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"

	"github.com/google/uuid"
)

// Candidates ranks the agency's volunteers for a report. A geocoding failure is
// logged and leaves every distance unknown.
func (s *Service) Candidates(ctx context.Context, agencyID, reportID string) ([]matching.Candidate, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	var dest *models.Coordinates
	if s.geocoder != nil {
		dest, err = s.geocoder.Geocode(ctx, report.Location)
		if err != nil {
			log.Printf("⚠️  Geocoding failed for report %s (%q): %v", reportID, report.Location, err)
			dest = nil
		}
	}

	volunteers, err := s.store.ListVolunteersByAgency(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}
	now := s.now()
	for i := range volunteers {
		volunteers[i].ResetQuotaIfStale(now)
	}

	return matching.Rank(dest, volunteers, s.cfg.Quota), nil
}

// Assign creates a task for a pending report and the chosen volunteers. A volunteer
// exactly at quota may be assigned but will not be able to accept.
func (s *Service) Assign(ctx context.Context, agencyID string, req models.AssignTaskRequest) (*models.Task, error) {
	if req.ReportID == "" {
		return nil, apperr.Validation("report_id is required")
	}
	if len(req.VolunteerIDs) == 0 {
		return nil, apperr.Validation("at least one volunteer is required")
	}
	seen := make(map[string]bool, len(req.VolunteerIDs))
	for _, id := range req.VolunteerIDs {
		if id == "" {
			return nil, apperr.Validation("volunteer id must not be empty")
		}
		if seen[id] {
			return nil, apperr.Validation("volunteer %s listed twice", id)
		}
		seen[id] = true
	}

	var task *models.Task
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()

		report, err := tx.GetReport(ctx, req.ReportID)
		if err != nil {
			return err
		}
		if report.Status != models.ReportStatusPending {
			return apperr.InvalidState("report %s is already %s", report.ID, report.Status)
		}

		for _, id := range req.VolunteerIDs {
			v, err := tx.GetVolunteer(ctx, id)
			if err != nil {
				return err
			}
			if v.AgencyID != agencyID {
				return apperr.Forbidden("volunteer %s belongs to another agency", id)
			}
			v.ResetQuotaIfStale(now)
			// Accept stops the counter at the quota, so this only trips after
			// PICKUP_QUOTA is lowered mid-day.
			if v.PickupsToday > s.cfg.Quota {
				return fmt.Errorf("volunteer %s: %w", id, apperr.ErrQuotaReached)
			}
			if v.Status == models.VolunteerAvailable {
				v.Status = models.VolunteerAssigned
			}
			v.UpdatedAt = now.Unix()
			if err := tx.UpdateVolunteer(ctx, v); err != nil {
				return err
			}
		}

		task = &models.Task{
			ID:                        uuid.New().String(),
			AgencyID:                  agencyID,
			ReportID:                  report.ID,
			CitizenID:                 report.UserID,
			Report:                    models.ReportSnapshot(*report),
			VolunteersAssigned:        append([]string(nil), req.VolunteerIDs...),
			VolunteersAccepted:        []string{},
			CitizenConfirmationStatus: models.ConfirmationPending,
			CreatedAt:                 now.Unix(),
			UpdatedAt:                 now.Unix(),
		}
		task.Report.Status = models.ReportStatusMatched
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		if err := tx.UpdateReportStatus(ctx, report.ID, models.ReportStatusMatched); err != nil {
			return err
		}

		for _, id := range req.VolunteerIDs {
			_, err := messaging.Notify(ctx, tx, now, messaging.Notice{
				UserID: id,
				Type:   models.NotificationTaskAssigned,
				Title:  "New pickup assigned",
				Body:   fmt.Sprintf("Pickup at %s", report.Location),
				Data:   models.Payload{"task_id": task.ID, "report_id": report.ID},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Task %s assigned to %d volunteer(s) for report %s", task.ID, len(task.VolunteersAssigned), task.ReportID)
	return task, nil
}

// Accept records a volunteer's acceptance. Accepting twice is a no-op; the first
// acceptance counts against the daily quota.
func (s *Service) Accept(ctx context.Context, taskID, volunteerID string) (*models.Task, error) {
	var task *models.Task
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()

		var err error
		task, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task.Completed {
			return apperr.InvalidState("task %s is already completed", taskID)
		}
		if !task.IsAssigned(volunteerID) {
			return apperr.Forbidden("volunteer %s is not assigned to task %s", volunteerID, taskID)
		}
		if task.HasAccepted(volunteerID) {
			return nil
		}

		v, err := tx.GetVolunteer(ctx, volunteerID)
		if err != nil {
			return err
		}
		v.ResetQuotaIfStale(now)
		if v.PickupsToday >= s.cfg.Quota {
			return apperr.ErrQuotaReached
		}
		v.PickupsToday++
		v.Status = models.VolunteerWorking
		v.UpdatedAt = now.Unix()
		if err := tx.UpdateVolunteer(ctx, v); err != nil {
			return err
		}

		task.VolunteersAccepted = append(task.VolunteersAccepted, volunteerID)
		task.UpdatedAt = now.Unix()
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}

		_, err = messaging.Notify(ctx, tx, now, messaging.Notice{
			UserID: task.CitizenID,
			Type:   models.NotificationTaskAccepted,
			Title:  "Volunteer on the way",
			Body:   fmt.Sprintf("%s accepted your pickup", displayName(v.Username, v.ID)),
			Data:   models.Payload{"task_id": task.ID, "volunteer_id": v.ID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UploadVerification attaches the volunteer's on-site photo and starts the citizen's
// confirmation window.
func (s *Service) UploadVerification(ctx context.Context, taskID, volunteerID string, img Image) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := checkCanVerify(task, volunteerID); err != nil {
		return nil, err
	}

	if _, err := s.screenImage(ctx, img); err != nil {
		return nil, err
	}
	url, err := s.upload(ctx, "verifications/"+taskID, img)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()

		task, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := checkCanVerify(task, volunteerID); err != nil {
			return err
		}
		if err := tx.RegisterImageHash(ctx, img.Hash(), volunteerID); err != nil {
			return err
		}

		deadline := now.Add(s.cfg.ConfirmationWindow).Unix()
		task.VerificationImageURL = &url
		task.CitizenConfirmationStatus = models.ConfirmationPending
		task.CitizenVerificationDeadline = &deadline
		task.UpdatedAt = now.Unix()
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}

		_, err = messaging.Notify(ctx, tx, now, messaging.Notice{
			UserID: task.CitizenID,
			Type:   models.NotificationPickupVerified,
			Title:  "Pickup completed",
			Body:   "Please rate and confirm the pickup",
			Data:   models.Payload{"task_id": task.ID, "deadline": fmt.Sprint(deadline)},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📸 Verification photo stored for task %s by volunteer %s", taskID, volunteerID)
	return task, nil
}

func checkCanVerify(task *models.Task, volunteerID string) error {
	if task.Completed {
		return apperr.InvalidState("task %s is already completed", task.ID)
	}
	if !task.HasAccepted(volunteerID) {
		return apperr.Forbidden("volunteer %s has not accepted task %s", volunteerID, task.ID)
	}
	if task.State() == models.TaskStatePickupVerified {
		return apperr.InvalidState("task %s is already awaiting confirmation", task.ID)
	}
	return nil
}

// ValidRating reports whether r is within 0..5 in half steps.
func ValidRating(r float64) bool {
	if math.IsNaN(r) || r < 0 || r > 5 {
		return false
	}
	return r*2 == math.Trunc(r*2)
}

func (s *Service) Rate(ctx context.Context, taskID, citizenID string, rating float64) (*models.Task, error) {
	if !ValidRating(rating) {
		return nil, apperr.Validation("rating must be between 0 and 5 in steps of 0.5")
	}

	var task *models.Task
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		task, err = s.ownedTask(ctx, tx, taskID, citizenID)
		if err != nil {
			return err
		}
		if task.State() != models.TaskStatePickupVerified {
			return apperr.InvalidState("task %s is %s, rating needs a verified pickup", taskID, task.State())
		}
		task.Rating = &rating
		task.UpdatedAt = s.now().Unix()
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CitizenPhoto stores the citizen's own photo of the completed pickup.
func (s *Service) CitizenPhoto(ctx context.Context, taskID, citizenID string, img Image) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.CitizenID != citizenID {
		return nil, apperr.Forbidden("task %s belongs to another citizen", taskID)
	}
	if task.Completed {
		return nil, apperr.InvalidState("task %s is already completed", taskID)
	}
	if len(img.Data) == 0 {
		return nil, apperr.Validation("image is required")
	}
	exists, err := s.store.ImageHashExists(ctx, img.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to check image hash: %w", err)
	}
	if exists {
		return nil, apperr.ErrDuplicateImage
	}
	url, err := s.upload(ctx, "citizen-verifications/"+taskID, img)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		task, err = s.ownedTask(ctx, tx, taskID, citizenID)
		if err != nil {
			return err
		}
		if task.Completed {
			return apperr.InvalidState("task %s is already completed", taskID)
		}
		if err := tx.RegisterImageHash(ctx, img.Hash(), citizenID); err != nil {
			return err
		}
		task.CitizenVerificationImageURL = &url
		task.UpdatedAt = s.now().Unix()
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ApproveResult is returned by Approve. AlreadySettled is set when the task had been
// settled before the call, in which case nothing was awarded.
type ApproveResult struct {
	Task           *models.Task `json:"task"`
	AlreadySettled bool         `json:"already_settled"`
}

// Approve confirms a verified pickup and settles rewards exactly once.
func (s *Service) Approve(ctx context.Context, taskID, citizenID string) (*ApproveResult, error) {
	result := &ApproveResult{}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		task, err := s.ownedTask(ctx, tx, taskID, citizenID)
		if err != nil {
			return err
		}
		result.Task = task
		if task.Completed {
			result.AlreadySettled = true
			return nil
		}
		if task.State() != models.TaskStatePickupVerified {
			return apperr.InvalidState("task %s is %s, nothing to approve yet", taskID, task.State())
		}
		if task.Rating == nil {
			return apperr.ErrRatingRequired
		}
		return s.settle(ctx, tx, task, models.SettledByCitizen)
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadySettled {
		log.Printf("ℹ️  Task %s already settled, approve ignored", taskID)
	}
	return result, nil
}

// Reject sends the pickup back to the accepted volunteers.
func (s *Service) Reject(ctx context.Context, taskID, citizenID string) (*models.Task, error) {
	var task *models.Task
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()

		var err error
		task, err = s.ownedTask(ctx, tx, taskID, citizenID)
		if err != nil {
			return err
		}
		if task.Completed {
			return apperr.InvalidState("task %s is already completed", taskID)
		}
		if task.State() != models.TaskStatePickupVerified {
			return apperr.InvalidState("task %s is %s, nothing to reject", taskID, task.State())
		}

		task.VerificationImageURL = nil
		task.CitizenVerificationDeadline = nil
		task.Rating = nil
		task.CitizenConfirmationStatus = models.ConfirmationNotProperlyDone
		task.UpdatedAt = now.Unix()
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}

		for _, id := range task.VolunteersAccepted {
			_, err := messaging.Notify(ctx, tx, now, messaging.Notice{
				UserID: id,
				Type:   models.NotificationPickupRejected,
				Title:  "Pickup needs to be redone",
				Body:   "The citizen reported the pickup was not done properly",
				Data:   models.Payload{"task_id": task.ID},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("↩️  Task %s rejected by citizen %s", taskID, citizenID)
	return task, nil
}

func (s *Service) ownedTask(ctx context.Context, tx store.Tx, taskID, citizenID string) (*models.Task, error) {
	task, err := tx.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.CitizenID != citizenID {
		return nil, apperr.Forbidden("task %s belongs to another citizen", taskID)
	}
	return task, nil
}

// settle completes the task and pays the citizen and every accepted volunteer. Every
// volunteer on the task gets the status left by their remaining work. It must run
// inside the transaction holding the task row.
func (s *Service) settle(ctx context.Context, tx store.Tx, task *models.Task, settledBy string) error {
	now := s.now()

	task.Completed = true
	completedAt := now.Unix()
	task.CompletedAt = &completedAt
	task.CitizenConfirmationStatus = models.ConfirmationDone
	task.SettledBy = &settledBy
	task.Report.Status = models.ReportStatusCompleted
	task.UpdatedAt = now.Unix()
	if err := tx.UpdateTask(ctx, task); err != nil {
		return err
	}
	if err := tx.UpdateReportStatus(ctx, task.ReportID, models.ReportStatusCompleted); err != nil {
		return err
	}

	citizen, err := tx.GetCitizen(ctx, task.CitizenID)
	if err != nil {
		return err
	}
	grant := s.cfg.Rewards.Citizen
	ledger.Award(&citizen.Standing, grant, s.cfg.Ranks)
	citizen.UpdatedAt = now.Unix()
	if err := tx.UpdateCitizen(ctx, citizen); err != nil {
		return err
	}
	if err := s.recordEarning(ctx, tx, now, citizen.ID, task.ID, grant); err != nil {
		return err
	}

	for _, id := range task.VolunteersAccepted {
		v, err := tx.GetVolunteer(ctx, id)
		if err != nil {
			return err
		}
		grant := s.cfg.Rewards.Volunteer
		out := ledger.Award(&v.Standing, grant, s.cfg.Ranks)
		if v.Status, err = settledStatus(ctx, tx, v); err != nil {
			return err
		}
		v.UpdatedAt = now.Unix()
		if err := tx.UpdateVolunteer(ctx, v); err != nil {
			return err
		}
		if err := s.recordEarning(ctx, tx, now, v.ID, task.ID, grant); err != nil {
			return err
		}
		if out.LevelsGained > 0 {
			log.Printf("🎉 Volunteer %s reached level %d (%s)", v.ID, v.Level, v.Rank)
		}
	}

	for _, id := range task.VolunteersAssigned {
		if task.HasAccepted(id) {
			continue
		}
		v, err := tx.GetVolunteer(ctx, id)
		if err != nil {
			return err
		}
		if v.Status != models.VolunteerAssigned {
			continue
		}
		if v.Status, err = settledStatus(ctx, tx, v); err != nil {
			return err
		}
		v.UpdatedAt = now.Unix()
		if err := tx.UpdateVolunteer(ctx, v); err != nil {
			return err
		}
	}

	log.Printf("✅ Task %s settled by %s", task.ID, settledBy)
	return nil
}

// settledStatus is the status a volunteer falls back to once a task closes. An
// unavailable volunteer stays unavailable.
func settledStatus(ctx context.Context, tx store.Tx, v *models.Volunteer) (models.VolunteerStatus, error) {
	if v.Status == models.VolunteerUnavailable {
		return v.Status, nil
	}
	w, err := tx.VolunteerWorkload(ctx, v.ID)
	if err != nil {
		return "", err
	}
	return w.Status(), nil
}

func (s *Service) recordEarning(ctx context.Context, tx store.Tx, now time.Time, userID, taskID string, grant ledger.Grant) error {
	err := tx.CreateTransaction(ctx, &models.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        models.TransactionEarnedCollect,
		Amount:      grant.Points,
		Description: fmt.Sprintf("Pickup %s confirmed", taskID),
		CreatedAt:   now.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	_, err = messaging.Notify(ctx, tx, now, messaging.Notice{
		UserID: userID,
		Type:   models.NotificationTaskSettled,
		Title:  "Pickup confirmed",
		Body:   fmt.Sprintf("You earned %d points and %d exp", grant.Points, grant.Exp),
		Data:   models.Payload{"task_id": taskID, "points": fmt.Sprint(grant.Points), "exp": fmt.Sprint(grant.Exp)},
	})
	return err
}

// ListTasks returns tasks visible to an agency, a citizen or a volunteer.
func (s *Service) ListTasks(ctx context.Context, f store.TaskFilter) ([]models.TaskResponse, error) {
	tasks, err := s.store.ListTasks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	out := make([]models.TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, tasks[i].ToResponse())
	}
	return out, nil
}

func displayName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
