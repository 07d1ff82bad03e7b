package models

import (
	"github.com/lib/pq"
)

type ConfirmationStatus string

const (
	ConfirmationPending         ConfirmationStatus = "pending"
	ConfirmationDone            ConfirmationStatus = "done"
	ConfirmationNotProperlyDone ConfirmationStatus = "notProperlyDone"
)

// TaskState is derived from the task fields, never stored.
type TaskState string

const (
	TaskStateAssigned       TaskState = "assigned"
	TaskStateAccepted       TaskState = "accepted"
	TaskStatePickupVerified TaskState = "pickup_verified"
	TaskStateCompleted      TaskState = "completed"
)

const (
	SettledByCitizen     = "citizen"
	SettledByAutoConfirm = "auto_confirm"
)

// Task is the unit of work linking one report to the volunteers an agency assigned.
type Task struct {
	ID                          string             `json:"id" db:"id"`
	AgencyID                    string             `json:"agency_id" db:"agency_id"`
	ReportID                    string             `json:"report_id" db:"report_id"`
	CitizenID                   string             `json:"citizen_id" db:"citizen_id"`
	Report                      ReportSnapshot     `json:"report" db:"report"`
	VolunteersAssigned          pq.StringArray     `json:"volunteers_assigned" db:"volunteers_assigned"`
	VolunteersAccepted          pq.StringArray     `json:"volunteers_accepted" db:"volunteers_accepted"`
	VerificationImageURL        *string            `json:"verification_image_url" db:"verification_image_url"`
	CitizenVerificationImageURL *string            `json:"citizen_verification_image_url" db:"citizen_verification_image_url"`
	CitizenConfirmationStatus   ConfirmationStatus `json:"citizen_confirmation_status" db:"citizen_confirmation_status"`
	CitizenVerificationDeadline *int64             `json:"citizen_verification_deadline" db:"citizen_verification_deadline"`
	Rating                      *float64           `json:"rating" db:"rating"`
	Completed                   bool               `json:"completed" db:"completed"`
	CompletedAt                 *int64             `json:"completed_at,omitempty" db:"completed_at"`
	SettledBy                   *string            `json:"settled_by,omitempty" db:"settled_by"`
	CreatedAt                   int64              `json:"created_at" db:"created_at"`
	UpdatedAt                   int64              `json:"updated_at" db:"updated_at"`
}

// State derives the lifecycle position from the stored fields.
func (t *Task) State() TaskState {
	switch {
	case t.Completed:
		return TaskStateCompleted
	case t.VerificationImageURL != nil && *t.VerificationImageURL != "":
		return TaskStatePickupVerified
	case len(t.VolunteersAccepted) > 0:
		return TaskStateAccepted
	default:
		return TaskStateAssigned
	}
}

func (t *Task) IsAssigned(volunteerID string) bool {
	return containsID(t.VolunteersAssigned, volunteerID)
}

func (t *Task) HasAccepted(volunteerID string) bool {
	return containsID(t.VolunteersAccepted, volunteerID)
}

// DueForAutoConfirm reports whether the confirmation deadline has passed on an
// unsettled task. Tasks without a deadline are never due.
func (t *Task) DueForAutoConfirm(asOf int64) bool {
	return !t.Completed && t.CitizenVerificationDeadline != nil && *t.CitizenVerificationDeadline <= asOf
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// TaskResponse adds the derived state to a task.
type TaskResponse struct {
	Task
	State TaskState `json:"state"`
}

func (t *Task) ToResponse() TaskResponse {
	return TaskResponse{Task: *t, State: t.State()}
}

// AssignTaskRequest is the body of POST /api/agency/tasks.
type AssignTaskRequest struct {
	ReportID     string   `json:"report_id"`
	VolunteerIDs []string `json:"volunteer_ids"`
}

// RateTaskRequest is the body of POST /api/tasks/{id}/rating.
type RateTaskRequest struct {
	Rating float64 `json:"rating"`
}
