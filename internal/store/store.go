// Package store declares the persistence boundary. Every lifecycle transition loads
// and writes its entities through a Tx obtained from Store.RunInTx, so a transition
// commits or rolls back as a whole.
package store

import (
	"context"

	"ewaste-backend/internal/models"
)

// Tx is the set of entity operations. Getters called on a transaction lock the row
// until commit.
type Tx interface {
	// Users
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error

	// Citizens
	GetCitizen(ctx context.Context, id string) (*models.Citizen, error)
	CreateCitizen(ctx context.Context, c *models.Citizen) error
	UpdateCitizen(ctx context.Context, c *models.Citizen) error

	// Volunteers
	GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error)
	CreateVolunteer(ctx context.Context, v *models.Volunteer) error
	UpdateVolunteer(ctx context.Context, v *models.Volunteer) error
	ListVolunteersByAgency(ctx context.Context, agencyID string) ([]models.Volunteer, error)
	// ListAvailableVolunteers returns every available volunteer in roster order
	// (agency_id, id).
	ListAvailableVolunteers(ctx context.Context) ([]models.Volunteer, error)
	ResetPickupQuotas(ctx context.Context, day string) (int64, error)
	// VolunteerWorkload counts the volunteer's uncompleted tasks and open orders as
	// seen by this transaction.
	VolunteerWorkload(ctx context.Context, volunteerID string) (models.Workload, error)

	// Reports
	GetReport(ctx context.Context, id string) (*models.Report, error)
	CreateReport(ctx context.Context, r *models.Report) error
	UpdateReportStatus(ctx context.Context, id string, status models.ReportStatus) error
	ListReports(ctx context.Context, f ReportFilter) ([]models.Report, error)

	// RegisterImageHash records a content hash. It fails with apperr.ErrDuplicateImage
	// when the hash was already registered by anyone.
	RegisterImageHash(ctx context.Context, hash, ownerID string) error
	ImageHashExists(ctx context.Context, hash string) (bool, error)

	// Tasks
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, t *models.Task) error
	UpdateTask(ctx context.Context, t *models.Task) error
	ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error)
	// ListDueTasks returns unsettled tasks whose confirmation deadline is at or before
	// asOf, ordered by id and starting after the given id.
	ListDueTasks(ctx context.Context, asOf int64, after string, limit int) ([]models.Task, error)

	// Ledger
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
	UpsertFCMToken(ctx context.Context, t *models.FCMToken) error
	ListFCMTokens(ctx context.Context, userID string) ([]models.FCMToken, error)
	DeleteFCMToken(ctx context.Context, token string) error

	// Resale
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	CreateListing(ctx context.Context, l *models.Listing) error
	UpdateListing(ctx context.Context, l *models.Listing) error
	ListListings(ctx context.Context, f ListingFilter) ([]models.Listing, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	CreateOrder(ctx context.Context, o *models.Order) error
	UpdateOrder(ctx context.Context, o *models.Order) error
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)

	// Rewards catalog
	ListRewards(ctx context.Context) ([]models.Reward, error)
	GetReward(ctx context.Context, id string) (*models.Reward, error)
	UpdateReward(ctx context.Context, r *models.Reward) error

	// Outbox
	InsertOutbox(ctx context.Context, m *models.OutboxMessage) error
	ListPendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id string, at int64) error
	MarkOutboxFailed(ctx context.Context, id string, reason string) error
	DeleteOutboxPublishedBefore(ctx context.Context, before int64) (int64, error)
}

// Store runs operations either directly or inside a transaction.
type Store interface {
	Tx
	// RunInTx runs fn in one transaction. The transaction commits when fn returns nil
	// and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type ReportFilter struct {
	UserID string
	Status models.ReportStatus
}

type TaskFilter struct {
	AgencyID    string
	CitizenID   string
	VolunteerID string // assigned to
}

type ListingFilter struct {
	Status   models.ListingStatus
	SellerID string
}

type OrderFilter struct {
	VolunteerID string
	UserID      string // seller or buyer
}
