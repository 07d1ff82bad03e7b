package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// outbox rows that failed this often stay in the table for inspection
const maxOutboxAttempts = 10

const uniqueViolation = "23505"

// PostgresStore implements store.Store on Postgres.
type PostgresStore struct {
	*queries
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{queries: &queries{q: db}, db: db}
}

// RunInTx runs fn in one transaction. Getters inside fn lock the rows they read.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &queries{q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type queries struct {
	q    sqlx.ExtContext
	inTx bool
}

func (q *queries) forUpdate() string {
	if q.inTx {
		return " FOR UPDATE"
	}
	return ""
}

func (q *queries) get(ctx context.Context, dest interface{}, entity, id, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, q.q, dest, query+q.forUpdate(), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s %s: %w", entity, id, err)
	}
	return nil
}

func (q *queries) exec(ctx context.Context, entity, id, query string, args ...interface{}) error {
	_, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", entity, id, err)
	}
	return nil
}

// update runs an UPDATE and reports a missing row as not found.
func (q *queries) update(ctx context.Context, entity, id, query string, args ...interface{}) error {
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", entity, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

// Users

const userColumns = `id, email, password, name, role, agency_id, created_at, updated_at`

func (q *queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := q.get(ctx, &u, "user", id, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := q.get(ctx, &u, "user", email, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *queries) CreateUser(ctx context.Context, u *models.User) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.Password, u.Name, u.Role, u.AgencyID, u.CreatedAt, u.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperr.InvalidState("user %s already exists", u.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", u.Email, err)
	}
	return nil
}

// Citizens

const citizenColumns = `id, username, email, address, streak, last_report_date,
	points, total_points, exp, level, rank, created_at, updated_at`

func (q *queries) GetCitizen(ctx context.Context, id string) (*models.Citizen, error) {
	var c models.Citizen
	err := q.get(ctx, &c, "citizen", id, `SELECT `+citizenColumns+` FROM citizens WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) CreateCitizen(ctx context.Context, c *models.Citizen) error {
	return q.exec(ctx, "citizen", c.ID, `
		INSERT INTO citizens (`+citizenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, c.ID, c.Username, c.Email, c.Address, c.Streak, c.LastReportDate,
		c.Points, c.TotalPoints, c.Exp, c.Level, c.Rank, c.CreatedAt, c.UpdatedAt)
}

func (q *queries) UpdateCitizen(ctx context.Context, c *models.Citizen) error {
	return q.update(ctx, "citizen", c.ID, `
		UPDATE citizens SET
			username = $2, address = $3, streak = $4, last_report_date = $5,
			points = $6, total_points = $7, exp = $8, level = $9, rank = $10,
			updated_at = $11
		WHERE id = $1
	`, c.ID, c.Username, c.Address, c.Streak, c.LastReportDate,
		c.Points, c.TotalPoints, c.Exp, c.Level, c.Rank, c.UpdatedAt)
}

// Volunteers

const volunteerColumns = `id, agency_id, username, email, status, pickups_today, last_reset,
	latitude, longitude, address, points, total_points, exp, level, rank, created_at, updated_at`

func (q *queries) GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error) {
	var v models.Volunteer
	err := q.get(ctx, &v, "volunteer", id, `SELECT `+volunteerColumns+` FROM volunteers WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (q *queries) CreateVolunteer(ctx context.Context, v *models.Volunteer) error {
	return q.exec(ctx, "volunteer", v.ID, `
		INSERT INTO volunteers (`+volunteerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, v.ID, v.AgencyID, v.Username, v.Email, v.Status, v.PickupsToday, v.LastReset,
		v.Latitude, v.Longitude, v.Address, v.Points, v.TotalPoints, v.Exp, v.Level, v.Rank,
		v.CreatedAt, v.UpdatedAt)
}

func (q *queries) UpdateVolunteer(ctx context.Context, v *models.Volunteer) error {
	return q.update(ctx, "volunteer", v.ID, `
		UPDATE volunteers SET
			status = $2, pickups_today = $3, last_reset = $4,
			latitude = $5, longitude = $6, address = $7,
			points = $8, total_points = $9, exp = $10, level = $11, rank = $12,
			updated_at = $13
		WHERE id = $1
	`, v.ID, v.Status, v.PickupsToday, v.LastReset, v.Latitude, v.Longitude, v.Address,
		v.Points, v.TotalPoints, v.Exp, v.Level, v.Rank, v.UpdatedAt)
}

func (q *queries) ListVolunteersByAgency(ctx context.Context, agencyID string) ([]models.Volunteer, error) {
	volunteers := []models.Volunteer{}
	err := sqlx.SelectContext(ctx, q.q, &volunteers, `
		SELECT `+volunteerColumns+` FROM volunteers
		WHERE agency_id = $1
		ORDER BY id
	`, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}
	return volunteers, nil
}

// ListAvailableVolunteers skips rows another transaction is already placing on an
// order.
func (q *queries) ListAvailableVolunteers(ctx context.Context) ([]models.Volunteer, error) {
	lock := ""
	if q.inTx {
		lock = " FOR UPDATE SKIP LOCKED"
	}
	volunteers := []models.Volunteer{}
	err := sqlx.SelectContext(ctx, q.q, &volunteers, `
		SELECT `+volunteerColumns+` FROM volunteers
		WHERE status = $1
		ORDER BY agency_id, id`+lock, models.VolunteerAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to list available volunteers: %w", err)
	}
	return volunteers, nil
}

func (q *queries) ResetPickupQuotas(ctx context.Context, day string) (int64, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE volunteers
		SET pickups_today = 0, last_reset = $1, updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE last_reset IS DISTINCT FROM $1
	`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to reset pickup quotas: %w", err)
	}
	return res.RowsAffected()
}

func (q *queries) VolunteerWorkload(ctx context.Context, volunteerID string) (models.Workload, error) {
	var w models.Workload
	err := sqlx.GetContext(ctx, q.q, &w, `
		SELECT
			(SELECT COUNT(*) FROM tasks
			 WHERE completed = FALSE AND $1 = ANY(volunteers_accepted)) AS accepted_tasks,
			(SELECT COUNT(*) FROM tasks
			 WHERE completed = FALSE AND $1 = ANY(volunteers_assigned)
			   AND NOT ($1 = ANY(volunteers_accepted))) AS assigned_tasks,
			(SELECT COUNT(*) FROM orders
			 WHERE volunteer_id = $1 AND status IN ('assigned', 'picked_up')) AS open_orders
	`, volunteerID)
	if err != nil {
		return w, fmt.Errorf("failed to count work for volunteer %s: %w", volunteerID, err)
	}
	return w, nil
}

// Reports

const reportColumns = `id, user_id, location, waste_type, amount, image_url, image_hash,
	verification_result, status, created_at`

func (q *queries) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	err := q.get(ctx, &r, "report", id, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *queries) CreateReport(ctx context.Context, r *models.Report) error {
	return q.exec(ctx, "report", r.ID, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.UserID, r.Location, r.WasteType, r.Amount, r.ImageURL, r.ImageHash,
		r.VerificationResult, r.Status, r.CreatedAt)
}

func (q *queries) UpdateReportStatus(ctx context.Context, id string, status models.ReportStatus) error {
	return q.update(ctx, "report", id, `UPDATE reports SET status = $2 WHERE id = $1`, id, status)
}

func (q *queries) ListReports(ctx context.Context, f store.ReportFilter) ([]models.Report, error) {
	var where []string
	var args []interface{}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	reports := []models.Report{}
	if err := sqlx.SelectContext(ctx, q.q, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

func (q *queries) RegisterImageHash(ctx context.Context, hash, ownerID string) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO image_hashes (hash, owner_id, created_at)
		VALUES ($1, $2, EXTRACT(EPOCH FROM NOW())::BIGINT)
	`, hash, ownerID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperr.ErrDuplicateImage
	}
	if err != nil {
		return fmt.Errorf("failed to register image hash: %w", err)
	}
	return nil
}

func (q *queries) ImageHashExists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q.q, &exists, `SELECT EXISTS(SELECT 1 FROM image_hashes WHERE hash = $1)`, hash)
	if err != nil {
		return false, fmt.Errorf("failed to check image hash: %w", err)
	}
	return exists, nil
}

// Tasks

const taskColumns = `id, agency_id, report_id, citizen_id, report, volunteers_assigned,
	volunteers_accepted, verification_image_url, citizen_verification_image_url,
	citizen_confirmation_status, citizen_verification_deadline, rating, completed,
	completed_at, settled_by, created_at, updated_at`

func (q *queries) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	err := q.get(ctx, &t, "task", id, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (q *queries) CreateTask(ctx context.Context, t *models.Task) error {
	return q.exec(ctx, "task", t.ID, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, t.ID, t.AgencyID, t.ReportID, t.CitizenID, t.Report, t.VolunteersAssigned,
		t.VolunteersAccepted, t.VerificationImageURL, t.CitizenVerificationImageURL,
		t.CitizenConfirmationStatus, t.CitizenVerificationDeadline, t.Rating, t.Completed,
		t.CompletedAt, t.SettledBy, t.CreatedAt, t.UpdatedAt)
}

// UpdateTask writes every mutable field. The report snapshot is fixed at creation.
func (q *queries) UpdateTask(ctx context.Context, t *models.Task) error {
	return q.update(ctx, "task", t.ID, `
		UPDATE tasks SET
			volunteers_assigned = $2,
			volunteers_accepted = $3,
			verification_image_url = $4,
			citizen_verification_image_url = $5,
			citizen_confirmation_status = $6,
			citizen_verification_deadline = $7,
			rating = $8,
			completed = $9,
			completed_at = $10,
			settled_by = $11,
			updated_at = $12
		WHERE id = $1
	`, t.ID, t.VolunteersAssigned, t.VolunteersAccepted, t.VerificationImageURL,
		t.CitizenVerificationImageURL, t.CitizenConfirmationStatus, t.CitizenVerificationDeadline,
		t.Rating, t.Completed, t.CompletedAt, t.SettledBy, t.UpdatedAt)
}

func (q *queries) ListTasks(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	var where []string
	var args []interface{}
	if f.AgencyID != "" {
		args = append(args, f.AgencyID)
		where = append(where, fmt.Sprintf("agency_id = $%d", len(args)))
	}
	if f.CitizenID != "" {
		args = append(args, f.CitizenID)
		where = append(where, fmt.Sprintf("citizen_id = $%d", len(args)))
	}
	if f.VolunteerID != "" {
		args = append(args, f.VolunteerID)
		where = append(where, fmt.Sprintf("$%d = ANY(volunteers_assigned)", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	tasks := []models.Task{}
	if err := sqlx.SelectContext(ctx, q.q, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// ListDueTasks pages through unsettled tasks whose confirmation deadline has passed,
// ordered by id after the keyset cursor.
func (q *queries) ListDueTasks(ctx context.Context, asOf int64, after string, limit int) ([]models.Task, error) {
	tasks := []models.Task{}
	err := sqlx.SelectContext(ctx, q.q, &tasks, `
		SELECT `+taskColumns+` FROM tasks
		WHERE completed = FALSE
		  AND citizen_verification_deadline IS NOT NULL
		  AND citizen_verification_deadline <= $1
		  AND id > $2
		ORDER BY id
		LIMIT $3
	`, asOf, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}
	return tasks, nil
}

// Ledger

func (q *queries) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return q.exec(ctx, "transaction", t.ID, `
		INSERT INTO transactions (id, user_id, type, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.UserID, t.Type, t.Amount, t.Description, t.CreatedAt)
}

func (q *queries) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	err := sqlx.SelectContext(ctx, q.q, &txs, `
		SELECT id, user_id, type, amount, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// Notifications

func (q *queries) CreateNotification(ctx context.Context, n *models.Notification) error {
	return q.exec(ctx, "notification", n.ID, `
		INSERT INTO notifications (id, user_id, type, title, body, data, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, n.Type, n.Title, n.Body, n.Data, n.Read, n.CreatedAt)
}

func (q *queries) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := sqlx.SelectContext(ctx, q.q, &notifications, `
		SELECT id, user_id, type, title, body, data, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 100
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (q *queries) MarkNotificationRead(ctx context.Context, id, userID string) error {
	return q.update(ctx, "notification", id,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
}

// UpsertFCMToken moves a token to the calling user if another account registered it
// on the same device before.
func (q *queries) UpsertFCMToken(ctx context.Context, t *models.FCMToken) error {
	err := sqlx.GetContext(ctx, q.q, t, `
		INSERT INTO user_fcm_tokens (user_id, token, device_type, created_at, updated_at)
		VALUES ($1, $2, $3, EXTRACT(EPOCH FROM NOW())::BIGINT, EXTRACT(EPOCH FROM NOW())::BIGINT)
		ON CONFLICT (token)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			device_type = EXCLUDED.device_type,
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		RETURNING id, user_id, token, device_type, created_at, updated_at
	`, t.UserID, t.Token, t.DeviceType)
	if err != nil {
		return fmt.Errorf("failed to save FCM token: %w", err)
	}
	return nil
}

func (q *queries) ListFCMTokens(ctx context.Context, userID string) ([]models.FCMToken, error) {
	tokens := []models.FCMToken{}
	err := sqlx.SelectContext(ctx, q.q, &tokens, `
		SELECT id, user_id, token, device_type, created_at, updated_at
		FROM user_fcm_tokens
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list FCM tokens: %w", err)
	}
	return tokens, nil
}

func (q *queries) DeleteFCMToken(ctx context.Context, token string) error {
	return q.exec(ctx, "fcm token", "", `DELETE FROM user_fcm_tokens WHERE token = $1`, token)
}

// Resale

const listingColumns = `id, seller_id, report_id, model, purchase_year, condition, price,
	pickup_address, status, created_at, updated_at`

func (q *queries) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var l models.Listing
	err := q.get(ctx, &l, "listing", id, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (q *queries) CreateListing(ctx context.Context, l *models.Listing) error {
	return q.exec(ctx, "listing", l.ID, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, l.ID, l.SellerID, l.ReportID, l.Model, l.PurchaseYear, l.Condition, l.Price,
		l.PickupAddress, l.Status, l.CreatedAt, l.UpdatedAt)
}

func (q *queries) UpdateListing(ctx context.Context, l *models.Listing) error {
	return q.update(ctx, "listing", l.ID, `
		UPDATE listings SET condition = $2, price = $3, pickup_address = $4, status = $5, updated_at = $6
		WHERE id = $1
	`, l.ID, l.Condition, l.Price, l.PickupAddress, l.Status, l.UpdatedAt)
}

func (q *queries) ListListings(ctx context.Context, f store.ListingFilter) ([]models.Listing, error) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.SellerID != "" {
		args = append(args, f.SellerID)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	listings := []models.Listing{}
	if err := sqlx.SelectContext(ctx, q.q, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

const orderColumns = `id, listing_id, first_user, end_user_id, volunteer_id, agency_id,
	pickup_address, destination_address, price, status, otp, otp2, otp_failures, device_ok,
	delivered_at, created_at, updated_at`

func (q *queries) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := q.get(ctx, &o, "order", id, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (q *queries) CreateOrder(ctx context.Context, o *models.Order) error {
	return q.exec(ctx, "order", o.ID, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, o.ID, o.ListingID, o.FirstUser, o.EndUserID, o.VolunteerID, o.AgencyID,
		o.PickupAddress, o.DestinationAddress, o.Price, o.Status, o.OTP, o.OTP2, o.OTPFailures,
		o.DeviceOK, o.DeliveredAt, o.CreatedAt, o.UpdatedAt)
}

func (q *queries) UpdateOrder(ctx context.Context, o *models.Order) error {
	return q.update(ctx, "order", o.ID, `
		UPDATE orders
		SET status = $2, otp_failures = $3, device_ok = $4, delivered_at = $5, updated_at = $6
		WHERE id = $1
	`, o.ID, o.Status, o.OTPFailures, o.DeviceOK, o.DeliveredAt, o.UpdatedAt)
}

func (q *queries) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	var where []string
	var args []interface{}
	if f.VolunteerID != "" {
		args = append(args, f.VolunteerID)
		where = append(where, fmt.Sprintf("volunteer_id = $%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("(first_user = $%d OR end_user_id = $%d)", len(args), len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	orders := []models.Order{}
	if err := sqlx.SelectContext(ctx, q.q, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Rewards

const rewardColumns = `id, name, image_url, points_required, stock, created_at`

func (q *queries) ListRewards(ctx context.Context) ([]models.Reward, error) {
	rewards := []models.Reward{}
	err := sqlx.SelectContext(ctx, q.q, &rewards,
		`SELECT `+rewardColumns+` FROM rewards ORDER BY points_required, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return rewards, nil
}

func (q *queries) GetReward(ctx context.Context, id string) (*models.Reward, error) {
	var r models.Reward
	err := q.get(ctx, &r, "reward", id, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *queries) UpdateReward(ctx context.Context, r *models.Reward) error {
	return q.update(ctx, "reward", r.ID, `
		UPDATE rewards SET name = $2, image_url = $3, points_required = $4, stock = $5
		WHERE id = $1
	`, r.ID, r.Name, r.ImageURL, r.PointsRequired, r.Stock)
}

// Outbox

func (q *queries) InsertOutbox(ctx context.Context, m *models.OutboxMessage) error {
	return q.exec(ctx, "outbox message", m.ID, `
		INSERT INTO outbox_messages (id, topic, payload, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.Topic, string(m.Payload), m.Attempts, m.CreatedAt)
}

func (q *queries) ListPendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	messages := []models.OutboxMessage{}
	err := sqlx.SelectContext(ctx, q.q, &messages, `
		SELECT id, topic, payload, attempts, last_error, published_at, created_at
		FROM outbox_messages
		WHERE published_at IS NULL AND attempts < $1
		ORDER BY created_at, seq
		LIMIT $2
	`, maxOutboxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outbox: %w", err)
	}
	return messages, nil
}

func (q *queries) MarkOutboxPublished(ctx context.Context, id string, at int64) error {
	return q.update(ctx, "outbox message", id,
		`UPDATE outbox_messages SET published_at = $2 WHERE id = $1`, id, at)
}

func (q *queries) MarkOutboxFailed(ctx context.Context, id string, reason string) error {
	return q.update(ctx, "outbox message", id,
		`UPDATE outbox_messages SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, reason)
}

func (q *queries) DeleteOutboxPublishedBefore(ctx context.Context, before int64) (int64, error) {
	res, err := q.q.ExecContext(ctx,
		`DELETE FROM outbox_messages WHERE published_at IS NOT NULL AND published_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to clean outbox: %w", err)
	}
	return res.RowsAffected()
}

var _ store.Store = (*PostgresStore)(nil)
