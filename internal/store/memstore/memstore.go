// Package memstore is an in-memory store.Store. Transactions are serialized with a
// single mutex and roll back by restoring a snapshot.
package memstore

import (
	"context"
	"sort"
	"sync"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
)

type data struct {
	users         map[string]models.User
	citizens      map[string]models.Citizen
	volunteers    map[string]models.Volunteer
	reports       map[string]models.Report
	imageHashes   map[string]string
	tasks         map[string]models.Task
	transactions  []models.Transaction
	notifications []models.Notification
	fcmTokens     map[string]models.FCMToken
	listings      map[string]models.Listing
	orders        map[string]models.Order
	rewards       map[string]models.Reward
	outbox        []models.OutboxMessage
	nextTokenID   int
}

func newData() *data {
	return &data{
		users:       map[string]models.User{},
		citizens:    map[string]models.Citizen{},
		volunteers:  map[string]models.Volunteer{},
		reports:     map[string]models.Report{},
		imageHashes: map[string]string{},
		tasks:       map[string]models.Task{},
		fcmTokens:   map[string]models.FCMToken{},
		listings:    map[string]models.Listing{},
		orders:      map[string]models.Order{},
		rewards:     map[string]models.Reward{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.citizens {
		c.citizens[k] = cloneCitizen(v)
	}
	for k, v := range d.volunteers {
		c.volunteers[k] = cloneVolunteer(v)
	}
	for k, v := range d.reports {
		c.reports[k] = v
	}
	for k, v := range d.imageHashes {
		c.imageHashes[k] = v
	}
	for k, v := range d.tasks {
		c.tasks[k] = cloneTask(v)
	}
	c.transactions = append(c.transactions, d.transactions...)
	c.notifications = append(c.notifications, d.notifications...)
	for k, v := range d.fcmTokens {
		c.fcmTokens[k] = v
	}
	for k, v := range d.listings {
		c.listings[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range d.rewards {
		c.rewards[k] = v
	}
	c.outbox = append(c.outbox, d.outbox...)
	c.nextTokenID = d.nextTokenID
	return c
}

// Store is safe for concurrent use.
type Store struct {
	*tx
	mu sync.Mutex
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	s := &Store{}
	s.tx = &tx{s: s, d: newData()}
	return s
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, t store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.tx.d.clone()
	inner := &tx{s: s, d: s.tx.d, held: true}
	if err := fn(ctx, inner); err != nil {
		s.tx.d = snapshot
		return err
	}
	return nil
}

// tx implements store.Tx. Outside RunInTx each call takes the store mutex itself.
type tx struct {
	s    *Store
	d    *data
	held bool
}

func (t *tx) lock() func() {
	if t.held {
		return func() {}
	}
	t.s.mu.Lock()
	return t.s.mu.Unlock
}

func (t *tx) data() *data {
	if t.held {
		return t.d
	}
	return t.s.tx.d
}

// Users

func (t *tx) GetUser(ctx context.Context, id string) (*models.User, error) {
	defer t.lock()()
	u, ok := t.data().users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	return &u, nil
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer t.lock()()
	for _, u := range t.data().users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user", email)
}

func (t *tx) CreateUser(ctx context.Context, u *models.User) error {
	defer t.lock()()
	d := t.data()
	if _, ok := d.users[u.ID]; ok {
		return apperr.InvalidState("user %s already exists", u.ID)
	}
	d.users[u.ID] = *u
	return nil
}

// Citizens

func (t *tx) GetCitizen(ctx context.Context, id string) (*models.Citizen, error) {
	defer t.lock()()
	c, ok := t.data().citizens[id]
	if !ok {
		return nil, apperr.NotFound("citizen", id)
	}
	c = cloneCitizen(c)
	return &c, nil
}

func (t *tx) CreateCitizen(ctx context.Context, c *models.Citizen) error {
	defer t.lock()()
	t.data().citizens[c.ID] = cloneCitizen(*c)
	return nil
}

func (t *tx) UpdateCitizen(ctx context.Context, c *models.Citizen) error {
	defer t.lock()()
	d := t.data()
	if _, ok := d.citizens[c.ID]; !ok {
		return apperr.NotFound("citizen", c.ID)
	}
	d.citizens[c.ID] = cloneCitizen(*c)
	return nil
}

// Volunteers

func (t *tx) GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error) {
	defer t.lock()()
	v, ok := t.data().volunteers[id]
	if !ok {
		return nil, apperr.NotFound("volunteer", id)
	}
	v = cloneVolunteer(v)
	return &v, nil
}

func (t *tx) CreateVolunteer(ctx context.Context, v *models.Volunteer) error {
	defer t.lock()()
	t.data().volunteers[v.ID] = cloneVolunteer(*v)
	return nil
}

func (t *tx) UpdateVolunteer(ctx context.Context, v *models.Volunteer) error {
	defer t.lock()()
	d := t.data()
	if _, ok := d.volunteers[v.ID]; !ok {
		return apperr.NotFound("volunteer", v.ID)
	}
	d.volunteers[v.ID] = cloneVolunteer(*v)
	return nil
}

func (t *tx) ListVolunteersByAgency(ctx context.Context, agencyID string) ([]models.Volunteer, error) {
	defer t.lock()()
	var out []models.Volunteer
	for _, v := range t.data().volunteers {
		if v.AgencyID == agencyID {
			out = append(out, cloneVolunteer(v))
		}
	}
	sortRoster(out)
	return out, nil
}

func (t *tx) ListAvailableVolunteers(ctx context.Context) ([]models.Volunteer, error) {
	defer t.lock()()
	var out []models.Volunteer
	for _, v := range t.data().volunteers {
		if v.Status == models.VolunteerAvailable {
			out = append(out, cloneVolunteer(v))
		}
	}
	sortRoster(out)
	return out, nil
}

func (t *tx) ResetPickupQuotas(ctx context.Context, day string) (int64, error) {
	defer t.lock()()
	d := t.data()
	var n int64
	for id, v := range d.volunteers {
		if v.LastReset != day {
			v.PickupsToday = 0
			v.LastReset = day
			d.volunteers[id] = v
			n++
		}
	}
	return n, nil
}

func sortRoster(vs []models.Volunteer) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].AgencyID != vs[j].AgencyID {
			return vs[i].AgencyID < vs[j].AgencyID
		}
		return vs[i].ID < vs[j].ID
	})
}

// Reports

func (t *tx) GetReport(ctx context.Context, id string) (*models.Report, error) {
	defer t.lock()()
	r, ok := t.data().reports[id]
	if !ok {
		return nil, apperr.NotFound("report", id)
	}
	return &r, nil
}

func (t *tx) CreateReport(ctx context.Context, r *models.Report) error {
	defer t.lock()()
	t.data().reports[r.ID] = *r
	return nil
}

func (t *tx) UpdateReportStatus(ctx context.Context, id string, status models.ReportStatus) error {
	defer t.lock()()
	d := t.data()
	r, ok := d.reports[id]
	if !ok {
		return apperr.NotFound("report", id)
	}
	r.Status = status
	d.reports[id] = r
	return nil
}

func (t *tx) ListReports(ctx context.Context, f store.ReportFilter) ([]models.Report, error) {
	defer t.lock()()
	var out []models.Report
	for _, r := range t.data().reports {
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) RegisterImageHash(ctx context.Context, hash, ownerID string) error {
	defer t.lock()()
	d := t.data()
	if _, ok := d.imageHashes[hash]; ok {
		return apperr.ErrDuplicateImage
	}
	d.imageHashes[hash] = ownerID
	return nil
}

func (t *tx) ImageHashExists(ctx context.Context, hash string) (bool, error) {
	defer t.lock()()
	_, ok := t.data().imageHashes[hash]
	return ok, nil
}

// Tasks

func (t *tx) GetTask(ctx context.Context, id string) (*models.Task, error) {
	defer t.lock()()
	task, ok := t.data().tasks[id]
	if !ok {
		return nil, apperr.NotFound("task", id)
	}
	task = cloneTask(task)
	return &task, nil
}

func (t *tx) CreateTask(ctx context.Context, task *models.Task) error {
	defer t.lock()()
	t.data().tasks[task.ID] = cloneTask(*task)
	return nil
}

func (t *tx) UpdateTask(ctx context.Context, task *models.Task) error {
	defer t.lock()()
	d := t.data()
	if _, ok := d.tasks[task.ID]; !ok {
		return apperr.NotFound("task", task.ID)
	}
	d.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (t *tx) ListTasks(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	defer t.lock()()
	var out []models.Task
	for _, task := range t.data().tasks {
		if f.AgencyID != "" && task.AgencyID != f.AgencyID {
			continue
		}
		if f.CitizenID != "" && task.CitizenID != f.CitizenID {
			continue
		}
		if f.VolunteerID != "" && !task.IsAssigned(f.VolunteerID) {
			continue
		}
		out = append(out, cloneTask(task))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) VolunteerWorkload(ctx context.Context, volunteerID string) (models.Workload, error) {
	defer t.lock()()
	d := t.data()
	var w models.Workload
	for _, task := range d.tasks {
		if task.Completed {
			continue
		}
		switch {
		case task.HasAccepted(volunteerID):
			w.AcceptedTasks++
		case task.IsAssigned(volunteerID):
			w.AssignedTasks++
		}
	}
	for _, o := range d.orders {
		if o.VolunteerID == volunteerID && o.Status.Open() {
			w.OpenOrders++
		}
	}
	return w, nil
}

func (t *tx) ListDueTasks(ctx context.Context, asOf int64, after string, limit int) ([]models.Task, error) {
	defer t.lock()()
	var out []models.Task
	for _, task := range t.data().tasks {
		if task.ID > after && task.DueForAutoConfirm(asOf) {
			out = append(out, cloneTask(task))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ledger

func (t *tx) CreateTransaction(ctx context.Context, tr *models.Transaction) error {
	defer t.lock()()
	d := t.data()
	d.transactions = append(d.transactions, *tr)
	return nil
}

func (t *tx) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	defer t.lock()()
	var out []models.Transaction
	txs := t.data().transactions
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].UserID == userID {
			out = append(out, txs[i])
		}
	}
	return out, nil
}

// Notifications

func (t *tx) CreateNotification(ctx context.Context, n *models.Notification) error {
	defer t.lock()()
	d := t.data()
	d.notifications = append(d.notifications, *n)
	return nil
}

func (t *tx) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	defer t.lock()()
	var out []models.Notification
	ns := t.data().notifications
	for i := len(ns) - 1; i >= 0; i-- {
		if ns[i].UserID == userID {
			out = append(out, ns[i])
		}
	}
	return out, nil
}

func (t *tx) MarkNotificationRead(ctx context.Context, id, userID string) error {
	defer t.lock()()
	d := t.data()
	for i := range d.notifications {
		if d.notifications[i].ID == id && d.notifications[i].UserID == userID {
			d.notifications[i].Read = true
			return nil
		}
	}
	return apperr.NotFound("notification", id)
}

func (t *tx) UpsertFCMToken(ctx context.Context, tok *models.FCMToken) error {
	defer t.lock()()
	d := t.data()
	if existing, ok := d.fcmTokens[tok.Token]; ok {
		tok.ID = existing.ID
		tok.CreatedAt = existing.CreatedAt
	} else {
		d.nextTokenID++
		tok.ID = d.nextTokenID
	}
	d.fcmTokens[tok.Token] = *tok
	return nil
}

func (t *tx) ListFCMTokens(ctx context.Context, userID string) ([]models.FCMToken, error) {
	defer t.lock()()
	var out []models.FCMToken
	for _, tok := range t.data().fcmTokens {
		if tok.UserID == userID {
			out = append(out, tok)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) DeleteFCMToken(ctx context.Context, token string) error {
	defer t.lock()()
	delete(t.data().fcmTokens, token)
	return nil
}

// Resale

func (t *tx) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	defer t.lock()()
	l, ok := t.data().listings[id]
	if !ok {
		return nil, apperr.NotFound("listing", id)
	}
	return &l, nil
}

func (t *tx) CreateListing(ctx context.Context, l *models.Listing) error {
	defer t.lock()()
	t.data().listings[l.ID] = *l
	return nil
}

func (t *tx) UpdateListing(ctx context.Context, l *models.Listing) error {
	defer t.lock()()
	d := t.data()
	if _, ok := d.listings[l.ID]; !ok {
		return apperr.NotFound("listing", l.ID)
	}
	d.listings[l.ID] = *l
	return nil
}

func (t *tx) ListListings(ctx context.Context, f store.ListingFilter) ([]models.Listing, error) {
	defer t.lock()()
	var out []models.Listing
	for _, l := range t.data().listings {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.SellerID != "" && l.SellerID != f.SellerID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	defer t.lock()()
	o, ok := t.data().orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (t *tx) CreateOrder(ctx context.Context, o *models.Order) error {
	defer t.lock()()
	t.data().orders[o.ID] = cloneOrder(*o)
	return nil
}

func (t *tx) UpdateOrder(ctx context.Context, o *models.Order) error {
	defer t.lock()()
	d := t.data()
	if _, ok := d.orders[o.ID]; !ok {
		return apperr.NotFound("order", o.ID)
	}
	d.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (t *tx) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	defer t.lock()()
	var out []models.Order
	for _, o := range t.data().orders {
		if f.VolunteerID != "" && o.VolunteerID != f.VolunteerID {
			continue
		}
		if f.UserID != "" && o.FirstUser != f.UserID && o.EndUserID != f.UserID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Rewards

func (t *tx) ListRewards(ctx context.Context) ([]models.Reward, error) {
	defer t.lock()()
	var out []models.Reward
	for _, r := range t.data().rewards {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PointsRequired < out[j].PointsRequired })
	return out, nil
}

func (t *tx) GetReward(ctx context.Context, id string) (*models.Reward, error) {
	defer t.lock()()
	r, ok := t.data().rewards[id]
	if !ok {
		return nil, apperr.NotFound("reward", id)
	}
	return &r, nil
}

func (t *tx) UpdateReward(ctx context.Context, r *models.Reward) error {
	defer t.lock()()
	d := t.data()
	if _, ok := d.rewards[r.ID]; !ok {
		return apperr.NotFound("reward", r.ID)
	}
	d.rewards[r.ID] = *r
	return nil
}

// AddReward seeds the catalog.
func (s *Store) AddReward(r models.Reward) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tx.d.rewards[r.ID] = r
}

// Outbox

func (t *tx) InsertOutbox(ctx context.Context, m *models.OutboxMessage) error {
	defer t.lock()()
	d := t.data()
	d.outbox = append(d.outbox, *m)
	return nil
}

func (t *tx) ListPendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	defer t.lock()()
	var out []models.OutboxMessage
	for _, m := range t.data().outbox {
		if m.PublishedAt == nil {
			out = append(out, m)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (t *tx) MarkOutboxPublished(ctx context.Context, id string, at int64) error {
	defer t.lock()()
	d := t.data()
	for i := range d.outbox {
		if d.outbox[i].ID == id {
			d.outbox[i].PublishedAt = &at
			return nil
		}
	}
	return apperr.NotFound("outbox message", id)
}

func (t *tx) MarkOutboxFailed(ctx context.Context, id string, reason string) error {
	defer t.lock()()
	d := t.data()
	for i := range d.outbox {
		if d.outbox[i].ID == id {
			d.outbox[i].Attempts++
			d.outbox[i].LastError = &reason
			return nil
		}
	}
	return apperr.NotFound("outbox message", id)
}

func (t *tx) DeleteOutboxPublishedBefore(ctx context.Context, before int64) (int64, error) {
	defer t.lock()()
	d := t.data()
	kept := d.outbox[:0]
	var n int64
	for _, m := range d.outbox {
		if m.PublishedAt != nil && *m.PublishedAt < before {
			n++
			continue
		}
		kept = append(kept, m)
	}
	d.outbox = kept
	return n, nil
}

// Outbox returns a copy of every outbox message, published or not.
func (s *Store) Outbox() []models.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OutboxMessage(nil), s.tx.d.outbox...)
}

func cloneTask(t models.Task) models.Task {
	t.VolunteersAssigned = append([]string(nil), t.VolunteersAssigned...)
	t.VolunteersAccepted = append([]string(nil), t.VolunteersAccepted...)
	return t
}

func cloneCitizen(c models.Citizen) models.Citizen {
	if c.LastReportDate != nil {
		d := *c.LastReportDate
		c.LastReportDate = &d
	}
	return c
}

func cloneVolunteer(v models.Volunteer) models.Volunteer {
	if v.Latitude != nil {
		lat := *v.Latitude
		v.Latitude = &lat
	}
	if v.Longitude != nil {
		lng := *v.Longitude
		v.Longitude = &lng
	}
	return v
}

func cloneOrder(o models.Order) models.Order {
	if o.DeviceOK != nil {
		ok := *o.DeviceOK
		o.DeviceOK = &ok
	}
	return o
}
