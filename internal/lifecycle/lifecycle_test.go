package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
	"ewaste-backend/internal/store/memstore"
)

type fakeClassifier struct {
	result *models.Classification
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, image []byte, contentType string) (*models.Classification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeImages struct {
	mu      sync.Mutex
	uploads []string
}

func (f *fakeImages) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, objectPath)
	return "https://storage.test/" + objectPath, nil
}

type fakeGeocoder struct {
	coords *models.Coordinates
	err    error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	return f.coords, f.err
}

type fixture struct {
	ctx        context.Context
	store      *memstore.Store
	svc        *Service
	classifier *fakeClassifier
	images     *fakeImages
	geocoder   *fakeGeocoder
	clock      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:        context.Background(),
		store:      memstore.New(),
		classifier: &fakeClassifier{result: &models.Classification{ContainsWaste: true, WasteType: "phone", Amount: 0.4, Confidence: 0.92}},
		images:     &fakeImages{},
		geocoder:   &fakeGeocoder{coords: &models.Coordinates{Lat: 19.0, Lng: 72.8}},
		clock:      time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, f.classifier, f.images, f.geocoder, DefaultConfig())
	f.svc.now = func() time.Time { return f.clock }

	f.store.CreateCitizen(f.ctx, &models.Citizen{ID: "C1", Username: "asha", Standing: models.NewStanding()})
	f.store.CreateCitizen(f.ctx, &models.Citizen{ID: "C2", Username: "ravi", Standing: models.NewStanding()})
	f.addVolunteer("V1", 19.0207, 72.8, 0)
	f.addVolunteer("V2", 19.0099, 72.8, 4)
	f.store.CreateReport(f.ctx, &models.Report{ID: "R1", UserID: "C1", Location: "Dadar West, Mumbai", Status: models.ReportStatusPending})
	return f
}

func (f *fixture) addVolunteer(id string, lat, lng float64, pickups int) {
	f.store.CreateVolunteer(f.ctx, &models.Volunteer{
		ID:           id,
		AgencyID:     "A1",
		Username:     id,
		Status:       models.VolunteerAvailable,
		PickupsToday: pickups,
		LastReset:    f.clock.Format(models.DateLayout),
		Latitude:     &lat,
		Longitude:    &lng,
		Standing:     models.NewStanding(),
	})
}

func (f *fixture) image(seed string) Image {
	return Image{Data: []byte("jpeg-bytes-" + seed), ContentType: "image/jpeg"}
}

// verifiedTask assigns R1 to V1, accepts and uploads a verification photo.
func (f *fixture) verifiedTask(t *testing.T) *models.Task {
	t.Helper()
	task, err := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V1"}})
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if _, err := f.svc.Accept(f.ctx, task.ID, "V1"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	task, err = f.svc.UploadVerification(f.ctx, task.ID, "V1", f.image("onsite"))
	if err != nil {
		t.Fatalf("UploadVerification() error = %v", err)
	}
	return task
}

func (f *fixture) citizen(t *testing.T, id string) *models.Citizen {
	t.Helper()
	c, err := f.store.GetCitizen(f.ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func (f *fixture) volunteer(t *testing.T, id string) *models.Volunteer {
	t.Helper()
	v, err := f.store.GetVolunteer(f.ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestCandidatesAndAssign(t *testing.T) {
	f := newFixture(t)

	candidates, err := f.svc.Candidates(f.ctx, "A1", "R1")
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	if len(candidates) != 2 || candidates[0].Volunteer.ID != "V1" || candidates[1].Volunteer.ID != "V2" {
		t.Fatalf("candidates = %+v", candidates)
	}
	if !candidates[1].AtQuota {
		t.Error("V2 should be flagged at quota")
	}

	task, err := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V1", "V2"}})
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if len(task.VolunteersAssigned) != 2 || task.VolunteersAssigned[0] != "V1" || task.VolunteersAssigned[1] != "V2" {
		t.Errorf("volunteers_assigned = %v", task.VolunteersAssigned)
	}
	if task.State() != models.TaskStateAssigned {
		t.Errorf("state = %s, want assigned", task.State())
	}

	report, _ := f.store.GetReport(f.ctx, "R1")
	if report.Status != models.ReportStatusMatched {
		t.Errorf("report status = %s, want matched", report.Status)
	}
	if v := f.volunteer(t, "V1"); v.Status != models.VolunteerAssigned {
		t.Errorf("V1 status = %s, want assigned", v.Status)
	}
	for _, id := range []string{"V1", "V2"} {
		inbox, _ := f.store.ListNotifications(f.ctx, id)
		if len(inbox) != 1 || inbox[0].Type != models.NotificationTaskAssigned {
			t.Errorf("%s inbox = %+v", id, inbox)
		}
	}

	if _, err := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V1"}}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("second Assign() error = %v, want conflict", err)
	}
}

func TestCandidatesGeocodeFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.geocoder.coords = nil
	f.geocoder.err = errors.New("ZERO_RESULTS")

	candidates, err := f.svc.Candidates(f.ctx, "A1", "R1")
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	for _, c := range candidates {
		if c.DistanceKm != nil {
			t.Errorf("%s has distance %v without a destination", c.Volunteer.ID, *c.DistanceKm)
		}
	}
	if candidates[len(candidates)-1].Volunteer.ID != "V2" {
		t.Error("at-quota volunteer should still rank last")
	}
}

func TestAssignValidation(t *testing.T) {
	f := newFixture(t)
	f.store.CreateVolunteer(f.ctx, &models.Volunteer{ID: "OTHER", AgencyID: "A2", Status: models.VolunteerAvailable})
	f.addVolunteer("OVER", 19.0, 72.8, 5)

	tests := []struct {
		name string
		req  models.AssignTaskRequest
		want error
	}{
		{"missing report", models.AssignTaskRequest{VolunteerIDs: []string{"V1"}}, apperr.ErrValidation},
		{"no volunteers", models.AssignTaskRequest{ReportID: "R1"}, apperr.ErrValidation},
		{"duplicate volunteer", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V1", "V1"}}, apperr.ErrValidation},
		{"unknown report", models.AssignTaskRequest{ReportID: "nope", VolunteerIDs: []string{"V1"}}, apperr.ErrNotFound},
		{"other agency", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"OTHER"}}, apperr.ErrForbidden},
		{"over quota", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V1", "OVER"}}, apperr.ErrQuotaReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Assign(f.ctx, "A1", tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Assign() error = %v, want %v", err, tt.want)
			}
		})
	}

	// nothing from the failed attempts was written
	if v := f.volunteer(t, "V1"); v.Status != models.VolunteerAvailable {
		t.Errorf("V1 status = %s after failed assignments", v.Status)
	}
	if tasks, _ := f.store.ListTasks(f.ctx, store.TaskFilter{}); len(tasks) != 0 {
		t.Errorf("%d tasks created by failed assignments", len(tasks))
	}
}

func TestAssignAfterQuotaLowered(t *testing.T) {
	f := newFixture(t)
	f.addVolunteer("V3", 19.05, 72.8, 3)
	f.svc.cfg.Quota = 2

	_, err := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V3"}})
	if !errors.Is(err, apperr.ErrQuotaReached) {
		t.Fatalf("Assign() error = %v, want ErrQuotaReached", err)
	}

	// exactly at the lowered quota may still be assigned
	f.addVolunteer("V4", 19.05, 72.8, 2)
	if _, err := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V4"}}); err != nil {
		t.Fatalf("Assign() at quota error = %v", err)
	}
}

func TestAccept(t *testing.T) {
	f := newFixture(t)
	task, err := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V1", "V2"}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Accept(f.ctx, task.ID, "V2"); !errors.Is(err, apperr.ErrQuotaReached) {
		t.Errorf("Accept() at quota error = %v, want ErrQuotaReached", err)
	}
	if _, err := f.svc.Accept(f.ctx, task.ID, "STRANGER"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Accept() by unassigned volunteer error = %v, want forbidden", err)
	}

	for i := 0; i < 2; i++ {
		got, err := f.svc.Accept(f.ctx, task.ID, "V1")
		if err != nil {
			t.Fatalf("Accept() #%d error = %v", i+1, err)
		}
		if len(got.VolunteersAccepted) != 1 || got.State() != models.TaskStateAccepted {
			t.Fatalf("after accept #%d: accepted = %v, state %s", i+1, got.VolunteersAccepted, got.State())
		}
	}

	v := f.volunteer(t, "V1")
	if v.PickupsToday != 1 {
		t.Errorf("pickups_today = %d, want 1 after repeated accepts", v.PickupsToday)
	}
	if v.Status != models.VolunteerWorking {
		t.Errorf("status = %s, want working", v.Status)
	}
	inbox, _ := f.store.ListNotifications(f.ctx, "C1")
	if len(inbox) != 1 || inbox[0].Type != models.NotificationTaskAccepted {
		t.Errorf("citizen inbox = %+v", inbox)
	}
}

func TestAcceptResetsStaleQuota(t *testing.T) {
	f := newFixture(t)
	v := f.volunteer(t, "V2")
	v.LastReset = f.clock.AddDate(0, 0, -1).Format(models.DateLayout)
	f.store.UpdateVolunteer(f.ctx, v)

	task, err := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V2"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Accept(f.ctx, task.ID, "V2"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if got := f.volunteer(t, "V2"); got.PickupsToday != 1 || got.LastReset != "2025-03-10" {
		t.Errorf("pickups_today = %d, last_reset = %s", got.PickupsToday, got.LastReset)
	}
}

func TestApproveSettlesRewards(t *testing.T) {
	f := newFixture(t)
	task := f.verifiedTask(t)

	if task.State() != models.TaskStatePickupVerified {
		t.Fatalf("state = %s, want pickup_verified", task.State())
	}
	if task.CitizenVerificationDeadline == nil || *task.CitizenVerificationDeadline != f.clock.Add(24*time.Hour).Unix() {
		t.Fatalf("deadline = %v", task.CitizenVerificationDeadline)
	}

	if _, err := f.svc.Approve(f.ctx, task.ID, "C1"); !errors.Is(err, apperr.ErrRatingRequired) {
		t.Fatalf("Approve() without rating error = %v, want ErrRatingRequired", err)
	}
	if _, err := f.svc.Rate(f.ctx, task.ID, "C1", 4); err != nil {
		t.Fatalf("Rate() error = %v", err)
	}

	result, err := f.svc.Approve(f.ctx, task.ID, "C1")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if result.AlreadySettled {
		t.Error("first approve reported already settled")
	}
	got := result.Task
	if !got.Completed || got.CitizenConfirmationStatus != models.ConfirmationDone || *got.SettledBy != models.SettledByCitizen {
		t.Errorf("task after approve = %+v", got)
	}
	if *got.Rating != 4 {
		t.Errorf("rating = %v", *got.Rating)
	}

	c := f.citizen(t, "C1")
	if c.Points != 10 || c.TotalPoints != 10 || c.Exp != 30 || c.Level != 1 {
		t.Errorf("citizen standing = %+v", c.Standing)
	}
	v := f.volunteer(t, "V1")
	if v.Points != 15 || v.Exp != 50 || v.Status != models.VolunteerAvailable {
		t.Errorf("volunteer standing = %+v status %s", v.Standing, v.Status)
	}

	for _, id := range []string{"C1", "V1"} {
		txs, _ := f.store.ListTransactions(f.ctx, id)
		if len(txs) != 1 || txs[0].Type != models.TransactionEarnedCollect {
			t.Errorf("%s transactions = %+v", id, txs)
		}
	}
	report, _ := f.store.GetReport(f.ctx, "R1")
	if report.Status != models.ReportStatusCompleted {
		t.Errorf("report status = %s", report.Status)
	}
}

func TestSettlementVolunteerStatus(t *testing.T) {
	type setup func(t *testing.T, f *fixture, taskID string)

	assign := func(t *testing.T, f *fixture, reportID string, volunteers ...string) string {
		t.Helper()
		if _, err := f.store.GetReport(f.ctx, reportID); err != nil {
			f.store.CreateReport(f.ctx, &models.Report{ID: reportID, UserID: "C2", Location: "Bandra, Mumbai", Status: models.ReportStatusPending})
		}
		task, err := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: reportID, VolunteerIDs: volunteers})
		if err != nil {
			t.Fatalf("Assign(%s) error = %v", reportID, err)
		}
		return task.ID
	}

	tests := []struct {
		name  string
		setup setup
		want  map[string]models.VolunteerStatus
	}{
		{
			name:  "assigned but never accepted is released",
			setup: func(t *testing.T, f *fixture, taskID string) {},
			want:  map[string]models.VolunteerStatus{"V1": models.VolunteerAvailable, "V3": models.VolunteerAvailable},
		},
		{
			name: "accepted volunteer with another accepted task keeps working",
			setup: func(t *testing.T, f *fixture, taskID string) {
				other := assign(t, f, "R2", "V1")
				if _, err := f.svc.Accept(f.ctx, other, "V1"); err != nil {
					t.Fatal(err)
				}
			},
			want: map[string]models.VolunteerStatus{"V1": models.VolunteerWorking, "V3": models.VolunteerAvailable},
		},
		{
			name: "unaccepted volunteer offered another task stays assigned",
			setup: func(t *testing.T, f *fixture, taskID string) {
				assign(t, f, "R2", "V3")
			},
			want: map[string]models.VolunteerStatus{"V1": models.VolunteerAvailable, "V3": models.VolunteerAssigned},
		},
		{
			name: "volunteer carrying a resale order stays assigned",
			setup: func(t *testing.T, f *fixture, taskID string) {
				f.store.CreateOrder(f.ctx, &models.Order{ID: "O1", VolunteerID: "V1", Status: models.OrderPickedUp})
			},
			want: map[string]models.VolunteerStatus{"V1": models.VolunteerAssigned, "V3": models.VolunteerAvailable},
		},
		{
			name: "closed orders do not count",
			setup: func(t *testing.T, f *fixture, taskID string) {
				f.store.CreateOrder(f.ctx, &models.Order{ID: "O1", VolunteerID: "V1", Status: models.OrderCompleted})
				f.store.CreateOrder(f.ctx, &models.Order{ID: "O2", VolunteerID: "V3", Status: models.OrderCancelled})
			},
			want: map[string]models.VolunteerStatus{"V1": models.VolunteerAvailable, "V3": models.VolunteerAvailable},
		},
		{
			name: "unavailable volunteer stays unavailable",
			setup: func(t *testing.T, f *fixture, taskID string) {
				v := f.volunteer(t, "V3")
				v.Status = models.VolunteerUnavailable
				f.store.UpdateVolunteer(f.ctx, v)
			},
			want: map[string]models.VolunteerStatus{"V1": models.VolunteerAvailable, "V3": models.VolunteerUnavailable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addVolunteer("V3", 19.05, 72.8, 0)

			taskID := assign(t, f, "R1", "V1", "V3")
			if got := f.volunteer(t, "V3"); got.Status != models.VolunteerAssigned {
				t.Fatalf("V3 status after assign = %s", got.Status)
			}
			if _, err := f.svc.Accept(f.ctx, taskID, "V1"); err != nil {
				t.Fatal(err)
			}
			if _, err := f.svc.UploadVerification(f.ctx, taskID, "V1", f.image("onsite")); err != nil {
				t.Fatal(err)
			}
			tt.setup(t, f, taskID)

			if _, err := f.svc.Rate(f.ctx, taskID, "C1", 4.5); err != nil {
				t.Fatal(err)
			}
			if _, err := f.svc.Approve(f.ctx, taskID, "C1"); err != nil {
				t.Fatalf("Approve() error = %v", err)
			}

			for id, want := range tt.want {
				if got := f.volunteer(t, id); got.Status != want {
					t.Errorf("%s status = %s, want %s", id, got.Status, want)
				}
			}
			if v3 := f.volunteer(t, "V3"); v3.Points != 0 {
				t.Errorf("V3 never accepted but earned %d points", v3.Points)
			}
		})
	}
}

func TestSweepReleasesUnacceptedVolunteers(t *testing.T) {
	f := newFixture(t)
	f.addVolunteer("V3", 19.05, 72.8, 0)

	task, err := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V1", "V3"}})
	if err != nil {
		t.Fatal(err)
	}
	f.svc.Accept(f.ctx, task.ID, "V1")
	if _, err := f.svc.UploadVerification(f.ctx, task.ID, "V1", f.image("onsite")); err != nil {
		t.Fatal(err)
	}

	res, err := NewSweeper(f.svc).Run(f.ctx, SweepOptions{AsOf: f.clock.Add(25 * time.Hour)})
	if err != nil || res.Settled != 1 {
		t.Fatalf("Run() = %+v, %v", res, err)
	}
	for _, id := range []string{"V1", "V3"} {
		if got := f.volunteer(t, id); got.Status != models.VolunteerAvailable {
			t.Errorf("%s status = %s, want available", id, got.Status)
		}
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	task := f.verifiedTask(t)
	f.svc.Rate(f.ctx, task.ID, "C1", 4.5)

	if _, err := f.svc.Approve(f.ctx, task.ID, "C1"); err != nil {
		t.Fatal(err)
	}
	result, err := f.svc.Approve(f.ctx, task.ID, "C1")
	if err != nil {
		t.Fatalf("second Approve() error = %v", err)
	}
	if !result.AlreadySettled {
		t.Error("second approve should report already settled")
	}

	if c := f.citizen(t, "C1"); c.Points != 10 {
		t.Errorf("citizen points = %d after double approve, want 10", c.Points)
	}
	if txs, _ := f.store.ListTransactions(f.ctx, "V1"); len(txs) != 1 {
		t.Errorf("volunteer has %d transactions, want 1", len(txs))
	}
}

func TestCitizenOwnership(t *testing.T) {
	f := newFixture(t)
	task := f.verifiedTask(t)

	if _, err := f.svc.Rate(f.ctx, task.ID, "C2", 3); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Rate() by other citizen error = %v", err)
	}
	if _, err := f.svc.Approve(f.ctx, task.ID, "C2"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Approve() by other citizen error = %v", err)
	}
	if _, err := f.svc.Reject(f.ctx, task.ID, "C2"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Reject() by other citizen error = %v", err)
	}
}

func TestRateValidation(t *testing.T) {
	tests := []struct {
		rating float64
		want   bool
	}{
		{0, true}, {0.5, true}, {4, true}, {5, true},
		{-0.5, false}, {5.5, false}, {3.3, false}, {4.25, false},
	}
	for _, tt := range tests {
		if got := ValidRating(tt.rating); got != tt.want {
			t.Errorf("ValidRating(%v) = %v, want %v", tt.rating, got, tt.want)
		}
	}

	f := newFixture(t)
	task, _ := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V1"}})
	if _, err := f.svc.Rate(f.ctx, task.ID, "C1", 4); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("Rate() before verification error = %v, want conflict", err)
	}
}

func TestUploadVerificationRejectsDuplicateImage(t *testing.T) {
	f := newFixture(t)
	f.verifiedTask(t)

	f.store.CreateReport(f.ctx, &models.Report{ID: "R2", UserID: "C2", Location: "Andheri", Status: models.ReportStatusPending})
	f.addVolunteer("V3", 19.1, 72.8, 0)
	task2, err := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R2", VolunteerIDs: []string{"V3"}})
	if err != nil {
		t.Fatal(err)
	}
	f.svc.Accept(f.ctx, task2.ID, "V3")

	uploads := len(f.images.uploads)
	_, err = f.svc.UploadVerification(f.ctx, task2.ID, "V3", f.image("onsite"))
	if !errors.Is(err, apperr.ErrDuplicateImage) {
		t.Fatalf("UploadVerification() error = %v, want ErrDuplicateImage", err)
	}
	if len(f.images.uploads) != uploads {
		t.Error("duplicate image was uploaded")
	}
	got, _ := f.store.GetTask(f.ctx, task2.ID)
	if got.VerificationImageURL != nil {
		t.Error("task verified with a duplicate image")
	}
}

func TestUploadVerificationRules(t *testing.T) {
	f := newFixture(t)
	task, _ := f.svc.Assign(f.ctx, "A1", models.AssignTaskRequest{ReportID: "R1", VolunteerIDs: []string{"V1"}})

	if _, err := f.svc.UploadVerification(f.ctx, task.ID, "V1", f.image("a")); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("upload before accept error = %v, want forbidden", err)
	}
	f.svc.Accept(f.ctx, task.ID, "V1")

	f.classifier.result = &models.Classification{ContainsWaste: true, Confidence: 0.5}
	if _, err := f.svc.UploadVerification(f.ctx, task.ID, "V1", f.image("b")); !errors.Is(err, apperr.ErrVerificationFailed) {
		t.Errorf("low confidence error = %v, want ErrVerificationFailed", err)
	}

	f.classifier.result = &models.Classification{ContainsWaste: false, Confidence: 0.99}
	if _, err := f.svc.UploadVerification(f.ctx, task.ID, "V1", f.image("c")); !errors.Is(err, apperr.ErrVerificationFailed) {
		t.Errorf("no waste error = %v, want ErrVerificationFailed", err)
	}

	f.classifier.result = nil
	f.classifier.err = errors.New("timeout")
	if _, err := f.svc.UploadVerification(f.ctx, task.ID, "V1", f.image("d")); !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("classifier failure error = %v, want upstream", err)
	}

	if _, err := f.svc.UploadVerification(f.ctx, task.ID, "V1", Image{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty image error = %v, want validation", err)
	}
}

func TestRejectSendsBackToVolunteer(t *testing.T) {
	f := newFixture(t)
	task := f.verifiedTask(t)
	if _, err := f.svc.Rate(f.ctx, task.ID, "C1", 2); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Reject(f.ctx, task.ID, "C1")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if got.VerificationImageURL != nil || got.CitizenVerificationDeadline != nil || got.Rating != nil {
		t.Error("reject should clear the verification image, deadline and rating")
	}
	if got.CitizenConfirmationStatus != models.ConfirmationNotProperlyDone || got.State() != models.TaskStateAccepted {
		t.Errorf("status %s state %s", got.CitizenConfirmationStatus, got.State())
	}

	inbox, _ := f.store.ListNotifications(f.ctx, "V1")
	if len(inbox) == 0 || inbox[0].Type != models.NotificationPickupRejected {
		t.Errorf("volunteer inbox = %+v", inbox)
	}

	if _, err := f.svc.UploadVerification(f.ctx, task.ID, "V1", f.image("redo")); err != nil {
		t.Fatalf("re-upload after reject error = %v", err)
	}
	if v := f.volunteer(t, "V1"); v.Points != 0 {
		t.Error("reject must not change rewards")
	}

	// the redone pickup needs its own rating
	if _, err := f.svc.Approve(f.ctx, task.ID, "C1"); !errors.Is(err, apperr.ErrRatingRequired) {
		t.Fatalf("Approve() after redo without rating error = %v, want ErrRatingRequired", err)
	}
	if _, err := f.svc.Rate(f.ctx, task.ID, "C1", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Approve(f.ctx, task.ID, "C1"); err != nil {
		t.Fatalf("Approve() after re-rating error = %v", err)
	}
}

func TestCitizenPhoto(t *testing.T) {
	f := newFixture(t)
	task := f.verifiedTask(t)

	got, err := f.svc.CitizenPhoto(f.ctx, task.ID, "C1", f.image("citizen"))
	if err != nil {
		t.Fatalf("CitizenPhoto() error = %v", err)
	}
	if got.CitizenVerificationImageURL == nil {
		t.Fatal("citizen photo url not set")
	}
	if _, err := f.svc.CitizenPhoto(f.ctx, task.ID, "C1", f.image("onsite")); !errors.Is(err, apperr.ErrDuplicateImage) {
		t.Errorf("reusing the volunteer's photo error = %v, want ErrDuplicateImage", err)
	}
}

func TestSweepAutoConfirms(t *testing.T) {
	f := newFixture(t)
	task := f.verifiedTask(t)
	sweeper := NewSweeper(f.svc)

	result, err := sweeper.Run(f.ctx, SweepOptions{AsOf: f.clock.Add(23 * time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if result.Settled != 0 {
		t.Fatalf("settled %d tasks before the deadline", result.Settled)
	}

	f.clock = f.clock.Add(25 * time.Hour)
	result, err = sweeper.Run(f.ctx, SweepOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Scanned != 1 || result.Settled != 1 || result.Cursor != task.ID {
		t.Fatalf("result = %+v", result)
	}

	got, _ := f.store.GetTask(f.ctx, task.ID)
	if !got.Completed || got.CitizenConfirmationStatus != models.ConfirmationDone {
		t.Errorf("task not settled: %+v", got)
	}
	if got.Rating != nil {
		t.Error("auto-confirm must not record a rating")
	}
	if *got.SettledBy != models.SettledByAutoConfirm {
		t.Errorf("settled_by = %s", *got.SettledBy)
	}
	if c := f.citizen(t, "C1"); c.Points != 10 || c.Exp != 30 {
		t.Errorf("citizen standing = %+v", c.Standing)
	}
	if v := f.volunteer(t, "V1"); v.Points != 15 || v.Exp != 50 {
		t.Errorf("volunteer standing = %+v", v.Standing)
	}

	again, err := sweeper.Run(f.ctx, SweepOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if again.Scanned != 0 || again.Settled != 0 {
		t.Errorf("re-run result = %+v, want nothing to do", again)
	}
}

func TestSweepSelectionPredicate(t *testing.T) {
	f := newFixture(t)
	asOf := f.clock.Unix()
	past := asOf - 60
	future := asOf + 60
	exact := asOf

	seed := []models.Task{
		{ID: "t-01", ReportID: "R1", CitizenID: "C1", CitizenVerificationDeadline: &past},
		{ID: "t-02", ReportID: "R1", CitizenID: "C1", CitizenVerificationDeadline: &future},
		{ID: "t-03", ReportID: "R1", CitizenID: "C1", CitizenVerificationDeadline: &past, Completed: true},
		{ID: "t-04", ReportID: "R1", CitizenID: "C1"},
		{ID: "t-05", ReportID: "R1", CitizenID: "C2", CitizenVerificationDeadline: &exact},
	}
	for i := range seed {
		f.store.CreateTask(f.ctx, &seed[i])
	}

	result, err := NewSweeper(f.svc).Run(f.ctx, SweepOptions{AsOf: f.clock, PageSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if result.Scanned != 2 || result.Settled != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	for id, want := range map[string]bool{"t-01": true, "t-02": false, "t-04": false, "t-05": true} {
		task, _ := f.store.GetTask(f.ctx, id)
		if task.Completed != want {
			t.Errorf("%s completed = %v, want %v", id, task.Completed, want)
		}
	}
	if task, _ := f.store.GetTask(f.ctx, "t-03"); task.SettledBy != nil {
		t.Error("already completed task was settled again")
	}
}

func TestSweepResumesFromCursorAndContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	past := f.clock.Unix() - 1
	for i := 1; i <= 4; i++ {
		citizen := "C1"
		if i == 2 {
			citizen = "MISSING"
		}
		f.store.CreateTask(f.ctx, &models.Task{ID: fmt.Sprintf("t-%02d", i), ReportID: "R1", CitizenID: citizen, CitizenVerificationDeadline: &past})
	}

	result, err := NewSweeper(f.svc).Run(f.ctx, SweepOptions{AsOf: f.clock, After: "t-01"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Scanned != 3 || result.Settled != 2 || result.Failed != 1 || result.Cursor != "t-04" {
		t.Fatalf("result = %+v", result)
	}
	if task, _ := f.store.GetTask(f.ctx, "t-01"); task.Completed {
		t.Error("task before the cursor was settled")
	}
	if task, _ := f.store.GetTask(f.ctx, "t-02"); task.Completed {
		t.Error("failed settlement was not rolled back")
	}
}

func TestSubmitReport(t *testing.T) {
	f := newFixture(t)
	c := f.citizen(t, "C1")
	yesterday := f.clock.AddDate(0, 0, -1).Format(models.DateLayout)
	c.LastReportDate = &yesterday
	c.Streak = 3
	f.store.UpdateCitizen(f.ctx, c)

	report, err := f.svc.SubmitReport(f.ctx, "C1", models.CreateReportRequest{Location: " Bandra, Mumbai "}, f.image("report"))
	if err != nil {
		t.Fatalf("SubmitReport() error = %v", err)
	}
	if report.Status != models.ReportStatusPending || report.WasteType != "phone" || report.Location != "Bandra, Mumbai" {
		t.Errorf("report = %+v", report)
	}

	c = f.citizen(t, "C1")
	if c.Points != 10 || c.Streak != 4 || *c.LastReportDate != "2025-03-10" {
		t.Errorf("citizen after report: points %d streak %d last %v", c.Points, c.Streak, *c.LastReportDate)
	}
	txs, _ := f.store.ListTransactions(f.ctx, "C1")
	if len(txs) != 1 || txs[0].Type != models.TransactionEarnedReport || txs[0].Amount != 10 {
		t.Errorf("transactions = %+v", txs)
	}

	if _, err := f.svc.SubmitReport(f.ctx, "C2", models.CreateReportRequest{Location: "Bandra"}, f.image("report")); !errors.Is(err, apperr.ErrDuplicateImage) {
		t.Errorf("duplicate report image error = %v", err)
	}
	if _, err := f.svc.SubmitReport(f.ctx, "C1", models.CreateReportRequest{}, f.image("x")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing location error = %v", err)
	}
}

func TestRedeem(t *testing.T) {
	f := newFixture(t)
	f.store.AddReward(models.Reward{ID: "RW1", Name: "Tote bag", PointsRequired: 30, Stock: 1})
	c := f.citizen(t, "C1")
	c.Points, c.TotalPoints = 50, 50
	f.store.UpdateCitizen(f.ctx, c)

	got, err := f.svc.Redeem(f.ctx, "C1", "RW1")
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if got.Points != 20 || got.TotalPoints != 50 {
		t.Errorf("points = %d/%d, want 20/50", got.Points, got.TotalPoints)
	}
	if _, err := f.svc.Redeem(f.ctx, "C1", "RW1"); !errors.Is(err, apperr.ErrOutOfStock) {
		t.Errorf("out of stock error = %v", err)
	}

	f.store.AddReward(models.Reward{ID: "RW2", Name: "Plant", PointsRequired: 100, Stock: 5})
	if _, err := f.svc.Redeem(f.ctx, "C1", "RW2"); !errors.Is(err, apperr.ErrInsufficientPoints) {
		t.Errorf("insufficient points error = %v", err)
	}
	if r, _ := f.store.GetReward(f.ctx, "RW2"); r.Stock != 5 {
		t.Errorf("stock = %d after failed redemption", r.Stock)
	}

	txs, _ := f.store.ListTransactions(f.ctx, "C1")
	if len(txs) != 1 || txs[0].Type != models.TransactionRedeemed || txs[0].Amount != -30 {
		t.Errorf("transactions = %+v", txs)
	}
}

func TestResetQuotas(t *testing.T) {
	f := newFixture(t)
	f.clock = f.clock.AddDate(0, 0, 1)

	n, err := f.svc.ResetQuotas(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("reset %d volunteers, want 2", n)
	}
	if v := f.volunteer(t, "V2"); v.PickupsToday != 0 {
		t.Errorf("V2 pickups_today = %d", v.PickupsToday)
	}
}
