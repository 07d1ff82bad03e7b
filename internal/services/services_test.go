package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ewaste-backend/internal/middleware"
	"ewaste-backend/internal/models"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    models.Classification
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"containsWaste": true, "wasteType": "laptop", "amount": 2.5, "confidence": 0.91}`,
			want:    models.Classification{ContainsWaste: true, WasteType: "laptop", Amount: 2.5, Confidence: 0.91},
		},
		{
			name:    "fenced json",
			content: "```json\n{\"containsWaste\": false, \"wasteType\": \"\", \"amount\": 0, \"confidence\": 0.8}\n```",
			want:    models.Classification{ContainsWaste: false, Confidence: 0.8},
		},
		{
			name:    "negative amount clamped",
			content: `{"containsWaste": true, "wasteType": "cables", "amount": -1, "confidence": 0.5}`,
			want:    models.Classification{ContainsWaste: true, WasteType: "cables", Amount: 0, Confidence: 0.5},
		},
		{
			name:    "not json",
			content: "I think this is a phone",
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			content: `{"containsWaste": true, "confidence": 3}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClassification(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseClassification() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClassification() error = %v", err)
			}
			if *got != tt.want {
				t.Errorf("ParseClassification() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestGeocodeCache(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c := newGeocodeCache(2, time.Hour)
	c.now = func() time.Time { return now }

	c.put("a", models.Coordinates{Lat: 1, Lng: 1})
	now = now.Add(time.Minute)
	c.put("b", models.Coordinates{Lat: 2, Lng: 2})
	now = now.Add(time.Minute)
	c.put("c", models.Coordinates{Lat: 3, Lng: 3})

	if _, ok := c.get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if got, ok := c.get("c"); !ok || got.Lat != 3 {
		t.Errorf("get(c) = %+v, %v", got, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.get("b"); ok {
		t.Error("expired entry should miss")
	}
}

func TestDownloadURL(t *testing.T) {
	got := DownloadURL("demo.appspot.com", "verifications/T1/abc.jpg", "tok")
	if !strings.Contains(got, "/b/demo.appspot.com/o/verifications%2FT1%2Fabc.jpg?alt=media&token=tok") {
		t.Errorf("DownloadURL() = %s", got)
	}
}

type fakeDirectory map[string]*Identity

func (f fakeDirectory) Lookup(ctx context.Context, uid string) (*Identity, error) {
	if id, ok := f[uid]; ok {
		return id, nil
	}
	return nil, ErrUnknownIdentity
}

func TestClaimsFromFirebase(t *testing.T) {
	dir := fakeDirectory{"u-vol": {Email: "v@example.com", Role: models.RoleVolunteer, AgencyID: "A1"}}
	ctx := context.Background()

	claims, err := claimsFromFirebase(ctx, "u-agency", map[string]interface{}{"role": "agency", "email": "a@example.com"}, dir)
	if err != nil || claims.Role != models.RoleAgency || claims.Email != "a@example.com" {
		t.Errorf("custom claims: got %+v, %v", claims, err)
	}

	claims, err = claimsFromFirebase(ctx, "u-vol", map[string]interface{}{}, dir)
	if err != nil || claims.Role != models.RoleVolunteer || claims.AgencyID != "A1" || claims.UserID != "u-vol" {
		t.Errorf("directory claims: got %+v, %v", claims, err)
	}

	if _, err := claimsFromFirebase(ctx, "u-missing", nil, dir); !errors.Is(err, middleware.ErrInvalidToken) {
		t.Errorf("unknown uid error = %v, want ErrInvalidToken", err)
	}
}
