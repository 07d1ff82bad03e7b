package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ewaste-backend/internal/models"
)

func TestJWTIssueAndVerify(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	agency := "A1"
	token, err := v.Issue(&models.User{ID: "U1", Email: "v@example.com", Role: models.RoleVolunteer, AgencyID: &agency}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	want := UserClaims{UserID: "U1", Email: "v@example.com", Role: models.RoleVolunteer, AgencyID: "A1"}
	if claims != want {
		t.Errorf("claims = %+v, want %+v", claims, want)
	}

	if _, err := NewJWTVerifier("other-secret").Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() with wrong secret error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTExpired(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token, _ := v.Issue(&models.User{ID: "U1", Role: models.RoleCitizen}, -time.Minute)
	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Fatal("expired token accepted")
	}
}

type staticVerifier struct {
	claims UserClaims
	err    error
}

func (s staticVerifier) Verify(ctx context.Context, token string) (UserClaims, error) {
	return s.claims, s.err
}

func TestChainVerifier(t *testing.T) {
	chain := ChainVerifier{
		staticVerifier{err: ErrInvalidToken},
		staticVerifier{claims: UserClaims{UserID: "U2", Role: models.RoleAgency}},
	}
	claims, err := chain.Verify(context.Background(), "x")
	if err != nil || claims.UserID != "U2" {
		t.Fatalf("Verify() = %+v, %v", claims, err)
	}

	if _, err := (ChainVerifier{}).Verify(context.Background(), "x"); err == nil {
		t.Fatal("empty chain accepted a token")
	}
}

func TestAuthAndRequireRole(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	citizenToken, _ := v.Issue(&models.User{ID: "C1", Role: models.RoleCitizen}, time.Hour)
	agencyToken, _ := v.Issue(&models.User{ID: "A1", Role: models.RoleAgency}, time.Hour)

	handler := Auth(v)(RequireRole(models.RoleAgency, models.RoleVolunteer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := GetUserFromContext(r)
		w.Write([]byte(claims.UserID))
	})))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", "", http.StatusUnauthorized},
		{"wrong role", "Bearer " + citizenToken, "", http.StatusForbidden},
		{"allowed role", "Bearer " + agencyToken, "", http.StatusOK},
		{"query token", "", agencyToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/agency/tasks"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
