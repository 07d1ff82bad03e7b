package services

import (
	"context"
	"fmt"

	"ewaste-backend/internal/middleware"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

// IdentityLookup resolves a Firebase uid to its role record.
type IdentityLookup interface {
	Lookup(ctx context.Context, uid string) (*Identity, error)
}

// FirebaseVerifier accepts Firebase ID tokens issued to the mobile apps. The role is
// taken from the token's custom claims when present, otherwise from the directory.
type FirebaseVerifier struct {
	auth      *auth.Client
	directory IdentityLookup
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App, directory IdentityLookup) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting auth client: %w", err)
	}
	return &FirebaseVerifier{auth: client, directory: directory}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (middleware.UserClaims, error) {
	token, err := v.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return middleware.UserClaims{}, fmt.Errorf("%w: %v", middleware.ErrInvalidToken, err)
	}
	return claimsFromFirebase(ctx, token.UID, token.Claims, v.directory)
}

func claimsFromFirebase(ctx context.Context, uid string, custom map[string]interface{}, directory IdentityLookup) (middleware.UserClaims, error) {
	claims := middleware.UserClaims{UserID: uid}
	claims.Email, _ = custom["email"].(string)
	claims.Role, _ = custom["role"].(string)
	claims.AgencyID, _ = custom["agency_id"].(string)
	if claims.Role != "" {
		return claims, nil
	}

	if directory == nil {
		return middleware.UserClaims{}, fmt.Errorf("%w: no role for %s", middleware.ErrInvalidToken, uid)
	}
	identity, err := directory.Lookup(ctx, uid)
	if err != nil {
		return middleware.UserClaims{}, fmt.Errorf("%w: %v", middleware.ErrInvalidToken, err)
	}
	claims.Role = identity.Role
	claims.AgencyID = identity.AgencyID
	if claims.Email == "" {
		claims.Email = identity.Email
	}
	return claims, nil
}
