package services

import (
	"context"
	"encoding/base64"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// FirebaseCredentials selects how the Firebase app authenticates. Base64 takes
// precedence over File; cloud deployments (Railway, Fly.io, Render) usually only
// allow env vars.
type FirebaseCredentials struct {
	Base64        string
	File          string
	StorageBucket string
}

func (c FirebaseCredentials) Configured() bool {
	return c.Base64 != "" || c.File != ""
}

// NewFirebaseApp initializes the Firebase app shared by messaging, auth, storage and
// Firestore.
func NewFirebaseApp(ctx context.Context, creds FirebaseCredentials) (*firebase.App, error) {
	var opt option.ClientOption
	switch {
	case creds.Base64 != "":
		credentialsJSON, err := base64.StdEncoding.DecodeString(creds.Base64)
		if err != nil {
			return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(credentialsJSON)
	case creds.File != "":
		opt = option.WithCredentialsFile(creds.File)
	default:
		return nil, fmt.Errorf("no Firebase credentials configured")
	}

	var cfg *firebase.Config
	if creds.StorageBucket != "" {
		cfg = &firebase.Config{StorageBucket: creds.StorageBucket}
	}

	app, err := firebase.NewApp(ctx, cfg, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	return app, nil
}
