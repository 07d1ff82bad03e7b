package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Identity is the role record kept for every Firebase user.
type Identity struct {
	UID      string `firestore:"-"`
	Email    string `firestore:"email"`
	Name     string `firestore:"name"`
	Role     string `firestore:"role"`
	AgencyID string `firestore:"agencyId"`
}

// FirestoreDirectory reads identities from the users/{uid} collection.
type FirestoreDirectory struct {
	client *firestore.Client
}

func NewFirestoreDirectory(ctx context.Context, app *firebase.App) (*FirestoreDirectory, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firestore client: %w", err)
	}
	return &FirestoreDirectory{client: client}, nil
}

// ErrUnknownIdentity is returned when a principal has no directory entry.
var ErrUnknownIdentity = fmt.Errorf("no directory entry for user")

func (d *FirestoreDirectory) Lookup(ctx context.Context, uid string) (*Identity, error) {
	doc, err := d.client.Collection("users").Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrUnknownIdentity
		}
		return nil, fmt.Errorf("failed to read user %s: %w", uid, err)
	}

	var identity Identity
	if err := doc.DataTo(&identity); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", uid, err)
	}
	identity.UID = uid
	return &identity, nil
}

func (d *FirestoreDirectory) Close() error {
	return d.client.Close()
}
