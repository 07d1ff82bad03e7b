package services

import (
	"context"
	"fmt"
	"net/url"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
)

// ImageStore uploads photos to the app's Firebase Storage bucket.
type ImageStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

func NewImageStore(ctx context.Context, app *firebase.App, bucketName string) (*ImageStore, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("FIREBASE_STORAGE_BUCKET is required")
	}
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting storage client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("error opening bucket %s: %w", bucketName, err)
	}
	return &ImageStore{bucket: bucket, bucketName: bucketName}, nil
}

// Upload writes the object and returns a token-protected download URL.
func (s *ImageStore) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	token := uuid.New().String()

	w := s.bucket.Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", objectPath, err)
	}

	return DownloadURL(s.bucketName, objectPath, token), nil
}

// DownloadURL builds the Firebase Storage download URL of an object.
func DownloadURL(bucket, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectPath), token)
}
